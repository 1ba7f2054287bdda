package services

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/localnerve/orca-tagsdb/internal/config"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sinkEntries(requestID string) []models.AuditLog {
	key, prop, val := "7", "tag_name", `"week-12"`
	return []models.AuditLog{
		{RequestID: requestID, UserName: "prog", Action: models.ActionCreate, Timestamp: t0,
			ObjectType: models.TagObjectType(models.ScopeDatabaseRelease), ObjectKey: &key, ObjectProperty: &prop, NewValue: &val},
		{RequestID: requestID, UserName: "prog", Action: models.ActionCreate, Timestamp: t0,
			ObjectType: models.TagObjectType(models.ScopeDatabaseRelease), ObjectKey: &key},
	}
}

func TestTeeAuditSinkDeliversToEverySink(t *testing.T) {
	db := testutil.NewDB(t)
	bus, other := &failingSink{}, &failingSink{}
	tee := TeeAuditSink{bus, &DBAuditSink{DB: db}, other}

	err := tee.Deliver(context.Background(), sinkEntries("req-1"))
	assert.EqualError(t, err, "bus down")
	assert.Equal(t, 1, bus.calls)
	assert.Equal(t, 1, other.calls)

	var n int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("request_id = ?", "req-1").Count(&n).Error)
	assert.EqualValues(t, 2, n)

	assert.NoError(t, TeeAuditSink{&DBAuditSink{DB: db}}.Deliver(context.Background(), nil))
}

func TestNewAuditSink(t *testing.T) {
	db := testutil.NewDB(t)

	sink, closeSink, err := NewAuditSink(&config.Config{Environment: config.EnvDevelopment}, db)
	require.NoError(t, err)
	assert.IsType(t, &DBAuditSink{}, sink)
	assert.Nil(t, StreamSinkOf(sink))
	assert.NoError(t, closeSink())

	sink, closeSink, err = NewAuditSink(&config.Config{
		Environment: config.EnvProduction,
		RedisURL:    "redis://127.0.0.1:6379/0",
		AuditStream: "orca:audit",
	}, db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeSink() })

	tee, ok := sink.(TeeAuditSink)
	require.True(t, ok)
	require.Len(t, tee, 2)
	assert.IsType(t, &DBAuditSink{}, tee[0])
	stream := StreamSinkOf(sink)
	require.NotNil(t, stream)
	assert.Equal(t, "orca:audit", stream.Stream)

	_, _, err = NewAuditSink(&config.Config{Environment: config.EnvProduction, RedisURL: "nope://"}, db)
	assert.Error(t, err)
}

func TestProductionSinkKeepsTrailQueryable(t *testing.T) {
	f := newFixture(t)
	o := f.output("OUT-1")

	// nothing listens on port 1, so the stream publish fails
	sink, closeSink, err := NewAuditSink(&config.Config{
		Environment: config.EnvProduction,
		RedisURL:    "redis://127.0.0.1:1/0",
		AuditStream: "orca:audit",
	}, f.db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeSink() })
	f.engine = NewAuditEngine(f.cfg, f.db, sink, NewReconciler(f.db, f.log), f.log)

	var tag *TagResponse
	f.audited(t0, models.ActionCreate, EntityTag, 0, func() uint {
		tag = f.createTag("prod-trail", []string{"alice"}, o.ID)
		return tag.ID
	})

	var n int64
	require.NoError(t, f.db.Model(&models.AuditLog{}).
		Where("object_key = ?", models.TagKey(tag.ID)).Count(&n).Error)
	assert.NotZero(t, n)

	batches, err := NewReportingService(f.db, f.log).ReplayTag(context.Background(), NewReconciler(f.db, f.log), tag.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, batches)
	assert.Len(t, testutil.OpenMetrics(t, f.db, tag.ID), 1)
}

// TestStreamAuditSinkDeliver publishes a batch to a real redis and reads it back
func TestStreamAuditSinkDeliver(t *testing.T) {
	if testing.Short() || os.Getenv("ORCA_SKIP_CONTAINERS") != "" {
		t.Skip("skipping container test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	stack, err := testutil.StartDevStack(ctx, testutil.StackConfig{WithRedis: true})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = stack.Terminate(context.Background()) })

	opts, err := redis.ParseURL(stack.Env["REDIS_URL"])
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	sink := &StreamAuditSink{Client: client, Stream: "orca:audit:test"}
	entries := sinkEntries("req-stream")
	require.NoError(t, sink.Deliver(ctx, entries))
	require.NoError(t, sink.Deliver(ctx, nil))

	msgs, err := client.XRange(ctx, sink.Stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, len(entries))

	for i, msg := range msgs {
		assert.Equal(t, "req-stream", msg.Values["request_id"])
		assert.Equal(t, "database_release_tag", msg.Values["object_type"])

		raw, ok := msg.Values["entry"].(string)
		require.True(t, ok)
		var got models.AuditLog
		require.NoError(t, json.Unmarshal([]byte(raw), &got))
		assert.Equal(t, entries[i].RequestID, got.RequestID)
		assert.Equal(t, entries[i].Action, got.Action)
		assert.True(t, got.Timestamp.Equal(t0))
		require.NotNil(t, got.ObjectKey)
		assert.Equal(t, "7", *got.ObjectKey)
	}
	assert.Equal(t, "tag_name", *mustEntry(t, msgs[0]).ObjectProperty)
	assert.Nil(t, mustEntry(t, msgs[1]).ObjectProperty)
}

func mustEntry(t *testing.T, msg redis.XMessage) models.AuditLog {
	t.Helper()
	var e models.AuditLog
	require.NoError(t, json.Unmarshal([]byte(msg.Values["entry"].(string)), &e))
	return e
}
