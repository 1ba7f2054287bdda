package services

import (
	"context"
	"encoding/json"

	"github.com/Laisky/errors/v2"
	"github.com/localnerve/orca-tagsdb/internal/config"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// AuditSink receives every audit batch
type AuditSink interface {
	Deliver(ctx context.Context, entries []models.AuditLog) error
}

// DBAuditSink writes entries to the audit_logs table
type DBAuditSink struct {
	DB *gorm.DB
}

func (s *DBAuditSink) Deliver(ctx context.Context, entries []models.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.DB.WithContext(ctx).Create(&entries).Error; err != nil {
		return errors.Wrap(err, "insert audit logs")
	}
	return nil
}

// StreamAuditSink appends entries to a redis stream, one stream record per entry
type StreamAuditSink struct {
	Client *redis.Client
	Stream string
}

func (s *StreamAuditSink) Deliver(ctx context.Context, entries []models.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := s.Client.Pipeline()
	for i := range entries {
		payload, err := json.Marshal(&entries[i])
		if err != nil {
			return errors.Wrap(err, "marshal audit entry")
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.Stream,
			Values: map[string]interface{}{
				"request_id":  entries[i].RequestID,
				"object_type": entries[i].ObjectType,
				"entry":       string(payload),
			},
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "publish %d audit entries to %s", len(entries), s.Stream)
	}
	return nil
}

// TeeAuditSink hands every batch to each sink in order. A failing sink does not stop
// the rest; the first failure is returned.
type TeeAuditSink []AuditSink

func (t TeeAuditSink) Deliver(ctx context.Context, entries []models.AuditLog) error {
	var first error
	for _, sink := range t {
		if err := sink.Deliver(ctx, entries); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// StreamSinkOf finds the redis stream sink behind sink, or nil when there is none
func StreamSinkOf(sink AuditSink) *StreamAuditSink {
	switch s := sink.(type) {
	case *StreamAuditSink:
		return s
	case TeeAuditSink:
		for _, inner := range s {
			if found := StreamSinkOf(inner); found != nil {
				return found
			}
		}
	}
	return nil
}

// NewAuditSink writes to the audit_logs table, and in production also publishes to the
// redis stream. The table stays the source for audit queries and metric replay.
// The returned close func releases the redis client, if any.
func NewAuditSink(cfg *config.Config, db *gorm.DB) (AuditSink, func() error, error) {
	table := &DBAuditSink{DB: db}
	if !cfg.IsProduction() {
		return table, func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse REDIS_URL")
	}
	client := redis.NewClient(opts)
	return TeeAuditSink{table, &StreamAuditSink{Client: client, Stream: cfg.AuditStream}}, client.Close, nil
}
