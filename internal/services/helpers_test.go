package services

import (
	"context"
	"testing"
	"time"

	"github.com/Laisky/zap"
	"github.com/google/uuid"
	"github.com/localnerve/orca-tagsdb/internal/config"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/testutil"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	programmer = Principal{Username: "prog", Role: models.RoleProgrammer}
	alice      = Principal{Username: "alice", Role: models.RoleReviewer}
	bob        = Principal{Username: "bob", Role: models.RoleReviewer}
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Environment:     config.EnvDevelopment,
		DefaultSource:   models.SourceProd,
		DownloadWorkers: 2,
		DownloadURLTTL:  time.Minute,
		S3LocalPath:     t.TempDir(),
	}
}

// fixture is one database with a PROD hierarchy and the services over it
type fixture struct {
	t      *testing.T
	db     *gorm.DB
	cfg    *config.Config
	log    *zap.Logger
	h      *testutil.Hierarchy
	tags   *TagService
	lists  *DistributionListService
	engine *AuditEngine
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewDB(t)
	log := zap.NewNop()
	cfg := testConfig(t)
	return &fixture{
		t:      t,
		db:     db,
		cfg:    cfg,
		log:    log,
		h:      testutil.NewHierarchy(t, db, models.SourceProd, "ADR_2024"),
		tags:   NewTagService(db, log),
		lists:  NewDistributionListService(db, log),
		engine: NewAuditEngine(cfg, db, &DBAuditSink{DB: db}, NewReconciler(db, log), log),
	}
}

func (f *fixture) output(identifier string) models.OutputDetail {
	return testutil.AddOutput(f.t, f.db, f.h, identifier,
		"root/PROD/ADR_2024/ADR_2024-STUDY/ADR_2024-DBR/"+identifier+".pdf")
}

func flexIDs(values ...uint) types.FlexList[types.FlexID] {
	out := make(types.FlexList[types.FlexID], 0, len(values))
	for _, v := range values {
		out = append(out, types.FlexID(v))
	}
	return out
}

func (f *fixture) createTag(name string, users []string, outputIDs ...uint) *TagResponse {
	f.t.Helper()
	tag, err := f.tags.Create(programmer, models.ScopeDatabaseRelease, f.h.DBR.ID, TagCreate{
		TagName:   name,
		Reason:    "CSR",
		Users:     users,
		OutputIDs: flexIDs(outputIDs...),
	})
	require.NoError(f.t, err)
	return tag
}

// audited runs fn between an audit Begin and Commit stamped at the given instant
func (f *fixture) audited(at time.Time, action, entity string, id uint, fn func() uint) []models.AuditLog {
	f.t.Helper()
	meta := AuditMeta{RequestID: uuid.NewString(), UserName: programmer.Username, Action: action, Timestamp: at}
	var targets []uint
	if id != 0 {
		targets = []uint{id}
	}
	ctx := context.Background()
	capture := f.engine.Begin(ctx, meta, entity, targets)
	created := fn()
	return capture.Commit(ctx, created)
}

func (f *fixture) latestTags(outputID uint) models.TagMap {
	return testutil.LatestVersion(f.t, f.db, outputID).Tags
}
