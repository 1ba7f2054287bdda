package database_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Laisky/zap"
	"github.com/localnerve/orca-tagsdb/data"
	"github.com/localnerve/orca-tagsdb/internal/config"
	"github.com/localnerve/orca-tagsdb/internal/database"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/services"
	"github.com/localnerve/orca-tagsdb/internal/testutil"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector(t *testing.T) {
	tests := []struct {
		dbType string
		name   string
	}{
		{"postgres", "postgres"},
		{"postgresql", "postgres"},
		{"mysql", "mysql"},
		{"mariadb", "mysql"},
		{"sqlite", "sqlite"},
		{"sqlite3", "sqlite"},
		{"sqlserver", "sqlserver"},
		{"mssql", "sqlserver"},
	}
	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			d, err := database.Dialector(&config.Config{
				DBType: tt.dbType, DBHost: "localhost", DBPort: "1", DBDatabase: "orca",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.name, d.Name())
		})
	}

	_, err := database.Dialector(&config.Config{DBType: "oracle"})
	assert.Error(t, err)
}

func TestSeedIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, database.Seed(db, data.Reference))
	require.NoError(t, database.Seed(db, data.Demo))
	require.NoError(t, database.Seed(db, data.Demo))

	var sources, users, dbrs int64
	require.NoError(t, db.Model(&models.Source{}).Count(&sources).Error)
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.DatabaseRelease{}).Count(&dbrs).Error)
	assert.EqualValues(t, 3, sources)
	assert.EqualValues(t, 3, users)
	assert.EqualValues(t, 1, dbrs)

	role, err := services.LookupRole(db, "priya")
	require.NoError(t, err)
	assert.Equal(t, models.RoleProgrammer, role)

	assert.Error(t, database.Seed(db, []byte(`{"compounds":[{"name":"C","source":"NOPE"}]}`)))
}

// TestPostgresTagMapQueries runs the tag map key predicates against a real postgres
func TestPostgresTagMapQueries(t *testing.T) {
	if testing.Short() || os.Getenv("ORCA_SKIP_CONTAINERS") != "" {
		t.Skip("skipping container test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	stack, err := testutil.StartDevStack(ctx, testutil.StackConfig{})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = stack.Terminate(context.Background()) })

	cfg := &config.Config{
		DBType:            stack.Env["DB_TYPE"],
		DBHost:            stack.Env["DB_HOST"],
		DBPort:            stack.Env["DB_PORT"],
		DBDatabase:        stack.Env["DB_DATABASE"],
		DBUser:            stack.Env["DB_USER"],
		DBPassword:        stack.Env["DB_PASSWORD"],
		DBConnectionLimit: 4,
	}
	log := zap.NewNop()
	db, err := database.Connect(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, database.AutoMigrate(db))

	h := testutil.NewHierarchy(t, db, models.SourceProd, "ADR_2024")
	o1 := testutil.AddOutput(t, db, h, "OUT-1", "root/PROD/ADR_2024/ADR_2024-STUDY/ADR_2024-DBR/OUT-1.pdf")
	o2 := testutil.AddOutput(t, db, h, "OUT-2", "root/PROD/ADR_2024/ADR_2024-STUDY/ADR_2024-DBR/OUT-2.pdf")

	tags := services.NewTagService(db, log)
	programmer := services.Principal{Username: "prog", Role: models.RoleProgrammer}
	_, err = tags.Create(programmer, models.ScopeDatabaseRelease, h.DBR.ID, services.TagCreate{
		TagName:   "pg-tag",
		Users:     []string{"alice"},
		OutputIDs: []types.FlexID{types.FlexID(o1.ID)},
	})
	require.NoError(t, err)

	accessible, err := services.AccessibleOutputs(db, "alice")
	require.NoError(t, err)
	assert.Contains(t, accessible, o1.ID)
	assert.NotContains(t, accessible, o2.ID)

	untagged, err := services.UntaggedOutputs(db, []uint{o1.ID, o2.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{o2.ID}, untagged)
}
