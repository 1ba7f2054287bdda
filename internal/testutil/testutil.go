// Package testutil opens throwaway databases and builds the small hierarchies the package tests share.
package testutil

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/localnerve/orca-tagsdb/internal/database"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory sqlite database with the full schema
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the shared memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// Hierarchy is one compound down to one reporting effort
type Hierarchy struct {
	Source   models.Source
	Compound models.Compound
	Study    models.Study
	DBR      models.DatabaseRelease
	RE       models.ReportingEffort
}

// NewHierarchy creates the source (if missing) and a fresh compound chain under it
func NewHierarchy(t *testing.T, db *gorm.DB, source, compound string) *Hierarchy {
	t.Helper()

	h := &Hierarchy{Source: models.Source{Name: source}}
	require.NoError(t, db.Where(models.Source{Name: source}).FirstOrCreate(&h.Source).Error)

	h.Compound = models.Compound{Name: compound, SourceID: h.Source.ID}
	require.NoError(t, db.Create(&h.Compound).Error)
	h.Study = models.Study{Name: compound + "-STUDY", CompoundID: h.Compound.ID}
	require.NoError(t, db.Create(&h.Study).Error)
	h.DBR = models.DatabaseRelease{Name: compound + "-DBR", StudyID: h.Study.ID}
	require.NoError(t, db.Create(&h.DBR).Error)
	h.RE = models.ReportingEffort{Name: compound + "-RE", DatabaseReleaseID: h.DBR.ID}
	require.NoError(t, db.Create(&h.RE).Error)
	return h
}

// AddUser stores a local role
func AddUser(t *testing.T, db *gorm.DB, username, role string) models.User {
	t.Helper()
	u := models.User{Username: username, Email: username + "@example.com", Role: role}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// AddOutput creates an output under the reporting effort with a single latest 1.0.0 version.
// filePath follows the root/SOURCE/compound/... layout.
func AddOutput(t *testing.T, db *gorm.DB, h *Hierarchy, identifier, filePath string) models.OutputDetail {
	t.Helper()

	cid, sid, did, rid := h.Compound.ID, h.Study.ID, h.DBR.ID, h.RE.ID
	o := models.OutputDetail{
		Identifier:          identifier,
		Title:               identifier,
		FilePath:            filePath,
		LogicalPath:         models.LogicalPath(filePath),
		CompoundID:          &cid,
		CompoundName:        h.Compound.Name,
		StudyID:             &sid,
		StudyName:           h.Study.Name,
		DatabaseReleaseID:   &did,
		DatabaseReleaseName: h.DBR.Name,
		ReportingEffortID:   &rid,
		ReportingEffortName: h.RE.Name,
		SourceID:            h.Source.ID,
		SourceName:          h.Source.Name,
	}
	require.NoError(t, db.Create(&o).Error)

	v := models.OutputDetailVersion{
		OutputID:     o.ID,
		VersionMajor: 1,
		FilePath:     filePath,
		IsLatest:     true,
		Tags:         models.TagMap{},
	}
	require.NoError(t, db.Create(&v).Error)
	o.Versions = []models.OutputDetailVersion{v}
	return o
}

// LatestVersion reloads the latest version of an output
func LatestVersion(t *testing.T, db *gorm.DB, outputID uint) models.OutputDetailVersion {
	t.Helper()
	var v models.OutputDetailVersion
	require.NoError(t, db.Where("output_id = ? AND is_latest = ?", outputID, true).First(&v).Error)
	return v
}

// OpenMetrics returns the open shared folder rows of a tag, ordered by user then output
func OpenMetrics(t *testing.T, db *gorm.DB, tagID uint) []models.SharedFolderMetric {
	t.Helper()
	var rows []models.SharedFolderMetric
	require.NoError(t, db.Where("tag_id = ? AND file_shared_to_ts IS NULL", tagID).
		Order("file_shared_to, output_detail_id").Find(&rows).Error)
	return rows
}
