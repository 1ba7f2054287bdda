package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Laisky/zap"
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/orca-tagsdb/internal/config"
	"github.com/localnerve/orca-tagsdb/internal/handlers"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/services"
	"github.com/localnerve/orca-tagsdb/internal/testutil"
	"github.com/localnerve/orca-tagsdb/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testApp struct {
	t   *testing.T
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
	h   *testutil.Hierarchy
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	db := testutil.NewDB(t)
	log := zap.NewNop()
	cfg := &config.Config{
		Environment:     config.EnvDevelopment,
		DBType:          "sqlite",
		DefaultSource:   models.SourceProd,
		DownloadWorkers: 2,
		S3LocalPath:     t.TempDir(),
	}
	store, err := services.NewLocalStore(cfg.S3LocalPath)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(log)})
	handlers.Register(app, handlers.Deps{
		Config:    cfg,
		DB:        db,
		Log:       log,
		Audit:     services.NewAuditEngine(cfg, db, &services.DBAuditSink{DB: db}, services.NewReconciler(db, log), log),
		Store:     store,
		Watermark: services.TextWatermarker{Label: "DRAFT"},
	})
	app.Use(handlers.NotFound)

	testutil.AddUser(t, db, "prog", models.RoleProgrammer)
	return &testApp{
		t:   t,
		app: app,
		db:  db,
		cfg: cfg,
		h:   testutil.NewHierarchy(t, db, models.SourceProd, "ADR_2024"),
	}
}

func (a *testApp) do(method, path, user string, body interface{}) *http.Response {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User", user)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (a *testApp) output(identifier string) models.OutputDetail {
	return testutil.AddOutput(a.t, a.db, a.h, identifier,
		"root/PROD/ADR_2024/ADR_2024-STUDY/ADR_2024-DBR/"+identifier+".pdf")
}

func TestHealth(t *testing.T) {
	a := setupApp(t)
	resp := a.do("GET", "/api/health", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result services.HealthCheckResult
	decode(t, resp, &result)
	assert.Equal(t, "healthy", result.Status)
	assert.Equal(t, "ok", result.Database)
	assert.Equal(t, "disabled", result.AuditBus)
}

func TestNotFoundEnvelope(t *testing.T) {
	a := setupApp(t)
	resp := a.do("GET", "/api/v1/nothing-here", "prog", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var body utils.ErrorResponseStruct
	decode(t, resp, &body)
	assert.False(t, body.Ok)
	assert.Equal(t, "not_found", body.Type)
}

func TestCreateTagIsAuditedAndShared(t *testing.T) {
	a := setupApp(t)
	o := a.output("OUT-1")

	path := fmt.Sprintf("/api/v1/dbrs/%d/tags", a.h.DBR.ID)
	resp := a.do("POST", path, "prog", map[string]interface{}{
		"tag_name":   "week-12",
		"reason":     "CSR",
		"users":      []string{"alice"},
		"output_ids": []uint{o.ID},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	requestID := resp.Header.Get("X-Request-Id")
	require.NotEmpty(t, requestID)

	var tag services.TagResponse
	decode(t, resp, &tag)
	assert.Equal(t, "week-12", tag.TagName)
	require.Len(t, tag.OutputDetails, 1)

	var logs []models.AuditLog
	require.NoError(t, a.db.Where("request_id = ?", requestID).Find(&logs).Error)
	require.NotEmpty(t, logs)
	for _, e := range logs {
		assert.Equal(t, models.ActionCreate, e.Action)
		assert.Equal(t, "prog", e.UserName)
		assert.Equal(t, "database_release_tag", e.ObjectType)
	}

	open := testutil.OpenMetrics(t, a.db, tag.ID)
	require.Len(t, open, 1)
	assert.Equal(t, "alice", open[0].FileSharedTo)
}

func TestReviewerCannotCreateTag(t *testing.T) {
	a := setupApp(t)
	o := a.output("OUT-1")

	resp := a.do("POST", fmt.Sprintf("/api/v1/dbrs/%d/tags", a.h.DBR.ID), "alice", map[string]interface{}{
		"tag_name":   "nope",
		"users":      []string{"alice"},
		"output_ids": []uint{o.ID},
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var body utils.ErrorResponseStruct
	decode(t, resp, &body)
	assert.Equal(t, "forbidden", body.Type)

	var n int64
	require.NoError(t, a.db.Model(&models.AuditLog{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestMalformedBody(t *testing.T) {
	a := setupApp(t)
	req := httptest.NewRequest("POST", "/api/v1/distribution-lists", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", "prog")
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestBadPathID(t *testing.T) {
	a := setupApp(t)
	resp := a.do("GET", "/api/v1/dbrs/abc/tags", "prog", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body utils.ErrorResponseStruct
	decode(t, resp, &body)
	require.Len(t, body.Detail, 1)
	assert.Equal(t, "parentId", body.Detail[0].Field)
}

func TestDistributionListRoutes(t *testing.T) {
	a := setupApp(t)

	resp := a.do("POST", "/api/v1/distribution-lists", "prog", map[string]interface{}{
		"name":     "readers",
		"study_id": a.h.Study.ID,
		"users":    []string{"alice"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var dl models.DistributionList
	decode(t, resp, &dl)

	resp = a.do("PUT", fmt.Sprintf("/api/v1/distribution-lists/%d", dl.ID), "prog", map[string]interface{}{
		"users": []string{"alice", "bob"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var updates []models.AuditLog
	require.NoError(t, a.db.Where("object_type = ? AND action = ?", services.DistributionListObjectType, models.ActionUpdate).
		Find(&updates).Error)
	props := make([]string, 0, len(updates))
	for _, e := range updates {
		props = append(props, *e.ObjectProperty)
	}
	assert.Contains(t, props, "users")

	resp = a.do("DELETE", fmt.Sprintf("/api/v1/distribution-lists/%d", dl.ID), "prog", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = a.do("GET", fmt.Sprintf("/api/v1/distribution-lists/%d", dl.ID), "prog", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDownloadIsAudited(t *testing.T) {
	a := setupApp(t)
	o := a.output("OUT-1")
	full := filepath.Join(a.cfg.S3LocalPath, o.FilePath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("pdf"), 0o644))

	resp := a.do("POST", "/api/v1/output-details/download", "prog", map[string]interface{}{
		"file_ids": []uint{o.ID},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var res services.DownloadResult
	decode(t, resp, &res)
	assert.Equal(t, 1, res.Files)

	var logs []models.AuditLog
	require.NoError(t, a.db.Where("action = ?", models.ActionDownload).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, o.FilePath, *logs[0].NewValue)
}

func TestExportSharedMetricsCSV(t *testing.T) {
	a := setupApp(t)
	o := a.output("OUT-1")
	resp := a.do("POST", fmt.Sprintf("/api/v1/dbrs/%d/tags", a.h.DBR.ID), "prog", map[string]interface{}{
		"tag_name":   "export",
		"users":      []string{"alice", "bob"},
		"output_ids": []uint{o.ID},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = a.do("GET", "/api/v1/shared-folder-metrics/export?active=true", "prog", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Len(t, lines, 3)
}

func TestMeAndHierarchy(t *testing.T) {
	a := setupApp(t)

	req := httptest.NewRequest("GET", "/api/v1/users/me", nil)
	req.Header.Set("X-User", "prog")
	req.Header.Set("X-Program-Id", "PP-7")
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	var me handlers.MeResponse
	decode(t, resp, &me)
	assert.Equal(t, handlers.MeResponse{Username: "prog", Role: models.RoleProgrammer, ProgramID: "PP-7"}, me)

	resp = a.do("POST", "/api/v1/compounds", "prog", map[string]string{"name": "CMP_1", "source": "prod"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var compound models.Compound
	decode(t, resp, &compound)
	assert.Equal(t, a.h.Source.ID, compound.SourceID)

	resp = a.do("POST", "/api/v1/compounds", "prog", map[string]string{"name": "CMP_1", "source": "PROD"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = a.do("POST", "/api/v1/compounds", "prog", map[string]string{"name": "CMP_2", "source": "NOPE"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
