package handlers

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/orca-tagsdb/internal/services"
)

type ReportingHandler struct {
	Service *services.ReportingService
}

func metricFilter(c *fiber.Ctx) (services.MetricFilter, error) {
	var f services.MetricFilter
	var err error
	if f.TagID, err = queryID(c, "tag_id"); err != nil {
		return f, err
	}
	if f.OutputID, err = queryID(c, "output_id"); err != nil {
		return f, err
	}
	if f.Active, err = queryBool(c, "active"); err != nil {
		return f, err
	}
	f.User = c.Query("user")
	return f, nil
}

// SharedMetrics handles GET /api/v1/shared-folder-metrics
// @Summary List shared folder metric rows
// @Tags Reporting
// @Produce json
// @Param tag_id query int false "Tag id"
// @Param user query string false "Recipient username"
// @Param output_id query int false "Output id"
// @Param active query bool false "Only open (true) or closed (false) rows"
// @Success 200 {array} models.SharedFolderMetric
// @Router /v1/shared-folder-metrics [get]
func (h *ReportingHandler) SharedMetrics(c *fiber.Ctx) error {
	f, err := metricFilter(c)
	if err != nil {
		return err
	}
	rows, err := h.Service.SharedMetrics(f)
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

// ExportSharedMetrics handles GET /api/v1/shared-folder-metrics/export
// @Summary Export shared folder metric rows as CSV
// @Tags Reporting
// @Produce text/csv
// @Param tag_id query int false "Tag id"
// @Param user query string false "Recipient username"
// @Param output_id query int false "Output id"
// @Param active query bool false "Only open (true) or closed (false) rows"
// @Success 200 {string} string
// @Router /v1/shared-folder-metrics/export [get]
func (h *ReportingHandler) ExportSharedMetrics(c *fiber.Ctx) error {
	f, err := metricFilter(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := h.Service.ExportSharedMetrics(&buf, f); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="shared_folder_metrics_%s.csv"`, time.Now().UTC().Format("20060102T150405Z")))
	return c.Send(buf.Bytes())
}

// AuditLogs handles GET /api/v1/audit-logs
// @Summary List audit entries, newest first
// @Tags Reporting
// @Produce json
// @Param object_type query string false "Object type"
// @Param object_key query string false "Object key"
// @Param action query string false "CREATE, UPDATE, DELETE, SYNC or DOWNLOAD"
// @Param user_name query string false "User"
// @Param limit query int false "At most this many rows (max 1000)"
// @Success 200 {array} models.AuditLog
// @Router /v1/audit-logs [get]
func (h *ReportingHandler) AuditLogs(c *fiber.Ctx) error {
	logs, err := h.Service.AuditLogs(services.AuditLogFilter{
		ObjectType: c.Query("object_type"),
		ObjectKey:  c.Query("object_key"),
		Action:     c.Query("action"),
		UserName:   c.Query("user_name"),
		Limit:      c.QueryInt("limit", 0),
	})
	if err != nil {
		return err
	}
	return c.JSON(logs)
}
