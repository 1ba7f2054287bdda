package services

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// MetricFilter narrows the shared folder metrics listing; zero values are ignored
type MetricFilter struct {
	TagID    uint
	User     string
	OutputID uint
	Active   *bool
}

// AuditLogFilter narrows the audit log listing; zero values are ignored
type AuditLogFilter struct {
	ObjectType string
	ObjectKey  string
	Action     string
	UserName   string
	Limit      int
}

type ReportingService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewReportingService(db *gorm.DB, log *zap.Logger) *ReportingService {
	return &ReportingService{db: db, log: log}
}

func (s *ReportingService) metricsQuery(f MetricFilter) *gorm.DB {
	q := s.db.Model(&models.SharedFolderMetric{}).Order("id")
	if f.TagID != 0 {
		q = q.Where("tag_id = ?", f.TagID)
	}
	if f.User != "" {
		q = q.Where("file_shared_to = ?", f.User)
	}
	if f.OutputID != 0 {
		q = q.Where("output_detail_id = ?", f.OutputID)
	}
	if f.Active != nil {
		if *f.Active {
			q = q.Where("file_shared_to_ts IS NULL")
		} else {
			q = q.Where("file_shared_to_ts IS NOT NULL")
		}
	}
	return q
}

func (s *ReportingService) SharedMetrics(f MetricFilter) ([]models.SharedFolderMetric, error) {
	var rows []models.SharedFolderMetric
	if err := s.metricsQuery(f).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list shared folder metrics")
	}
	return rows, nil
}

var metricColumns = []string{
	"id", "tag_id", "tag_name", "file_shared_by", "file_shared_to", "file_shared_from_ts", "file_shared_to_ts",
	"comment", "output_detail_id", "compound", "study", "dbr", "re", "file_shared", "file_name",
	"file_version_major", "file_version_minor", "file_version_patch",
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func metricRecord(m *models.SharedFolderMetric) []string {
	to := ""
	if m.FileSharedToTS != nil {
		to = m.FileSharedToTS.UTC().Format(time.RFC3339Nano)
	}
	return []string{
		strconv.FormatUint(uint64(m.ID), 10),
		strconv.FormatUint(uint64(m.TagID), 10),
		m.TagName,
		m.FileSharedBy,
		m.FileSharedTo,
		m.FileSharedFromTS.UTC().Format(time.RFC3339Nano),
		to,
		optString(m.Comment),
		strconv.FormatUint(uint64(m.OutputDetailID), 10),
		m.Compound,
		m.Study,
		m.DBR,
		m.RE,
		m.FileShared,
		m.FileName,
		optInt(m.FileVersionMajor),
		optInt(m.FileVersionMinor),
		optInt(m.FileVersionPatch),
	}
}

// ExportSharedMetrics writes matching rows as CSV, header first, streaming in batches
func (s *ReportingService) ExportSharedMetrics(w io.Writer, f MetricFilter) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(metricColumns); err != nil {
		return 0, errors.Wrap(err, "write csv header")
	}

	count := 0
	var batch []models.SharedFolderMetric
	err := s.metricsQuery(f).FindInBatches(&batch, 500, func(_ *gorm.DB, _ int) error {
		for i := range batch {
			if err := cw.Write(metricRecord(&batch[i])); err != nil {
				return errors.Wrap(err, "write csv row")
			}
			count++
		}
		return nil
	}).Error
	if err != nil {
		return count, errors.Wrap(err, "export shared folder metrics")
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return count, errors.Wrap(err, "flush csv")
	}
	return count, nil
}

func (s *ReportingService) AuditLogs(f AuditLogFilter) ([]models.AuditLog, error) {
	q := s.db.Model(&models.AuditLog{}).Order("id DESC")
	if f.ObjectType != "" {
		q = q.Where("object_type = ?", f.ObjectType)
	}
	if f.ObjectKey != "" {
		q = q.Where("object_key = ?", f.ObjectKey)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.UserName != "" {
		q = q.Where("user_name = ?", f.UserName)
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	var logs []models.AuditLog
	if err := q.Limit(limit).Find(&logs).Error; err != nil {
		return nil, errors.Wrap(err, "list audit logs")
	}
	return logs, nil
}

// ReplayTag feeds the stored audit batches of a tag through the reconciler in the order they were written.
// Replaying is idempotent; it returns the number of batches applied.
func (s *ReportingService) ReplayTag(ctx context.Context, r *Reconciler, tagID uint) (int, error) {
	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Clauses(hints.Comment("select", "replay_audit")).
		Where("object_type IN ? AND object_key = ?", []string{
			models.TagObjectType(models.ScopeDatabaseRelease),
			models.TagObjectType(models.ScopeReportingEffort),
		}, models.TagKey(tagID)).
		Order("id").
		Find(&logs).Error
	if err != nil {
		return 0, errors.Wrap(err, "load tag audit logs")
	}

	batches := 0
	for start := 0; start < len(logs); {
		end := start + 1
		for end < len(logs) && logs[end].RequestID == logs[start].RequestID {
			end++
		}
		if err := r.Reconcile(ctx, logs[start:end]); err != nil {
			return batches, errors.Wrapf(err, "replay request %s", logs[start].RequestID)
		}
		batches++
		start = end
	}

	s.log.Info("audit replay finished", zap.Uint("tag_id", tagID), zap.Int("batches", batches))
	return batches, nil
}
