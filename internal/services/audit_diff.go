package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/localnerve/orca-tagsdb/internal/config"
	"github.com/localnerve/orca-tagsdb/internal/metrics"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"gorm.io/gorm"
)

// Audited entity kinds
const (
	EntityTag              = "tag"
	EntityDistributionList = "distribution_list"
	EntityOutputDetail     = "output_detail"
)

// DistributionListObjectType is the audit object type of distribution list entries
const DistributionListObjectType = "distribution_lists"

// SystemUser is recorded when a change has no resolved principal
const SystemUser = "system"

// ClassifyAction maps a request to its audit action. Reads return "".
func ClassifyAction(method, path string) string {
	method = strings.ToUpper(method)
	switch method {
	case "GET", "HEAD", "OPTIONS":
		return ""
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	for _, s := range segments {
		if s == "download" {
			return models.ActionDownload
		}
	}
	if segments[len(segments)-1] == "sync" {
		return models.ActionSync
	}
	for i, s := range segments {
		if s == "records" {
			return models.ActionUpdate
		}
		// membership edits on a tag change the tag, they create nothing
		if s == "users" && i >= 2 && segments[i-2] == "tags" {
			return models.ActionUpdate
		}
	}

	switch method {
	case "POST":
		return models.ActionCreate
	case "PUT", "PATCH":
		return models.ActionUpdate
	case "DELETE":
		return models.ActionDelete
	}
	return ""
}

// Snapshot is the audited field set of one entity at one moment
type Snapshot struct {
	ObjectType string
	Key        string
	Fields     map[string]interface{}
}

// FieldChange is one differing field between two snapshots
type FieldChange struct {
	Property string
	Old      *string
	New      *string
}

// DiffSnapshots compares the serialized value of every field in the union of both key sets.
// A nil snapshot counts as empty.
func DiffSnapshots(before, after *Snapshot) []FieldChange {
	keys := make(map[string]struct{})
	if before != nil {
		for k := range before.Fields {
			keys[k] = struct{}{}
		}
	}
	if after != nil {
		for k := range after.Fields {
			keys[k] = struct{}{}
		}
	}

	var changes []FieldChange
	for _, k := range sortedKeys(keys) {
		var oldV, newV *string
		if before != nil {
			oldV = auditValue(before.Fields[k])
		}
		if after != nil {
			newV = auditValue(after.Fields[k])
		}
		if sameValue(oldV, newV) {
			continue
		}
		changes = append(changes, FieldChange{Property: k, Old: oldV, New: newV})
	}
	return changes
}

// auditValue serializes a field: strings as-is, timestamps as ISO-8601, everything else as JSON
func auditValue(v interface{}) *string {
	var s string
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		s = x
	case *string:
		if x == nil {
			return nil
		}
		s = *x
	case time.Time:
		s = x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return nil
		}
		s = x.UTC().Format(time.RFC3339Nano)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			s = fmt.Sprint(x)
		} else {
			s = string(b)
		}
	}
	return &s
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func dumpSnapshot(s *Snapshot) *string {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(s.Fields)
	if err != nil {
		return nil
	}
	out := string(b)
	return &out
}

// LoadSnapshot reads the audited state of an entity. A missing row yields nil, nil.
func LoadSnapshot(db *gorm.DB, entity string, id uint) (*Snapshot, error) {
	switch entity {
	case EntityTag:
		return snapshotTag(db, id)
	case EntityDistributionList:
		return snapshotDistributionList(db, id)
	case EntityOutputDetail:
		return snapshotOutput(db, id)
	}
	return nil, errors.Errorf("unknown audit entity %q", entity)
}

func snapshotTag(db *gorm.DB, id uint) (*Snapshot, error) {
	var tag models.Tag
	if err := quiet(db).Preload("DistributionLists").First(&tag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "load tag")
	}

	linked, err := LinkedOutputs(db, tag.ID)
	if err != nil {
		return nil, err
	}

	dlIDs := make([]uint, 0, len(tag.DistributionLists))
	for _, dl := range tag.DistributionLists {
		dlIDs = append(dlIDs, dl.ID)
	}

	return &Snapshot{
		ObjectType: tag.AuditObjectType(),
		Key:        tag.Key(),
		Fields: map[string]interface{}{
			"id":                 tag.ID,
			"scope":              tag.Scope,
			"parent_id":          tag.ParentID,
			"tag_name":           tag.TagName,
			"reason":             tag.Reason,
			"users":              sortedNames(tag.Users),
			"source_id":          tag.SourceID,
			"distribution_lists": uniqueIDs(dlIDs),
			"output_details":     linked,
			"created_at":         tag.CreatedAt,
			"updated_at":         tag.UpdatedAt,
		},
	}, nil
}

func snapshotDistributionList(db *gorm.DB, id uint) (*Snapshot, error) {
	var dl models.DistributionList
	if err := quiet(db).First(&dl, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "load distribution list")
	}

	var tagIDs []uint
	if err := quiet(db).Model(&models.TagDistributionList{}).
		Where("distribution_list_id = ?", id).
		Pluck("tag_id", &tagIDs).Error; err != nil {
		return nil, errors.Wrap(err, "load distribution list tags")
	}

	return &Snapshot{
		ObjectType: DistributionListObjectType,
		Key:        idString(dl.ID),
		Fields: map[string]interface{}{
			"id":         dl.ID,
			"name":       dl.Name,
			"study_id":   dl.StudyID,
			"co_owners":  sortedNames(dl.CoOwners),
			"users":      sortedNames(dl.Users),
			"created_by": dl.CreatedBy,
			"updated_by": dl.UpdatedBy,
			"tag_ids":    uniqueIDs(tagIDs),
			"created_at": dl.CreatedAt,
			"updated_at": dl.UpdatedAt,
		},
	}, nil
}

func snapshotOutput(db *gorm.DB, id uint) (*Snapshot, error) {
	var output models.OutputDetail
	err := quiet(db).
		Preload("Versions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("version_major, version_minor, version_patch")
		}).
		First(&output, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "load output")
	}

	versions := make([]string, 0, len(output.Versions))
	latest := ""
	for i := range output.Versions {
		v := &output.Versions[i]
		versions = append(versions, v.Version())
		if v.IsLatest {
			latest = v.Version()
		}
	}

	return &Snapshot{
		ObjectType: output.AuditObjectType(),
		Key:        idString(output.ID),
		Fields: map[string]interface{}{
			"id":             output.ID,
			"identifier":     output.Identifier,
			"title":          output.Title,
			"file_path":      output.FilePath,
			"logical_path":   output.LogicalPath,
			"source_name":    output.SourceName,
			"docs_shared_as": output.DocsSharedAs,
			"is_out_of_sync": output.IsOutOfSync,
			"latest_version": latest,
			"versions":       versions,
			"created_at":     output.CreatedAt,
			"updated_at":     output.UpdatedAt,
		},
	}, nil
}

func sortedNames(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.Strings(out)
	return out
}

// AuditMeta identifies the request an audit batch belongs to
type AuditMeta struct {
	RequestID string
	UserName  string
	ProgramID string
	Action    string
	Timestamp time.Time
}

func (m AuditMeta) entry(objectType, key string) models.AuditLog {
	user := m.UserName
	if user == "" {
		user = SystemUser
	}
	e := models.AuditLog{
		RequestID:  m.RequestID,
		UserName:   user,
		Action:     m.Action,
		Timestamp:  m.Timestamp,
		ObjectType: objectType,
	}
	if key != "" {
		e.ObjectKey = &key
	}
	if m.ProgramID != "" {
		pid := m.ProgramID
		e.ProgrammingPlanID = &pid
	}
	return e
}

// BuildEntries turns a before/after pair into audit entries: a single full dump for deletes,
// otherwise one entry per changed field.
func BuildEntries(meta AuditMeta, before, after *Snapshot) []models.AuditLog {
	ref := after
	if ref == nil {
		ref = before
	}
	if ref == nil {
		return nil
	}

	if meta.Action == models.ActionDelete {
		if before == nil {
			return nil
		}
		e := meta.entry(ref.ObjectType, ref.Key)
		e.OldValue = dumpSnapshot(before)
		e.NewValue = dumpSnapshot(after)
		return []models.AuditLog{e}
	}

	changes := DiffSnapshots(before, after)
	entries := make([]models.AuditLog, 0, len(changes))
	for _, c := range changes {
		e := meta.entry(ref.ObjectType, ref.Key)
		prop := c.Property
		e.ObjectProperty = &prop
		e.OldValue = c.Old
		e.NewValue = c.New
		entries = append(entries, e)
	}
	return entries
}

// DownloadedFile is one file handed out by a download job
type DownloadedFile struct {
	OutputID   uint
	ObjectType string
	FilePath   string
}

// AuditEngine snapshots entities around a mutation, diffs them and hands the entries to the
// sink and the shared metrics reconciler. Nothing it does can fail the request.
type AuditEngine struct {
	cfg        *config.Config
	db         *gorm.DB
	sink       AuditSink
	reconciler *Reconciler
	log        *zap.Logger
}

func NewAuditEngine(cfg *config.Config, db *gorm.DB, sink AuditSink, reconciler *Reconciler, log *zap.Logger) *AuditEngine {
	return &AuditEngine{cfg: cfg, db: db, sink: sink, reconciler: reconciler, log: log}
}

// AuditCapture holds the before state of one request's target entities
type AuditCapture struct {
	engine *AuditEngine
	meta   AuditMeta
	entity string
	ids    []uint
	before map[uint]*Snapshot
}

func (e *AuditEngine) snapshot(ctx context.Context, entity string, id uint) *Snapshot {
	s, err := LoadSnapshot(e.db.WithContext(ctx), entity, id)
	if err != nil {
		metrics.AuditFailures.WithLabelValues("snapshot").Inc()
		e.log.Warn("audit snapshot failed",
			zap.String("entity", entity), zap.Uint("id", id), zap.Error(err))
		return nil
	}
	return s
}

// Begin takes the before snapshots. ids may be empty for creates.
func (e *AuditEngine) Begin(ctx context.Context, meta AuditMeta, entity string, ids []uint) *AuditCapture {
	c := &AuditCapture{
		engine: e,
		meta:   meta,
		entity: entity,
		ids:    uniqueIDs(ids),
		before: make(map[uint]*Snapshot, len(ids)),
	}
	for _, id := range c.ids {
		c.before[id] = e.snapshot(ctx, entity, id)
	}
	return c
}

// Commit takes the after snapshots once the mutation has committed, then emits the diff.
// createdID names the new row of a create whose id was unknown to Begin.
func (c *AuditCapture) Commit(ctx context.Context, createdID uint) []models.AuditLog {
	ids := c.ids
	if len(ids) == 0 && createdID != 0 {
		ids = []uint{createdID}
	}

	var entries []models.AuditLog
	for _, id := range ids {
		after := c.engine.snapshot(ctx, c.entity, id)
		entries = append(entries, BuildEntries(c.meta, c.before[id], after)...)
	}

	c.engine.Emit(ctx, entries)
	return entries
}

// RecordDownload logs one DOWNLOAD entry per file, with the served path as old and new value
func (e *AuditEngine) RecordDownload(ctx context.Context, meta AuditMeta, files []DownloadedFile) []models.AuditLog {
	meta.Action = models.ActionDownload
	entries := make([]models.AuditLog, 0, len(files))
	for _, f := range files {
		entry := meta.entry(f.ObjectType, idString(f.OutputID))
		prop := "file_path"
		path := f.FilePath
		entry.ObjectProperty = &prop
		entry.OldValue = &path
		entry.NewValue = &path
		entries = append(entries, entry)
	}
	e.Emit(ctx, entries)
	return entries
}

// Emit delivers a batch and reconciles it. Failures are logged and dropped.
func (e *AuditEngine) Emit(ctx context.Context, entries []models.AuditLog) {
	if len(entries) == 0 {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.AuditFailures.WithLabelValues("panic").Inc()
			e.log.Error("audit pipeline panic",
				zap.String("request_id", entries[0].RequestID), zap.Any("panic", r))
		}
	}()

	if err := e.sink.Deliver(ctx, entries); err != nil {
		metrics.AuditFailures.WithLabelValues("sink").Inc()
		e.log.Warn("audit delivery failed",
			zap.String("request_id", entries[0].RequestID),
			zap.Bool("production", e.cfg.IsProduction()),
			zap.Error(err))
	} else {
		for _, entry := range entries {
			metrics.AuditEntries.WithLabelValues(entry.Action, entry.ObjectType).Inc()
		}
	}

	if e.reconciler == nil || !Reconcilable(entries[0].ObjectType) {
		return
	}
	if err := e.reconciler.Reconcile(ctx, entries); err != nil {
		metrics.AuditFailures.WithLabelValues("reconcile").Inc()
		e.log.Error("shared metrics reconciliation failed",
			zap.String("request_id", entries[0].RequestID),
			zap.String("object_type", entries[0].ObjectType),
			zap.Error(err))
	}
}

// Reconcilable reports whether entries of this object type feed the shared metrics ledger
func Reconcilable(objectType string) bool {
	switch objectType {
	case models.TagObjectType(models.ScopeDatabaseRelease),
		models.TagObjectType(models.ScopeReportingEffort),
		DistributionListObjectType:
		return true
	}
	return false
}
