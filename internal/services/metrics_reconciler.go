package services

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/localnerve/orca-tagsdb/internal/metrics"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"gorm.io/gorm"
)

// Reconciler keeps the shared folder metrics ledger in step with tag and distribution list audit batches.
// For any (tag, output, user) at most one row is open. Rows are closed, never deleted.
type Reconciler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewReconciler(db *gorm.DB, log *zap.Logger) *Reconciler {
	return &Reconciler{db: db, log: log}
}

type fieldDiff struct {
	old, new *string
}

// auditBatch is one request's entries for one object
type auditBatch struct {
	action     string
	objectType string
	key        uint
	at         time.Time
	by         string
	fields     map[string]fieldDiff
	oldDump    *string
}

func parseBatch(entries []models.AuditLog) (*auditBatch, error) {
	first := entries[0]
	if first.ObjectKey == nil {
		return nil, errors.Errorf("audit batch %s has no object key", first.RequestID)
	}
	key, ok := parseID(*first.ObjectKey)
	if !ok {
		return nil, errors.Errorf("audit batch %s has bad object key %q", first.RequestID, *first.ObjectKey)
	}

	b := &auditBatch{
		action:     first.Action,
		objectType: first.ObjectType,
		key:        key,
		at:         first.Timestamp.UTC().Truncate(time.Microsecond),
		by:         first.UserName,
		fields:     make(map[string]fieldDiff),
	}
	for _, e := range entries {
		if e.ObjectProperty == nil {
			b.oldDump = e.OldValue
			continue
		}
		b.fields[*e.ObjectProperty] = fieldDiff{old: e.OldValue, new: e.NewValue}
	}
	return b, nil
}

func (b *auditBatch) field(name string) (fieldDiff, bool) {
	f, ok := b.fields[name]
	return f, ok
}

func decodeJSON[T any](raw *string) (T, error) {
	var out T
	if raw == nil || *raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(*raw), &out); err != nil {
		return out, errors.Wrap(err, "decode audit value")
	}
	return out, nil
}

// Reconcile applies one audit batch. Entries must share a request and an object.
func (r *Reconciler) Reconcile(ctx context.Context, entries []models.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	b, err := parseBatch(entries)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if b.objectType == DistributionListObjectType {
			return r.reconcileDistributionList(tx, b)
		}
		return r.reconcileTag(tx, b)
	})
}

func (r *Reconciler) reconcileTag(tx *gorm.DB, b *auditBatch) error {
	if b.action == models.ActionDelete {
		return closeTagRows(tx, b.key, b.at)
	}

	var tag models.Tag
	if err := quiet(tx).Preload("DistributionLists").First(&tag, b.key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Debug("tag gone before reconciliation", zap.Uint("tag_id", b.key))
			return nil
		}
		return errors.Wrap(err, "load tag")
	}

	currentDLs := make([]uint, 0, len(tag.DistributionLists))
	for _, dl := range tag.DistributionLists {
		currentDLs = append(currentDLs, dl.ID)
	}

	directNew, directOld := []string(tag.Users), []string(tag.Users)
	if f, ok := b.field("users"); ok {
		var err error
		if directNew, err = decodeJSON[[]string](f.new); err != nil {
			return err
		}
		if directOld, err = decodeJSON[[]string](f.old); err != nil {
			return err
		}
	}
	dlNew, dlOld := currentDLs, currentDLs
	if f, ok := b.field("distribution_lists"); ok {
		var err error
		if dlNew, err = decodeJSON[[]uint](f.new); err != nil {
			return err
		}
		if dlOld, err = decodeJSON[[]uint](f.old); err != nil {
			return err
		}
	}

	newMembers, err := memberSet(tx, directNew, dlNew)
	if err != nil {
		return err
	}

	linked, outputsField := []LinkedOutput(nil), false
	if f, ok := b.field("output_details"); ok {
		outputsField = true
		if linked, err = decodeJSON[[]LinkedOutput](f.new); err != nil {
			return err
		}
	} else if linked, err = LinkedOutputs(tx, tag.ID); err != nil {
		return err
	}

	row := rowTemplate{tagID: tag.ID, tagName: tag.TagName, reason: tag.Reason, by: b.by, at: b.at}

	if b.action == models.ActionCreate {
		return openRows(tx, row, setKeys(newMembers), linked)
	}

	if _, ok := b.field("tag_name"); ok {
		if err := relabelRows(tx, row); err != nil {
			return err
		}
	} else if _, ok := b.field("reason"); ok {
		if err := relabelRows(tx, row); err != nil {
			return err
		}
	}

	oldMembers, err := memberSet(tx, directOld, dlOld)
	if err != nil {
		return err
	}
	addedUsers := setDiff(newMembers, oldMembers)
	removedUsers := setDiff(oldMembers, newMembers)

	var addedOutputs, removedOutputs []uint
	if outputsField {
		before, err := decodeJSON[[]LinkedOutput](b.fields["output_details"].old)
		if err != nil {
			return err
		}
		addedOutputs, removedOutputs = linkedDiff(before, linked)
	}

	if err := closeUserRows(tx, tag.ID, removedUsers, b.at); err != nil {
		return err
	}
	if err := closeOutputRows(tx, tag.ID, removedOutputs, b.at); err != nil {
		return err
	}
	if err := openRows(tx, row, addedUsers, linked); err != nil {
		return err
	}
	if len(addedOutputs) > 0 {
		if err := openRows(tx, row, setKeys(newMembers), filterLinked(linked, addedOutputs)); err != nil {
			return err
		}
	}

	// a pure re-sync: same people, same files, new versions
	if outputsField && len(addedUsers) == 0 && len(removedUsers) == 0 &&
		len(addedOutputs) == 0 && len(removedOutputs) == 0 {
		return rewriteVersions(tx, tag.ID, linked)
	}
	return nil
}

func (r *Reconciler) reconcileDistributionList(tx *gorm.DB, b *auditBatch) error {
	var added, removed []string
	var tagIDs []uint

	switch b.action {
	case models.ActionUpdate:
		f, ok := b.field("users")
		if !ok {
			return nil
		}
		newUsers, err := decodeJSON[[]string](f.new)
		if err != nil {
			return err
		}
		oldUsers, err := decodeJSON[[]string](f.old)
		if err != nil {
			return err
		}
		added = setDiff(nameSet(newUsers), nameSet(oldUsers))
		removed = setDiff(nameSet(oldUsers), nameSet(newUsers))

		if err := quiet(tx).Model(&models.TagDistributionList{}).
			Where("distribution_list_id = ?", b.key).
			Pluck("tag_id", &tagIDs).Error; err != nil {
			return errors.Wrap(err, "load distribution list tags")
		}

	case models.ActionDelete:
		dump, err := decodeJSON[struct {
			Users  []string `json:"users"`
			TagIDs []uint   `json:"tag_ids"`
		}](b.oldDump)
		if err != nil {
			return err
		}
		removed = dump.Users
		tagIDs = dump.TagIDs

	default:
		return nil
	}

	for _, tagID := range uniqueIDs(tagIDs) {
		var tag models.Tag
		if err := quiet(tx).Preload("DistributionLists").First(&tag, tagID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return errors.Wrap(err, "load tag")
		}
		members := TagMembers(&tag)

		var gained, lost []string
		for _, u := range added {
			if _, ok := members[u]; ok {
				gained = append(gained, u)
			}
		}
		for _, u := range removed {
			if _, ok := members[u]; !ok {
				lost = append(lost, u)
			}
		}

		if err := closeUserRows(tx, tag.ID, lost, b.at); err != nil {
			return err
		}
		if len(gained) == 0 {
			continue
		}
		linked, err := LinkedOutputs(tx, tag.ID)
		if err != nil {
			return err
		}
		row := rowTemplate{tagID: tag.ID, tagName: tag.TagName, reason: tag.Reason, by: b.by, at: b.at}
		if err := openRows(tx, row, gained, linked); err != nil {
			return err
		}
	}
	return nil
}

// rowTemplate carries the per-batch values stamped on new rows
type rowTemplate struct {
	tagID   uint
	tagName string
	reason  string
	by      string
	at      time.Time
}

// openRows inserts an open row per (user, output) pair. A pair is skipped when it already
// has an open row, or a row opened at the same instant, so replaying a batch adds nothing.
func openRows(tx *gorm.DB, t rowTemplate, users []string, linked []LinkedOutput) error {
	if len(users) == 0 || len(linked) == 0 {
		return nil
	}

	var existing []models.SharedFolderMetric
	if err := quiet(tx).
		Select("id", "output_detail_id", "file_shared_to", "file_shared_from_ts", "file_shared_to_ts").
		Where("tag_id = ? AND file_shared_to IN ?", t.tagID, users).
		Find(&existing).Error; err != nil {
		return errors.Wrap(err, "load existing metric rows")
	}
	type pair struct {
		output uint
		user   string
	}
	taken := make(map[pair]bool, len(existing))
	for _, m := range existing {
		if m.Open() || m.FileSharedFromTS.Equal(t.at) {
			taken[pair{m.OutputDetailID, m.FileSharedTo}] = true
		}
	}

	ids := make([]uint, 0, len(linked))
	for _, l := range linked {
		ids = append(ids, l.OutputID)
	}
	var outputs []models.OutputDetail
	if err := quiet(tx).Where("id IN ?", ids).Find(&outputs).Error; err != nil {
		return errors.Wrap(err, "load outputs")
	}
	byID := make(map[uint]*models.OutputDetail, len(outputs))
	for i := range outputs {
		byID[outputs[i].ID] = &outputs[i]
	}

	var comment *string
	if t.reason != "" {
		reason := t.reason
		comment = &reason
	}

	var rows []models.SharedFolderMetric
	for _, l := range linked {
		output, ok := byID[l.OutputID]
		if !ok {
			continue
		}
		shared := output.AdrFilepath
		if shared == "" {
			shared = output.FilePath
		}
		major, minor, patch := versionParts(l)
		for _, u := range users {
			if taken[pair{l.OutputID, u}] {
				continue
			}
			taken[pair{l.OutputID, u}] = true
			rows = append(rows, models.SharedFolderMetric{
				TagID:            t.tagID,
				TagName:          t.tagName,
				OutputDetailID:   l.OutputID,
				FileSharedTo:     u,
				FileSharedBy:     t.by,
				FileSharedFromTS: t.at,
				Comment:          comment,
				Compound:         output.CompoundName,
				Study:            output.StudyName,
				DBR:              output.DatabaseReleaseName,
				RE:               output.ReportingEffortName,
				FileShared:       shared,
				FileName:         path.Base(shared),
				FileVersionMajor: major,
				FileVersionMinor: minor,
				FileVersionPatch: patch,
			})
		}
	}

	if len(rows) == 0 {
		return nil
	}
	if err := tx.Create(&rows).Error; err != nil {
		return errors.Wrap(err, "open metric rows")
	}
	metrics.SharedMetricRows.WithLabelValues("opened").Add(float64(len(rows)))
	return nil
}

// closeTagRows stamps shared-to on every open row of a tag
func closeTagRows(tx *gorm.DB, tagID uint, at time.Time) error {
	return closeWhere(openRowsOf(tx, tagID, at), at)
}

// closeUserRows closes the open rows of a tag held by the given users
func closeUserRows(tx *gorm.DB, tagID uint, users []string, at time.Time) error {
	if len(users) == 0 {
		return nil
	}
	return closeWhere(openRowsOf(tx, tagID, at).Where("file_shared_to IN ?", users), at)
}

// closeOutputRows closes the open rows of a tag on the given outputs
func closeOutputRows(tx *gorm.DB, tagID uint, outputIDs []uint, at time.Time) error {
	if len(outputIDs) == 0 {
		return nil
	}
	return closeWhere(openRowsOf(tx, tagID, at).Where("output_detail_id IN ?", outputIDs), at)
}

// openRowsOf selects the open rows of a tag opened no later than at, so replaying an older
// batch never closes a newer grant.
func openRowsOf(tx *gorm.DB, tagID uint, at time.Time) *gorm.DB {
	return tx.Model(&models.SharedFolderMetric{}).
		Where("tag_id = ? AND file_shared_to_ts IS NULL AND file_shared_from_ts <= ?", tagID, at)
}

func closeWhere(q *gorm.DB, at time.Time) error {
	res := q.Update("file_shared_to_ts", at)
	if res.Error != nil {
		return errors.Wrap(res.Error, "close metric rows")
	}
	metrics.SharedMetricRows.WithLabelValues("closed").Add(float64(res.RowsAffected))
	return nil
}

// relabelRows pushes the current tag name and reason onto the open rows
func relabelRows(tx *gorm.DB, t rowTemplate) error {
	var comment *string
	if t.reason != "" {
		comment = &t.reason
	}
	res := tx.Model(&models.SharedFolderMetric{}).
		Where("tag_id = ? AND file_shared_to_ts IS NULL", t.tagID).
		Updates(map[string]interface{}{"tag_name": t.tagName, "comment": comment})
	if res.Error != nil {
		return errors.Wrap(res.Error, "relabel metric rows")
	}
	metrics.SharedMetricRows.WithLabelValues("relabelled").Add(float64(res.RowsAffected))
	return nil
}

// rewriteVersions moves open rows onto the linked version of their output in place
func rewriteVersions(tx *gorm.DB, tagID uint, linked []LinkedOutput) error {
	for _, l := range linked {
		major, minor, patch := versionParts(l)
		if major == nil {
			continue
		}
		res := tx.Model(&models.SharedFolderMetric{}).
			Where("tag_id = ? AND output_detail_id = ? AND file_shared_to_ts IS NULL", tagID, l.OutputID).
			Updates(map[string]interface{}{
				"file_version_major": *major,
				"file_version_minor": *minor,
				"file_version_patch": *patch,
			})
		if res.Error != nil {
			return errors.Wrapf(res.Error, "rewrite versions for output %d", l.OutputID)
		}
		metrics.SharedMetricRows.WithLabelValues("rewritten").Add(float64(res.RowsAffected))
	}
	return nil
}

// versionParts reads the version of a linked output, from the parsed fields or the "x.y.z" string
func versionParts(l LinkedOutput) (*int, *int, *int) {
	major, minor, patch := l.VersionMajor, l.VersionMinor, l.VersionPatch
	if major == 0 && minor == 0 && patch == 0 {
		var ok bool
		if major, minor, patch, ok = parseVersion(l.Version); !ok {
			return nil, nil, nil
		}
	}
	return &major, &minor, &patch
}

func memberSet(tx *gorm.DB, direct []string, dlIDs []uint) (map[string]struct{}, error) {
	members := nameSet(direct)
	if len(dlIDs) == 0 {
		return members, nil
	}
	var lists []models.DistributionList
	if err := quiet(tx).Select("id", "users").Where("id IN ?", dlIDs).Find(&lists).Error; err != nil {
		return nil, errors.Wrap(err, "load distribution lists")
	}
	for _, dl := range lists {
		for _, u := range dl.Users {
			members[u] = struct{}{}
		}
	}
	return members, nil
}

func nameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func setKeys(set map[string]struct{}) []string {
	return sortedKeys(set)
}

// setDiff returns the sorted members of a missing from b
func setDiff(a, b map[string]struct{}) []string {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; !ok {
			out[k] = struct{}{}
		}
	}
	return sortedKeys(out)
}

func linkedDiff(before, after []LinkedOutput) (added, removed []uint) {
	was := make(map[uint]bool, len(before))
	for _, l := range before {
		was[l.OutputID] = true
	}
	is := make(map[uint]bool, len(after))
	for _, l := range after {
		is[l.OutputID] = true
		if !was[l.OutputID] {
			added = append(added, l.OutputID)
		}
	}
	for _, l := range before {
		if !is[l.OutputID] {
			removed = append(removed, l.OutputID)
		}
	}
	return added, removed
}

func filterLinked(linked []LinkedOutput, ids []uint) []LinkedOutput {
	keep := make(map[uint]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	var out []LinkedOutput
	for _, l := range linked {
		if keep[l.OutputID] {
			out = append(out, l)
		}
	}
	return out
}
