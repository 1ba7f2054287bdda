package services

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/google/uuid"
	"github.com/localnerve/orca-tagsdb/internal/config"
	"github.com/localnerve/orca-tagsdb/internal/metrics"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type DownloadRequest struct {
	FileIDs types.FlexList[types.FlexID] `json:"file_ids"`
	TagID   *types.FlexID                `json:"tag_id"`
}

type DownloadResult struct {
	URL       string           `json:"url"`
	Key       string           `json:"key"`
	Files     int              `json:"files"`
	ExpiresAt time.Time        `json:"expires_at"`
	Served    []DownloadedFile `json:"-"`
}

// Watermarker stamps draft documents before they leave the system
type Watermarker interface {
	Watermark(ctx context.Context, name string, content []byte) ([]byte, error)
}

// TextWatermarker puts a banner line on text formats and passes other content through
type TextWatermarker struct {
	Label string
}

var textExtensions = map[string]bool{".txt": true, ".csv": true, ".log": true, ".lst": true, ".md": true}

func (w TextWatermarker) Watermark(_ context.Context, name string, content []byte) ([]byte, error) {
	if !textExtensions[strings.ToLower(path.Ext(name))] {
		return content, nil
	}
	banner := fmt.Sprintf("*** %s ***\n", w.Label)
	return append([]byte(banner), content...), nil
}

type DownloadService struct {
	cfg       *config.Config
	db        *gorm.DB
	store     ObjectStore
	watermark Watermarker
	log       *zap.Logger
}

func NewDownloadService(cfg *config.Config, db *gorm.DB, store ObjectStore, wm Watermarker, log *zap.Logger) *DownloadService {
	return &DownloadService{cfg: cfg, db: db, store: store, watermark: wm, log: log}
}

type downloadUnit struct {
	output  models.OutputDetail
	version models.OutputDetailVersion
	content []byte
}

// Download gathers the requested files into one zip in storage and returns a presigned link.
// One failed file fails the job.
func (s *DownloadService) Download(ctx context.Context, p Principal, in DownloadRequest) (*DownloadResult, error) {
	start := time.Now()
	ids := uniqueIDs(types.IDs(in.FileIDs))
	if len(ids) == 0 {
		return nil, types.Validation("file_ids", "At least one file id is required")
	}
	if err := AuthorizeOrDeny(s.db, p.Username, p.Role, ids); err != nil {
		metrics.DownloadJobs.WithLabelValues("denied").Inc()
		return nil, err
	}

	var tagID uint
	if in.TagID != nil {
		tagID = in.TagID.Uint()
	}
	units, err := s.resolve(ids, tagID)
	if err != nil {
		metrics.DownloadJobs.WithLabelValues("failed").Inc()
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.DownloadWorkers)
	for i := range units {
		u := &units[i]
		g.Go(func() error {
			return s.fetch(gctx, u)
		})
	}
	if err := g.Wait(); err != nil {
		metrics.DownloadJobs.WithLabelValues("failed").Inc()
		return nil, err
	}

	archive, err := zipUnits(units)
	if err != nil {
		metrics.DownloadJobs.WithLabelValues("failed").Inc()
		return nil, err
	}

	key := fmt.Sprintf("downloads/%s.zip", uuid.NewString())
	if err := s.store.Put(ctx, key, bytes.NewReader(archive), int64(len(archive)), "application/zip"); err != nil {
		metrics.DownloadJobs.WithLabelValues("failed").Inc()
		return nil, err
	}
	link, err := s.store.PresignGet(ctx, key, s.cfg.DownloadURLTTL)
	if err != nil {
		metrics.DownloadJobs.WithLabelValues("failed").Inc()
		return nil, err
	}

	served := make([]DownloadedFile, 0, len(units))
	for _, u := range units {
		served = append(served, DownloadedFile{
			OutputID:   u.output.ID,
			ObjectType: u.output.AuditObjectType(),
			FilePath:   u.version.FilePath,
		})
	}

	metrics.DownloadJobs.WithLabelValues("ok").Inc()
	metrics.DownloadDuration.Observe(time.Since(start).Seconds())
	s.log.Info("download archive ready",
		zap.String("key", key), zap.Int("files", len(units)), zap.String("user", p.Username))

	return &DownloadResult{
		URL:       link,
		Key:       key,
		Files:     len(units),
		ExpiresAt: time.Now().UTC().Add(s.cfg.DownloadURLTTL),
		Served:    served,
	}, nil
}

// resolve picks, per output, the newest version carrying the tag, else the latest version
func (s *DownloadService) resolve(ids []uint, tagID uint) ([]downloadUnit, error) {
	outputs, err := loadOutputs(s.db, ids)
	if err != nil {
		return nil, err
	}

	var versions []models.OutputDetailVersion
	if err := s.db.Where("output_id IN ?", ids).Find(&versions).Error; err != nil {
		return nil, errors.Wrap(err, "load versions")
	}

	key := ""
	if tagID != 0 {
		key = models.TagKey(tagID)
	}
	tagged := make(map[uint]models.OutputDetailVersion)
	latest := make(map[uint]models.OutputDetailVersion)
	for _, v := range versions {
		if v.IsLatest {
			latest[v.OutputID] = v
		}
		if key != "" && v.Tags.Has(key) {
			if cur, ok := tagged[v.OutputID]; !ok || newerVersion(v, cur) {
				tagged[v.OutputID] = v
			}
		}
	}

	units := make([]downloadUnit, 0, len(outputs))
	for _, o := range outputs {
		v, ok := tagged[o.ID]
		if !ok {
			if v, ok = latest[o.ID]; !ok {
				return nil, types.NotFound(fmt.Sprintf("Output %s has no version", o.Identifier), idString(o.ID))
			}
		}
		units = append(units, downloadUnit{output: o, version: v})
	}
	return units, nil
}

func (s *DownloadService) fetch(ctx context.Context, u *downloadUnit) error {
	r, err := s.store.Get(ctx, u.version.FilePath)
	if err != nil {
		return err
	}
	defer r.Close()

	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "read %s", u.version.FilePath)
	}

	draft := u.output.DocsSharedAs != nil && *u.output.DocsSharedAs == models.SourcePreprod
	if draft && s.cfg.WatermarkEnabled && s.watermark != nil {
		if content, err = s.watermark.Watermark(ctx, u.version.FilePath, content); err != nil {
			return errors.Wrapf(err, "watermark %s", u.version.FilePath)
		}
	}
	u.content = content
	return nil
}

func zipUnits(units []downloadUnit) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, u := range units {
		name := fmt.Sprintf("%s_v%s_%s", u.output.Identifier, u.version.Version(), path.Base(u.version.FilePath))
		w, err := zw.Create(name)
		if err != nil {
			return nil, errors.Wrapf(err, "add %s to archive", name)
		}
		if _, err := w.Write(u.content); err != nil {
			return nil, errors.Wrapf(err, "write %s to archive", name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "close archive")
	}
	return buf.Bytes(), nil
}
