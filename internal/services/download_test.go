package services

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/testutil"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putFile(t *testing.T, f *fixture, key, content string) {
	t.Helper()
	full := filepath.Join(f.cfg.S3LocalPath, key)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func newDownloads(t *testing.T, f *fixture) (*DownloadService, *LocalStore) {
	t.Helper()
	store, err := NewLocalStore(f.cfg.S3LocalPath)
	require.NoError(t, err)
	return NewDownloadService(f.cfg, f.db, store, TextWatermarker{Label: "DRAFT"}, f.log), store
}

// readArchive opens a download archive from the store, returning name -> content
func readArchive(t *testing.T, store *LocalStore, key string) map[string]string {
	t.Helper()
	r, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	defer r.Close()
	raw, err := io.ReadAll(r)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	out := make(map[string]string, len(zr.File))
	for _, zf := range zr.File {
		rc, err := zf.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		out[zf.Name] = string(b)
	}
	return out
}

func TestDownloadBuildsArchive(t *testing.T) {
	f := newFixture(t)
	o1 := f.output("OUT-1")
	o2 := f.output("OUT-2")
	putFile(t, f, o1.FilePath, "one")
	putFile(t, f, o2.FilePath, "two")
	downloads, store := newDownloads(t, f)

	res, err := downloads.Download(context.Background(), programmer, DownloadRequest{FileIDs: flexIDs(o2.ID, o1.ID, o1.ID)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.True(t, strings.HasPrefix(res.Key, "downloads/"))
	assert.True(t, strings.HasPrefix(res.URL, "file://"))
	require.Len(t, res.Served, 2)
	assert.Equal(t, "RE_output_details", res.Served[0].ObjectType)
	assert.Equal(t, o1.FilePath, res.Served[0].FilePath)

	files := readArchive(t, store, res.Key)
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"OUT-1_v1.0.0_OUT-1.pdf", "OUT-2_v1.0.0_OUT-2.pdf"}, names)
	assert.Equal(t, "one", files["OUT-1_v1.0.0_OUT-1.pdf"])
}

func TestDownloadGatesReviewers(t *testing.T) {
	f := newFixture(t)
	o1 := f.output("OUT-1")
	o2 := f.output("OUT-2")
	putFile(t, f, o1.FilePath, "one")
	putFile(t, f, o2.FilePath, "two")
	f.createTag("alice-only", []string{"alice"}, o1.ID)
	downloads, _ := newDownloads(t, f)

	_, err := downloads.Download(context.Background(), alice, DownloadRequest{FileIDs: flexIDs(o1.ID)})
	require.NoError(t, err)

	_, err = downloads.Download(context.Background(), alice, DownloadRequest{FileIDs: flexIDs(o2.ID)})
	assert.ErrorIs(t, err, types.ErrForbidden)
	assert.Contains(t, err.Error(), "OUT-2")

	_, err = downloads.Download(context.Background(), bob, DownloadRequest{FileIDs: flexIDs(o1.ID, o2.ID)})
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestDownloadPinsTaggedVersion(t *testing.T) {
	f := newFixture(t)
	o := f.output("OUT-1")
	tag := f.createTag("pinned", []string{"alice"}, o.ID)
	putFile(t, f, o.FilePath, "first")

	next := &models.OutputDetailVersion{
		VersionMajor: 2,
		FilePath:     "root/PROD/ADR_2024/ADR_2024-STUDY/ADR_2024-DBR/v2/OUT-1.pdf",
	}
	require.NoError(t, PromoteVersion(f.db, o.ID, next))
	putFile(t, f, next.FilePath, "second")
	downloads, store := newDownloads(t, f)

	tagID := types.FlexID(tag.ID)
	res, err := downloads.Download(context.Background(), programmer, DownloadRequest{FileIDs: flexIDs(o.ID), TagID: &tagID})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"OUT-1_v1.0.0_OUT-1.pdf": "first"}, readArchive(t, store, res.Key))

	res, err = downloads.Download(context.Background(), programmer, DownloadRequest{FileIDs: flexIDs(o.ID)})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"OUT-1_v2.0.0_OUT-1.pdf": "second"}, readArchive(t, store, res.Key))
}

func TestDownloadWatermarksDrafts(t *testing.T) {
	f := newFixture(t)
	f.cfg.WatermarkEnabled = true
	docs := testutil.NewHierarchy(t, f.db, models.SourceDocs, "DOC_2024")
	o := testutil.AddOutput(t, f.db, docs, "DOC-1", "root/DOCS/DOC_2024/DOC_2024-STUDY/DOC_2024-DBR/DOC-1.txt")
	putFile(t, f, o.FilePath, "body\n")

	_, err := f.tags.Create(programmer, models.ScopeDatabaseRelease, docs.DBR.ID, TagCreate{
		TagName:   "draft-docs",
		Users:     []string{"alice"},
		OutputIDs: flexIDs(o.ID),
	})
	require.NoError(t, err)
	downloads, store := newDownloads(t, f)

	res, err := downloads.Download(context.Background(), alice, DownloadRequest{FileIDs: flexIDs(o.ID)})
	require.NoError(t, err)
	assert.Equal(t, "*** DRAFT ***\nbody\n", readArchive(t, store, res.Key)["DOC-1_v1.0.0_DOC-1.txt"])
	assert.Equal(t, "RE_output_details", res.Served[0].ObjectType)
}

func TestDownloadFailsOnMissingFile(t *testing.T) {
	f := newFixture(t)
	o1 := f.output("OUT-1")
	o2 := f.output("OUT-2")
	putFile(t, f, o1.FilePath, "one")
	downloads, _ := newDownloads(t, f)

	_, err := downloads.Download(context.Background(), programmer, DownloadRequest{FileIDs: flexIDs(o1.ID, o2.ID)})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = downloads.Download(context.Background(), programmer, DownloadRequest{})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestTextWatermarkerSkipsBinary(t *testing.T) {
	wm := TextWatermarker{Label: "DRAFT"}
	out, err := wm.Watermark(context.Background(), "a/b.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out))

	out, err = wm.Watermark(context.Background(), "a/b.CSV", []byte("x,y"))
	require.NoError(t, err)
	assert.Equal(t, "*** DRAFT ***\nx,y", string(out))
}

func TestLocalStoreConfinesKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Stat(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, store.Put(context.Background(), "a/b.txt", strings.NewReader("hi"), 2, "text/plain"))
	info, err := store.Stat(context.Background(), "/a/b.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.Size)
}
