package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/localnerve/orca-tagsdb/internal/config"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectInfo describes a stored file
type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// ObjectStore is the file transfer collaborator: output files are read from it and
// download archives are written back to it.
type ObjectStore interface {
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// NewObjectStore builds the S3 store when an endpoint is configured, otherwise the local one
func NewObjectStore(cfg *config.Config) (ObjectStore, error) {
	if cfg.S3Endpoint == "" {
		return NewLocalStore(cfg.S3LocalPath)
	}
	return NewS3Store(cfg)
}

// objectKey maps an output file path to a bucket key
func objectKey(p string) string {
	return strings.TrimPrefix(p, "/")
}

type S3Store struct {
	client *minio.Client
	bucket string
}

func NewS3Store(cfg *config.Config) (*S3Store, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "new minio client")
	}
	return &S3Store{client: client, bucket: cfg.S3Bucket}, nil
}

func s3Err(err error, key string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return types.NotFound(fmt.Sprintf("File not found in storage: %s", key), key)
	}
	return errors.Wrapf(err, "s3 object %s", key)
}

func (s *S3Store) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, objectKey(key), minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, s3Err(err, key)
	}
	return ObjectInfo{Key: info.Key, Size: info.Size, ModTime: info.LastModified}, nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, s3Err(err, key)
	}
	// GetObject is lazy; surface a missing key now rather than on first read
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, s3Err(err, key)
	}
	return obj, nil
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectKey(key), r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return errors.Wrapf(err, "put s3 object %s", key)
	}
	return nil
}

func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey(key), ttl, url.Values{})
	if err != nil {
		return "", errors.Wrapf(err, "presign %s", key)
	}
	return u.String(), nil
}

// LocalStore serves files from a mounted directory, such as a shared filesystem in development
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("local store needs a root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create local store %s", root)
	}
	return &LocalStore{root: root}, nil
}

// resolve keeps keys inside the root
func (s *LocalStore) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + objectKey(key))
	full := filepath.Join(s.root, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", types.Validation("file_path", fmt.Sprintf("invalid storage key %q", key))
	}
	return full, nil
}

func localErr(err error, key string) error {
	if errors.Is(err, os.ErrNotExist) {
		return types.NotFound(fmt.Sprintf("File not found in storage: %s", key), key)
	}
	return errors.Wrapf(err, "local object %s", key)
}

func (s *LocalStore) Stat(_ context.Context, key string) (ObjectInfo, error) {
	full, err := s.resolve(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	fi, err := os.Stat(full)
	if err != nil {
		return ObjectInfo{}, localErr(err, key)
	}
	return ObjectInfo{Key: key, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, localErr(err, key)
	}
	return f, nil
}

func (s *LocalStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errors.Wrapf(err, "create dir for %s", key)
	}
	f, err := os.Create(full)
	if err != nil {
		return errors.Wrapf(err, "create %s", key)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", key)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", key)
	}
	return nil
}

// PresignGet returns a file URL; there is nothing to sign locally
func (s *LocalStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	full, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: full}).String(), nil
}
