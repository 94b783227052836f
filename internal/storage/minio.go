package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioConfig configures the S3-compatible backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// MinioBackend stores files as objects under an optional key prefix.
//
// Exclusive writes stat the key before uploading. Two uploads racing on the
// same key can both pass the check; the later one wins.
type MinioBackend struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ Backend = (*MinioBackend)(nil)

// NewMinioBackend connects to the object store and creates the bucket when it
// does not exist yet.
func NewMinioBackend(ctx context.Context, cfg MinioConfig, logger *zap.Logger) (*MinioBackend, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("minio bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("bucket created", zap.String("bucket", cfg.Bucket))
	}

	logger.Info("minio backend ready",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("bucket", cfg.Bucket),
		zap.String("prefix", cfg.Prefix))

	return &MinioBackend{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// EnsureDir implements Backend by writing a zero-byte marker object.
func (b *MinioBackend) EnsureDir(ctx context.Context, dir string) (bool, error) {
	marker := path.Join(dir, KeepFile)
	exists, err := b.Exists(ctx, marker)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	_, err = b.client.PutObject(ctx, b.bucket, b.key(marker), bytes.NewReader(nil), 0,
		minio.PutObjectOptions{ContentType: "application/x-empty"})
	if err != nil {
		return false, fmt.Errorf("put marker %s: %w", marker, err)
	}
	return true, nil
}

// Exists implements Backend.
func (b *MinioBackend) Exists(ctx context.Context, p string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.bucket, b.key(p), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", p, err)
	}
	return true, nil
}

// Write implements Backend.
func (b *MinioBackend) Write(ctx context.Context, p string, r io.Reader, size int64, contentType string, mode WriteMode) error {
	if mode == WriteExclusive {
		exists, err := b.Exists(ctx, p)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrFileExists, p)
		}
	}
	if size <= 0 {
		size = -1
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := b.client.PutObject(ctx, b.bucket, b.key(p), r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s: %w", p, err)
	}
	return nil
}

// Open implements Backend.
func (b *MinioBackend) Open(ctx context.Context, p string) (io.ReadCloser, FileInfo, error) {
	info, err := b.client.StatObject(ctx, b.bucket, b.key(p), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, FileInfo{}, fmt.Errorf("stat %s: %w", p, err)
	}

	obj, err := b.client.GetObject(ctx, b.bucket, b.key(p), minio.GetObjectOptions{})
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("get %s: %w", p, err)
	}
	return obj, FileInfo{
		Size:        info.Size,
		ContentType: info.ContentType,
		ModTime:     info.LastModified,
	}, nil
}

// Remove implements Backend.
func (b *MinioBackend) Remove(ctx context.Context, p string) error {
	exists, err := b.Exists(ctx, p)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err := b.client.RemoveObject(ctx, b.bucket, b.key(p), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}

// ListDirs implements Backend using delimiter listing; common prefixes come
// back as keys ending in "/".
func (b *MinioBackend) ListDirs(ctx context.Context, dir string) ([]string, error) {
	prefix := b.key(dir) + "/"
	names := []string{}
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: false}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, obj.Err)
		}
		if !strings.HasSuffix(obj.Key, "/") {
			continue
		}
		if name := strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), "/"); name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (b *MinioBackend) key(p string) string {
	return objectKey(b.prefix, p)
}

// objectKey joins the configured prefix and a relative path.
func objectKey(prefix, p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if prefix == "" {
		return p
	}
	return prefix + "/" + p
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
