package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioConfig holds the connection parameters for MinioStorage.
type MinioConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PublicBase string // browser-accessible base URL, e.g. "http://localhost:9000/files"
	// PublicPrefix is the key prefix anonymous reads are allowed under,
	// e.g. "files/public/". Empty disables the bucket policy.
	PublicPrefix string
}

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
// To switch providers, change STORAGE_ENDPOINT and credentials; no code changes
// are needed for S3-compatible services.
type MinioStorage struct {
	client     *minio.Client
	bucket     string
	publicBase string
	log        *zap.Logger
}

// NewMinioStorage creates a MinIO client, ensures the bucket exists with a
// public-read policy scoped to the public key prefix, and returns a
// ready-to-use MinioStorage.
func NewMinioStorage(ctx context.Context, cfg MinioConfig, log *zap.Logger) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
		log.Info("storage: created bucket", zap.String("bucket", cfg.Bucket))
	}

	if cfg.PublicPrefix != "" {
		if err := client.SetBucketPolicy(ctx, cfg.Bucket, publicReadPolicy(cfg.Bucket, cfg.PublicPrefix)); err != nil {
			return nil, fmt.Errorf("set bucket policy: %w", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicBase, "/"),
		log:        log,
	}, nil
}

// Put streams in.Body to MinIO under in.Key. in.Size must be the exact byte
// count (pass -1 only if the size is genuinely unknown; MinIO will buffer it).
// Size and content type are read back with a stat call so the caller records
// what the store holds, not what the client claimed.
func (s *MinioStorage) Put(ctx context.Context, in PutInput) (ObjectInfo, error) {
	opts := minio.PutObjectOptions{
		ContentType:        contentTypeOrDefault(in.ContentType),
		ContentDisposition: contentDisposition(in.Filename),
	}
	if in.ACL != "" {
		opts.UserMetadata = map[string]string{"x-amz-acl": string(in.ACL)}
	}

	if _, err := s.client.PutObject(ctx, s.bucket, in.Key, in.Body, in.Size, opts); err != nil {
		return ObjectInfo{}, &WriteError{Key: in.Key, Err: err}
	}

	stat, err := s.client.StatObject(ctx, s.bucket, in.Key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, &WriteError{Key: in.Key, Err: fmt.Errorf("stat after put: %w", err)}
	}

	return ObjectInfo{
		Key:         in.Key,
		Size:        stat.Size,
		ContentType: contentTypeOrDefault(stat.ContentType),
		Name:        in.Filename,
	}, nil
}

// PresignedURL returns a signed GET URL for key valid for ttl.
func (s *MinioStorage) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", &Error{Op: "presign", Key: key, Err: err}
	}
	return u.String(), nil
}

// Delete removes the object at key from the bucket.
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err == nil || isMinioNotFound(err) {
		return nil
	}
	return &Error{Op: "delete", Key: key, Err: err}
}

// PublicURL returns the browser-accessible URL for the given key.
// For local MinIO: "http://localhost:9000/files/files/public/avatar/<id>.png"
func (s *MinioStorage) PublicURL(key string) string {
	return JoinURL(s.publicBase, key)
}

// List walks every object under prefix.
func (s *MinioStorage) List(ctx context.Context, prefix string, fn func(ObjectSummary) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return &Error{Op: "list", Key: prefix, Err: obj.Err}
		}
		if err := fn(ObjectSummary{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified}); err != nil {
			return err
		}
	}
	return nil
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET
// on objects under prefix only.
func publicReadPolicy(bucket, prefix string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": map[string]interface{}{"AWS": []string{"*"}},
				"Action":    []string{"s3:GetObject"},
				"Resource":  []string{fmt.Sprintf("arn:aws:s3:::%s/%s*", bucket, strings.TrimLeft(prefix, "/"))},
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
