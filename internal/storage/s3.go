package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config holds the connection parameters for S3Storage.
type S3Config struct {
	Endpoint       string // empty for AWS
	Region         string
	AccessKey      string
	SecretKey      string
	Bucket         string
	ForcePathStyle bool
	PublicBase     string
}

// S3Storage implements Storage on top of the AWS SDK v2. Object ACLs are sent
// per request, so the bucket must allow ACLs for public-read to take effect.
type S3Storage struct {
	client     *s3.Client
	presign    *s3.PresignClient
	bucket     string
	publicBase string
}

// NewS3Storage builds an S3 client from static credentials.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewS3StorageFromClient(client, cfg.Bucket, cfg.PublicBase), nil
}

// NewS3StorageFromClient wraps an existing client.
func NewS3StorageFromClient(client *s3.Client, bucket, publicBase string) *S3Storage {
	return &S3Storage{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

// Put uploads in.Body and reads the object's size and type back with HeadObject.
func (s *S3Storage) Put(ctx context.Context, in PutInput) (ObjectInfo, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(in.Key),
		Body:        in.Body,
		ContentType: aws.String(contentTypeOrDefault(in.ContentType)),
	}
	if in.Size >= 0 {
		input.ContentLength = aws.Int64(in.Size)
	}
	if cd := contentDisposition(in.Filename); cd != "" {
		input.ContentDisposition = aws.String(cd)
	}
	if in.ACL != "" {
		input.ACL = types.ObjectCannedACL(in.ACL)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return ObjectInfo{}, &WriteError{Key: in.Key, Err: err}
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(in.Key),
	})
	if err != nil {
		return ObjectInfo{}, &WriteError{Key: in.Key, Err: fmt.Errorf("head after put: %w", err)}
	}

	return ObjectInfo{
		Key:         in.Key,
		Size:        aws.ToInt64(head.ContentLength),
		ContentType: contentTypeOrDefault(aws.ToString(head.ContentType)),
		Name:        in.Filename,
	}, nil
}

// PresignedURL returns a signed GET URL for key valid for ttl.
func (s *S3Storage) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", &Error{Op: "presign", Key: key, Err: err}
	}
	return req.URL, nil
}

// Delete removes key. S3 already answers 204 for missing keys; NoSuchKey
// from stricter compatibles is treated the same way.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil || isS3NotFound(err) {
		return nil
	}
	return &Error{Op: "delete", Key: key, Err: err}
}

// PublicURL returns {publicBase}/{key}.
func (s *S3Storage) PublicURL(key string) string {
	return JoinURL(s.publicBase, key)
}

// List pages through ListObjectsV2 under prefix.
func (s *S3Storage) List(ctx context.Context, prefix string, fn func(ObjectSummary) error) error {
	pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return &Error{Op: "list", Key: prefix, Err: err}
		}
		for _, obj := range page.Contents {
			sum := ObjectSummary{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			}
			if err := fn(sum); err != nil {
				return err
			}
		}
	}
	return nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}
