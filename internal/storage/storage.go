// Package storage defines the interface for object storage operations.
// Swap implementations by changing the concrete type injected at startup:
// MinioStorage works with any S3-compatible provider, S3Storage talks to AWS
// through the official SDK.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// ACL is the canned access policy applied to a stored object.
type ACL string

const (
	ACLPrivate    ACL = "private"
	ACLPublicRead ACL = "public-read"
)

// DefaultContentType is used when the caller does not declare one.
const DefaultContentType = "application/octet-stream"

// PutInput describes a blob to be written.
type PutInput struct {
	Key         string
	Body        io.Reader
	Size        int64 // -1 when unknown
	ContentType string
	Filename    string
	ACL         ACL
}

// ObjectInfo is what the store reports back after a successful write.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	Name        string
}

// ObjectSummary is a listing entry.
type ObjectSummary struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Storage is the interface for writing, addressing and removing objects.
type Storage interface {
	// Put streams data to the store under the given key and reads the
	// resulting object's size and type back from the store.
	Put(ctx context.Context, in PutInput) (ObjectInfo, error)
	// PresignedURL returns a time-limited signed GET URL for key.
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Delete removes an object identified by key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
	// List calls fn for every object whose key starts with prefix.
	List(ctx context.Context, prefix string, fn func(ObjectSummary) error) error
}

// WriteError is returned when an object could not be written.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storage: write %q: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Error is returned by every other failed store operation.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// JoinURL joins a base URL and an object key with exactly one slash.
func JoinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

// contentTypeOrDefault returns ct, or DefaultContentType when ct is blank.
func contentTypeOrDefault(ct string) string {
	if strings.TrimSpace(ct) == "" {
		return DefaultContentType
	}
	return ct
}

// contentDisposition builds an attachment header carrying the original filename.
func contentDisposition(filename string) string {
	if filename == "" {
		return ""
	}
	return fmt.Sprintf("attachment; filename=%q", filename)
}
