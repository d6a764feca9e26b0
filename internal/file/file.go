// Package file manages uploaded files: their objects in storage, their
// metadata rows, and their reference-counted lifetime.
package file

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Visibility governs how a file's URL is resolved.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// ParseVisibility validates v; the empty string maps to private.
func ParseVisibility(v string) (Visibility, error) {
	switch Visibility(v) {
	case "", VisibilityPrivate:
		return VisibilityPrivate, nil
	case VisibilityPublic:
		return VisibilityPublic, nil
	}
	return "", fmt.Errorf("invalid visibility %q", v)
}

// File is the metadata row of a stored object.
type File struct {
	ID         string     `json:"id"`
	Purpose    string     `json:"purpose"`
	Name       *string    `json:"name"`
	Key        string     `json:"key"`
	Size       int64      `json:"size"`
	MimeType   string     `json:"mimeType"`
	RefCount   int        `json:"refCount"`
	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// ErrNotFound is returned when no metadata row matches.
var ErrNotFound = errors.New("file not found")

// ErrConstraint is returned when an insert collides with an existing id or key.
var ErrConstraint = errors.New("file constraint violation")

// Filter narrows a counter update. Zero value matches any row.
type Filter struct {
	Purpose string
}

// MetadataStore is the narrow persistence surface the Service needs. Counter
// updates and deletes must each be one atomic statement returning the
// affected rows.
type MetadataStore interface {
	Insert(ctx context.Context, f *File) (*File, error)
	GetByID(ctx context.Context, id string) (*File, error)
	GetByIDs(ctx context.Context, ids []string) ([]*File, error)
	UpdateRefCount(ctx context.Context, id string, delta int, filter Filter) (*File, error)
	UpdateRefCounts(ctx context.Context, ids []string, delta int, filter Filter) ([]*File, error)
	DeleteByID(ctx context.Context, id string) (*File, error)
	DeleteByIDs(ctx context.Context, ids []string) ([]*File, error)
	// ExistingKeys reports which of keys have a row.
	ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error)
}
