package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eyueldk/edkstack-files/internal/storage"
)

const (
	defaultKeyPrefix  = "files"
	defaultPresignTTL = time.Hour

	// A file whose counter drops below liveThreshold is deleted.
	liveThreshold = 1

	deleteConcurrency   = 8
	compensationTimeout = 30 * time.Second
)

// Options tune a Service. Zero values select the defaults.
type Options struct {
	KeyPrefix  string
	PresignTTL time.Duration
	// URLCacheSize > 0 caches presigned URLs per key for URLCacheTTL, which is
	// clamped below PresignTTL so a cached URL never outlives its signature.
	URLCacheSize int
	URLCacheTTL  time.Duration
}

func (o Options) withDefaults() Options {
	if o.KeyPrefix == "" {
		o.KeyPrefix = defaultKeyPrefix
	}
	o.KeyPrefix = strings.Trim(o.KeyPrefix, "/")
	if o.PresignTTL <= 0 {
		o.PresignTTL = defaultPresignTTL
	}
	if o.URLCacheTTL <= 0 || o.URLCacheTTL >= o.PresignTTL {
		o.URLCacheTTL = o.PresignTTL / 2
	}
	return o
}

// UploadInput is a file to store.
type UploadInput struct {
	Body        io.Reader
	Size        int64
	Filename    string
	ContentType string
	Purpose     string
	Visibility  Visibility
}

// Service runs the file lifecycle: upload, URL resolution, reference
// counting and deletion. It holds no locks; counter consistency under
// concurrent calls comes from the MetadataStore's atomic statements.
type Service struct {
	store   MetadataStore
	objects storage.Storage
	opts    Options
	urls    *expirable.LRU[string, string]
	log     *zap.Logger
	newID   func() string
}

// NewService creates a new file Service.
func NewService(store MetadataStore, objects storage.Storage, opts Options, log *zap.Logger) *Service {
	opts = opts.withDefaults()
	s := &Service{
		store:   store,
		objects: objects,
		opts:    opts,
		log:     log,
		newID:   newFileID,
	}
	if opts.URLCacheSize > 0 {
		s.urls = expirable.NewLRU[string, string](opts.URLCacheSize, nil, opts.URLCacheTTL)
	}
	return s
}

// KeyPrefix returns the namespace every object key starts with.
func (s *Service) KeyPrefix() string { return s.opts.KeyPrefix }

// Upload writes the object, then records it. If recording fails the object
// is deleted again on a best-effort basis and the insert error is returned.
// A new file starts with a reference count of zero; callers that want to keep
// it must AcquireFile.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*File, error) {
	f, err := s.upload(ctx, in)
	observe("upload", err)
	return f, err
}

func (s *Service) upload(ctx context.Context, in UploadInput) (*File, error) {
	visibility, err := ParseVisibility(string(in.Visibility))
	if err != nil {
		return nil, err
	}
	if in.Purpose == "" || strings.Contains(in.Purpose, "/") {
		return nil, fmt.Errorf("invalid purpose %q", in.Purpose)
	}

	key := s.newKey(in.Purpose, visibility, in.Filename)
	acl := storage.ACLPrivate
	if visibility == VisibilityPublic {
		acl = storage.ACLPublicRead
	}

	info, err := s.objects.Put(ctx, storage.PutInput{
		Key:         key,
		Body:        in.Body,
		Size:        in.Size,
		ContentType: in.ContentType,
		Filename:    in.Filename,
		ACL:         acl,
	})
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}

	mimeType := info.ContentType
	if mimeType == "" {
		mimeType = storage.DefaultContentType
	}
	var name *string
	if info.Name != "" {
		name = &info.Name
	}

	created, err := s.store.Insert(ctx, &File{
		ID:         s.newID(),
		Purpose:    in.Purpose,
		Name:       name,
		Key:        key,
		Size:       info.Size,
		MimeType:   mimeType,
		RefCount:   0,
		Visibility: visibility,
	})
	if err != nil {
		s.compensate(ctx, key)
		return nil, fmt.Errorf("record file: %w", err)
	}

	uploadBytes.Observe(float64(created.Size))
	s.log.Info("file uploaded",
		zap.String("id", created.ID),
		zap.String("key", created.Key),
		zap.String("purpose", created.Purpose),
		zap.Int64("size", created.Size),
	)
	return created, nil
}

// compensate removes an object whose metadata insert failed. Failures are
// logged and swallowed so the insert error reaches the caller unchanged.
func (s *Service) compensate(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.objects.Delete(ctx, key); err != nil {
		compensationsTotal.WithLabelValues("error").Inc()
		s.log.Warn("compensating delete failed; object orphaned",
			zap.String("key", key), zap.Error(err))
		return
	}
	compensationsTotal.WithLabelValues("ok").Inc()
}

// GetFile returns the metadata row for id.
func (s *Service) GetFile(ctx context.Context, id string) (*File, error) {
	f, err := s.store.GetByID(ctx, id)
	observe("get", err)
	return f, err
}

// GetFiles returns the rows for ids; missing ids are absent.
func (s *Service) GetFiles(ctx context.Context, ids []string) ([]*File, error) {
	files, err := s.store.GetByIDs(ctx, dedupe(ids))
	observe("get_many", err)
	return files, err
}

// GetURL resolves an access URL for id.
func (s *Service) GetURL(ctx context.Context, id string) (string, error) {
	f, err := s.store.GetByID(ctx, id)
	if err != nil {
		observe("url", err)
		return "", err
	}
	u, err := s.URLFor(ctx, f)
	observe("url", err)
	return u, err
}

// GetURLs resolves access URLs for ids. Ids without a row are absent from
// the result.
func (s *Service) GetURLs(ctx context.Context, ids []string) (map[string]string, error) {
	files, err := s.store.GetByIDs(ctx, dedupe(ids))
	if err != nil {
		observe("url_many", err)
		return nil, err
	}
	urls := make(map[string]string, len(files))
	for _, f := range files {
		u, err := s.URLFor(ctx, f)
		if err != nil {
			observe("url_many", err)
			return nil, err
		}
		urls[f.ID] = u
	}
	observe("url_many", nil)
	return urls, nil
}

// URLFor resolves the URL of an already loaded row. Public files map to
// {publicBase}/{key} without touching the store; private files get a signed
// URL valid for the configured TTL.
func (s *Service) URLFor(ctx context.Context, f *File) (string, error) {
	if f.Visibility == VisibilityPublic {
		return s.objects.PublicURL(f.Key), nil
	}
	if s.urls != nil {
		if u, ok := s.urls.Get(f.Key); ok {
			return u, nil
		}
	}
	u, err := s.objects.PresignedURL(ctx, f.Key, s.opts.PresignTTL)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", f.ID, err)
	}
	if s.urls != nil {
		s.urls.Add(f.Key, u)
	}
	return u, nil
}

// AcquireFile increments the reference count of id. A non-empty purpose
// must match the stored purpose, otherwise ErrNotFound is returned.
func (s *Service) AcquireFile(ctx context.Context, id, purpose string) (*File, error) {
	f, err := s.store.UpdateRefCount(ctx, id, 1, Filter{Purpose: purpose})
	observe("acquire", err)
	if err != nil {
		return nil, err
	}
	s.log.Debug("file acquired", zap.String("id", id), zap.Int("refCount", f.RefCount))
	return f, nil
}

// AcquireFiles increments every matching row in one statement. Ids that do
// not exist or do not match purpose are omitted from the result.
func (s *Service) AcquireFiles(ctx context.Context, ids []string, purpose string) ([]*File, error) {
	files, err := s.store.UpdateRefCounts(ctx, dedupe(ids), 1, Filter{Purpose: purpose})
	observe("acquire_many", err)
	return files, err
}

// ReleaseFile decrements the reference count of id and deletes the file once
// the count falls below one. The decrement and the delete are separate store
// operations; a crash in between is converged by the next Release or Delete.
func (s *Service) ReleaseFile(ctx context.Context, id string) error {
	f, err := s.store.UpdateRefCount(ctx, id, -1, Filter{})
	observe("release", err)
	if err != nil {
		return err
	}
	if f.RefCount < liveThreshold {
		return s.DeleteFile(ctx, id)
	}
	s.log.Debug("file released", zap.String("id", id), zap.Int("refCount", f.RefCount))
	return nil
}

// ReleaseFiles decrements every matching row in one statement, then deletes
// each file that fell below one individually.
func (s *Service) ReleaseFiles(ctx context.Context, ids []string) error {
	files, err := s.store.UpdateRefCounts(ctx, dedupe(ids), -1, Filter{})
	observe("release_many", err)
	if err != nil {
		return err
	}

	var doomed []string
	for _, f := range files {
		if f.RefCount < liveThreshold {
			doomed = append(doomed, f.ID)
		}
	}
	return fanOut(doomed, func(id string) error { return s.DeleteFile(ctx, id) })
}

// DeleteFile removes the metadata row, then the object. Deleting a file
// that has no row is a no-op.
func (s *Service) DeleteFile(ctx context.Context, id string) error {
	err := s.deleteFile(ctx, id)
	observe("delete", err)
	return err
}

func (s *Service) deleteFile(ctx context.Context, id string) error {
	f, err := s.store.DeleteByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.forgetURL(f.Key)

	if err := s.objects.Delete(ctx, f.Key); err != nil {
		return fmt.Errorf("delete object for %s: %w", id, err)
	}
	s.log.Info("file deleted", zap.String("id", f.ID), zap.String("key", f.Key))
	return nil
}

// DeleteFiles removes all matching rows in one statement, then deletes their
// objects concurrently.
func (s *Service) DeleteFiles(ctx context.Context, ids []string) error {
	err := s.deleteFiles(ctx, ids)
	observe("delete_many", err)
	return err
}

func (s *Service) deleteFiles(ctx context.Context, ids []string) error {
	files, err := s.store.DeleteByIDs(ctx, dedupe(ids))
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		s.forgetURL(f.Key)
		keys = append(keys, f.Key)
	}
	err = fanOut(keys, func(key string) error {
		if err := s.objects.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete object %q: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("files deleted", zap.Int("count", len(files)))
	return nil
}

// fanOut runs fn for every item with bounded concurrency. Every item is
// attempted; the failures are joined.
func fanOut(items []string, fn func(string) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(deleteConcurrency)
	for _, item := range items {
		item := item
		g.Go(func() error {
			if err := fn(item); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (s *Service) forgetURL(key string) {
	if s.urls != nil {
		s.urls.Remove(key)
	}
}

// newKey builds {prefix}/{visibility}/{purpose}/{uuid}{ext}. The random
// segment makes every key fresh, so keys are never reused after deletion.
func (s *Service) newKey(purpose string, visibility Visibility, filename string) string {
	return path.Join(s.opts.KeyPrefix, string(visibility), purpose, uuid.NewString()+extension(filename))
}

// extension returns the lower-cased extension of filename, or "" when it
// has none or carries characters unsafe for a key.
func extension(filename string) string {
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	ext := strings.ToLower(path.Ext(base))
	if len(ext) < 2 || len(ext) > 16 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

func newFileID() string {
	return "file_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
