package file

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/eyueldk/edkstack-files/internal/storage"
)

// memStore is an in-memory MetadataStore. A single mutex makes every method
// atomic, matching the single-statement contract of the SQL stores.
type memStore struct {
	mu        sync.Mutex
	rows      map[string]*File
	insertErr error
	now       func() time.Time
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]*File{}, now: time.Now}
}

func (m *memStore) Insert(_ context.Context, f *File) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	if _, ok := m.rows[f.ID]; ok {
		return nil, ErrConstraint
	}
	for _, r := range m.rows {
		if r.Key == f.Key {
			return nil, ErrConstraint
		}
	}
	c := *f
	c.CreatedAt = m.now()
	c.UpdatedAt = c.CreatedAt
	m.rows[c.ID] = &c
	out := c
	return &out, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *r
	return &c, nil
}

func (m *memStore) GetByIDs(_ context.Context, ids []string) ([]*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*File
	for _, id := range ids {
		if r, ok := m.rows[id]; ok {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memStore) UpdateRefCount(_ context.Context, id string, delta int, filter Filter) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || (filter.Purpose != "" && r.Purpose != filter.Purpose) {
		return nil, ErrNotFound
	}
	r.RefCount += delta
	r.UpdatedAt = m.now()
	c := *r
	return &c, nil
}

func (m *memStore) UpdateRefCounts(_ context.Context, ids []string, delta int, filter Filter) ([]*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*File
	for _, id := range ids {
		r, ok := m.rows[id]
		if !ok || (filter.Purpose != "" && r.Purpose != filter.Purpose) {
			continue
		}
		r.RefCount += delta
		r.UpdatedAt = m.now()
		c := *r
		out = append(out, &c)
	}
	return out, nil
}

func (m *memStore) DeleteByID(_ context.Context, id string) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.rows, id)
	return r, nil
}

func (m *memStore) DeleteByIDs(_ context.Context, ids []string) ([]*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*File
	for _, id := range ids {
		if r, ok := m.rows[id]; ok {
			delete(m.rows, id)
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ExistingKeys(_ context.Context, keys []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := map[string]bool{}
	for _, r := range m.rows {
		if slices.Contains(keys, r.Key) {
			found[r.Key] = true
		}
	}
	return found, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memObject struct {
	data        []byte
	contentType string
	acl         storage.ACL
	modified    time.Time
}

// memObjects is an in-memory storage.Storage. Put reports the byte count it
// actually received and, when set, reportType instead of the declared type.
type memObjects struct {
	mu         sync.Mutex
	objects    map[string]memObject
	putErr     error
	deleteErr  error
	reportType string
	presigned  int
	deletes    []string
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string]memObject{}}
}

func (s *memObjects) Put(_ context.Context, in storage.PutInput) (storage.ObjectInfo, error) {
	if s.putErr != nil {
		return storage.ObjectInfo{}, &storage.WriteError{Key: in.Key, Err: s.putErr}
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return storage.ObjectInfo{}, &storage.WriteError{Key: in.Key, Err: err}
	}
	ct := in.ContentType
	if s.reportType != "" {
		ct = s.reportType
	}
	if ct == "" {
		ct = storage.DefaultContentType
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[in.Key] = memObject{data: data, contentType: ct, acl: in.ACL, modified: time.Now()}
	return storage.ObjectInfo{Key: in.Key, Size: int64(len(data)), ContentType: ct, Name: in.Filename}, nil
}

func (s *memObjects) PresignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presigned++
	return "https://signed.local/" + key + "?ttl=" + ttl.String() + "&n=" + strings.Repeat("x", s.presigned), nil
}

func (s *memObjects) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	return nil
}

func (s *memObjects) PublicURL(key string) string {
	return storage.JoinURL("https://cdn.local", key)
}

func (s *memObjects) List(_ context.Context, prefix string, fn func(storage.ObjectSummary) error) error {
	s.mu.Lock()
	var sums []storage.ObjectSummary
	for k, o := range s.objects {
		if strings.HasPrefix(k, prefix) {
			sums = append(sums, storage.ObjectSummary{Key: k, Size: int64(len(o.data)), LastModified: o.modified})
		}
	}
	s.mu.Unlock()
	for _, sum := range sums {
		if err := fn(sum); err != nil {
			return err
		}
	}
	return nil
}

func (s *memObjects) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *memObjects) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

var errBoom = errors.New("boom")
