package file

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eyueldk/edkstack-files/internal/storage"
)

func newTestService(t *testing.T, opts Options) (*Service, *memStore, *memObjects) {
	t.Helper()
	store := newMemStore()
	objects := newMemObjects()
	return NewService(store, objects, opts, zap.NewNop()), store, objects
}

func uploadString(t *testing.T, svc *Service, body, filename, purpose string, vis Visibility) *File {
	t.Helper()
	f, err := svc.Upload(context.Background(), UploadInput{
		Body:        strings.NewReader(body),
		Size:        int64(len(body)),
		Filename:    filename,
		ContentType: "image/png",
		Purpose:     purpose,
		Visibility:  vis,
	})
	require.NoError(t, err)
	return f
}

func TestUploadPublicAvatar(t *testing.T) {
	svc, store, objects := newTestService(t, Options{})

	f := uploadString(t, svc, "png-bytes", "a.png", "avatar", VisibilityPublic)

	assert.True(t, strings.HasPrefix(f.Key, "files/public/avatar/"), f.Key)
	assert.True(t, strings.HasSuffix(f.Key, ".png"), f.Key)
	assert.True(t, strings.HasPrefix(f.ID, "file_"))
	assert.Equal(t, 0, f.RefCount)
	assert.Equal(t, VisibilityPublic, f.Visibility)
	require.NotNil(t, f.Name)
	assert.Equal(t, "a.png", *f.Name)

	assert.Equal(t, 1, store.count())
	assert.Equal(t, 1, objects.count())
	assert.Equal(t, storage.ACLPublicRead, objects.objects[f.Key].acl)
}

func TestUploadRecordsWhatTheStoreReports(t *testing.T) {
	svc, _, objects := newTestService(t, Options{})
	objects.reportType = "text/plain"

	f, err := svc.Upload(context.Background(), UploadInput{
		Body:        strings.NewReader("hello"),
		Size:        999,
		Filename:    "notes.png",
		ContentType: "image/png",
		Purpose:     "document",
		Visibility:  VisibilityPrivate,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5), f.Size)
	assert.Equal(t, "text/plain", f.MimeType)
	assert.Equal(t, storage.ACLPrivate, objects.objects[f.Key].acl)
	assert.True(t, strings.HasPrefix(f.Key, "files/private/document/"))
}

func TestUploadDefaultsVisibilityAndMimeType(t *testing.T) {
	svc, _, _ := newTestService(t, Options{KeyPrefix: "/uploads/"})

	f, err := svc.Upload(context.Background(), UploadInput{
		Body:    strings.NewReader("x"),
		Size:    1,
		Purpose: "misc",
	})
	require.NoError(t, err)

	assert.Equal(t, VisibilityPrivate, f.Visibility)
	assert.Equal(t, storage.DefaultContentType, f.MimeType)
	assert.Nil(t, f.Name)
	assert.True(t, strings.HasPrefix(f.Key, "uploads/private/misc/"), f.Key)
}

func TestUploadKeysAreFresh(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})

	a := uploadString(t, svc, "1", "same.png", "avatar", VisibilityPublic)
	require.NoError(t, svc.DeleteFile(context.Background(), a.ID))
	b := uploadString(t, svc, "1", "same.png", "avatar", VisibilityPublic)

	assert.NotEqual(t, a.Key, b.Key)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestUploadCompensatesWhenInsertFails(t *testing.T) {
	svc, store, objects := newTestService(t, Options{})
	store.insertErr = errBoom

	_, err := svc.Upload(context.Background(), UploadInput{
		Body: strings.NewReader("data"), Size: 4, Filename: "a.png", Purpose: "avatar",
	})
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, 0, objects.count(), "written object must be removed")
	require.Len(t, objects.deletes, 1)
	assert.Equal(t, 0, store.count())
}

func TestUploadCompensationFailureKeepsOriginalError(t *testing.T) {
	svc, store, objects := newTestService(t, Options{})
	store.insertErr = ErrConstraint
	objects.deleteErr = errBoom

	_, err := svc.Upload(context.Background(), UploadInput{
		Body: strings.NewReader("data"), Size: 4, Filename: "a.png", Purpose: "avatar",
	})
	require.ErrorIs(t, err, ErrConstraint)
	assert.NotErrorIs(t, err, errBoom)
	assert.Len(t, objects.deletes, 1)
}

func TestUploadCompensatesAfterCallerCancel(t *testing.T) {
	svc, store, objects := newTestService(t, Options{})
	store.insertErr = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Upload(ctx, UploadInput{Body: strings.NewReader("d"), Size: 1, Purpose: "avatar"})
	require.Error(t, err)
	assert.Equal(t, 0, objects.count())
}

func TestUploadStorageFailureWritesNoRow(t *testing.T) {
	svc, store, objects := newTestService(t, Options{})
	objects.putErr = errBoom

	_, err := svc.Upload(context.Background(), UploadInput{Body: strings.NewReader("d"), Size: 1, Purpose: "avatar"})

	var we *storage.WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, 0, store.count())
}

func TestUploadRejectsBadInput(t *testing.T) {
	svc, _, objects := newTestService(t, Options{})

	_, err := svc.Upload(context.Background(), UploadInput{Body: strings.NewReader("d"), Purpose: ""})
	require.Error(t, err)
	_, err = svc.Upload(context.Background(), UploadInput{Body: strings.NewReader("d"), Purpose: "a/b"})
	require.Error(t, err)
	_, err = svc.Upload(context.Background(), UploadInput{Body: strings.NewReader("d"), Purpose: "a", Visibility: "secret"})
	require.Error(t, err)

	assert.Equal(t, 0, objects.count())
}

func TestAcquireReleaseLifecycle(t *testing.T) {
	svc, store, objects := newTestService(t, Options{})
	ctx := context.Background()
	f := uploadString(t, svc, "png", "a.png", "avatar", VisibilityPublic)

	acquired, err := svc.AcquireFile(ctx, f.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, acquired.RefCount)

	require.NoError(t, svc.ReleaseFile(ctx, f.ID))

	_, err = svc.GetFile(ctx, f.ID)
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, objects.has(f.Key))
	assert.Equal(t, 0, store.count())
}

func TestAcquireThenReleaseKeepsLiveFile(t *testing.T) {
	svc, _, objects := newTestService(t, Options{})
	ctx := context.Background()
	f := uploadString(t, svc, "png", "a.png", "avatar", VisibilityPublic)

	_, err := svc.AcquireFile(ctx, f.ID, "avatar")
	require.NoError(t, err)

	_, err = svc.AcquireFile(ctx, f.ID, "")
	require.NoError(t, err)
	require.NoError(t, svc.ReleaseFile(ctx, f.ID))

	got, err := svc.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RefCount)
	assert.True(t, objects.has(f.Key))
}

func TestAcquirePurposeMismatch(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()
	f := uploadString(t, svc, "png", "a.png", "avatar", VisibilityPublic)

	_, err := svc.AcquireFile(ctx, f.ID, "document")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := svc.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RefCount)
}

func TestAcquireAndReleaseMissing(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.AcquireFile(ctx, "file_missing", "")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.ReleaseFile(ctx, "file_missing"), ErrNotFound)
}

func TestReleaseWithoutAcquireDeletes(t *testing.T) {
	svc, _, objects := newTestService(t, Options{})
	ctx := context.Background()
	f := uploadString(t, svc, "png", "a.png", "avatar", VisibilityPublic)

	require.NoError(t, svc.ReleaseFile(ctx, f.ID))
	assert.False(t, objects.has(f.Key))
}

func TestReleaseConvergesSubThresholdRow(t *testing.T) {
	svc, store, objects := newTestService(t, Options{})
	ctx := context.Background()
	f := uploadString(t, svc, "png", "a.png", "avatar", VisibilityPublic)

	// Simulate a crash between decrement and delete.
	_, err := store.UpdateRefCount(ctx, f.ID, -1, Filter{})
	require.NoError(t, err)

	require.NoError(t, svc.ReleaseFile(ctx, f.ID))
	assert.Equal(t, 0, store.count())
	assert.False(t, objects.has(f.Key))
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc, store, objects := newTestService(t, Options{})
	ctx := context.Background()
	f := uploadString(t, svc, "png", "a.png", "avatar", VisibilityPublic)

	require.NoError(t, svc.DeleteFile(ctx, f.ID))
	require.NoError(t, svc.DeleteFile(ctx, f.ID))

	assert.Equal(t, 0, store.count())
	assert.Equal(t, []string{f.Key}, objects.deletes, "second delete must not touch storage")
}

func TestDeleteSurfacesObjectError(t *testing.T) {
	svc, store, objects := newTestService(t, Options{})
	ctx := context.Background()
	f := uploadString(t, svc, "png", "a.png", "avatar", VisibilityPublic)
	objects.deleteErr = errBoom

	require.ErrorIs(t, svc.DeleteFile(ctx, f.ID), errBoom)
	assert.Equal(t, 0, store.count(), "metadata row goes first")
}

func TestDeleteFilesAttemptsEveryObject(t *testing.T) {
	svc, store, objects := newTestService(t, Options{})
	ctx := context.Background()
	a := uploadString(t, svc, "png", "a.png", "avatar", VisibilityPublic)
	b := uploadString(t, svc, "png", "b.png", "avatar", VisibilityPublic)
	objects.deleteErr = errBoom

	err := svc.DeleteFiles(ctx, []string{a.ID, b.ID})
	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), a.Key)
	assert.Contains(t, err.Error(), b.Key)
	assert.Equal(t, 0, store.count())
	assert.Len(t, objects.deletes, 2)
}

func TestGetURLPublicIsDeterministic(t *testing.T) {
	svc, _, objects := newTestService(t, Options{})
	ctx := context.Background()
	f := uploadString(t, svc, "png", "a.png", "avatar", VisibilityPublic)

	u1, err := svc.GetURL(ctx, f.ID)
	require.NoError(t, err)
	u2, err := svc.GetURL(ctx, f.ID)
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.local/"+f.Key, u1)
	assert.Equal(t, u1, u2)
	assert.Equal(t, 0, objects.presigned)
}

func TestGetURLPrivateUsesPresignTTL(t *testing.T) {
	svc, _, objects := newTestService(t, Options{PresignTTL: 10 * time.Minute})
	ctx := context.Background()
	f := uploadString(t, svc, "pdf", "a.pdf", "document", VisibilityPrivate)

	u, err := svc.GetURL(ctx, f.ID)
	require.NoError(t, err)
	assert.Contains(t, u, "ttl=10m0s")
	assert.Equal(t, 1, objects.presigned)
}

func TestGetURLDefaultTTL(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	f := uploadString(t, svc, "pdf", "a.pdf", "document", VisibilityPrivate)

	u, err := svc.GetURL(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Contains(t, u, "ttl=1h0m0s")
}

func TestGetURLMissing(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	_, err := svc.GetURL(context.Background(), "file_missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetURLsOmitsMissing(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()
	pub := uploadString(t, svc, "png", "a.png", "avatar", VisibilityPublic)
	priv := uploadString(t, svc, "pdf", "a.pdf", "document", VisibilityPrivate)

	urls, err := svc.GetURLs(ctx, []string{pub.ID, priv.ID, "file_missing", pub.ID})
	require.NoError(t, err)

	require.Len(t, urls, 2)
	assert.Equal(t, "https://cdn.local/"+pub.Key, urls[pub.ID])
	assert.Contains(t, urls[priv.ID], "https://signed.local/"+priv.Key)
}

func TestPresignCache(t *testing.T) {
	svc, _, objects := newTestService(t, Options{URLCacheSize: 16})
	ctx := context.Background()
	f := uploadString(t, svc, "pdf", "a.pdf", "document", VisibilityPrivate)

	u1, err := svc.GetURL(ctx, f.ID)
	require.NoError(t, err)
	u2, err := svc.GetURL(ctx, f.ID)
	require.NoError(t, err)

	assert.Equal(t, u1, u2)
	assert.Equal(t, 1, objects.presigned)

	require.NoError(t, svc.DeleteFile(ctx, f.ID))
	assert.Equal(t, 0, svc.urls.Len())
}

func TestOptionsClampCacheTTL(t *testing.T) {
	o := Options{PresignTTL: time.Minute, URLCacheTTL: time.Hour}.withDefaults()
	assert.Equal(t, 30*time.Second, o.URLCacheTTL)
	assert.Equal(t, "files", o.KeyPrefix)
}

func TestAcquireFilesOmitsNonMatching(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()
	a := uploadString(t, svc, "1", "a.png", "avatar", VisibilityPublic)
	b := uploadString(t, svc, "2", "b.png", "avatar", VisibilityPublic)
	d := uploadString(t, svc, "3", "d.pdf", "document", VisibilityPrivate)

	got, err := svc.AcquireFiles(ctx, []string{a.ID, b.ID, d.ID, "file_missing"}, "avatar")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, f := range got {
		assert.Equal(t, 1, f.RefCount)
		assert.Equal(t, "avatar", f.Purpose)
	}

	doc, err := svc.GetFile(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, doc.RefCount)
}

func TestReleaseFilesPartitions(t *testing.T) {
	svc, _, objects := newTestService(t, Options{})
	ctx := context.Background()
	keep := uploadString(t, svc, "1", "a.png", "avatar", VisibilityPublic)
	drop := uploadString(t, svc, "2", "b.png", "avatar", VisibilityPublic)

	_, err := svc.AcquireFiles(ctx, []string{keep.ID, keep.ID, drop.ID}, "")
	require.NoError(t, err)
	_, err = svc.AcquireFile(ctx, keep.ID, "")
	require.NoError(t, err)

	require.NoError(t, svc.ReleaseFiles(ctx, []string{keep.ID, drop.ID, "file_missing"}))

	got, err := svc.GetFile(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RefCount)

	_, err = svc.GetFile(ctx, drop.ID)
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, objects.has(drop.Key))
	assert.True(t, objects.has(keep.Key))
}

func TestDeleteFiles(t *testing.T) {
	svc, store, objects := newTestService(t, Options{})
	ctx := context.Background()
	var ids []string
	for i := 0; i < 20; i++ {
		ids = append(ids, uploadString(t, svc, "x", "a.png", "avatar", VisibilityPublic).ID)
	}

	require.NoError(t, svc.DeleteFiles(ctx, append(ids, "file_missing")))
	assert.Equal(t, 0, store.count())
	assert.Equal(t, 0, objects.count())

	require.NoError(t, svc.DeleteFiles(ctx, ids))
	assert.Len(t, objects.deletes, 20)
}

func TestConcurrentAcquireRelease(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()
	f := uploadString(t, svc, "x", "a.png", "avatar", VisibilityPublic)
	_, err := svc.AcquireFile(ctx, f.ID, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AcquireFile(ctx, f.ID, ""); err != nil {
				t.Error(err)
				return
			}
			if err := svc.ReleaseFile(ctx, f.ID); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, err := svc.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RefCount)
}

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"a.png":             ".png",
		"A.JPG":             ".jpg",
		"noext":             "",
		"dir/x.tar.gz":      ".gz",
		`C:\tmp\report.pdf`: ".pdf",
		"weird.p ng":        "",
		".":                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, extension(in), in)
	}
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "", "b", "a"}))
}
