package swiftbatch

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joel-wright/swiftbatch/errors"
	"github.com/joel-wright/swiftbatch/internal/testutil"
	"github.com/joel-wright/swiftbatch/swifttypes"
)

func TestDownloadObject(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SeedContainer("c", map[string]string{"a/b.txt": "hello"})
	svc := newTestService(backend)
	out := t.TempDir()

	rs, err := svc.Download(context.Background(), "c", []string{"a/b.txt"}, WithOutputDir(out))
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)

	downloads := byAction(recs, swifttypes.ActionDownloadObject)
	require.Len(t, downloads, 1)
	require.True(t, downloads[0].Success, "download failed: %v", downloads[0].Error)
	assert.Equal(t, int64(5), downloads[0].BytesTransferred)
	assert.Equal(t, md5str("hello"), downloads[0].ETag)

	dest := filepath.Join(out, "a", "b.txt")
	assert.Equal(t, dest, downloads[0].Path)
	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestDownloadContainer(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SeedContainer("c", map[string]string{
		"one.txt":     "1",
		"sub/two.txt": "22",
	})
	backend.SeedObject("c", "sub", &testutil.FakeObject{
		Body:        []byte{},
		ContentType: "application/directory",
	})
	svc := newTestService(backend)
	out := t.TempDir()

	rs, err := svc.Download(context.Background(), "c", nil, WithOutputDir(out))
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)

	downloads := byAction(recs, swifttypes.ActionDownloadObject)
	require.Len(t, downloads, 3)
	for _, rec := range downloads {
		assert.True(t, rec.Success, "download %s failed: %v", rec.Object, rec.Error)
	}

	content, err := os.ReadFile(filepath.Join(out, "sub", "two.txt"))
	require.NoError(t, err)
	assert.Equal(t, "22", string(content))

	fi, err := os.Stat(filepath.Join(out, "sub"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir(), "directory markers become directories")
}

func TestDownloadNoDownload(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SeedContainer("c", map[string]string{"a": "hello"})
	svc := newTestService(backend, WithNoDownload(true))

	rs, err := svc.Download(context.Background(), "c", []string{"a"})
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)

	downloads := byAction(recs, swifttypes.ActionDownloadObject)
	require.Len(t, downloads, 1)
	require.True(t, downloads[0].Success)
	assert.Equal(t, int64(5), downloads[0].BytesTransferred, "body is still read and verified")
	assert.Empty(t, downloads[0].Path)
}

func TestDownloadChecksumMismatch(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SeedObject("c", "bad", &testutil.FakeObject{
		Body: []byte("data"),
		ETag: "00000000000000000000000000000000",
	})
	svc := newTestService(backend, WithRetries(1))
	out := t.TempDir()

	rs, err := svc.Download(context.Background(), "c", []string{"bad"}, WithOutputDir(out))
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)

	downloads := byAction(recs, swifttypes.ActionDownloadObject)
	require.Len(t, downloads, 1)
	assert.False(t, downloads[0].Success)
	assert.True(t, stderrors.Is(downloads[0].Error, errors.ErrChecksum))
}

func TestDownloadRejectsEscapingNames(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SeedContainer("c", map[string]string{"../evil": "boom"})
	svc := newTestService(backend)
	out := t.TempDir()

	rs, err := svc.Download(context.Background(), "c", []string{"../evil"}, WithOutputDir(out))
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)

	downloads := byAction(recs, swifttypes.ActionDownloadObject)
	require.Len(t, downloads, 1)
	assert.False(t, downloads[0].Success)
	assert.True(t, errors.IsInvalidInput(downloads[0].Error))

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "evil", e.Name())
	}
}

func TestDownloadRestoresModificationTime(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SeedObject("c", "old.txt", &testutil.FakeObject{
		Body:  []byte("content"),
		MTime: "1700000000.000000",
	})
	svc := newTestService(backend)
	out := t.TempDir()

	rs, err := svc.Download(context.Background(), "c", []string{"old.txt"}, WithOutputDir(out))
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)
	require.True(t, byAction(recs, swifttypes.ActionDownloadObject)[0].Success)

	fi, err := os.Stat(filepath.Join(out, "old.txt"))
	require.NoError(t, err)
	assert.True(t, fi.ModTime().Equal(time.Unix(1700000000, 0)),
		"expected restored mtime, got %v", fi.ModTime())
}

func TestDownloadAccountRequiresConfirmation(t *testing.T) {
	svc := newTestService(testutil.NewFakeBackend())
	_, err := svc.DownloadAccount(context.Background())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrAccountUnscoped))
}

func TestDownloadAccount(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SeedContainer("c1", map[string]string{"x": "1"})
	backend.SeedContainer("c2", map[string]string{"y": "22"})
	svc := newTestService(backend)
	out := t.TempDir()

	rs, err := svc.DownloadAccount(context.Background(), WithYesAll(true), WithOutputDir(out))
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)

	downloads := byAction(recs, swifttypes.ActionDownloadObject)
	require.Len(t, downloads, 2)

	for _, want := range []string{filepath.Join("c1", "x"), filepath.Join("c2", "y")} {
		_, err := os.Stat(filepath.Join(out, want))
		assert.NoError(t, err, "expected %s under the output directory", want)
	}
}

func TestDownloadMissingObjectReportsFailure(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SeedContainer("c", nil)
	svc := newTestService(backend)

	rs, err := svc.Download(context.Background(), "c", []string{"nope"}, WithOutputDir(t.TempDir()))
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)

	downloads := byAction(recs, swifttypes.ActionDownloadObject)
	require.Len(t, downloads, 1)
	assert.False(t, downloads[0].Success)
	assert.True(t, errors.IsNotFound(downloads[0].Error))
}
