package swiftbatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joel-wright/swiftbatch/errors"
	"github.com/joel-wright/swiftbatch/internal/testutil"
	"github.com/joel-wright/swiftbatch/swifttypes"
)

func TestStatObject(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SeedContainer("c", map[string]string{"o": "hello"})
	svc := newTestService(backend)

	rs, err := svc.StatObject(context.Background(), "c", "o")
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, swifttypes.ActionStatObject, rec.Action)
	require.True(t, rec.Success)
	require.NotNil(t, rec.ObjectStat)
	assert.Equal(t, int64(5), rec.ObjectStat.ContentLength)
	assert.Equal(t, md5str("hello"), rec.ETag)
}

func TestStatObjectNotFound(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SeedContainer("c", nil)
	svc := newTestService(backend)

	rs, err := svc.StatObject(context.Background(), "c", "nope")
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err, "a missing object fails the record, not the sequence")
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Success)
	assert.True(t, errors.IsNotFound(recs[0].Error))
}

func TestStatContainer(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SeedContainer("c", map[string]string{"a": "1", "b": "4444"})
	svc := newTestService(backend)

	rs, err := svc.StatContainer(context.Background(), "c")
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.True(t, recs[0].Success)
	require.NotNil(t, recs[0].ContainerStat)
	assert.Equal(t, int64(2), recs[0].ContainerStat.ObjectCount)
	assert.Equal(t, int64(5), recs[0].ContainerStat.BytesUsed)
}

func TestStatAccount(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SeedContainer("c1", map[string]string{"a": "1"})
	backend.SeedContainer("c2", map[string]string{"b": "22"})
	svc := newTestService(backend)

	rs, err := svc.StatAccount(context.Background())
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.True(t, recs[0].Success)
	require.NotNil(t, recs[0].Account)
	assert.Equal(t, int64(2), recs[0].Account.ContainerCount)
	assert.Equal(t, int64(2), recs[0].Account.ObjectCount)
	assert.Equal(t, int64(3), recs[0].Account.BytesUsed)
}

func TestStatObjectsFanOut(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SeedContainer("c", map[string]string{"a": "1", "b": "22", "c": "333"})
	svc := newTestService(backend)

	rs, err := svc.StatObjects(context.Background(), "c", []string{"a", "b", "missing"})
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)

	stats := byAction(recs, swifttypes.ActionStatObject)
	require.Len(t, stats, 3)

	byName := map[string]*swifttypes.ResultRecord{}
	for _, rec := range stats {
		byName[rec.Object] = rec
	}
	require.True(t, byName["a"].Success)
	assert.Equal(t, int64(1), byName["a"].ObjectStat.ContentLength)
	require.True(t, byName["b"].Success)
	assert.Equal(t, int64(2), byName["b"].ObjectStat.ContentLength)
	assert.False(t, byName["missing"].Success)
	assert.True(t, errors.IsNotFound(byName["missing"].Error))
}

func TestPostObjectsFanOut(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SeedContainer("c", map[string]string{"a": "1", "b": "22"})
	svc := newTestService(backend)

	rs, err := svc.PostObjects(context.Background(), "c", []string{"a", "b"},
		WithMeta(map[string]string{"team": "infra"}))
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)

	posts := byAction(recs, swifttypes.ActionPostObject)
	require.Len(t, posts, 2)
	for _, rec := range posts {
		assert.True(t, rec.Success, "post %s failed: %v", rec.Object, rec.Error)
	}
	for _, name := range []string{"a", "b"} {
		obj := backend.Object("c", name)
		require.NotNil(t, obj)
		assert.Equal(t, "infra", obj.Metadata["team"])
	}
}

func TestPostObjectMetadata(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SeedContainer("c", map[string]string{"o": "data"})
	svc := newTestService(backend)

	rs, err := svc.PostObject(context.Background(), "c", "o",
		WithMeta(map[string]string{"color": "red"}))
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.True(t, recs[0].Success)
	assert.Equal(t, swifttypes.ActionPostObject, recs[0].Action)

	obj := backend.Object("c", "o")
	require.NotNil(t, obj)
	assert.Equal(t, "red", obj.Metadata["color"])
}

func TestPostContainerNotFound(t *testing.T) {
	backend := testutil.NewFakeBackend()
	svc := newTestService(backend)

	rs, err := svc.PostContainer(context.Background(), "ghost",
		WithMeta(map[string]string{"k": "v"}))
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Success)
	assert.True(t, errors.IsNotFound(recs[0].Error))
}

func TestPostAccount(t *testing.T) {
	backend := testutil.NewFakeBackend()
	svc := newTestService(backend)

	rs, err := svc.PostAccount(context.Background(),
		WithMeta(map[string]string{"owner": "ops"}))
	require.NoError(t, err)

	recs, err := rs.Collect()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Success)
	assert.Equal(t, swifttypes.ActionPostAccount, recs[0].Action)
}

func TestCapabilities(t *testing.T) {
	backend := testutil.NewFakeBackend()
	svc := newTestService(backend)

	rec, err := svc.Capabilities(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Success)
	assert.Equal(t, swifttypes.ActionCapabilities, rec.Action)
	assert.Contains(t, rec.Capabilities, "swift")
}

func TestServiceOptionLayering(t *testing.T) {
	svc := New(testutil.NewFakeBackend().Factory(), WithRetries(2), WithSegmentSize(100))

	o := svc.options([]swifttypes.CallOption{WithRetries(7)})
	assert.Equal(t, 7, o.Retries, "call options override service defaults")
	assert.Equal(t, int64(100), o.SegmentSize, "unset call options inherit service defaults")
	assert.True(t, o.Checksum, "engine defaults survive layering")

	base := svc.options(nil)
	assert.Equal(t, 2, base.Retries, "per-call layering must not mutate the defaults")
}
