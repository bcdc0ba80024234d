package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildManifestOrdersByIndex(t *testing.T) {
	// Completion order is whatever the workers produced; the manifest must
	// come out in plan order regardless.
	completed := []Uploaded{
		{Index: 2, Path: "/segs/o/2", ETag: "cc", Size: 2},
		{Index: 0, Path: "/segs/o/0", ETag: "aa", Size: 4},
		{Index: 1, Path: "/segs/o/1", ETag: "bb", Size: 4},
	}

	body, err := BuildManifest(completed)
	require.NoError(t, err)

	entries, err := ParseManifest(body)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "/segs/o/0", entries[0].Path)
	assert.Equal(t, "/segs/o/1", entries[1].Path)
	assert.Equal(t, "/segs/o/2", entries[2].Path)
	assert.Equal(t, "aa", entries[0].ETag)
	assert.Equal(t, int64(2), entries[2].SizeBytes)

	// The input slice is not reordered.
	assert.Equal(t, 2, completed[0].Index)
}

func TestParseManifestRejectsGarbage(t *testing.T) {
	_, err := ParseManifest([]byte("not json"))
	assert.Error(t, err)
}
