package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name        string
		size        int64
		segmentSize int64
		wantCount   int
		wantLengths []int64
	}{
		{
			name:        "exact multiple",
			size:        12,
			segmentSize: 4,
			wantCount:   3,
			wantLengths: []int64{4, 4, 4},
		},
		{
			name:        "short tail",
			size:        10,
			segmentSize: 4,
			wantCount:   3,
			wantLengths: []int64{4, 4, 2},
		},
		{
			name:        "single segment",
			size:        3,
			segmentSize: 4,
			wantCount:   1,
			wantLengths: []int64{3},
		},
		{
			name:        "zero size still yields one segment",
			size:        0,
			segmentSize: 4,
			wantCount:   1,
			wantLengths: []int64{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Plan("obj/123/10/4/", tt.size, tt.segmentSize)
			require.Len(t, plan, tt.wantCount)

			var offset int64
			for i, sg := range plan {
				assert.Equal(t, i, sg.Index)
				assert.Equal(t, offset, sg.Offset)
				assert.Equal(t, tt.wantLengths[i], sg.Length)
				offset += sg.Length
			}
			assert.Equal(t, tt.size, offset, "ranges must cover the source exactly")
		})
	}
}

func TestPlanNames(t *testing.T) {
	plan := Plan("video/1700000000.000000/100/40/", 100, 40)
	require.Len(t, plan, 3)
	assert.Equal(t, "video/1700000000.000000/100/40/00000000", plan[0].Name)
	assert.Equal(t, "video/1700000000.000000/100/40/00000001", plan[1].Name)
	assert.Equal(t, "video/1700000000.000000/100/40/00000002", plan[2].Name)
}

func TestPlanInvalidSegmentSize(t *testing.T) {
	assert.Nil(t, Plan("p/", 10, 0))
	assert.Nil(t, Plan("p/", 10, -1))
}

func TestPrefix(t *testing.T) {
	got := Prefix("photos/cat.jpg", "1700000000.000000", 1048576, 65536)
	assert.Equal(t, "photos/cat.jpg/1700000000.000000/1048576/65536/", got)
}

func TestContainer(t *testing.T) {
	assert.Equal(t, "photos_segments", Container("photos", ""))
	assert.Equal(t, "custom", Container("photos", "custom"))
}

func TestSplitRef(t *testing.T) {
	tests := []struct {
		ref           string
		wantContainer string
		wantRest      string
	}{
		{"c/obj", "c", "obj"},
		{"/c/obj", "c", "obj"},
		{"c/a/b/c", "c", "a/b/c"},
		{"c", "c", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		c, rest := SplitRef(tt.ref)
		assert.Equal(t, tt.wantContainer, c, tt.ref)
		assert.Equal(t, tt.wantRest, rest, tt.ref)
	}
}
