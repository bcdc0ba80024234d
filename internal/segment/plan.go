// Package segment builds segmentation plans for large-object uploads and
// assembles the manifests that reference the uploaded segments.
package segment

import (
	"fmt"
	"strings"
)

// Segment is one contiguous byte range of a source object, stored as an
// independent object under Name.
type Segment struct {
	// Index is the position of the segment in the plan, starting at 0.
	Index int

	// Offset and Length delimit the byte range within the source.
	Offset int64
	Length int64

	// Name is the segment's object name inside the segment container.
	Name string
}

// Plan splits a source of the given size into segments of at most
// segmentSize bytes. Ranges are contiguous, non-overlapping, and cover the
// source exactly once. segmentSize must be positive. A zero-length source
// yields a single empty segment so the manifest is never empty.
func Plan(prefix string, size, segmentSize int64) []Segment {
	if segmentSize <= 0 {
		return nil
	}

	count := int((size + segmentSize - 1) / segmentSize)
	if count == 0 {
		count = 1
	}

	plan := make([]Segment, 0, count)
	for i := 0; i < count; i++ {
		offset := int64(i) * segmentSize
		length := segmentSize
		if offset+length > size {
			length = size - offset
		}
		plan = append(plan, Segment{
			Index:  i,
			Offset: offset,
			Length: length,
			Name:   fmt.Sprintf("%s%08d", prefix, i),
		})
	}
	return plan
}

// Prefix builds the name prefix under which one upload's segments live:
// <object>/<mtime>/<size>/<segment_size>/. Re-uploads of a changed source
// land under a different prefix, which is what makes stale-segment diffing
// possible.
func Prefix(object, mtime string, size, segmentSize int64) string {
	return fmt.Sprintf("%s/%s/%d/%d/", object, mtime, size, segmentSize)
}

// Container returns the segment container for a destination container,
// honoring an explicit override.
func Container(container, override string) string {
	if override != "" {
		return override
	}
	return container + "_segments"
}

// SplitRef splits a <container>/<prefix-or-name> manifest reference into its
// container and remainder.
func SplitRef(ref string) (container, rest string) {
	ref = strings.TrimPrefix(ref, "/")
	if i := strings.IndexByte(ref, '/'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}
