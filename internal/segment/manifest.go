package segment

import (
	"sort"

	"github.com/goccy/go-json"

	"github.com/joel-wright/swiftbatch/errors"
)

// ManifestEntry is one line of a static manifest body: the segment path and
// the entity tag and size the backend must validate it against.
type ManifestEntry struct {
	Path      string `json:"path"`
	ETag      string `json:"etag"`
	SizeBytes int64  `json:"size_bytes"`
}

// Uploaded describes one successfully uploaded segment, tagged with its
// plan index. Completion order is non-deterministic under concurrency, so
// the index travels with the result.
type Uploaded struct {
	Index int
	Path  string
	ETag  string
	Size  int64
}

// BuildManifest serializes a static manifest body from completed segment
// results, sorted into ascending plan-index order regardless of the order
// the segments finished in.
func BuildManifest(segments []Uploaded) ([]byte, error) {
	sorted := make([]Uploaded, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	entries := make([]ManifestEntry, 0, len(sorted))
	for _, s := range sorted {
		entries = append(entries, ManifestEntry{
			Path:      s.Path,
			ETag:      s.ETag,
			SizeBytes: s.Size,
		})
	}

	body, err := json.Marshal(entries)
	if err != nil {
		return nil, errors.NewError("build manifest", err)
	}
	return body, nil
}

// ParseManifest decodes a static manifest body fetched from the backend.
func ParseManifest(body []byte) ([]ManifestEntry, error) {
	var entries []ManifestEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, errors.NewError("parse manifest", err)
	}
	return entries, nil
}
