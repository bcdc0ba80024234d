// Package swiftapi defines the backend capability consumed by the batch
// engine: an authenticated Connection speaking account/container/object
// semantics, and the factory that produces one on demand.
//
// Orchestrators never share a Connection between workers; each pool worker
// owns the Connection it created until the worker is torn down.
package swiftapi

import (
	"context"
	"io"
	"net/http"
	"time"
)

// ConnectionFactory produces an authenticated Connection on demand.
// Pool workers call it lazily on their first job.
type ConnectionFactory func(ctx context.Context) (Connection, error)

// ConnectionOptions holds the settings needed to reach a backend.
// Either StorageURL+AuthToken or AuthURL+Username+Password must be set.
type ConnectionOptions struct {
	// StorageURL is the account endpoint, e.g. http://host:8080/v1/AUTH_test.
	StorageURL string

	// AuthToken is a pre-obtained token sent as X-Auth-Token.
	AuthToken string

	// AuthURL is the v1 auth endpoint used to obtain StorageURL and
	// AuthToken when they are not provided directly.
	AuthURL  string
	Username string
	Password string

	// Region selects a storage endpoint when the auth response offers
	// several. Optional.
	Region string

	// Timeout bounds individual backend calls. Zero means no timeout.
	Timeout time.Duration

	// HTTPClient overrides the default transport. Optional.
	HTTPClient *http.Client
}

// PutResult reports the outcome of a successful object write.
type PutResult struct {
	// ETag is the entity tag the backend computed for the stored body.
	ETag string
}

// ObjectInfo is the metadata view of an object returned by head and get.
type ObjectInfo struct {
	ContentType   string
	ContentLength int64
	ETag          string
	LastModified  time.Time

	// MTime is the source modification time header, if the object was
	// uploaded with one (x-object-meta-mtime).
	MTime string

	// StaticManifest reports whether the object is a static large object.
	StaticManifest bool

	// ObjectManifest is the <container>/<prefix> reference of a dynamic
	// large object, empty otherwise.
	ObjectManifest string

	// Metadata holds user metadata (x-object-meta-*) with the prefix
	// stripped and keys lowercased.
	Metadata map[string]string
}

// ContainerInfo is the metadata view of a container.
type ContainerInfo struct {
	ObjectCount int64
	BytesUsed   int64
	Metadata    map[string]string
}

// AccountInfo is the metadata view of an account.
type AccountInfo struct {
	ContainerCount int64
	ObjectCount    int64
	BytesUsed      int64
	Metadata       map[string]string
}

// ObjectRecord is one entry of a container listing page.
type ObjectRecord struct {
	Name         string    `json:"name"`
	Bytes        int64     `json:"bytes"`
	ETag         string    `json:"hash"`
	ContentType  string    `json:"content_type"`
	LastModified time.Time `json:"-"`

	// Subdir is set instead of Name for delimiter listings.
	Subdir string `json:"subdir,omitempty"`
}

// ContainerRecord is one entry of an account listing page.
type ContainerRecord struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
	Bytes int64  `json:"bytes"`
}

// ListOptions narrows a listing call. The zero value lists from the start
// with the backend's default page size.
type ListOptions struct {
	// Marker is the last-seen name; the page starts strictly after it.
	Marker    string
	Prefix    string
	Delimiter string

	// Limit caps the page size. Zero uses the backend default.
	Limit int
}

// PutObjectOptions adjusts an object write.
type PutObjectOptions struct {
	// Headers are sent verbatim with the request (content-type, metadata,
	// the dynamic-manifest header, ...).
	Headers map[string]string

	// StaticManifest stores the body as a static large object manifest
	// instead of object data. The backend validates the listed segments.
	StaticManifest bool
}

// GetObjectOptions adjusts an object read.
type GetObjectOptions struct {
	// Manifest fetches the raw manifest body of a static large object
	// instead of the concatenated segments.
	Manifest bool
}

// Connection is an exclusive handle to the backend. Implementations need
// not be safe for concurrent use; the pool guarantees single-worker
// ownership. Every method may fail with one of the classified sentinel
// errors from the errors package.
type Connection interface {
	PutObject(ctx context.Context, container, object string, body io.Reader, opts *PutObjectOptions) (*PutResult, error)
	GetObject(ctx context.Context, container, object string, opts *GetObjectOptions) (io.ReadCloser, *ObjectInfo, error)
	HeadObject(ctx context.Context, container, object string) (*ObjectInfo, error)
	PostObject(ctx context.Context, container, object string, headers map[string]string) error
	DeleteObject(ctx context.Context, container, object string) error

	PutContainer(ctx context.Context, container string, headers map[string]string) error
	HeadContainer(ctx context.Context, container string) (*ContainerInfo, error)
	PostContainer(ctx context.Context, container string, headers map[string]string) error
	DeleteContainer(ctx context.Context, container string) error
	GetContainer(ctx context.Context, container string, opts *ListOptions) ([]ObjectRecord, error)

	HeadAccount(ctx context.Context) (*AccountInfo, error)
	PostAccount(ctx context.Context, headers map[string]string) error
	GetAccount(ctx context.Context, opts *ListOptions) ([]ContainerRecord, error)

	// Capabilities issues one unauthenticated probe against the given
	// endpoint (or the connection's own endpoint when empty).
	Capabilities(ctx context.Context, endpoint string) (map[string]any, error)

	// Close releases the connection. Called when the owning worker is
	// torn down.
	Close() error
}
