// Package swifttypes provides shared type definitions for the batch engine:
// the canonical result-record shape, the closed set of action kinds, upload
// specifications, and the layered call options.
package swifttypes

import (
	"io"
	"time"

	"github.com/joel-wright/swiftbatch/swiftapi"
)

// ActionKind identifies the sub-operation a ResultRecord reports on.
type ActionKind string

// The closed set of action kinds. Consumers can match exhaustively.
const (
	ActionStatAccount   ActionKind = "stat_account"
	ActionStatContainer ActionKind = "stat_container"
	ActionStatObject    ActionKind = "stat_object"

	ActionPostAccount   ActionKind = "post_account"
	ActionPostContainer ActionKind = "post_container"
	ActionPostObject    ActionKind = "post_object"

	ActionListPart ActionKind = "list_part"

	ActionDownloadObject ActionKind = "download_object"

	ActionCreateContainer ActionKind = "create_container"
	ActionCreateDirMarker ActionKind = "create_dir_marker"
	ActionUploadObject    ActionKind = "upload_object"
	ActionUploadSegment   ActionKind = "upload_segment"

	ActionDeleteContainer ActionKind = "delete_container"
	ActionDeleteObject    ActionKind = "delete_object"
	ActionDeleteSegment   ActionKind = "delete_segment"

	ActionCapabilities ActionKind = "capabilities"
)

// ResultRecord is the canonical outcome of one completed sub-operation.
// Exactly one is produced per job, or per logical sub-step such as one
// listing page. Records are read-only once handed to the result sequence.
type ResultRecord struct {
	// Action is the sub-operation kind.
	Action ActionKind

	// Success reports whether the sub-operation completed.
	Success bool

	// Container, Object, and Path locate what was acted on. Path is the
	// local filesystem side of an upload or download, when there is one.
	Container string
	Object    string
	Path      string

	// StartTime and FinishTime bound the sub-operation, including retries.
	StartTime  time.Time
	FinishTime time.Time

	// Attempts counts backend calls made for the decisive step, at least 1.
	Attempts int

	// Error is set iff Success is false.
	Error error

	// ETag is the entity tag of a written or verified object body.
	ETag string

	// BytesTransferred counts body bytes moved for uploads and downloads.
	BytesTransferred int64

	// SegmentIndex is the plan index of an upload_segment record.
	SegmentIndex int

	// Listing and Containers carry one page of a container or account
	// listing for list_part records.
	Listing    []swiftapi.ObjectRecord
	Containers []swiftapi.ContainerRecord

	// Stat views, populated by the corresponding stat actions.
	Account       *swiftapi.AccountInfo
	ContainerStat *swiftapi.ContainerInfo
	ObjectStat    *swiftapi.ObjectInfo

	// Capabilities is the decoded discovery document for capabilities
	// records.
	Capabilities map[string]any
}

// UploadSpec names one object of an upload batch and its data source.
// Exactly one of Path and Reader may be set; with neither, a zero-length
// object is created (a directory marker when DirMarker is set).
type UploadSpec struct {
	// Object is the target object name.
	Object string

	// Path is a filesystem source.
	Path string

	// Reader is a stream source. Size must be set for a Reader source if
	// the upload is to be segmented.
	Reader io.Reader
	Size   int64

	// DirMarker marks the created empty object as a directory marker.
	DirMarker bool

	// Options are per-object overrides, applied on top of the call options.
	Options []CallOption
}
