package swifttypes

// Options is the effective, layered configuration for one operation call.
// It is assembled once per call from the service defaults, the call options,
// and any per-object overrides, and never mutated after the call begins.
type Options struct {
	// Retries is the maximum number of attempts per backend call.
	Retries int

	// SegmentSize enables segmented uploads for sources larger than this
	// many bytes. Zero disables segmentation.
	SegmentSize int64

	// UseSLO writes a static manifest instead of a dynamic one.
	UseSLO bool

	// SegmentContainer overrides the default <container>_segments target
	// for segment objects.
	SegmentContainer string

	// LeaveSegments keeps superseded or orphaned segments in place.
	LeaveSegments bool

	// Changed skips an upload when size and modification time match the
	// stored object.
	Changed bool

	// SkipIdentical skips an upload when the source checksum matches the
	// stored entity tag.
	SkipIdentical bool

	// YesAll confirms account-wide download and delete operations.
	YesAll bool

	// NoDownload discards downloaded bodies after validation.
	NoDownload bool

	// OutputDir prefixes download destination paths.
	OutputDir string

	// Checksum validates entity tags on uploads and downloads.
	Checksum bool

	// Header and Meta are extra object headers and user metadata.
	Header map[string]string
	Meta   map[string]string

	// Long includes byte and count detail on listings.
	Long bool

	// Prefix and Delimiter narrow listings.
	Prefix    string
	Delimiter string

	// Marker starts a listing strictly after the given name.
	Marker string

	// FailFast stops enqueuing further jobs for a batch once one fails.
	// Already-enqueued jobs are allowed to finish.
	FailFast bool

	// Pool sizes, fixed at first use of each pool kind.
	ContainerThreads int
	SegmentThreads   int
	ObjectDDThreads  int
	ObjectUUThreads  int
}

// CallOption mutates an Options value during per-call assembly.
type CallOption func(*Options)

// DefaultOptions returns the engine defaults, matching the documented
// behavior of the operation surface.
func DefaultOptions() Options {
	return Options{
		Retries:          5,
		Checksum:         true,
		ContainerThreads: 10,
		SegmentThreads:   10,
		ObjectDDThreads:  10,
		ObjectUUThreads:  10,
	}
}

// Clone returns a deep copy so layered views never alias the maps of the
// layer below.
func (o Options) Clone() Options {
	out := o
	if o.Header != nil {
		out.Header = make(map[string]string, len(o.Header))
		for k, v := range o.Header {
			out.Header[k] = v
		}
	}
	if o.Meta != nil {
		out.Meta = make(map[string]string, len(o.Meta))
		for k, v := range o.Meta {
			out.Meta[k] = v
		}
	}
	return out
}

// Apply layers the given options onto a copy of o and returns the result.
func (o Options) Apply(opts ...CallOption) Options {
	merged := o.Clone()
	for _, opt := range opts {
		if opt != nil {
			opt(&merged)
		}
	}
	return merged
}
