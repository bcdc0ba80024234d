package swiftbatch

import (
	"github.com/joel-wright/swiftbatch/swifttypes"
)

// WithRetries sets the maximum number of attempts per backend call.
func WithRetries(retries int) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		if retries > 0 {
			o.Retries = retries
		}
	}
}

// WithSegmentSize enables segmented uploads for sources larger than the
// given byte size.
func WithSegmentSize(size int64) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		if size > 0 {
			o.SegmentSize = size
		}
	}
}

// WithUseSLO writes static manifests for segmented uploads instead of
// dynamic prefix references.
func WithUseSLO(useSLO bool) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		o.UseSLO = useSLO
	}
}

// WithSegmentContainer overrides the default <container>_segments target
// for segment objects.
func WithSegmentContainer(container string) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		o.SegmentContainer = container
	}
}

// WithLeaveSegments keeps superseded or orphaned segments in place on
// upload and delete.
func WithLeaveSegments(leave bool) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		o.LeaveSegments = leave
	}
}

// WithChanged uploads only when size or modification time differ from the
// stored object.
func WithChanged(changed bool) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		o.Changed = changed
	}
}

// WithSkipIdentical uploads only when the source checksum differs from the
// stored entity tag.
func WithSkipIdentical(skip bool) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		o.SkipIdentical = skip
	}
}

// WithYesAll confirms account-wide download and delete operations.
func WithYesAll(yes bool) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		o.YesAll = yes
	}
}

// WithNoDownload discards downloaded bodies after validation.
func WithNoDownload(noDownload bool) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		o.NoDownload = noDownload
	}
}

// WithOutputDir prefixes download destination paths.
func WithOutputDir(dir string) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		o.OutputDir = dir
	}
}

// WithChecksum toggles entity-tag validation on uploads and downloads.
func WithChecksum(validate bool) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		o.Checksum = validate
	}
}

// WithHeaders adds extra headers to object writes.
func WithHeaders(headers map[string]string) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		if o.Header == nil {
			o.Header = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			o.Header[k] = v
		}
	}
}

// WithMeta sets user metadata applied by upload and post operations.
func WithMeta(meta map[string]string) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		if o.Meta == nil {
			o.Meta = make(map[string]string, len(meta))
		}
		for k, v := range meta {
			o.Meta[k] = v
		}
	}
}

// WithLong includes byte and count detail on listings.
func WithLong(long bool) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		o.Long = long
	}
}

// WithPrefix narrows listings to names with the given prefix.
func WithPrefix(prefix string) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		o.Prefix = prefix
	}
}

// WithDelimiter groups listing results by the given delimiter.
func WithDelimiter(delimiter string) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		o.Delimiter = delimiter
	}
}

// WithMarker starts a listing strictly after the given name.
func WithMarker(marker string) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		o.Marker = marker
	}
}

// WithFailFast stops enqueuing further jobs for a batch once one fails.
// Already-enqueued jobs are allowed to finish.
func WithFailFast(failFast bool) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		o.FailFast = failFast
	}
}

// WithContainerThreads sizes the container pool.
func WithContainerThreads(n int) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		if n > 0 {
			o.ContainerThreads = n
		}
	}
}

// WithSegmentThreads sizes the segment pool.
func WithSegmentThreads(n int) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		if n > 0 {
			o.SegmentThreads = n
		}
	}
}

// WithObjectDDThreads sizes the object download/delete pool.
func WithObjectDDThreads(n int) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		if n > 0 {
			o.ObjectDDThreads = n
		}
	}
}

// WithObjectUUThreads sizes the object upload/update pool.
func WithObjectUUThreads(n int) swifttypes.CallOption {
	return func(o *swifttypes.Options) {
		if n > 0 {
			o.ObjectUUThreads = n
		}
	}
}
