package swiftapi

// Wire-level header names shared by the transport and the orchestrators.
const (
	// HeaderAuthToken authenticates every storage request.
	HeaderAuthToken = "X-Auth-Token"

	// HeaderObjectManifest carries the <container>/<prefix> reference of a
	// dynamic large object.
	HeaderObjectManifest = "X-Object-Manifest"

	// HeaderStaticLargeObject marks a stored object as a static large
	// object on head/get responses.
	HeaderStaticLargeObject = "X-Static-Large-Object"

	// HeaderObjectMetaPrefix prefixes user metadata on objects.
	HeaderObjectMetaPrefix = "X-Object-Meta-"

	// HeaderContainerMetaPrefix prefixes user metadata on containers.
	HeaderContainerMetaPrefix = "X-Container-Meta-"

	// HeaderAccountMetaPrefix prefixes user metadata on accounts.
	HeaderAccountMetaPrefix = "X-Account-Meta-"

	// HeaderMTime records the source modification time on uploads.
	HeaderMTime = "X-Object-Meta-Mtime"

	// DirMarkerContentType marks zero-length directory placeholder objects.
	DirMarkerContentType = "application/directory"
)
