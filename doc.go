// Package swiftbatch is a batch-operation engine for object storage with
// account/container/object semantics. A caller issues one logical operation
// (delete this container, upload this set of files) and the engine
// decomposes it into many concurrent sub-operations across a family of
// bounded worker pools, each worker reusing one backend connection for its
// lifetime.
//
// Every operation returns its outcomes as a lazy, single-pass sequence of
// result records in completion order. Consuming the sequence to exhaustion
// is required to guarantee all underlying jobs have completed; a terminal
// error on the sequence distinguishes a failed operation from individual
// failed items.
//
//	svc := swiftbatch.New(factory, swiftbatch.WithSegmentSize(100<<20))
//	rs, err := svc.Upload(ctx, "photos", specs)
//	if err != nil {
//	    return err
//	}
//	for rec := range rs.Records() {
//	    // inspect rec.Action, rec.Success, rec.Error
//	}
//	return rs.Err()
package swiftbatch
