package swiftbatch

import (
	"context"

	"github.com/joel-wright/swiftbatch/errors"
	"github.com/joel-wright/swiftbatch/internal/pool"
	"github.com/joel-wright/swiftbatch/internal/retry"
	"github.com/joel-wright/swiftbatch/internal/validation"
	"github.com/joel-wright/swiftbatch/swiftapi"
	"github.com/joel-wright/swiftbatch/swifttypes"
)

// PostAccount updates account metadata from the meta and header options.
func (s *Service) PostAccount(ctx context.Context, opts ...swifttypes.CallOption) (*ResultSet, error) {
	o := s.options(opts)
	headers := metaHeaders(o, swiftapi.HeaderAccountMetaPrefix)
	return s.runSingle(ctx, o, swifttypes.ActionPostAccount, "", "",
		func(jctx context.Context, conn swiftapi.Connection, rec *swifttypes.ResultRecord) error {
			if err := conn.PostAccount(jctx, headers); err != nil {
				return errors.NewError("post account", err)
			}
			return nil
		})
}

// PostContainer updates container metadata from the meta and header
// options.
func (s *Service) PostContainer(
	ctx context.Context,
	container string,
	opts ...swifttypes.CallOption,
) (*ResultSet, error) {
	if err := validation.ValidateContainerName(container); err != nil {
		return nil, err
	}
	o := s.options(opts)
	headers := metaHeaders(o, swiftapi.HeaderContainerMetaPrefix)
	return s.runSingle(ctx, o, swifttypes.ActionPostContainer, container, "",
		func(jctx context.Context, conn swiftapi.Connection, rec *swifttypes.ResultRecord) error {
			if err := conn.PostContainer(jctx, container, headers); err != nil {
				return errors.NewContainerError("post", container, err)
			}
			return nil
		})
}

// PostObject replaces an object's user metadata from the meta and header
// options. The backend replaces the whole metadata set on post, it does
// not merge.
func (s *Service) PostObject(
	ctx context.Context,
	container, object string,
	opts ...swifttypes.CallOption,
) (*ResultSet, error) {
	if err := validation.ValidateContainerName(container); err != nil {
		return nil, err
	}
	if err := validation.ValidateObjectName(object); err != nil {
		return nil, err
	}
	o := s.options(opts)
	headers := metaHeaders(o, swiftapi.HeaderObjectMetaPrefix)
	return s.runSingle(ctx, o, swifttypes.ActionPostObject, container, object,
		func(jctx context.Context, conn swiftapi.Connection, rec *swifttypes.ResultRecord) error {
			if err := conn.PostObject(jctx, container, object, headers); err != nil {
				return errors.NewObjectError("post", container, object, err)
			}
			return nil
		})
}

// PostObjects fans a metadata update across the object update pool,
// emitting one post_object record per name.
func (s *Service) PostObjects(
	ctx context.Context,
	container string,
	objects []string,
	opts ...swifttypes.CallOption,
) (*ResultSet, error) {
	if err := validation.ValidateContainerName(container); err != nil {
		return nil, err
	}
	o := s.options(opts)
	headers := metaHeaders(o, swiftapi.HeaderObjectMetaPrefix)

	rs := newResultSet(len(objects))
	go func() {
		defer rs.close()
		uuMgr := s.newManager(ctx, poolObjectUU, o.ObjectUUThreads, rs)
		defer uuMgr.Close()

		for _, object := range objects {
			object := object
			if err := validation.ValidateObjectName(object); err != nil {
				rec := newRecord(swifttypes.ActionPostObject, container, object)
				finish(rec, err)
				rs.sink() <- rec
				continue
			}
			job := pool.Job{
				Action:    swifttypes.ActionPostObject,
				Container: container,
				Object:    object,
				Run: func(jctx context.Context, conn swiftapi.Connection, emit func(*swifttypes.ResultRecord)) {
					rec := newRecord(swifttypes.ActionPostObject, container, object)
					attempts, err := retry.Do(jctx, o.Retries, func() error {
						return conn.PostObject(jctx, container, object, headers)
					})
					rec.Attempts = attempts
					if err != nil {
						finish(rec, errors.NewObjectError("post", container, object, err))
					} else {
						finish(rec, nil)
					}
					emit(rec)
				},
			}
			if err := uuMgr.Enqueue(job); err != nil {
				rs.fail(err)
				return
			}
		}
	}()
	return rs, nil
}

// metaHeaders merges the extra headers with the meta options under the
// given metadata prefix.
func metaHeaders(o swifttypes.Options, prefix string) map[string]string {
	h := make(map[string]string, len(o.Header)+len(o.Meta))
	for k, v := range o.Header {
		h[k] = v
	}
	for k, v := range o.Meta {
		h[prefix+k] = v
	}
	return h
}
