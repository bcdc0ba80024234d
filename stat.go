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

// StatAccount reports the account's usage totals and metadata as a
// single-record sequence.
func (s *Service) StatAccount(ctx context.Context, opts ...swifttypes.CallOption) (*ResultSet, error) {
	o := s.options(opts)
	return s.runSingle(ctx, o, swifttypes.ActionStatAccount, "", "",
		func(jctx context.Context, conn swiftapi.Connection, rec *swifttypes.ResultRecord) error {
			info, err := conn.HeadAccount(jctx)
			if err != nil {
				return errors.NewError("stat account", err)
			}
			rec.Account = info
			return nil
		})
}

// StatContainer reports one container's object count, byte usage, and
// metadata.
func (s *Service) StatContainer(
	ctx context.Context,
	container string,
	opts ...swifttypes.CallOption,
) (*ResultSet, error) {
	if err := validation.ValidateContainerName(container); err != nil {
		return nil, err
	}
	o := s.options(opts)
	return s.runSingle(ctx, o, swifttypes.ActionStatContainer, container, "",
		func(jctx context.Context, conn swiftapi.Connection, rec *swifttypes.ResultRecord) error {
			info, err := conn.HeadContainer(jctx, container)
			if err != nil {
				return errors.NewContainerError("stat", container, err)
			}
			rec.ContainerStat = info
			return nil
		})
}

// StatObject reports one object's content type, length, entity tag,
// timestamps, manifest state, and metadata.
func (s *Service) StatObject(
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
	return s.runSingle(ctx, o, swifttypes.ActionStatObject, container, object,
		func(jctx context.Context, conn swiftapi.Connection, rec *swifttypes.ResultRecord) error {
			info, err := conn.HeadObject(jctx, container, object)
			if err != nil {
				return errors.NewObjectError("stat", container, object, err)
			}
			rec.ObjectStat = info
			rec.ETag = info.ETag
			return nil
		})
}

// StatObjects fans a metadata probe across the object pool, emitting one
// stat_object record per name in completion order.
func (s *Service) StatObjects(
	ctx context.Context,
	container string,
	objects []string,
	opts ...swifttypes.CallOption,
) (*ResultSet, error) {
	if err := validation.ValidateContainerName(container); err != nil {
		return nil, err
	}
	o := s.options(opts)

	rs := newResultSet(len(objects))
	go func() {
		defer rs.close()
		ddMgr := s.newManager(ctx, poolObjectDD, o.ObjectDDThreads, rs)
		defer ddMgr.Close()

		for _, object := range objects {
			object := object
			if err := validation.ValidateObjectName(object); err != nil {
				rec := newRecord(swifttypes.ActionStatObject, container, object)
				finish(rec, err)
				rs.sink() <- rec
				continue
			}
			job := pool.Job{
				Action:    swifttypes.ActionStatObject,
				Container: container,
				Object:    object,
				Run: func(jctx context.Context, conn swiftapi.Connection, emit func(*swifttypes.ResultRecord)) {
					rec := newRecord(swifttypes.ActionStatObject, container, object)
					var info *swiftapi.ObjectInfo
					attempts, err := retry.Do(jctx, o.Retries, func() error {
						i, e := conn.HeadObject(jctx, container, object)
						if e == nil {
							info = i
						}
						return e
					})
					rec.Attempts = attempts
					if err != nil {
						finish(rec, errors.NewObjectError("stat", container, object, err))
					} else {
						rec.ObjectStat = info
						rec.ETag = info.ETag
						finish(rec, nil)
					}
					emit(rec)
				},
			}
			if err := ddMgr.Enqueue(job); err != nil {
				rs.fail(err)
				return
			}
		}
	}()
	return rs, nil
}

// runSingle executes one retried backend call on a single-worker pool and
// delivers its outcome as a one-record sequence.
func (s *Service) runSingle(
	ctx context.Context,
	o swifttypes.Options,
	action swifttypes.ActionKind,
	container, object string,
	fn func(context.Context, swiftapi.Connection, *swifttypes.ResultRecord) error,
) (*ResultSet, error) {
	rs := newResultSet(1)
	go func() {
		defer rs.close()
		mgr := s.newManager(ctx, poolContainer, 1, rs)
		defer mgr.Close()

		job := pool.Job{
			Action:    action,
			Container: container,
			Object:    object,
			Run: func(jctx context.Context, conn swiftapi.Connection, emit func(*swifttypes.ResultRecord)) {
				rec := newRecord(action, container, object)
				attempts, err := retry.Do(jctx, o.Retries, func() error {
					return fn(jctx, conn, rec)
				})
				rec.Attempts = attempts
				finish(rec, err)
				emit(rec)
			},
		}
		if err := mgr.Enqueue(job); err != nil {
			rs.fail(err)
		}
	}()
	return rs, nil
}
