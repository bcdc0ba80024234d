package swiftbatch

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/joel-wright/swiftbatch/errors"
	"github.com/joel-wright/swiftbatch/internal/pool"
	"github.com/joel-wright/swiftbatch/internal/retry"
	"github.com/joel-wright/swiftbatch/internal/validation"
	"github.com/joel-wright/swiftbatch/swiftapi"
	"github.com/joel-wright/swiftbatch/swifttypes"
)

// maxConflictRetries bounds the container-delete conflict loop. Deleting a
// just-emptied container can race the backend's listing consistency, so
// conflicts are retried on a constant interval rather than failed outright.
const maxConflictRetries = 10

// Delete removes the named objects from container, or the whole container
// when objects is empty. A container delete cascades: its objects are
// listed and deleted first, then the empty container is removed, retrying
// conflicts from listing lag. Large objects drag their segments along
// unless leave-segments is set; every primary delete completes before its
// segment deletes begin.
func (s *Service) Delete(
	ctx context.Context,
	container string,
	objects []string,
	opts ...swifttypes.CallOption,
) (*ResultSet, error) {
	if err := validation.ValidateContainerName(container); err != nil {
		return nil, err
	}
	o := s.options(opts)

	rs := newResultSet(2 * len(objects))
	go s.runDelete(ctx, container, objects, o, rs)
	return rs, nil
}

// DeleteAccount cascades a delete across every container of the account.
// It refuses to run without the explicit yes-all confirmation option.
func (s *Service) DeleteAccount(ctx context.Context, opts ...swifttypes.CallOption) (*ResultSet, error) {
	o := s.options(opts)
	if !o.YesAll {
		return nil, errors.NewError("delete account", errors.ErrAccountUnscoped)
	}

	rs := newResultSet(16)
	go s.runDeleteAccount(ctx, o, rs)
	return rs, nil
}

func (s *Service) runDelete(
	ctx context.Context,
	container string,
	objects []string,
	o swifttypes.Options,
	rs *ResultSet,
) {
	defer rs.close()

	// Close order is the reverse of the enqueue chain: container jobs feed
	// the object pool, object jobs feed the segment pool.
	segMgr := s.newManager(ctx, poolSegment, o.SegmentThreads, rs)
	defer segMgr.Close()
	ddMgr := s.newManager(ctx, poolObjectDD, o.ObjectDDThreads, rs)
	defer ddMgr.Close()

	var aborted atomic.Bool

	if len(objects) == 0 {
		ctMgr := s.newManager(ctx, poolContainer, o.ContainerThreads, rs)
		defer ctMgr.Close()
		job := pool.Job{
			Action:    swifttypes.ActionDeleteContainer,
			Container: container,
			Run: func(jctx context.Context, conn swiftapi.Connection, emit func(*swifttypes.ResultRecord)) {
				s.deleteContainer(jctx, conn, ddMgr, segMgr, container, o, &aborted, emit)
			},
		}
		if err := ctMgr.Enqueue(job); err != nil {
			rs.fail(err)
		}
		return
	}

	for _, object := range objects {
		if o.FailFast && aborted.Load() {
			break
		}
		object := object
		if err := validation.ValidateObjectName(object); err != nil {
			rec := newRecord(swifttypes.ActionDeleteObject, container, object)
			finish(rec, err)
			rs.sink() <- rec
			if o.FailFast {
				aborted.Store(true)
			}
			continue
		}
		job := pool.Job{
			Action:    swifttypes.ActionDeleteObject,
			Container: container,
			Object:    object,
			Run: func(jctx context.Context, conn swiftapi.Connection, emit func(*swifttypes.ResultRecord)) {
				s.deleteObject(jctx, conn, segMgr, container, object, o, false, &aborted, emit)
			},
		}
		if err := ddMgr.Enqueue(job); err != nil {
			rs.fail(err)
			return
		}
	}
}

func (s *Service) runDeleteAccount(ctx context.Context, o swifttypes.Options, rs *ResultSet) {
	defer rs.close()

	conn, err := s.connect(ctx)
	if err != nil {
		rs.fail(errors.NewError("delete account", err))
		return
	}
	defer conn.Close()

	segMgr := s.newManager(ctx, poolSegment, o.SegmentThreads, rs)
	defer segMgr.Close()
	ddMgr := s.newManager(ctx, poolObjectDD, o.ObjectDDThreads, rs)
	defer ddMgr.Close()
	ctMgr := s.newManager(ctx, poolContainer, o.ContainerThreads, rs)
	defer ctMgr.Close()

	var aborted atomic.Bool
	listOpts := swiftapi.ListOptions{}
	for {
		if o.FailFast && aborted.Load() {
			return
		}
		var page []swiftapi.ContainerRecord
		_, err := retry.Do(ctx, o.Retries, func() error {
			p, e := conn.GetAccount(ctx, &listOpts)
			if e == nil {
				page = p
			}
			return e
		})
		if err != nil {
			rs.fail(errors.NewError("delete account", err))
			return
		}
		if len(page) == 0 {
			return
		}

		for _, cr := range page {
			name := cr.Name
			job := pool.Job{
				Action:    swifttypes.ActionDeleteContainer,
				Container: name,
				Run: func(jctx context.Context, jconn swiftapi.Connection, emit func(*swifttypes.ResultRecord)) {
					s.deleteContainer(jctx, jconn, ddMgr, segMgr, name, o, &aborted, emit)
				},
			}
			if err := ctMgr.Enqueue(job); err != nil {
				rs.fail(err)
				return
			}
		}
		listOpts.Marker = page[len(page)-1].Name
	}
}

// deleteContainer empties one container through the object pool, waits for
// every enqueued delete behind a private barrier, then removes the
// container itself through the conflict loop.
func (s *Service) deleteContainer(
	ctx context.Context,
	conn swiftapi.Connection,
	ddMgr, segMgr *pool.Manager,
	container string,
	o swifttypes.Options,
	aborted *atomic.Bool,
	emit func(*swifttypes.ResultRecord),
) {
	rec := newRecord(swifttypes.ActionDeleteContainer, container, "")
	var wg sync.WaitGroup

	listOpts := swiftapi.ListOptions{}
listing:
	for {
		var page []swiftapi.ObjectRecord
		_, err := retry.Do(ctx, o.Retries, func() error {
			p, e := conn.GetContainer(ctx, container, &listOpts)
			if e == nil {
				page = p
			}
			return e
		})
		if err != nil {
			wg.Wait()
			finish(rec, errors.NewContainerError("delete container", container, err))
			emit(rec)
			if o.FailFast && !errors.IsNotFound(err) {
				aborted.Store(true)
			}
			return
		}
		if len(page) == 0 {
			break
		}

		for _, r := range page {
			if o.FailFast && aborted.Load() {
				break listing
			}
			name := r.Name
			wg.Add(1)
			job := pool.Job{
				Action:    swifttypes.ActionDeleteObject,
				Container: container,
				Object:    name,
				Run: func(jctx context.Context, jconn swiftapi.Connection, jemit func(*swifttypes.ResultRecord)) {
					defer wg.Done()
					s.deleteObject(jctx, jconn, segMgr, container, name, o, true, aborted, jemit)
				},
			}
			if err := ddMgr.Enqueue(job); err != nil {
				wg.Done()
				break listing
			}
		}
		listOpts.Marker = page[len(page)-1].Name
	}
	wg.Wait()

	shouldRetry := func(err error) bool {
		return errors.IsConflict(err) || errors.IsTransient(err)
	}
	attempts, err := retry.Constant(ctx, maxConflictRetries, retry.DefaultInterval, shouldRetry, func() error {
		err := conn.DeleteContainer(ctx, container)
		if errors.IsNotFound(err) {
			// Already gone counts as deleted.
			return nil
		}
		return err
	})
	rec.Attempts = attempts
	if err != nil {
		finish(rec, errors.NewContainerError("delete container", container, err))
		emit(rec)
		if o.FailFast {
			aborted.Store(true)
		}
		return
	}
	finish(rec, nil)
	emit(rec)
}

// deleteObject removes one object. Unless leave-segments is set, the
// object is probed first so a large object's segments can be resolved and
// deleted after the primary delete completes. tolerateMissing makes an
// already-gone object count as deleted, which is what cascade deletes want.
func (s *Service) deleteObject(
	ctx context.Context,
	conn swiftapi.Connection,
	segMgr *pool.Manager,
	container, object string,
	o swifttypes.Options,
	tolerateMissing bool,
	aborted *atomic.Bool,
	emit func(*swifttypes.ResultRecord),
) {
	rec := newRecord(swifttypes.ActionDeleteObject, container, object)

	// The static manifest must be read before the primary delete makes it
	// unreachable; a dynamic manifest's segments are resolved by listing.
	var segRefs []string
	if !o.LeaveSegments {
		var info *swiftapi.ObjectInfo
		_, err := retry.Do(ctx, o.Retries, func() error {
			i, e := conn.HeadObject(ctx, container, object)
			if e == nil {
				info = i
			}
			return e
		})
		if err == nil && info != nil {
			segRefs, err = largeObjectSegments(ctx, conn, container, object, info, o.Retries)
			if err != nil {
				s.log.Warn("segment discovery failed",
					zap.String("container", container),
					zap.String("object", object),
					zap.Error(err))
				segRefs = nil
			}
		}
	}

	attempts, err := retry.Do(ctx, o.Retries, func() error {
		return conn.DeleteObject(ctx, container, object)
	})
	rec.Attempts = attempts
	if err != nil && !(tolerateMissing && errors.IsNotFound(err)) {
		finish(rec, errors.NewObjectError("delete", container, object, err))
		emit(rec)
		if o.FailFast {
			aborted.Store(true)
		}
		return
	}

	finish(rec, nil)
	emit(rec)

	s.cleanupSegments(segMgr, segRefs, nil, o)
}
