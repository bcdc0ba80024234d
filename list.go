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

// ListContainer walks the objects of a container page by page, emitting one
// list_part record per page as it arrives. Prefix, delimiter, and marker
// options narrow the walk; the sequence ends when the backend returns a
// short page.
func (s *Service) ListContainer(
	ctx context.Context,
	container string,
	opts ...swifttypes.CallOption,
) (*ResultSet, error) {
	if err := validation.ValidateContainerName(container); err != nil {
		return nil, err
	}
	o := s.options(opts)

	rs := newResultSet(4)
	go func() {
		defer rs.close()
		ctMgr := s.newManager(ctx, poolContainer, 1, rs)
		defer ctMgr.Close()

		job := pool.Job{
			Action:    swifttypes.ActionListPart,
			Container: container,
			Run: func(jctx context.Context, conn swiftapi.Connection, emit func(*swifttypes.ResultRecord)) {
				s.listContainerPages(jctx, conn, container, o, emit)
			},
		}
		if err := ctMgr.Enqueue(job); err != nil {
			rs.fail(err)
		}
	}()
	return rs, nil
}

// ListAccount walks the containers of the account page by page, emitting
// one list_part record per page.
func (s *Service) ListAccount(ctx context.Context, opts ...swifttypes.CallOption) (*ResultSet, error) {
	o := s.options(opts)

	rs := newResultSet(4)
	go func() {
		defer rs.close()
		ctMgr := s.newManager(ctx, poolContainer, 1, rs)
		defer ctMgr.Close()

		job := pool.Job{
			Action: swifttypes.ActionListPart,
			Run: func(jctx context.Context, conn swiftapi.Connection, emit func(*swifttypes.ResultRecord)) {
				s.listAccountPages(jctx, conn, o, emit)
			},
		}
		if err := ctMgr.Enqueue(job); err != nil {
			rs.fail(err)
		}
	}()
	return rs, nil
}

func (s *Service) listContainerPages(
	ctx context.Context,
	conn swiftapi.Connection,
	container string,
	o swifttypes.Options,
	emit func(*swifttypes.ResultRecord),
) {
	listOpts := swiftapi.ListOptions{
		Marker:    o.Marker,
		Prefix:    o.Prefix,
		Delimiter: o.Delimiter,
	}
	for {
		rec := newRecord(swifttypes.ActionListPart, container, "")
		var page []swiftapi.ObjectRecord
		attempts, err := retry.Do(ctx, o.Retries, func() error {
			p, e := conn.GetContainer(ctx, container, &listOpts)
			if e == nil {
				page = p
			}
			return e
		})
		rec.Attempts = attempts
		if err != nil {
			finish(rec, errors.NewContainerError("list", container, err))
			emit(rec)
			return
		}
		if len(page) == 0 {
			return
		}

		rec.Listing = page
		finish(rec, nil)
		emit(rec)

		// Delimiter listings return subdir entries without a name; either
		// form advances the marker.
		last := page[len(page)-1]
		if last.Name != "" {
			listOpts.Marker = last.Name
		} else {
			listOpts.Marker = last.Subdir
		}
	}
}

func (s *Service) listAccountPages(
	ctx context.Context,
	conn swiftapi.Connection,
	o swifttypes.Options,
	emit func(*swifttypes.ResultRecord),
) {
	listOpts := swiftapi.ListOptions{Marker: o.Marker, Prefix: o.Prefix}
	for {
		rec := newRecord(swifttypes.ActionListPart, "", "")
		var page []swiftapi.ContainerRecord
		attempts, err := retry.Do(ctx, o.Retries, func() error {
			p, e := conn.GetAccount(ctx, &listOpts)
			if e == nil {
				page = p
			}
			return e
		})
		rec.Attempts = attempts
		if err != nil {
			finish(rec, errors.NewError("list account", err))
			emit(rec)
			return
		}
		if len(page) == 0 {
			return
		}

		rec.Containers = page
		finish(rec, nil)
		emit(rec)
		listOpts.Marker = page[len(page)-1].Name
	}
}
