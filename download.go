package swiftbatch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joel-wright/swiftbatch/errors"
	"github.com/joel-wright/swiftbatch/internal/pool"
	"github.com/joel-wright/swiftbatch/internal/retry"
	"github.com/joel-wright/swiftbatch/internal/validation"
	"github.com/joel-wright/swiftbatch/swiftapi"
	"github.com/joel-wright/swiftbatch/swifttypes"
)

// Download fetches the named objects from container, or every object in it
// when objects is empty. Bodies are written under the output directory,
// creating parent directories as needed; directory markers become
// directories. Plain object bodies are checksum and length verified.
func (s *Service) Download(
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
	go s.runDownload(ctx, container, objects, o, rs)
	return rs, nil
}

// DownloadAccount fetches every object of every container, each container
// becoming a directory under the output directory. It refuses to run
// without the explicit yes-all confirmation option.
func (s *Service) DownloadAccount(ctx context.Context, opts ...swifttypes.CallOption) (*ResultSet, error) {
	o := s.options(opts)
	if !o.YesAll {
		return nil, errors.NewError("download account", errors.ErrAccountUnscoped)
	}

	rs := newResultSet(16)
	go s.runDownloadAccount(ctx, o, rs)
	return rs, nil
}

func (s *Service) runDownload(
	ctx context.Context,
	container string,
	objects []string,
	o swifttypes.Options,
	rs *ResultSet,
) {
	defer rs.close()

	ddMgr := s.newManager(ctx, poolObjectDD, o.ObjectDDThreads, rs)
	defer ddMgr.Close()

	var aborted atomic.Bool

	if len(objects) == 0 {
		ctMgr := s.newManager(ctx, poolContainer, o.ContainerThreads, rs)
		defer ctMgr.Close()
		job := pool.Job{
			Action:    swifttypes.ActionListPart,
			Container: container,
			Run: func(jctx context.Context, conn swiftapi.Connection, emit func(*swifttypes.ResultRecord)) {
				s.downloadContainer(jctx, conn, ddMgr, container, o, false, &aborted)
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
			rec := newRecord(swifttypes.ActionDownloadObject, container, object)
			finish(rec, err)
			rs.sink() <- rec
			if o.FailFast {
				aborted.Store(true)
			}
			continue
		}
		if err := s.enqueueDownload(ddMgr, container, object, o, false, &aborted); err != nil {
			rs.fail(err)
			return
		}
	}
}

func (s *Service) runDownloadAccount(ctx context.Context, o swifttypes.Options, rs *ResultSet) {
	defer rs.close()

	conn, err := s.connect(ctx)
	if err != nil {
		rs.fail(errors.NewError("download account", err))
		return
	}
	defer conn.Close()

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
			rs.fail(errors.NewError("download account", err))
			return
		}
		if len(page) == 0 {
			return
		}

		for _, cr := range page {
			name := cr.Name
			job := pool.Job{
				Action:    swifttypes.ActionListPart,
				Container: name,
				Run: func(jctx context.Context, jconn swiftapi.Connection, emit func(*swifttypes.ResultRecord)) {
					s.downloadContainer(jctx, jconn, ddMgr, name, o, true, &aborted)
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

// downloadContainer pages through one container on this worker's
// connection and fans the objects out to the object pool.
func (s *Service) downloadContainer(
	ctx context.Context,
	conn swiftapi.Connection,
	ddMgr *pool.Manager,
	container string,
	o swifttypes.Options,
	prefixContainer bool,
	aborted *atomic.Bool,
) {
	listOpts := swiftapi.ListOptions{Prefix: o.Prefix}
	for {
		if o.FailFast && aborted.Load() {
			return
		}
		var page []swiftapi.ObjectRecord
		_, err := retry.Do(ctx, o.Retries, func() error {
			p, e := conn.GetContainer(ctx, container, &listOpts)
			if e == nil {
				page = p
			}
			return e
		})
		if err != nil {
			if o.FailFast {
				aborted.Store(true)
			}
			return
		}
		if len(page) == 0 {
			return
		}

		for _, r := range page {
			if o.FailFast && aborted.Load() {
				return
			}
			if err := s.enqueueDownload(ddMgr, container, r.Name, o, prefixContainer, aborted); err != nil {
				return
			}
		}
		listOpts.Marker = page[len(page)-1].Name
	}
}

func (s *Service) enqueueDownload(
	ddMgr *pool.Manager,
	container, object string,
	o swifttypes.Options,
	prefixContainer bool,
	aborted *atomic.Bool,
) error {
	return ddMgr.Enqueue(pool.Job{
		Action:    swifttypes.ActionDownloadObject,
		Container: container,
		Object:    object,
		Run: func(jctx context.Context, conn swiftapi.Connection, emit func(*swifttypes.ResultRecord)) {
			s.downloadObject(jctx, conn, container, object, o, prefixContainer, aborted, emit)
		},
	})
}

func (s *Service) downloadObject(
	ctx context.Context,
	conn swiftapi.Connection,
	container, object string,
	o swifttypes.Options,
	prefixContainer bool,
	aborted *atomic.Bool,
	emit func(*swifttypes.ResultRecord),
) {
	rec := newRecord(swifttypes.ActionDownloadObject, container, object)

	fail := func(err error) {
		finish(rec, err)
		emit(rec)
		if o.FailFast {
			aborted.Store(true)
		}
	}

	dest := ""
	if !o.NoDownload {
		var err error
		dest, err = destPath(o.OutputDir, container, object, prefixContainer)
		if err != nil {
			fail(errors.NewObjectError("download", container, object, err))
			return
		}
		rec.Path = dest
	}

	var info *swiftapi.ObjectInfo
	var written int64
	attempts, err := retry.Do(ctx, o.Retries, func() error {
		body, i, e := conn.GetObject(ctx, container, object, nil)
		if e != nil {
			return e
		}
		defer body.Close()
		info = i

		if !o.NoDownload && isDirMarker(i) {
			return os.MkdirAll(dest, 0o755)
		}

		n, e := writeBody(body, dest, o, i)
		written = n
		return e
	})
	rec.Attempts = attempts
	if err != nil {
		fail(errors.NewObjectError("download", container, object, err))
		return
	}

	if !o.NoDownload && dest != "" && !isDirMarker(info) {
		restoreMTime(dest, info.MTime)
	}

	rec.ETag = info.ETag
	rec.BytesTransferred = written
	finish(rec, nil)
	emit(rec)
}

// writeBody streams one object body to dest, or discards it when dest is
// empty, verifying length always and the checksum for plain objects. The
// entity tag of a large object is not the md5 of its concatenated body, so
// those only get the length check.
func writeBody(body io.Reader, dest string, o swifttypes.Options, info *swiftapi.ObjectInfo) (int64, error) {
	var out io.Writer = io.Discard
	var f *os.File
	if dest != "" {
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return 0, err
		}
		var err error
		f, err = os.Create(dest)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		out = f
	}

	large := info.StaticManifest || info.ObjectManifest != ""
	sum := md5.New()
	if o.Checksum && !large {
		out = io.MultiWriter(out, sum)
	}

	n, err := io.Copy(out, body)
	if err != nil {
		return n, err
	}
	if info.ContentLength > 0 && n != info.ContentLength {
		return n, errors.NewError("download", errors.ErrLengthMismatch).
			WithMessage("read " + strconv.FormatInt(n, 10) + " of " + strconv.FormatInt(info.ContentLength, 10))
	}
	if o.Checksum && !large && info.ETag != "" {
		if got := hex.EncodeToString(sum.Sum(nil)); got != info.ETag {
			return n, errors.NewError("download", errors.ErrChecksum).
				WithMessage("local " + got + " remote " + info.ETag)
		}
	}
	if f != nil {
		return n, f.Close()
	}
	return n, nil
}

// destPath maps an object name to its local destination, refusing names
// that would escape the output directory.
func destPath(outputDir, container, object string, prefixContainer bool) (string, error) {
	rel := filepath.FromSlash(object)
	if prefixContainer {
		rel = filepath.Join(container, rel)
	}
	rel = filepath.Clean(rel)
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.NewError("download", errors.ErrInvalidInput).
			WithMessage("object name escapes the output directory")
	}
	if outputDir != "" {
		return filepath.Join(outputDir, rel), nil
	}
	return rel, nil
}

func isDirMarker(info *swiftapi.ObjectInfo) bool {
	return info != nil && info.ContentType == swiftapi.DirMarkerContentType && info.ContentLength == 0
}

// restoreMTime applies the stored source modification time to the written
// file, when the object carries one.
func restoreMTime(dest, mtime string) {
	if mtime == "" {
		return
	}
	sec, err := strconv.ParseFloat(mtime, 64)
	if err != nil {
		return
	}
	t := time.Unix(int64(sec), int64((sec-float64(int64(sec)))*1e9))
	_ = os.Chtimes(dest, t, t)
}
