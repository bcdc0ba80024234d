package swiftbatch

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/joel-wright/swiftbatch/errors"
	"github.com/joel-wright/swiftbatch/internal/pool"
	"github.com/joel-wright/swiftbatch/internal/retry"
	"github.com/joel-wright/swiftbatch/internal/segment"
	"github.com/joel-wright/swiftbatch/internal/validation"
	"github.com/joel-wright/swiftbatch/swiftapi"
	"github.com/joel-wright/swiftbatch/swifttypes"
)

// Upload stores the given specs into container. Sources larger than the
// configured segment size are split into concurrently uploaded segments
// referenced by a manifest object; superseded segments of an overwritten
// large object are removed afterwards unless leave-segments is set.
//
// The returned sequence carries one upload_object (or create_dir_marker)
// record per spec, plus upload_segment, create_container, and
// delete_segment records for the work done on their behalf.
func (s *Service) Upload(
	ctx context.Context,
	container string,
	specs []swifttypes.UploadSpec,
	opts ...swifttypes.CallOption,
) (*ResultSet, error) {
	if err := validation.ValidateContainerName(container); err != nil {
		return nil, err
	}
	o := s.options(opts)

	rs := newResultSet(2 * len(specs))
	go s.runUpload(ctx, container, specs, o, rs)
	return rs, nil
}

func (s *Service) runUpload(
	ctx context.Context,
	container string,
	specs []swifttypes.UploadSpec,
	o swifttypes.Options,
	rs *ResultSet,
) {
	defer rs.close()

	s.ensureContainers(ctx, container, o, rs)

	// The segment pool must outlive the upload pool: upload jobs block on
	// their segment jobs and enqueue cleanup deletes, so it closes last.
	segMgr := s.newManager(ctx, poolSegment, o.SegmentThreads, rs)
	defer segMgr.Close()
	uuMgr := s.newManager(ctx, poolObjectUU, o.ObjectUUThreads, rs)
	defer uuMgr.Close()

	var aborted atomic.Bool
	for i := range specs {
		if o.FailFast && aborted.Load() {
			break
		}
		spec := specs[i]
		eff := o.Apply(spec.Options...)

		if err := validation.ValidateObjectName(spec.Object); err != nil {
			rs.sink() <- invalidSpecRecord(container, spec, err)
			if eff.FailFast {
				aborted.Store(true)
			}
			continue
		}
		if spec.Path != "" && spec.Reader != nil {
			err := errors.NewObjectError("upload", container, spec.Object, errors.ErrInvalidInput).
				WithMessage("spec has both a path and a reader source")
			rs.sink() <- invalidSpecRecord(container, spec, err)
			if eff.FailFast {
				aborted.Store(true)
			}
			continue
		}

		job := pool.Job{
			Action:    uploadAction(spec),
			Container: container,
			Object:    spec.Object,
			Run: func(jctx context.Context, conn swiftapi.Connection, emit func(*swifttypes.ResultRecord)) {
				s.uploadObject(jctx, conn, segMgr, container, spec, eff, &aborted, emit)
			},
		}
		if err := uuMgr.Enqueue(job); err != nil {
			rs.fail(err)
			return
		}
	}
}

// ensureContainers creates the destination container, and the segment
// container when segmentation is enabled. Failures are reported but do not
// abort the batch; the object writes surface the real problem.
func (s *Service) ensureContainers(
	ctx context.Context,
	container string,
	o swifttypes.Options,
	rs *ResultSet,
) {
	targets := []string{container}
	if o.SegmentSize > 0 {
		targets = append(targets, segment.Container(container, o.SegmentContainer))
	}

	ctMgr := s.newManager(ctx, poolContainer, o.ContainerThreads, rs)
	defer ctMgr.Close()

	for _, name := range targets {
		name := name
		job := pool.Job{
			Action:    swifttypes.ActionCreateContainer,
			Container: name,
			Run: func(jctx context.Context, conn swiftapi.Connection, emit func(*swifttypes.ResultRecord)) {
				rec := newRecord(swifttypes.ActionCreateContainer, name, "")
				attempts, err := retry.Do(jctx, o.Retries, func() error {
					return conn.PutContainer(jctx, name, nil)
				})
				rec.Attempts = attempts
				if err != nil {
					s.log.Warn("container create failed",
						zap.String("container", name), zap.Error(err))
					finish(rec, errors.NewContainerError("create container", name, err))
				} else {
					finish(rec, nil)
				}
				emit(rec)
			},
		}
		if err := ctMgr.Enqueue(job); err != nil {
			rs.fail(err)
			return
		}
	}
}

func (s *Service) uploadObject(
	ctx context.Context,
	conn swiftapi.Connection,
	segMgr *pool.Manager,
	container string,
	spec swifttypes.UploadSpec,
	o swifttypes.Options,
	aborted *atomic.Bool,
	emit func(*swifttypes.ResultRecord),
) {
	rec := newRecord(uploadAction(spec), container, spec.Object)
	rec.Path = spec.Path

	fail := func(err error) {
		finish(rec, err)
		emit(rec)
		if o.FailFast {
			aborted.Store(true)
		}
	}

	size, mtime, dirMarker, err := resolveSource(spec)
	if err != nil {
		fail(errors.NewObjectError("upload", container, spec.Object, err))
		return
	}
	if dirMarker {
		rec.Action = swifttypes.ActionCreateDirMarker
	}

	// One probe covers the freshness shortcuts and captures the manifest
	// state of the object being overwritten, before anything is written.
	var existing *swiftapi.ObjectInfo
	if o.Changed || o.SkipIdentical || !o.LeaveSegments {
		headAttempts, err := retry.Do(ctx, o.Retries, func() error {
			info, e := conn.HeadObject(ctx, container, spec.Object)
			if e == nil {
				existing = info
			}
			return e
		})
		if err != nil && !errors.IsNotFound(err) {
			rec.Attempts = headAttempts
			fail(errors.NewObjectError("upload", container, spec.Object, err))
			return
		}
	}

	if existing != nil {
		if skipped, etag := uploadSkippable(spec, existing, o, size, mtime, dirMarker); skipped {
			rec.ETag = etag
			finish(rec, nil)
			emit(rec)
			return
		}
	}

	// Segment references of the object being overwritten, gathered before
	// the overwrite makes the old manifest unreachable.
	var oldSegments []string
	if !o.LeaveSegments && existing != nil {
		oldSegments, err = largeObjectSegments(ctx, conn, container, spec.Object, existing, o.Retries)
		if err != nil {
			s.log.Warn("stale segment discovery failed",
				zap.String("container", container),
				zap.String("object", spec.Object),
				zap.Error(err))
			oldSegments = nil
		}
	}

	if o.SegmentSize > 0 && size > o.SegmentSize && !dirMarker {
		s.uploadSegmented(ctx, conn, segMgr, container, spec, o, size, mtime, oldSegments, rec, aborted, emit)
		return
	}

	contentType := detectContentType(spec, dirMarker)
	headers := objectHeaders(o, mtime, contentType)

	attempts := o.Retries
	if spec.Reader != nil {
		// A plain reader cannot be rewound for another attempt.
		attempts = 1
	}

	var res *swiftapi.PutResult
	var transferred int64
	n, err := retry.Do(ctx, attempts, func() error {
		body, closeBody, err := openWholeSource(spec)
		if err != nil {
			return err
		}
		defer closeBody()

		src := &sourceReader{r: body}
		if o.Checksum {
			src.sum = md5.New()
		}
		r, e := conn.PutObject(ctx, container, spec.Object, src, &swiftapi.PutObjectOptions{Headers: headers})
		if e != nil {
			return e
		}
		if o.Checksum && r.ETag != "" {
			if sum := hex.EncodeToString(src.sum.Sum(nil)); sum != r.ETag {
				return errors.NewObjectError("upload", container, spec.Object, errors.ErrChecksum).
					WithMessage("local " + sum + " remote " + r.ETag)
			}
		}
		res = r
		transferred = src.n
		return nil
	})
	rec.Attempts = n
	if err != nil {
		fail(errors.NewObjectError("upload", container, spec.Object, err))
		return
	}

	rec.ETag = res.ETag
	rec.BytesTransferred = transferred
	finish(rec, nil)
	emit(rec)

	s.cleanupSegments(segMgr, oldSegments, nil, o)
}

// uploadSegmented splits the source per the plan, uploads the segments on
// the segment pool, waits for all of them, and writes the manifest on this
// worker's connection. A single failed segment aborts the manifest write.
func (s *Service) uploadSegmented(
	ctx context.Context,
	conn swiftapi.Connection,
	segMgr *pool.Manager,
	container string,
	spec swifttypes.UploadSpec,
	o swifttypes.Options,
	size int64,
	mtime string,
	oldSegments []string,
	rec *swifttypes.ResultRecord,
	aborted *atomic.Bool,
	emit func(*swifttypes.ResultRecord),
) {
	fail := func(err error) {
		finish(rec, err)
		emit(rec)
		if o.FailFast {
			aborted.Store(true)
		}
	}

	segContainer := segment.Container(container, o.SegmentContainer)
	prefix := segment.Prefix(spec.Object, mtime, size, o.SegmentSize)
	plan := segment.Plan(prefix, size, o.SegmentSize)

	uploaded := make([]segment.Uploaded, len(plan))
	var failures int32
	var wg sync.WaitGroup

	for _, sg := range plan {
		if o.FailFast && (aborted.Load() || atomic.LoadInt32(&failures) > 0) {
			atomic.AddInt32(&failures, 1)
			break
		}

		open, err := openSegmentSource(spec, sg)
		if err != nil {
			atomic.AddInt32(&failures, 1)
			srec := newRecord(swifttypes.ActionUploadSegment, segContainer, sg.Name)
			srec.SegmentIndex = sg.Index
			finish(srec, errors.NewObjectError("upload segment", segContainer, sg.Name, err))
			emit(srec)
			// A stream source cannot be advanced past a failed read.
			if spec.Reader != nil {
				break
			}
			continue
		}

		wg.Add(1)
		job := pool.Job{
			Action:    swifttypes.ActionUploadSegment,
			Container: segContainer,
			Object:    sg.Name,
			Run: func(jctx context.Context, jconn swiftapi.Connection, jemit func(*swifttypes.ResultRecord)) {
				defer wg.Done()
				srec := newRecord(swifttypes.ActionUploadSegment, segContainer, sg.Name)
				srec.SegmentIndex = sg.Index

				var res *swiftapi.PutResult
				n, err := retry.Do(jctx, o.Retries, func() error {
					body, closeBody, err := open()
					if err != nil {
						return err
					}
					defer closeBody()
					r, e := jconn.PutObject(jctx, segContainer, sg.Name, body, nil)
					if e == nil {
						res = r
					}
					return e
				})
				srec.Attempts = n
				if err != nil {
					atomic.AddInt32(&failures, 1)
					if o.FailFast {
						aborted.Store(true)
					}
					finish(srec, errors.NewObjectError("upload segment", segContainer, sg.Name, err))
					jemit(srec)
					return
				}

				uploaded[sg.Index] = segment.Uploaded{
					Index: sg.Index,
					Path:  "/" + segContainer + "/" + sg.Name,
					ETag:  res.ETag,
					Size:  sg.Length,
				}
				srec.ETag = res.ETag
				srec.BytesTransferred = sg.Length
				finish(srec, nil)
				jemit(srec)
			},
		}
		if err := segMgr.Enqueue(job); err != nil {
			wg.Done()
			atomic.AddInt32(&failures, 1)
			break
		}
	}
	wg.Wait()

	if n := atomic.LoadInt32(&failures); n > 0 {
		fail(errors.NewObjectError("upload", container, spec.Object, errors.ErrSegmentUpload).
			WithMessage(strconv.Itoa(int(n)) + " of " + strconv.Itoa(len(plan)) + " segments failed"))
		return
	}

	contentType := detectContentType(spec, false)
	headers := objectHeaders(o, mtime, contentType)
	putOpts := &swiftapi.PutObjectOptions{Headers: headers}

	var body []byte
	if o.UseSLO {
		var err error
		body, err = segment.BuildManifest(uploaded)
		if err != nil {
			fail(err)
			return
		}
		putOpts.StaticManifest = true
	} else {
		headers[swiftapi.HeaderObjectManifest] = segContainer + "/" + prefix
	}

	var res *swiftapi.PutResult
	n, err := retry.Do(ctx, o.Retries, func() error {
		r, e := conn.PutObject(ctx, container, spec.Object, bytes.NewReader(body), putOpts)
		if e == nil {
			res = r
		}
		return e
	})
	rec.Attempts = n
	if err != nil {
		fail(errors.NewObjectError("upload", container, spec.Object, err).
			WithMessage("manifest write failed"))
		return
	}

	rec.ETag = res.ETag
	rec.BytesTransferred = size
	finish(rec, nil)
	emit(rec)

	keep := make(map[string]bool, len(plan))
	for _, sg := range plan {
		keep[segContainer+"/"+sg.Name] = true
	}
	s.cleanupSegments(segMgr, oldSegments, keep, o)
}

// cleanupSegments enqueues delete jobs for every old segment reference not
// present in keep. A segment that is already gone counts as deleted.
func (s *Service) cleanupSegments(
	segMgr *pool.Manager,
	oldSegments []string,
	keep map[string]bool,
	o swifttypes.Options,
) {
	for _, ref := range oldSegments {
		if keep[ref] {
			continue
		}
		c, name := segment.SplitRef(ref)
		if c == "" || name == "" {
			continue
		}
		job := pool.Job{
			Action:    swifttypes.ActionDeleteSegment,
			Container: c,
			Object:    name,
			Run: func(jctx context.Context, jconn swiftapi.Connection, jemit func(*swifttypes.ResultRecord)) {
				srec := newRecord(swifttypes.ActionDeleteSegment, c, name)
				n, err := retry.Do(jctx, o.Retries, func() error {
					return jconn.DeleteObject(jctx, c, name)
				})
				srec.Attempts = n
				if err != nil && !errors.IsNotFound(err) {
					finish(srec, errors.NewObjectError("delete segment", c, name, err))
				} else {
					finish(srec, nil)
				}
				jemit(srec)
			},
		}
		if err := segMgr.Enqueue(job); err != nil {
			s.log.Warn("stale segment cleanup dropped",
				zap.String("segment", ref), zap.Error(err))
			return
		}
	}
}

// largeObjectSegments resolves the segment references behind a large
// object: the static manifest is fetched and parsed, a dynamic manifest's
// prefix is listed. References come back as container/name, and an empty
// result means the object is not a large object.
func largeObjectSegments(
	ctx context.Context,
	conn swiftapi.Connection,
	container, object string,
	info *swiftapi.ObjectInfo,
	retries int,
) ([]string, error) {
	switch {
	case info.StaticManifest:
		var body []byte
		_, err := retry.Do(ctx, retries, func() error {
			rc, _, e := conn.GetObject(ctx, container, object, &swiftapi.GetObjectOptions{Manifest: true})
			if e != nil {
				return e
			}
			defer rc.Close()
			body, e = io.ReadAll(rc)
			return e
		})
		if err != nil {
			return nil, err
		}
		entries, err := segment.ParseManifest(body)
		if err != nil {
			return nil, err
		}
		refs := make([]string, 0, len(entries))
		for _, e := range entries {
			if c, name := segment.SplitRef(e.Path); c != "" && name != "" {
				refs = append(refs, c+"/"+name)
			}
		}
		return refs, nil

	case info.ObjectManifest != "":
		c, p := segment.SplitRef(info.ObjectManifest)
		records, err := listAllObjects(ctx, conn, c, swiftapi.ListOptions{Prefix: p}, retries)
		if err != nil {
			return nil, err
		}
		refs := make([]string, 0, len(records))
		for _, r := range records {
			refs = append(refs, c+"/"+r.Name)
		}
		return refs, nil
	}
	return nil, nil
}

// listAllObjects walks a container listing page by page until a short page
// ends it, retrying each page call independently.
func listAllObjects(
	ctx context.Context,
	conn swiftapi.Connection,
	container string,
	opts swiftapi.ListOptions,
	retries int,
) ([]swiftapi.ObjectRecord, error) {
	var all []swiftapi.ObjectRecord
	for {
		var page []swiftapi.ObjectRecord
		_, err := retry.Do(ctx, retries, func() error {
			p, e := conn.GetContainer(ctx, container, &opts)
			if e == nil {
				page = p
			}
			return e
		})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)

		last := page[len(page)-1]
		if last.Name != "" {
			opts.Marker = last.Name
		} else {
			opts.Marker = last.Subdir
		}
		if opts.Limit > 0 && len(page) < opts.Limit {
			return all, nil
		}
	}
}

// uploadSkippable applies the freshness shortcuts against the stored
// object. It reports whether the upload can be skipped and, when it can,
// the entity tag to report.
func uploadSkippable(
	spec swifttypes.UploadSpec,
	existing *swiftapi.ObjectInfo,
	o swifttypes.Options,
	size int64,
	mtime string,
	dirMarker bool,
) (bool, string) {
	if dirMarker {
		if o.Changed && existing.ContentType == swiftapi.DirMarkerContentType && existing.ContentLength == 0 {
			return true, existing.ETag
		}
		return false, ""
	}

	if o.Changed && existing.ContentLength == size && existing.MTime != "" && existing.MTime == mtime {
		return true, existing.ETag
	}

	// Checksum comparison only holds for plain objects; a large object's
	// entity tag is not the md5 of its concatenated body.
	if o.SkipIdentical && spec.Path != "" &&
		!existing.StaticManifest && existing.ObjectManifest == "" {
		if sum, err := fileMD5(spec.Path); err == nil && sum == existing.ETag {
			return true, sum
		}
	}
	return false, ""
}

// resolveSource stats the upload source, returning its size, the
// modification time header value, and whether this is a directory marker.
func resolveSource(spec swifttypes.UploadSpec) (int64, string, bool, error) {
	switch {
	case spec.Path != "":
		fi, err := os.Stat(spec.Path)
		if err != nil {
			return 0, "", false, err
		}
		if fi.IsDir() {
			return 0, formatMTime(fi.ModTime()), true, nil
		}
		return fi.Size(), formatMTime(fi.ModTime()), false, nil
	case spec.Reader != nil:
		return spec.Size, formatMTime(time.Now()), false, nil
	default:
		return 0, formatMTime(time.Now()), spec.DirMarker, nil
	}
}

func uploadAction(spec swifttypes.UploadSpec) swifttypes.ActionKind {
	if spec.DirMarker && spec.Path == "" && spec.Reader == nil {
		return swifttypes.ActionCreateDirMarker
	}
	return swifttypes.ActionUploadObject
}

func openWholeSource(spec swifttypes.UploadSpec) (io.Reader, func(), error) {
	switch {
	case spec.Path != "":
		f, err := os.Open(spec.Path)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { f.Close() }, nil
	case spec.Reader != nil:
		return spec.Reader, func() {}, nil
	default:
		return bytes.NewReader(nil), func() {}, nil
	}
}

// openSegmentSource returns a re-openable view of one segment's byte range.
// File sources reopen and seek per attempt; stream sources are buffered
// once, here, in source order.
func openSegmentSource(spec swifttypes.UploadSpec, sg segment.Segment) (func() (io.Reader, func(), error), error) {
	if spec.Path != "" {
		path := spec.Path
		return func() (io.Reader, func(), error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, nil, err
			}
			if _, err := f.Seek(sg.Offset, io.SeekStart); err != nil {
				f.Close()
				return nil, nil, err
			}
			return io.LimitReader(f, sg.Length), func() { f.Close() }, nil
		}, nil
	}

	buf := make([]byte, sg.Length)
	if _, err := io.ReadFull(spec.Reader, buf); err != nil {
		return nil, err
	}
	return func() (io.Reader, func(), error) {
		return bytes.NewReader(buf), func() {}, nil
	}, nil
}

func detectContentType(spec swifttypes.UploadSpec, dirMarker bool) string {
	if dirMarker {
		return swiftapi.DirMarkerContentType
	}
	if spec.Path != "" {
		if mt, err := mimetype.DetectFile(spec.Path); err == nil {
			return mt.String()
		}
	}
	return ""
}

// objectHeaders assembles the write headers: extra headers, user metadata,
// the source modification time, and the content type.
func objectHeaders(o swifttypes.Options, mtime, contentType string) map[string]string {
	h := make(map[string]string, len(o.Header)+len(o.Meta)+2)
	for k, v := range o.Header {
		h[k] = v
	}
	for k, v := range o.Meta {
		h[swiftapi.HeaderObjectMetaPrefix+k] = v
	}
	if mtime != "" {
		h[swiftapi.HeaderMTime] = mtime
	}
	if contentType != "" {
		h["Content-Type"] = contentType
	}
	return h
}

// formatMTime renders a modification time the way stored objects carry it,
// as fractional epoch seconds.
func formatMTime(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 6, 64)
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sum := md5.New()
	if _, err := io.Copy(sum, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}

// sourceReader counts body bytes and optionally feeds a checksum as the
// transport consumes the source.
type sourceReader struct {
	r   io.Reader
	n   int64
	sum hash.Hash
}

func (sr *sourceReader) Read(p []byte) (int, error) {
	n, err := sr.r.Read(p)
	sr.n += int64(n)
	if sr.sum != nil && n > 0 {
		sr.sum.Write(p[:n])
	}
	return n, err
}

func newRecord(action swifttypes.ActionKind, container, object string) *swifttypes.ResultRecord {
	return &swifttypes.ResultRecord{
		Action:    action,
		Container: container,
		Object:    object,
		StartTime: time.Now(),
		Attempts:  1,
	}
}

func finish(rec *swifttypes.ResultRecord, err error) {
	rec.FinishTime = time.Now()
	rec.Success = err == nil
	rec.Error = err
}

func invalidSpecRecord(container string, spec swifttypes.UploadSpec, err error) *swifttypes.ResultRecord {
	rec := newRecord(uploadAction(spec), container, spec.Object)
	rec.Path = spec.Path
	finish(rec, err)
	return rec
}
