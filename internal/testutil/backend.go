// Package testutil provides test doubles for the backend capability: an
// in-memory fake backend with a call log for orchestrator tests, and a
// func-field mock connection for targeted unit tests.
package testutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/joel-wright/swiftbatch/errors"
	"github.com/joel-wright/swiftbatch/swiftapi"
)

// FakeObject is one stored object in the fake backend.
type FakeObject struct {
	Body           []byte
	ETag           string
	ContentType    string
	MTime          string
	Metadata       map[string]string
	StaticManifest bool
	ObjectManifest string
	LastModified   time.Time
}

// FakeBackend is an in-memory account shared by every connection the
// backend's Factory produces. All methods are safe for concurrent use.
// Every backend call is appended to the call log so tests can assert on
// ordering and on the absence of writes.
type FakeBackend struct {
	mu         sync.Mutex
	containers map[string]map[string]*FakeObject
	calls      []string
	conns      int32

	// Fail injects an error for matching calls. It is consulted before
	// the call touches the store; returning nil lets the call proceed.
	Fail func(op, container, object string) error

	// ConflictsBeforeContainerDelete makes DeleteContainer fail with
	// ErrConflict this many times per container even when it is empty.
	ConflictsBeforeContainerDelete int

	// CapabilitiesDoc is returned by the Capabilities probe.
	CapabilitiesDoc map[string]any

	conflictsSeen map[string]int
}

// NewFakeBackend returns an empty fake account.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		containers:    map[string]map[string]*FakeObject{},
		conflictsSeen: map[string]int{},
		CapabilitiesDoc: map[string]any{
			"swift": map[string]any{"version": "2.33.0"},
		},
	}
}

// Factory returns a ConnectionFactory producing connections bound to this
// backend, counting how many were created.
func (b *FakeBackend) Factory() swiftapi.ConnectionFactory {
	return func(ctx context.Context) (swiftapi.Connection, error) {
		atomic.AddInt32(&b.conns, 1)
		return &fakeConn{backend: b}, nil
	}
}

// FailingFactory returns a factory that always fails with err.
func FailingFactory(err error) swiftapi.ConnectionFactory {
	return func(ctx context.Context) (swiftapi.Connection, error) {
		return nil, err
	}
}

// Connections reports how many connections the factory has produced.
func (b *FakeBackend) Connections() int {
	return int(atomic.LoadInt32(&b.conns))
}

// Calls returns a copy of the call log.
func (b *FakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	copy(out, b.calls)
	return out
}

// CallsMatching returns the log entries with the given prefix, in order.
func (b *FakeBackend) CallsMatching(prefix string) []string {
	var out []string
	for _, c := range b.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// SeedContainer creates a container, optionally with objects keyed by name.
func (b *FakeBackend) SeedContainer(name string, objects map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.containerLocked(name)
	for obj, body := range objects {
		c[obj] = newObject([]byte(body), "application/octet-stream", nil)
	}
}

// SeedObject stores a fully specified object, creating the container.
func (b *FakeBackend) SeedObject(container, name string, obj *FakeObject) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if obj.ETag == "" {
		obj.ETag = md5hex(obj.Body)
	}
	if obj.LastModified.IsZero() {
		obj.LastModified = time.Now().UTC()
	}
	b.containerLocked(container)[name] = obj
}

// Object returns the stored object, or nil.
func (b *FakeBackend) Object(container, name string) *FakeObject {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.containers[container]; ok {
		return c[name]
	}
	return nil
}

// ObjectNames returns the sorted object names of a container.
func (b *FakeBackend) ObjectNames(container string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.containers[container]
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HasContainer reports whether a container exists.
func (b *FakeBackend) HasContainer(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.containers[name]
	return ok
}

func (b *FakeBackend) containerLocked(name string) map[string]*FakeObject {
	c, ok := b.containers[name]
	if !ok {
		c = map[string]*FakeObject{}
		b.containers[name] = c
	}
	return c
}

func (b *FakeBackend) record(op, container, object string) error {
	b.mu.Lock()
	entry := op
	if container != "" {
		entry += " " + container
		if object != "" {
			entry += "/" + object
		}
	}
	b.calls = append(b.calls, entry)
	fail := b.Fail
	b.mu.Unlock()

	if fail != nil {
		return fail(op, container, object)
	}
	return nil
}

func newObject(body []byte, contentType string, headers map[string]string) *FakeObject {
	obj := &FakeObject{
		Body:         body,
		ETag:         md5hex(body),
		ContentType:  contentType,
		Metadata:     map[string]string{},
		LastModified: time.Now().UTC(),
	}
	for k, v := range headers {
		lower := strings.ToLower(k)
		switch {
		case lower == strings.ToLower(swiftapi.HeaderObjectManifest):
			obj.ObjectManifest = v
		case lower == strings.ToLower(swiftapi.HeaderMTime):
			obj.MTime = v
			obj.Metadata["mtime"] = v
		case strings.HasPrefix(lower, strings.ToLower(swiftapi.HeaderObjectMetaPrefix)):
			obj.Metadata[strings.TrimPrefix(lower, strings.ToLower(swiftapi.HeaderObjectMetaPrefix))] = v
		case lower == "content-type":
			obj.ContentType = v
		}
	}
	return obj
}

func md5hex(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}

// fakeConn is one connection onto the shared fake backend.
type fakeConn struct {
	backend *FakeBackend
	closed  bool
}

func (f *fakeConn) PutObject(
	ctx context.Context,
	container, object string,
	body io.Reader,
	opts *swiftapi.PutObjectOptions,
) (*swiftapi.PutResult, error) {
	if err := f.backend.record("PUT", container, object); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &swiftapi.PutObjectOptions{}
	}

	var data []byte
	if body != nil {
		var err error
		data, err = io.ReadAll(body)
		if err != nil {
			return nil, errors.NewObjectError("put object", container, object, err)
		}
	}

	obj := newObject(data, "application/octet-stream", opts.Headers)
	if opts.StaticManifest {
		obj.StaticManifest = true
	}

	f.backend.mu.Lock()
	f.backend.containerLocked(container)[object] = obj
	f.backend.mu.Unlock()
	return &swiftapi.PutResult{ETag: obj.ETag}, nil
}

func (f *fakeConn) GetObject(
	ctx context.Context,
	container, object string,
	opts *swiftapi.GetObjectOptions,
) (io.ReadCloser, *swiftapi.ObjectInfo, error) {
	if err := f.backend.record("GET", container, object); err != nil {
		return nil, nil, err
	}

	f.backend.mu.Lock()
	obj := f.backend.containers[container][object]
	f.backend.mu.Unlock()
	if obj == nil {
		return nil, nil, errors.NewObjectError("get object", container, object, errors.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.Body)), infoFor(obj), nil
}

func (f *fakeConn) HeadObject(ctx context.Context, container, object string) (*swiftapi.ObjectInfo, error) {
	if err := f.backend.record("HEAD", container, object); err != nil {
		return nil, err
	}

	f.backend.mu.Lock()
	obj := f.backend.containers[container][object]
	f.backend.mu.Unlock()
	if obj == nil {
		return nil, errors.NewObjectError("head object", container, object, errors.ErrNotFound)
	}
	return infoFor(obj), nil
}

func (f *fakeConn) PostObject(ctx context.Context, container, object string, headers map[string]string) error {
	if err := f.backend.record("POST", container, object); err != nil {
		return err
	}

	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	obj := f.backend.containers[container][object]
	if obj == nil {
		return errors.NewObjectError("post object", container, object, errors.ErrNotFound)
	}
	for k, v := range headers {
		lower := strings.ToLower(k)
		if strings.HasPrefix(lower, strings.ToLower(swiftapi.HeaderObjectMetaPrefix)) {
			obj.Metadata[strings.TrimPrefix(lower, strings.ToLower(swiftapi.HeaderObjectMetaPrefix))] = v
		}
	}
	return nil
}

func (f *fakeConn) DeleteObject(ctx context.Context, container, object string) error {
	if err := f.backend.record("DELETE", container, object); err != nil {
		return err
	}

	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	c := f.backend.containers[container]
	if c == nil || c[object] == nil {
		return errors.NewObjectError("delete object", container, object, errors.ErrNotFound)
	}
	delete(c, object)
	return nil
}

func (f *fakeConn) PutContainer(ctx context.Context, container string, headers map[string]string) error {
	if err := f.backend.record("PUT-CONTAINER", container, ""); err != nil {
		return err
	}

	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	f.backend.containerLocked(container)
	return nil
}

func (f *fakeConn) HeadContainer(ctx context.Context, container string) (*swiftapi.ContainerInfo, error) {
	if err := f.backend.record("HEAD-CONTAINER", container, ""); err != nil {
		return nil, err
	}

	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	c, ok := f.backend.containers[container]
	if !ok {
		return nil, errors.NewContainerError("head container", container, errors.ErrNotFound)
	}
	info := &swiftapi.ContainerInfo{ObjectCount: int64(len(c)), Metadata: map[string]string{}}
	for _, obj := range c {
		info.BytesUsed += int64(len(obj.Body))
	}
	return info, nil
}

func (f *fakeConn) PostContainer(ctx context.Context, container string, headers map[string]string) error {
	if err := f.backend.record("POST-CONTAINER", container, ""); err != nil {
		return err
	}

	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	if _, ok := f.backend.containers[container]; !ok {
		return errors.NewContainerError("post container", container, errors.ErrNotFound)
	}
	return nil
}

func (f *fakeConn) DeleteContainer(ctx context.Context, container string) error {
	if err := f.backend.record("DELETE-CONTAINER", container, ""); err != nil {
		return err
	}

	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	c, ok := f.backend.containers[container]
	if !ok {
		return errors.NewContainerError("delete container", container, errors.ErrNotFound)
	}
	if len(c) > 0 {
		return errors.NewContainerError("delete container", container, errors.ErrConflict)
	}
	if f.backend.conflictsSeen[container] < f.backend.ConflictsBeforeContainerDelete {
		f.backend.conflictsSeen[container]++
		return errors.NewContainerError("delete container", container, errors.ErrConflict)
	}
	delete(f.backend.containers, container)
	return nil
}

func (f *fakeConn) GetContainer(
	ctx context.Context,
	container string,
	opts *swiftapi.ListOptions,
) ([]swiftapi.ObjectRecord, error) {
	if err := f.backend.record("LIST", container, ""); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &swiftapi.ListOptions{}
	}

	f.backend.mu.Lock()
	c, ok := f.backend.containers[container]
	if !ok {
		f.backend.mu.Unlock()
		return nil, errors.NewContainerError("list container", container, errors.ErrNotFound)
	}
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	objects := map[string]*FakeObject{}
	for n, o := range c {
		objects[n] = o
	}
	f.backend.mu.Unlock()

	sort.Strings(names)
	limit := opts.Limit
	if limit <= 0 {
		limit = 10000
	}

	var page []swiftapi.ObjectRecord
	for _, n := range names {
		if opts.Marker != "" && n <= opts.Marker {
			continue
		}
		if opts.Prefix != "" && !strings.HasPrefix(n, opts.Prefix) {
			continue
		}
		obj := objects[n]
		page = append(page, swiftapi.ObjectRecord{
			Name:         n,
			Bytes:        int64(len(obj.Body)),
			ETag:         obj.ETag,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
		})
		if len(page) >= limit {
			break
		}
	}
	return page, nil
}

func (f *fakeConn) HeadAccount(ctx context.Context) (*swiftapi.AccountInfo, error) {
	if err := f.backend.record("HEAD-ACCOUNT", "", ""); err != nil {
		return nil, err
	}

	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	info := &swiftapi.AccountInfo{
		ContainerCount: int64(len(f.backend.containers)),
		Metadata:       map[string]string{},
	}
	for _, c := range f.backend.containers {
		info.ObjectCount += int64(len(c))
		for _, obj := range c {
			info.BytesUsed += int64(len(obj.Body))
		}
	}
	return info, nil
}

func (f *fakeConn) PostAccount(ctx context.Context, headers map[string]string) error {
	return f.backend.record("POST-ACCOUNT", "", "")
}

func (f *fakeConn) GetAccount(ctx context.Context, opts *swiftapi.ListOptions) ([]swiftapi.ContainerRecord, error) {
	if err := f.backend.record("LIST-ACCOUNT", "", ""); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &swiftapi.ListOptions{}
	}

	f.backend.mu.Lock()
	names := make([]string, 0, len(f.backend.containers))
	for n := range f.backend.containers {
		names = append(names, n)
	}
	counts := map[string]int64{}
	bytesUsed := map[string]int64{}
	for n, c := range f.backend.containers {
		counts[n] = int64(len(c))
		for _, obj := range c {
			bytesUsed[n] += int64(len(obj.Body))
		}
	}
	f.backend.mu.Unlock()

	sort.Strings(names)
	limit := opts.Limit
	if limit <= 0 {
		limit = 10000
	}

	var page []swiftapi.ContainerRecord
	for _, n := range names {
		if opts.Marker != "" && n <= opts.Marker {
			continue
		}
		if opts.Prefix != "" && !strings.HasPrefix(n, opts.Prefix) {
			continue
		}
		page = append(page, swiftapi.ContainerRecord{Name: n, Count: counts[n], Bytes: bytesUsed[n]})
		if len(page) >= limit {
			break
		}
	}
	return page, nil
}

func (f *fakeConn) Capabilities(ctx context.Context, endpoint string) (map[string]any, error) {
	if err := f.backend.record("CAPABILITIES", "", ""); err != nil {
		return nil, err
	}
	return f.backend.CapabilitiesDoc, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func infoFor(obj *FakeObject) *swiftapi.ObjectInfo {
	meta := map[string]string{}
	for k, v := range obj.Metadata {
		meta[k] = v
	}
	return &swiftapi.ObjectInfo{
		ContentType:    obj.ContentType,
		ContentLength:  int64(len(obj.Body)),
		ETag:           obj.ETag,
		LastModified:   obj.LastModified,
		MTime:          obj.MTime,
		StaticManifest: obj.StaticManifest,
		ObjectManifest: obj.ObjectManifest,
		Metadata:       meta,
	}
}

// ManifestPaths decodes the static manifest stored at container/object and
// returns the listed segment paths in manifest order.
func (b *FakeBackend) ManifestPaths(container, object string) ([]string, error) {
	obj := b.Object(container, object)
	if obj == nil {
		return nil, fmt.Errorf("no manifest object %s/%s", container, object)
	}
	var entries []struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(obj.Body, &entries); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return paths, nil
}

var _ swiftapi.Connection = (*fakeConn)(nil)
