// Package httpconn implements the swiftapi.Connection capability over plain
// HTTP against an account/container/object storage endpoint. Backend status
// codes are classified into the engine's sentinel errors; entity tags are
// computed client-side on writes and compared against the backend's.
package httpconn

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/joel-wright/swiftbatch/errors"
	"github.com/joel-wright/swiftbatch/swiftapi"
)

// listingTimeFormat is the timestamp layout used in JSON listing bodies.
const listingTimeFormat = "2006-01-02T15:04:05.999999"

// Conn is a single authenticated connection. It is not safe for concurrent
// use; the pool guarantees each Conn is owned by exactly one worker.
type Conn struct {
	client     *http.Client
	storageURL string
	token      string
}

// New authenticates if necessary and returns a ready connection. With
// StorageURL and AuthToken both set, no auth round-trip is made.
func New(ctx context.Context, opts swiftapi.ConnectionOptions) (*Conn, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	c := &Conn{
		client:     client,
		storageURL: strings.TrimRight(opts.StorageURL, "/"),
		token:      opts.AuthToken,
	}

	if c.storageURL == "" || c.token == "" {
		if opts.AuthURL == "" {
			return nil, errors.NewError("connect", errors.ErrInvalidInput).
				WithMessage("either storage URL and token or an auth URL are required")
		}
		if err := c.authenticate(ctx, opts); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// authenticate performs a v1 auth exchange, capturing the storage URL and
// token from the response headers.
func (c *Conn) authenticate(ctx context.Context, opts swiftapi.ConnectionOptions) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.AuthURL, nil)
	if err != nil {
		return errors.NewError("auth", err)
	}
	req.Header.Set("X-Auth-User", opts.Username)
	req.Header.Set("X-Auth-Key", opts.Password)

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.NewError("auth", fmt.Errorf("%w: %v", errors.ErrConnection, err))
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewError("auth", classify(resp.StatusCode))
	}

	c.storageURL = strings.TrimRight(resp.Header.Get("X-Storage-Url"), "/")
	c.token = resp.Header.Get("X-Auth-Token")
	if c.storageURL == "" || c.token == "" {
		return errors.NewError("auth", errors.ErrAuthorization).
			WithMessage("auth response missing storage URL or token")
	}
	return nil
}

// Close releases idle transport connections.
func (c *Conn) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// PutObject writes an object body, verifying the backend's entity tag
// against the checksum computed while streaming.
func (c *Conn) PutObject(
	ctx context.Context,
	container, object string,
	body io.Reader,
	opts *swiftapi.PutObjectOptions,
) (*swiftapi.PutResult, error) {
	if opts == nil {
		opts = &swiftapi.PutObjectOptions{}
	}

	target := c.objectURL(container, object)
	if opts.StaticManifest {
		target += "?multipart-manifest=put"
	}

	hasher := md5.New()
	if body == nil {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, io.TeeReader(body, hasher))
	if err != nil {
		return nil, errors.NewObjectError("put object", container, object, err)
	}
	req.Header.Set(swiftapi.HeaderAuthToken, c.token)
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewObjectError("put object", container, object,
			fmt.Errorf("%w: %v", errors.ErrConnection, err))
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewObjectError("put object", container, object, classify(resp.StatusCode))
	}

	etag := strings.Trim(resp.Header.Get("Etag"), `"`)
	// Manifest writes return the etag of the manifest listing, not of the
	// body, so only plain writes are checked.
	if !opts.StaticManifest && etag != "" {
		if sum := hex.EncodeToString(hasher.Sum(nil)); !strings.EqualFold(sum, etag) {
			return nil, errors.NewObjectError("put object", container, object, errors.ErrChecksum).
				WithMessage(fmt.Sprintf("sent %s, backend stored %s", sum, etag))
		}
	}
	return &swiftapi.PutResult{ETag: etag}, nil
}

// GetObject streams an object body. The caller owns the returned reader.
func (c *Conn) GetObject(
	ctx context.Context,
	container, object string,
	opts *swiftapi.GetObjectOptions,
) (io.ReadCloser, *swiftapi.ObjectInfo, error) {
	target := c.objectURL(container, object)
	if opts != nil && opts.Manifest {
		target += "?multipart-manifest=get"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, errors.NewObjectError("get object", container, object, err)
	}
	req.Header.Set(swiftapi.HeaderAuthToken, c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, errors.NewObjectError("get object", container, object,
			fmt.Errorf("%w: %v", errors.ErrConnection, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp.Body)
		return nil, nil, errors.NewObjectError("get object", container, object, classify(resp.StatusCode))
	}
	return resp.Body, objectInfoFromHeaders(resp.Header), nil
}

// HeadObject probes object metadata.
func (c *Conn) HeadObject(ctx context.Context, container, object string) (*swiftapi.ObjectInfo, error) {
	resp, err := c.bare(ctx, http.MethodHead, c.objectURL(container, object), nil)
	if err != nil {
		return nil, errors.NewObjectError("head object", container, object, err)
	}
	return objectInfoFromHeaders(resp.Header), nil
}

// PostObject replaces object metadata.
func (c *Conn) PostObject(ctx context.Context, container, object string, headers map[string]string) error {
	if _, err := c.bare(ctx, http.MethodPost, c.objectURL(container, object), headers); err != nil {
		return errors.NewObjectError("post object", container, object, err)
	}
	return nil
}

// DeleteObject removes an object.
func (c *Conn) DeleteObject(ctx context.Context, container, object string) error {
	if _, err := c.bare(ctx, http.MethodDelete, c.objectURL(container, object), nil); err != nil {
		return errors.NewObjectError("delete object", container, object, err)
	}
	return nil
}

// PutContainer creates a container. Creating an existing container is not
// an error.
func (c *Conn) PutContainer(ctx context.Context, container string, headers map[string]string) error {
	if _, err := c.bare(ctx, http.MethodPut, c.containerURL(container), headers); err != nil {
		return errors.NewContainerError("put container", container, err)
	}
	return nil
}

// HeadContainer probes container metadata.
func (c *Conn) HeadContainer(ctx context.Context, container string) (*swiftapi.ContainerInfo, error) {
	resp, err := c.bare(ctx, http.MethodHead, c.containerURL(container), nil)
	if err != nil {
		return nil, errors.NewContainerError("head container", container, err)
	}
	return &swiftapi.ContainerInfo{
		ObjectCount: headerInt64(resp.Header, "X-Container-Object-Count"),
		BytesUsed:   headerInt64(resp.Header, "X-Container-Bytes-Used"),
		Metadata:    metaFromHeaders(resp.Header, swiftapi.HeaderContainerMetaPrefix),
	}, nil
}

// PostContainer replaces container metadata.
func (c *Conn) PostContainer(ctx context.Context, container string, headers map[string]string) error {
	if _, err := c.bare(ctx, http.MethodPost, c.containerURL(container), headers); err != nil {
		return errors.NewContainerError("post container", container, err)
	}
	return nil
}

// DeleteContainer removes an empty container. A non-empty container fails
// with ErrConflict.
func (c *Conn) DeleteContainer(ctx context.Context, container string) error {
	if _, err := c.bare(ctx, http.MethodDelete, c.containerURL(container), nil); err != nil {
		return errors.NewContainerError("delete container", container, err)
	}
	return nil
}

// GetContainer fetches one listing page of a container.
func (c *Conn) GetContainer(
	ctx context.Context,
	container string,
	opts *swiftapi.ListOptions,
) ([]swiftapi.ObjectRecord, error) {
	target := c.containerURL(container) + "?" + listingQuery(opts)

	var raw []struct {
		Name         string `json:"name"`
		Bytes        int64  `json:"bytes"`
		Hash         string `json:"hash"`
		ContentType  string `json:"content_type"`
		LastModified string `json:"last_modified"`
		Subdir       string `json:"subdir"`
	}
	if err := c.getJSON(ctx, target, true, &raw); err != nil {
		return nil, errors.NewContainerError("list container", container, err)
	}

	records := make([]swiftapi.ObjectRecord, 0, len(raw))
	for _, r := range raw {
		rec := swiftapi.ObjectRecord{
			Name:        r.Name,
			Bytes:       r.Bytes,
			ETag:        r.Hash,
			ContentType: r.ContentType,
			Subdir:      r.Subdir,
		}
		if r.LastModified != "" {
			rec.LastModified, _ = time.Parse(listingTimeFormat, r.LastModified)
		}
		records = append(records, rec)
	}
	return records, nil
}

// HeadAccount probes account metadata.
func (c *Conn) HeadAccount(ctx context.Context) (*swiftapi.AccountInfo, error) {
	resp, err := c.bare(ctx, http.MethodHead, c.storageURL, nil)
	if err != nil {
		return nil, errors.NewError("head account", err)
	}
	return &swiftapi.AccountInfo{
		ContainerCount: headerInt64(resp.Header, "X-Account-Container-Count"),
		ObjectCount:    headerInt64(resp.Header, "X-Account-Object-Count"),
		BytesUsed:      headerInt64(resp.Header, "X-Account-Bytes-Used"),
		Metadata:       metaFromHeaders(resp.Header, swiftapi.HeaderAccountMetaPrefix),
	}, nil
}

// PostAccount replaces account metadata.
func (c *Conn) PostAccount(ctx context.Context, headers map[string]string) error {
	if _, err := c.bare(ctx, http.MethodPost, c.storageURL, headers); err != nil {
		return errors.NewError("post account", err)
	}
	return nil
}

// GetAccount fetches one listing page of the account's containers.
func (c *Conn) GetAccount(ctx context.Context, opts *swiftapi.ListOptions) ([]swiftapi.ContainerRecord, error) {
	target := c.storageURL + "?" + listingQuery(opts)

	var records []swiftapi.ContainerRecord
	if err := c.getJSON(ctx, target, true, &records); err != nil {
		return nil, errors.NewError("list account", err)
	}
	return records, nil
}

// Capabilities issues one unauthenticated probe against the discovery
// document of the given endpoint, defaulting to the connection's own.
func (c *Conn) Capabilities(ctx context.Context, endpoint string) (map[string]any, error) {
	if endpoint == "" {
		u, err := url.Parse(c.storageURL)
		if err != nil {
			return nil, errors.NewError("capabilities", err)
		}
		endpoint = u.Scheme + "://" + u.Host + "/info"
	}

	var caps map[string]any
	if err := c.getJSON(ctx, endpoint, false, &caps); err != nil {
		return nil, errors.NewError("capabilities", err)
	}
	return caps, nil
}

// bare performs a body-less request and classifies the status code.
func (c *Conn) bare(ctx context.Context, method, target string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(swiftapi.HeaderAuthToken, c.token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrConnection, err)
	}
	drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classify(resp.StatusCode)
	}
	return resp, nil
}

func (c *Conn) getJSON(ctx context.Context, target string, authed bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if authed {
		req.Header.Set(swiftapi.HeaderAuthToken, c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrConnection, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Conn) containerURL(container string) string {
	return c.storageURL + "/" + url.PathEscape(container)
}

func (c *Conn) objectURL(container, object string) string {
	escaped := make([]string, 0, 4)
	for _, part := range strings.Split(object, "/") {
		escaped = append(escaped, url.PathEscape(part))
	}
	return c.containerURL(container) + "/" + strings.Join(escaped, "/")
}

func listingQuery(opts *swiftapi.ListOptions) string {
	q := url.Values{}
	q.Set("format", "json")
	if opts != nil {
		if opts.Marker != "" {
			q.Set("marker", opts.Marker)
		}
		if opts.Prefix != "" {
			q.Set("prefix", opts.Prefix)
		}
		if opts.Delimiter != "" {
			q.Set("delimiter", opts.Delimiter)
		}
		if opts.Limit > 0 {
			q.Set("limit", strconv.Itoa(opts.Limit))
		}
	}
	return q.Encode()
}

// classify maps a backend status code into the engine's error taxonomy.
func classify(status int) error {
	switch {
	case status == http.StatusNotFound:
		return errors.ErrNotFound
	case status == http.StatusConflict:
		return errors.ErrConflict
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.ErrAuthorization
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: status %d", errors.ErrServerBusy, status)
	default:
		return fmt.Errorf("%w: status %d", errors.ErrInvalidInput, status)
	}
}

func objectInfoFromHeaders(h http.Header) *swiftapi.ObjectInfo {
	info := &swiftapi.ObjectInfo{
		ContentType:    h.Get("Content-Type"),
		ContentLength:  headerInt64(h, "Content-Length"),
		ETag:           strings.Trim(h.Get("Etag"), `"`),
		ObjectManifest: h.Get(swiftapi.HeaderObjectManifest),
		MTime:          h.Get(swiftapi.HeaderMTime),
		Metadata:       metaFromHeaders(h, swiftapi.HeaderObjectMetaPrefix),
	}
	if v := h.Get(swiftapi.HeaderStaticLargeObject); strings.EqualFold(v, "true") {
		info.StaticManifest = true
	}
	if lm := h.Get("Last-Modified"); lm != "" {
		info.LastModified, _ = time.Parse(http.TimeFormat, lm)
	}
	return info
}

func metaFromHeaders(h http.Header, prefix string) map[string]string {
	meta := map[string]string{}
	for name, values := range h {
		if strings.HasPrefix(name, prefix) && len(values) > 0 {
			meta[strings.ToLower(strings.TrimPrefix(name, prefix))] = values[0]
		}
	}
	return meta
}

func headerInt64(h http.Header, name string) int64 {
	v, _ := strconv.ParseInt(h.Get(name), 10, 64)
	return v
}

func drain(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
		_ = body.Close()
	}
}
