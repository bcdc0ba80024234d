package httpconn

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joel-wright/swiftbatch/errors"
	"github.com/joel-wright/swiftbatch/swiftapi"
)

const testToken = "tok-123"

func md5hex(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}

func TestAuthenticateV1(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1.0":
			assert.Equal(t, "tester", r.Header.Get("X-Auth-User"))
			assert.Equal(t, "secret", r.Header.Get("X-Auth-Key"))
			w.Header().Set("X-Storage-Url", ts.URL+"/v1/AUTH_test")
			w.Header().Set("X-Auth-Token", testToken)
		case "/v1/AUTH_test":
			assert.Equal(t, testToken, r.Header.Get(swiftapi.HeaderAuthToken))
			w.Header().Set("X-Account-Container-Count", "2")
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	conn, err := New(context.Background(), swiftapi.ConnectionOptions{
		AuthURL:  ts.URL + "/auth/v1.0",
		Username: "tester",
		Password: "secret",
	})
	require.NoError(t, err)
	defer conn.Close()

	info, err := conn.HeadAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.ContainerCount)
}

func TestAuthenticateRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := New(context.Background(), swiftapi.ConnectionOptions{
		AuthURL:  ts.URL,
		Username: "tester",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.True(t, errors.IsAuthorization(err))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), swiftapi.ConnectionOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
}

func preauth(ts *httptest.Server) swiftapi.ConnectionOptions {
	return swiftapi.ConnectionOptions{
		StorageURL: ts.URL + "/v1/AUTH_test",
		AuthToken:  testToken,
	}
}

func TestPutObjectVerifiesETag(t *testing.T) {
	body := []byte("hello world")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/AUTH_test/c/o", r.URL.Path)
		got, _ := io.ReadAll(r.Body)
		w.Header().Set("Etag", md5hex(got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	conn, err := New(context.Background(), preauth(ts))
	require.NoError(t, err)

	res, err := conn.PutObject(context.Background(), "c", "o", strings.NewReader(string(body)), nil)
	require.NoError(t, err)
	assert.Equal(t, md5hex(body), res.ETag)
}

func TestPutObjectChecksumMismatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Etag", "deadbeefdeadbeefdeadbeefdeadbeef")
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	conn, err := New(context.Background(), preauth(ts))
	require.NoError(t, err)

	_, err = conn.PutObject(context.Background(), "c", "o", strings.NewReader("data"), nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrChecksum))
}

func TestPutObjectStaticManifestSkipsETagCheck(t *testing.T) {
	var query string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Etag", `"not-a-body-md5"`)
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	conn, err := New(context.Background(), preauth(ts))
	require.NoError(t, err)

	res, err := conn.PutObject(context.Background(), "c", "o", strings.NewReader("[]"),
		&swiftapi.PutObjectOptions{StaticManifest: true})
	require.NoError(t, err)
	assert.Equal(t, "not-a-body-md5", res.ETag)
	assert.Equal(t, "multipart-manifest=put", query)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
		name   string
	}{
		{http.StatusNotFound, errors.IsNotFound, "not found"},
		{http.StatusConflict, errors.IsConflict, "conflict"},
		{http.StatusUnauthorized, errors.IsAuthorization, "unauthorized"},
		{http.StatusForbidden, errors.IsAuthorization, "forbidden"},
		{http.StatusTooManyRequests, errors.IsTransient, "rate limited"},
		{http.StatusServiceUnavailable, errors.IsTransient, "unavailable"},
		{http.StatusBadRequest, errors.IsInvalidInput, "bad request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			conn, err := New(context.Background(), preauth(ts))
			require.NoError(t, err)

			err = conn.DeleteObject(context.Background(), "c", "o")
			require.Error(t, err)
			assert.True(t, tt.check(err))
		})
	}
}

func TestGetContainerListing(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"name":"a.txt","bytes":5,"hash":"aa","content_type":"text/plain","last_modified":"2024-05-01T10:00:00.000000"},
			{"subdir":"dir/"}
		]`)
	}))
	defer ts.Close()

	conn, err := New(context.Background(), preauth(ts))
	require.NoError(t, err)

	records, err := conn.GetContainer(context.Background(), "c", &swiftapi.ListOptions{
		Marker:    "a",
		Prefix:    "p",
		Delimiter: "/",
		Limit:     100,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "a.txt", records[0].Name)
	assert.Equal(t, int64(5), records[0].Bytes)
	assert.Equal(t, "aa", records[0].ETag)
	assert.False(t, records[0].LastModified.IsZero())
	assert.Equal(t, "dir/", records[1].Subdir)

	assert.Contains(t, gotQuery, "format=json")
	assert.Contains(t, gotQuery, "marker=a")
	assert.Contains(t, gotQuery, "prefix=p")
	assert.Contains(t, gotQuery, "limit=100")
}

func TestHeadObjectParsesHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", "1024")
		w.Header().Set("Etag", "abcd")
		w.Header().Set(swiftapi.HeaderStaticLargeObject, "True")
		w.Header().Set(swiftapi.HeaderMTime, "1700000000.000000")
		w.Header().Set(swiftapi.HeaderObjectMetaPrefix+"Color", "red")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	conn, err := New(context.Background(), preauth(ts))
	require.NoError(t, err)

	info, err := conn.HeadObject(context.Background(), "c", "o")
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, "abcd", info.ETag)
	assert.True(t, info.StaticManifest)
	assert.Equal(t, "1700000000.000000", info.MTime)
	assert.Equal(t, "red", info.Metadata["color"])
}

func TestCapabilitiesDerivesInfoEndpoint(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/info", r.URL.Path)
		assert.Empty(t, r.Header.Get(swiftapi.HeaderAuthToken))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"swift":{"version":"2.33.0"},"slo":{"min_segment_size":1}}`)
	}))
	defer ts.Close()

	conn, err := New(context.Background(), preauth(ts))
	require.NoError(t, err)

	caps, err := conn.Capabilities(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, caps, "swift")
	assert.Contains(t, caps, "slo")
}

func TestObjectURLEscaping(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	conn, err := New(context.Background(), preauth(ts))
	require.NoError(t, err)

	require.NoError(t, conn.DeleteObject(context.Background(), "c", "dir/a b.txt"))
	assert.Equal(t, "/v1/AUTH_test/c/dir/a%20b.txt", gotPath)
}
