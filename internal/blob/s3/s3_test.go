package s3blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

const catalogJSON = `[{"market_id":1,"market_title":"Gold vs ETH"}]`

func fakeS3(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/truemarket-data", "/truemarket-data/":
			w.WriteHeader(http.StatusOK)
		case "/truemarket-data/catalog/markets.json":
			w.Header().Set("Content-Type", "application/json")
			if r.Method == http.MethodHead {
				return
			}
			_, _ = io.WriteString(w, catalogJSON)
		default:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method != http.MethodHead {
				_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	srv := fakeS3(t)
	c, err := New(context.Background(), ClientConfig{
		Endpoint:       srv.URL,
		Region:         "us-east-1",
		Bucket:         "truemarket-data",
		AccessKey:      "test",
		SecretKey:      "test",
		ForcePathStyle: true,
	})
	require.NoError(t, err)
	return c
}

func newTestReader(t *testing.T) *Reader {
	t.Helper()
	return NewReader(newTestClient(t))
}

func TestClient_Health(t *testing.T) {
	c := newTestClient(t)
	assert.NoError(t, c.Health(context.Background()))
}

func TestReader_Get(t *testing.T) {
	r := newTestReader(t)
	body, err := r.Get(context.Background(), "catalog/markets.json")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.JSONEq(t, catalogJSON, string(data))
}

func TestReader_GetMissing(t *testing.T) {
	r := newTestReader(t)
	_, err := r.Get(context.Background(), "nope.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReader_Exists(t *testing.T) {
	r := newTestReader(t)
	ok, err := r.Exists(context.Background(), "catalog/markets.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Exists(context.Background(), "nope.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNew_RequiresBucketAndRegion(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "us-east-1"})
	assert.Error(t, err)
	_, err = New(context.Background(), ClientConfig{Bucket: "b"})
	assert.Error(t, err)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("https://s3.example.com", false))
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
}
