package gcs_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/normattiva-catalog/internal/storage/gcs"
)

func newTestClient(t *testing.T, handler http.Handler) *storage.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	require.Error(t, err)

	client := newTestClient(t, http.NotFoundHandler())
	_, err = gcs.New(client, gcs.Config{})
	require.Error(t, err)
}

func TestPutObjectUploadsWithPrefix(t *testing.T) {
	body := []byte("<html>atto</html>")
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/snapshots/o")
		assert.Equal(t, "html/2005/82/abc.html", r.URL.Query().Get("name"))

		got, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(got), string(body))

		fmt.Fprintln(w, `{"name":"html/2005/82/abc.html","bucket":"snapshots"}`)
	})

	store, err := gcs.New(newTestClient(t, handler), gcs.Config{Bucket: "snapshots", Prefix: "/html/"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "2005/82/abc.html", "text/html", bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "gs://snapshots/html/2005/82/abc.html", uri)
}

func TestPutObjectServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	store, err := gcs.New(newTestClient(t, handler), gcs.Config{Bucket: "snapshots"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "a.html", "text/html", bytes.NewReader([]byte("x")))
	assert.Error(t, err)
}

func TestPutObjectEmptyPath(t *testing.T) {
	store, err := gcs.New(newTestClient(t, http.NotFoundHandler()), gcs.Config{Bucket: "snapshots"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), " ", "text/html", bytes.NewReader(nil))
	assert.Error(t, err)
}
