package snapshot

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
	"github.com/JakeFAU/normattiva-catalog/internal/storage/memory"
)

type failingStore struct{}

func (failingStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func TestArchiveWritesContentAddressedObject(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	archiver := New(store, "/html/")
	doc := catalog.Document{Year: 2005, Number: "82"}

	uri, err := archiver.Archive(context.Background(), doc, []byte("hello world"))
	require.NoError(t, err)

	want := "html/2005/82/b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9.html"
	assert.Equal(t, "memory://"+want, uri)
	body, ok := store.Object(want)
	require.True(t, ok)
	assert.Equal(t, "hello world", string(body))
}

func TestObjectPathSanitizesNumber(t *testing.T) {
	t.Parallel()

	p := ObjectPath("", catalog.Document{Year: 1990, Number: "241/bis"}, nil)
	assert.Equal(t, "1990/241-bis/e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855.html", p)

	p = ObjectPath("x", catalog.Document{Year: 1990}, nil)
	assert.Contains(t, p, "x/1990/unknown/")
}

func TestArchiveWrapsStoreErrors(t *testing.T) {
	t.Parallel()

	_, err := New(failingStore{}, "").Archive(context.Background(), catalog.Document{Year: 1, Number: "1"}, []byte("x"))
	require.ErrorContains(t, err, "archive snapshot")
}
