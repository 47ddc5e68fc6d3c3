// Package snapshot archives raw document pages so extraction runs can be
// audited and replayed.
package snapshot

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

// Archiver writes root pages to a blob store, addressed by content hash.
type Archiver struct {
	store  catalog.BlobStore
	prefix string
}

// New builds an Archiver. The prefix is prepended to every object path.
func New(store catalog.BlobStore, prefix string) *Archiver {
	return &Archiver{store: store, prefix: strings.Trim(prefix, "/")}
}

// Archive stores body under <prefix>/<year>/<number>/<sha256>.html and
// returns the store's URI for it.
func (a *Archiver) Archive(ctx context.Context, doc catalog.Document, body []byte) (string, error) {
	if a == nil || a.store == nil {
		return "", fmt.Errorf("snapshot archiver is not configured")
	}
	uri, err := a.store.PutObject(ctx, ObjectPath(a.prefix, doc, body), "text/html; charset=utf-8", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("archive snapshot: %w", err)
	}
	return uri, nil
}

// ObjectPath returns the object path of a page snapshot.
func ObjectPath(prefix string, doc catalog.Document, body []byte) string {
	sum := sha256.Sum256(body)
	number := strings.NewReplacer("/", "-", " ", "_").Replace(doc.Number)
	if number == "" {
		number = "unknown"
	}
	return path.Join(prefix, fmt.Sprint(doc.Year), number, hex.EncodeToString(sum[:])+".html")
}
