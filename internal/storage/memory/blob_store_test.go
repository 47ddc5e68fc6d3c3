package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "2005/82/page.html", "text/html", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://2005/82/page.html" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'C'
	stored, ok := store.Object("2005/82/page.html")
	if !ok || string(stored) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
	stored[0] = 'X'
	again, _ := store.Object("2005/82/page.html")
	if string(again) != "content" {
		t.Fatalf("expected Object to return a copy, got %q", again)
	}
	if paths := store.Paths(); len(paths) != 1 || paths[0] != "2005/82/page.html" {
		t.Fatalf("unexpected paths %v", paths)
	}
}
