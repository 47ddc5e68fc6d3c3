// Package memory provides in-memory persistence for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
	"github.com/JakeFAU/normattiva-catalog/internal/identity"
)

// Repository stores documents and article chains in memory. It honors the
// same duplicate guards as the Postgres store.
type Repository struct {
	mu        sync.RWMutex
	nextDoc   int64
	nextRow   int64
	documents map[int64]catalog.Document
	articles  map[int64][]catalog.Article
}

var _ catalog.Repository = (*Repository)(nil)

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		documents: make(map[int64]catalog.Document),
		articles:  make(map[int64][]catalog.Article),
	}
}

// EnsureDocument returns the stored document matching doc by URN or by
// (number, year, act type), inserting doc when none matches.
func (r *Repository) EnsureDocument(_ context.Context, doc catalog.Document) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, stored := range r.documents {
		if sameDocument(stored, doc) {
			return id, false, nil
		}
	}
	r.nextDoc++
	doc.ID = r.nextDoc
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	r.documents[doc.ID] = doc
	return doc.ID, true, nil
}

// GetDocument returns a stored document.
func (r *Repository) GetDocument(_ context.Context, id int64) (catalog.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.documents[id]
	if !ok {
		return catalog.Document{}, fmt.Errorf("document %d: %w", id, catalog.ErrNotFound)
	}
	return doc, nil
}

// SaveChain stores the base row and its updates.
func (r *Repository) SaveChain(_ context.Context, chain catalog.Chain) ([]catalog.Article, error) {
	if err := chain.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.documents[chain.DocumentID]; !ok {
		return nil, fmt.Errorf("document %d: %w", chain.DocumentID, catalog.ErrNotFound)
	}
	for _, a := range r.articles[chain.DocumentID] {
		if a.IsBase() && a.CanonicalNumber == chain.CanonicalNumber {
			return nil, fmt.Errorf("%w: %s already stored for document %d", catalog.ErrChainInvariant, chain.CanonicalNumber, chain.DocumentID)
		}
	}

	rows := chain.Rows()
	saved := make([]catalog.Article, 0, len(rows))
	var baseID int64
	for i, row := range rows {
		r.nextRow++
		row.ID = r.nextRow
		row.DocumentID = chain.DocumentID
		if i == 0 {
			baseID = row.ID
		} else {
			id := baseID
			row.BaseArticleID = &id
		}
		saved = append(saved, row)
	}
	r.articles[chain.DocumentID] = append(r.articles[chain.DocumentID], saved...)
	return append([]catalog.Article(nil), saved...), nil
}

// ListArticles returns a copy of the document's rows in identity order.
func (r *Repository) ListArticles(_ context.Context, documentID int64) ([]catalog.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]catalog.Article(nil), r.articles[documentID]...)
	identity.SortArticles(out)
	return out, nil
}

// Close is a no-op.
func (r *Repository) Close() {}

func sameDocument(a, b catalog.Document) bool {
	if a.URN != "" && a.URN == b.URN {
		return true
	}
	return a.Number == b.Number && a.Year == b.Year && a.ActType == b.ActType
}
