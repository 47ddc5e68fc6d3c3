package catalog

import (
	"context"
	"io"
	"time"
)

// FetchResponse is the raw result of fetching one URL.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Fetcher retrieves a URL. Errors wrap ErrFetchFailure.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// DocumentStore persists documents behind the duplicate guard.
type DocumentStore interface {
	// EnsureDocument returns the id of the document matching doc's URN or its
	// (number, year, act type) triple, inserting it when none exists.
	EnsureDocument(ctx context.Context, doc Document) (id int64, created bool, err error)
	GetDocument(ctx context.Context, id int64) (Document, error)
}

// ArticleStore persists version chains.
type ArticleStore interface {
	// SaveChain writes the base row, then the update rows referencing it, as
	// one unit. It returns the stored rows with their identifiers.
	SaveChain(ctx context.Context, chain Chain) ([]Article, error)
	ListArticles(ctx context.Context, documentID int64) ([]Article, error)
}

// Repository is the full persistence port.
type Repository interface {
	DocumentStore
	ArticleStore
	Close()
}

// JobStore tracks ingestion jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	// UpdateJobStatus records a status transition. Started is stamped on the
	// first running transition and Finished on any terminal one.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string, documentID int64, counters JobCounters) error
	GetJob(ctx context.Context, id string) (Job, error)
}

// BlobStore persists raw artifacts.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher emits events to downstream collaborators.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Enricher hands persisted articles to optional classification or embedding
// collaborators.
type Enricher interface {
	Enrich(ctx context.Context, doc Document, articles []Article) error
}

// Queue transports jobs to workers.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (Job, error)
	Close()
}

// IDGenerator produces job identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
