package catalog

import "errors"

var (
	// ErrFetchFailure reports a network error or non-200 response.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrNoPrimaryContainer reports that no extraction tier produced text.
	ErrNoPrimaryContainer = errors.New("no primary container")
	// ErrNoNavigationFound reports a document page without article navigation.
	ErrNoNavigationFound = errors.New("no navigation found")
	// ErrEmptyVersionText reports a version whose normalized text is empty.
	ErrEmptyVersionText = errors.New("empty version text")
	// ErrDocumentNotFound reports that the source has no such document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrChainInvariant reports a version chain that must not be persisted.
	ErrChainInvariant = errors.New("chain invariant violated")
	// ErrQueueClosed reports a drained, closed queue.
	ErrQueueClosed = errors.New("queue closed")
	// ErrNotFound reports a missing stored entity.
	ErrNotFound = errors.New("not found")
)
