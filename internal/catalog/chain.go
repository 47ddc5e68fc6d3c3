package catalog

import "fmt"

// Chain is the assembled version history of one canonical identity: the base
// row followed by its updates in ascending sequence.
type Chain struct {
	DocumentID      int64
	CanonicalNumber string
	Kind            ContentKind
	Base            Article
	Updates         []Article
}

// Rows returns the base row followed by the updates.
func (c Chain) Rows() []Article {
	rows := make([]Article, 0, len(c.Updates)+1)
	rows = append(rows, c.Base)
	return append(rows, c.Updates...)
}

// Current returns the row marked current.
func (c Chain) Current() (Article, bool) {
	for _, row := range c.Rows() {
		if row.IsCurrent {
			return row, true
		}
	}
	return Article{}, false
}

// Validate checks the chain invariants that must hold before any row is written.
func (c Chain) Validate() error {
	if c.CanonicalNumber == "" {
		return fmt.Errorf("%w: canonical number is required", ErrChainInvariant)
	}
	if c.Base.VersionLabel != OriginalLabel {
		return fmt.Errorf("%w: base row of %s labelled %q", ErrChainInvariant, c.CanonicalNumber, c.Base.VersionLabel)
	}
	if c.Base.UpdateSequence != nil || c.Base.BaseArticleID != nil {
		return fmt.Errorf("%w: base row of %s carries update fields", ErrChainInvariant, c.CanonicalNumber)
	}
	current := 0
	prev := 0
	for _, row := range c.Rows() {
		if row.CanonicalNumber != c.CanonicalNumber || row.Kind != c.Kind {
			return fmt.Errorf("%w: row %q does not belong to %s", ErrChainInvariant, row.CanonicalNumber, c.CanonicalNumber)
		}
		if row.NormalizedText == "" {
			return fmt.Errorf("%w: empty text in %s %s", ErrChainInvariant, c.CanonicalNumber, row.VersionLabel)
		}
		if row.IsCurrent {
			current++
		}
	}
	for _, row := range c.Updates {
		if row.UpdateSequence == nil {
			return fmt.Errorf("%w: update of %s without sequence", ErrChainInvariant, c.CanonicalNumber)
		}
		seq := *row.UpdateSequence
		if seq <= prev {
			return fmt.Errorf("%w: update sequence %d of %s is not increasing", ErrChainInvariant, seq, c.CanonicalNumber)
		}
		if row.VersionLabel != UpdateLabel(seq) {
			return fmt.Errorf("%w: update %d of %s labelled %q", ErrChainInvariant, seq, c.CanonicalNumber, row.VersionLabel)
		}
		prev = seq
	}
	if current != 1 {
		return fmt.Errorf("%w: %s has %d current rows", ErrChainInvariant, c.CanonicalNumber, current)
	}
	return nil
}
