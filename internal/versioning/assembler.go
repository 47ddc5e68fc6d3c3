package versioning

import (
	"cmp"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

// Assembler turns a group's extracted versions into a chain. It is the only
// place that decides which version is the base and which one is current.
type Assembler struct {
	logger *zap.Logger
}

// NewAssembler builds an Assembler.
func NewAssembler(logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{logger: logger}
}

type candidate struct {
	version catalog.Version
	seq     int
	live    bool
}

// Assemble builds the chain of a group in StateVersionsExtracted and advances
// it to StateCurrentSelected. It reports false, without error, for a group
// with no usable versions; such a group produces no rows.
//
// The base row is the first original version. Without one, the live view is
// promoted to the base, and without a live view the earliest update is. Live
// views that are not the base are redundant when numbered updates exist,
// otherwise they become the next update unless their text repeats a row
// already in the chain. Updates without a number are sequenced after the
// highest numbered one in discovery order; a repeated sequence keeps its
// first version.
//
// The current row is the live view when it was stored as an update, else the
// highest update, else the base.
func (a *Assembler) Assemble(documentID int64, g *Group) (catalog.Chain, bool, error) {
	if g.State() != StateVersionsExtracted {
		return catalog.Chain{}, false, fmt.Errorf("assemble %s: group is %s", g.Label.Canonical(), g.State())
	}
	canonical := g.Label.Canonical()
	logger := a.logger.With(zap.String("article", canonical), zap.Int64("document_id", documentID))

	var (
		originals []catalog.Version
		lives     []catalog.Version
		updates   []candidate
	)
	for _, v := range g.Versions {
		if v.NormalizedText == "" {
			continue
		}
		switch v.Ref.Hint.Kind {
		case catalog.HintOriginal:
			originals = append(originals, v)
		case catalog.HintUpdate:
			updates = append(updates, candidate{version: v, seq: v.Ref.Hint.Sequence})
		default:
			lives = append(lives, v)
		}
	}
	if len(originals) > 1 {
		logger.Warn("multiple original versions, keeping the first", zap.Int("count", len(originals)))
	}

	var base *catalog.Version
	switch {
	case len(originals) > 0:
		base = &originals[0]
	case len(lives) > 0:
		base = &lives[0]
		lives = lives[1:]
	}

	numbered := len(updates) > 0
	for _, live := range lives {
		switch {
		case numbered:
			logger.Debug("live view redundant with numbered updates")
		case base != nil && live.NormalizedText == base.NormalizedText,
			repeatsText(updates, live.NormalizedText):
			logger.Debug("live view repeats a stored version")
		default:
			updates = append(updates, candidate{version: live, live: true})
		}
	}
	updates = assignSequences(updates, logger)

	if base == nil {
		if len(updates) == 0 {
			logger.Info("no usable versions, skipping article")
			return catalog.Chain{}, false, nil
		}
		logger.Warn("no original version captured, promoting earliest update", zap.Int("sequence", updates[0].seq))
		promoted := updates[0].version
		base = &promoted
		updates = updates[1:]
	}

	current := len(updates) - 1
	for i, c := range updates {
		if c.live {
			current = i
		}
	}

	chain := catalog.Chain{
		DocumentID:      documentID,
		CanonicalNumber: canonical,
		Kind:            g.Label.Kind,
		Base:            toArticle(documentID, g, *base, catalog.OriginalLabel, nil),
	}
	for i, c := range updates {
		seq := c.seq
		row := toArticle(documentID, g, c.version, catalog.UpdateLabel(seq), &seq)
		row.IsCurrent = i == current
		chain.Updates = append(chain.Updates, row)
	}
	chain.Base.IsCurrent = current < 0

	currentRow, _ := chain.Current()
	chain.Base.CurrentText = currentRow.NormalizedText
	ApplyChainStatus(&chain)

	if err := chain.Validate(); err != nil {
		return catalog.Chain{}, false, fmt.Errorf("assemble %s: %w", canonical, err)
	}
	if err := g.Advance(StateCurrentSelected); err != nil {
		return catalog.Chain{}, false, err
	}
	return chain, true, nil
}

func assignSequences(updates []candidate, logger *zap.Logger) []candidate {
	highest := 0
	for _, c := range updates {
		highest = max(highest, c.seq)
	}
	seen := make(map[int]bool, len(updates))
	out := make([]candidate, 0, len(updates))
	for _, c := range updates {
		if c.seq == 0 {
			continue
		}
		if seen[c.seq] {
			logger.Warn("duplicate update sequence, keeping the first", zap.Int("sequence", c.seq))
			continue
		}
		seen[c.seq] = true
		out = append(out, c)
	}
	for _, c := range updates {
		if c.seq != 0 {
			continue
		}
		highest++
		c.seq = highest
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b candidate) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

func repeatsText(updates []candidate, text string) bool {
	for _, c := range updates {
		if c.version.NormalizedText == text {
			return true
		}
	}
	return false
}

func toArticle(documentID int64, g *Group, v catalog.Version, label string, seq *int) catalog.Article {
	return catalog.Article{
		DocumentID:      documentID,
		CanonicalNumber: g.Label.Canonical(),
		Kind:            g.Label.Kind,
		VersionLabel:    label,
		UpdateSequence:  seq,
		FullText:        v.FullText,
		NormalizedText:  v.NormalizedText,
		CorrelatedRefs:  v.CorrelatedRefs,
		Attachments:     v.Attachments,
		ValidFrom:       v.ValidFrom,
		ValidTo:         v.ValidTo,
		SourceURL:       v.SourceURL,
	}
}
