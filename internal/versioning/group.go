// Package versioning assembles extracted versions into per-article chains and
// derives their lifecycle status.
package versioning

import (
	"fmt"
	"slices"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
	"github.com/JakeFAU/normattiva-catalog/internal/identity"
)

// State is the lifecycle of one canonical identity within a pipeline run.
type State int

// Group states, in the only order they may be visited.
const (
	StateDiscovered State = iota
	StateVersionsExtracted
	StateCurrentSelected
	StatePersisted
)

func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateVersionsExtracted:
		return "versions-extracted"
	case StateCurrentSelected:
		return "current-selected"
	case StatePersisted:
		return "persisted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Group collects the references and extracted versions of one canonical
// identity.
type Group struct {
	Label    identity.ArticleLabel
	Refs     []catalog.RawReference
	Versions []catalog.Version
	state    State
}

// State returns the group's current state.
func (g *Group) State() State {
	return g.state
}

// Advance moves the group to the next state. Skipping a state or moving
// backwards is an error.
func (g *Group) Advance(to State) error {
	if to != g.state+1 {
		return fmt.Errorf("group %s: illegal transition %s -> %s", g.Label.Canonical(), g.state, to)
	}
	g.state = to
	return nil
}

// SetVersions records the extracted versions and advances to
// StateVersionsExtracted.
func (g *Group) SetVersions(versions []catalog.Version) error {
	if err := g.Advance(StateVersionsExtracted); err != nil {
		return err
	}
	g.Versions = versions
	return nil
}

// GroupReferences groups navigation references by canonical identity. Groups
// come back in identity order and keep the discovery order of their refs.
func GroupReferences(refs []catalog.RawReference) []*Group {
	var groups []*Group
	index := make(map[string]*Group)
	for _, ref := range refs {
		label := identity.ParseLabel(ref.Label)
		key := label.Canonical()
		g, ok := index[key]
		if !ok {
			g = &Group{Label: label}
			index[key] = g
			groups = append(groups, g)
		}
		g.Refs = append(g.Refs, ref)
	}
	sortGroups(groups)
	return groups
}

// GroupVersions groups versions that were extracted without navigation. The
// groups start in StateVersionsExtracted.
func GroupVersions(versions []catalog.Version) []*Group {
	refs := make([]catalog.RawReference, len(versions))
	for i, v := range versions {
		refs[i] = v.Ref
	}
	groups := GroupReferences(refs)
	index := make(map[string]*Group, len(groups))
	for _, g := range groups {
		index[g.Label.Canonical()] = g
		g.state = StateVersionsExtracted
	}
	for _, v := range versions {
		g := index[identity.ParseLabel(v.Ref.Label).Canonical()]
		g.Versions = append(g.Versions, v)
	}
	return groups
}

func sortGroups(groups []*Group) {
	slices.SortStableFunc(groups, func(a, b *Group) int {
		return identity.Compare(a.Label, b.Label)
	})
}
