package versioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

func TestGroupReferencesKeepsHighSuffixesApart(t *testing.T) {
	t.Parallel()

	groups := GroupVersions([]catalog.Version{
		version("Art. 1", "", "testo art 1"),
		version("Art. 1-undecies", "", "testo art 1-undecies"),
		version("Art. 1-quindecies", "", "testo art 1-quindecies"),
		version("Art. 1-quinquiesdecies", "agg.1", "modifica art 1-quinquiesdecies"),
	})
	require.Len(t, groups, 3)
	assert.Equal(t, "1", groups[0].Label.Canonical())
	assert.Equal(t, "1-undecies", groups[1].Label.Canonical())
	assert.Equal(t, "1-quinquiesdecies", groups[2].Label.Canonical())
	assert.Len(t, groups[2].Versions, 2)

	chain, ok, err := NewAssembler(nil).Assemble(7, groups[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "testo art 1", chain.Base.NormalizedText)
	assert.Empty(t, chain.Updates)
	assert.True(t, chain.Base.IsCurrent)
}

func TestGroupAdvanceRejectsReentry(t *testing.T) {
	t.Parallel()

	g := &Group{}
	require.Equal(t, StateDiscovered, g.State())

	require.Error(t, g.Advance(StateDiscovered))
	require.Error(t, g.Advance(StateCurrentSelected))
	require.Error(t, g.Advance(StatePersisted))
	assert.Equal(t, StateDiscovered, g.State())

	require.NoError(t, g.SetVersions(nil))
	require.Error(t, g.SetVersions(nil))
	require.Error(t, g.Advance(StateVersionsExtracted))
	require.Error(t, g.Advance(StatePersisted))

	require.NoError(t, g.Advance(StateCurrentSelected))
	require.NoError(t, g.Advance(StatePersisted))
	require.Error(t, g.Advance(StatePersisted))
	require.Error(t, g.Advance(StateDiscovered))
	assert.Equal(t, StatePersisted, g.State())
}
