package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

func TestParseLabelArticles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw       string
		number    int
		rank      int
		canonical string
	}{
		{"1", 1, 0, "1"},
		{"10", 10, 0, "10"},
		{"1 bis", 1, 1, "1-bis"},
		{"1-bis", 1, 1, "1-bis"},
		{"1bis", 1, 1, "1-bis"},
		{"1-ter", 1, 2, "1-ter"},
		{"Art. 1 bis", 1, 1, "1-bis"},
		{"Art. 123 bis", 123, 1, "123-bis"},
		{"art. 5 ter", 5, 2, "5-ter"},
		{"articolo 4-quater", 4, 3, "4-quater"},
		{"Art. 2 QUINQUIES", 2, 4, "2-quinquies"},
		{"7 sexies", 7, 5, "7-sexies"},
		{"7 septies", 7, 6, "7-septies"},
		{"7 octies", 7, 7, "7-octies"},
		{"7 novies", 7, 8, "7-novies"},
		{"7-decies", 7, 9, "7-decies"},
		{"Art. 2-undecies", 2, 10, "2-undecies"},
		{"2 duodecies", 2, 11, "2-duodecies"},
		{"2-terdecies", 2, 12, "2-terdecies"},
		{"2 quaterdecies", 2, 13, "2-quaterdecies"},
		{"2-quinquiesdecies", 2, 14, "2-quinquiesdecies"},
		{"2-quindecies", 2, 14, "2-quinquiesdecies"},
		{"2 sexiesdecies", 2, 15, "2-sexiesdecies"},
		{"2 sedecies", 2, 15, "2-sexiesdecies"},
		{"2-septiesdecies", 2, 16, "2-septiesdecies"},
		{"2-octiesdecies", 2, 17, "2-octiesdecies"},
		{"2-duodevicies", 2, 17, "2-octiesdecies"},
		{"2-noviesdecies", 2, 18, "2-noviesdecies"},
		{"2-vicies", 2, 19, "2-vicies"},
		{"Art. 2-vicies semel", 2, 20, "2-vicies-semel"},
		{"2 vicies ter", 2, 22, "2-vicies-ter"},
		{"Art. 4 - Disposizioni finali", 4, 0, "4"},
		{"Articolo unico", 1, 0, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got := ParseLabel(tt.raw)
			require.True(t, got.Resolved)
			assert.Equal(t, catalog.ContentKindArticle, got.Kind)
			assert.Equal(t, tt.number, got.Number)
			assert.Equal(t, tt.rank, got.Rank)
			assert.Equal(t, tt.canonical, got.Canonical())
		})
	}
}

func TestParseLabelAttachments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw        string
		designator string
	}{
		{"Allegato A", "A"},
		{"allegato b", "B"},
		{"ALLEGATO 2", "2"},
		{"Allegato IV", "IV"},
		{"Allegati", "1"},
		{"Allegato al decreto", "1"},
		{"Allegato 01", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got := ParseLabel(tt.raw)
			require.True(t, got.Resolved)
			assert.Equal(t, catalog.ContentKindAttachment, got.Kind)
			assert.Equal(t, tt.designator, got.Designator)
			assert.Equal(t, 0, got.Rank)
			assert.Equal(t, "Allegato-"+tt.designator, got.Canonical())
		})
	}
}

func TestParseLabelUnresolved(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "Preambolo", "Art.", "  Tabella   finale "} {
		got := ParseLabel(raw)
		assert.False(t, got.Resolved, raw)
		assert.Equal(t, UnresolvedNumber, got.Number, raw)
		assert.Equal(t, 0, got.Rank, raw)
		assert.Equal(t, catalog.ContentKindArticle, got.Kind, raw)
	}
	assert.Equal(t, "Tabella finale", ParseLabel("  Tabella   finale ").Canonical())
}

func TestParseLabelIgnoresUnknownSuffix(t *testing.T) {
	t.Parallel()

	got := ParseLabel("Art. 3 comma 2")
	require.True(t, got.Resolved)
	assert.Equal(t, 3, got.Number)
	assert.Empty(t, got.Suffix)
	assert.Equal(t, "3", got.Canonical())
}

func TestParseLabelUnknownLatinSuffixStaysApart(t *testing.T) {
	t.Parallel()

	got := ParseLabel("Art. 1-tricies")
	assert.False(t, got.Resolved)
	assert.Equal(t, UnresolvedNumber, got.Number)
	assert.NotEqual(t, ParseLabel("Art. 1").Canonical(), got.Canonical())
}

func TestSuffixRank(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, SuffixRank("bis"))
	assert.Equal(t, 9, SuffixRank("DECIES"))
	assert.Equal(t, 10, SuffixRank("undecies"))
	assert.Equal(t, 14, SuffixRank("quindecies"))
	assert.Equal(t, 19, SuffixRank("vicies"))
	assert.Equal(t, 0, SuffixRank("comma"))
}
