package identity

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

// Compare orders labels by (kind != article, number, rank). Attachments are
// ordered among themselves by designator: numeric designators first, then
// roman numerals by value, then any other designator alphabetically. Single
// letters other than I, V and X count as letters, so A, B, C, D stay in
// alphabetical order.
func Compare(a, b ArticleLabel) int {
	if c := cmp.Compare(kindOrder(a.Kind), kindOrder(b.Kind)); c != 0 {
		return c
	}
	if a.Kind == catalog.ContentKindAttachment {
		return compareDesignators(a.Designator, b.Designator)
	}
	if c := cmp.Compare(a.Number, b.Number); c != 0 {
		return c
	}
	return cmp.Compare(a.Rank, b.Rank)
}

// Sort orders labels in place. Equal labels keep their relative order.
func Sort(labels []ArticleLabel) {
	slices.SortStableFunc(labels, Compare)
}

// SortReferences orders navigation references by the identity of their label,
// keeping discovery order within one identity.
func SortReferences(refs []catalog.RawReference) {
	slices.SortStableFunc(refs, func(a, b catalog.RawReference) int {
		return Compare(ParseLabel(a.Label), ParseLabel(b.Label))
	})
}

// SortArticles orders stored rows by canonical identity, base row first and
// updates by ascending sequence.
func SortArticles(rows []catalog.Article) {
	slices.SortStableFunc(rows, func(a, b catalog.Article) int {
		if c := Compare(ParseLabel(a.CanonicalNumber), ParseLabel(b.CanonicalNumber)); c != 0 {
			return c
		}
		return cmp.Compare(sequenceOf(a), sequenceOf(b))
	})
}

func sequenceOf(a catalog.Article) int {
	if a.UpdateSequence == nil {
		return -1
	}
	return *a.UpdateSequence
}

func kindOrder(kind catalog.ContentKind) int {
	if kind == catalog.ContentKindArticle {
		return 0
	}
	return 1
}

const (
	designatorNumeric = iota
	designatorRoman
	designatorAlpha
)

func designatorKey(d string) (class int, value int, text string) {
	text = strings.ToLower(d)
	if n, err := strconv.Atoi(text); err == nil {
		return designatorNumeric, n, text
	}
	if v := romanValue(text); v > 0 && (len(text) > 1 || strings.ContainsAny(text, "ivx")) {
		return designatorRoman, v, text
	}
	return designatorAlpha, 0, text
}

func compareDesignators(a, b string) int {
	ca, va, ta := designatorKey(a)
	cb, vb, tb := designatorKey(b)
	if c := cmp.Compare(ca, cb); c != 0 {
		return c
	}
	if c := cmp.Compare(va, vb); c != 0 {
		return c
	}
	return cmp.Compare(ta, tb)
}

var romanDigits = map[rune]int{
	'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000,
}

var romanTable = []struct {
	value  int
	symbol string
}{
	{1000, "m"}, {900, "cm"}, {500, "d"}, {400, "cd"},
	{100, "c"}, {90, "xc"}, {50, "l"}, {40, "xl"},
	{10, "x"}, {9, "ix"}, {5, "v"}, {4, "iv"}, {1, "i"},
}

// romanValue returns the value of a well-formed lower-case roman numeral, or 0.
func romanValue(s string) int {
	if s == "" {
		return 0
	}
	runes := []rune(s)
	total := 0
	for i, r := range runes {
		v, ok := romanDigits[r]
		if !ok {
			return 0
		}
		if i+1 < len(runes) && v < romanDigits[runes[i+1]] {
			total -= v
		} else {
			total += v
		}
	}
	if total <= 0 || toRoman(total) != s {
		return 0
	}
	return total
}

func toRoman(n int) string {
	var b strings.Builder
	for _, entry := range romanTable {
		for n >= entry.value {
			b.WriteString(entry.symbol)
			n -= entry.value
		}
	}
	return b.String()
}
