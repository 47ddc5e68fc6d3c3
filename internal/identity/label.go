// Package identity resolves navigation labels into canonical article
// identities and orders them.
package identity

import (
	"math"
	"strconv"
	"strings"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

// UnresolvedNumber is the sentinel number given to labels the grammar cannot
// read. It sorts after every real article number.
const UnresolvedNumber = math.MaxInt

// DefaultDesignator is used for attachments whose label names no designator.
const DefaultDesignator = "1"

// suffixes lists the Latin variant suffixes in rank order, starting at rank 1.
var suffixes = []string{
	"bis", "ter", "quater", "quinquies", "sexies",
	"septies", "octies", "novies", "decies", "undecies",
	"duodecies", "terdecies", "quaterdecies", "quinquiesdecies", "sexiesdecies",
	"septiesdecies", "octiesdecies", "noviesdecies", "vicies",
}

// viciesUnits are the words that follow "vicies" in the 21st to 29th variants.
var viciesUnits = map[string]int{
	"semel": 1, "bis": 2, "ter": 3, "quater": 4, "quinquies": 5,
	"sexies": 6, "septies": 7, "octies": 8, "novies": 9,
}

// suffixAliases maps alternative spellings onto the entry of suffixes.
var suffixAliases = map[string]string{
	"quindecies":  "quinquiesdecies",
	"sedecies":    "sexiesdecies",
	"duodevicies": "octiesdecies",
	"undevicies":  "noviesdecies",
}

var articlePrefixes = map[string]bool{
	"art":      true,
	"artt":     true,
	"articolo": true,
	"articoli": true,
}

var attachmentWords = map[string]bool{
	"allegato": true,
	"allegati": true,
}

// ArticleLabel is the typed result of parsing a navigation label.
type ArticleLabel struct {
	Raw  string
	Kind catalog.ContentKind
	// Number is the article number, or UnresolvedNumber.
	Number int
	Suffix string
	// Rank is the suffix position: 0 without suffix, 1 for bis through 19 for
	// vicies, then 20 to 28 for "vicies semel" through "vicies novies".
	Rank int
	// Designator identifies an attachment (letter, roman numeral or digits).
	Designator string
	Resolved   bool
}

// SuffixRank returns the rank of a Latin variant suffix, or 0 when s is not one.
func SuffixRank(s string) int {
	s = normalizeSuffix(s)
	for i, suffix := range suffixes {
		if suffix == s {
			return i + 1
		}
	}
	return 0
}

func normalizeSuffix(s string) string {
	s = strings.ToLower(s)
	if canonical, ok := suffixAliases[s]; ok {
		return canonical
	}
	return s
}

// looksLikeSuffix reports whether a word has the shape of a Latin numeral
// adverb ("vicies", "tricies", ...) even though it is not in the table.
func looksLikeSuffix(s string) bool {
	return len(s) > 4 && strings.HasSuffix(s, "ies")
}

// ParseLabel reads a label with the grammar
//
//	label      = attachment | article
//	attachment = ... ("allegato" | "allegati") [designator] ...
//	article    = {prefix} (number | "unico") [suffix] ...
//	prefix     = "art" | "artt" | "articolo" | "articoli"
//
// Trailing tokens after a complete article are ignored, except a suffix-shaped
// word outside the known table: such a label is returned unresolved so that it
// never merges into the plain article. Labels matching neither production come
// back unresolved, never as an error.
func ParseLabel(raw string) ArticleLabel {
	label := ArticleLabel{Raw: raw, Kind: catalog.ContentKindArticle, Number: UnresolvedNumber}
	tokens := tokenize(raw)

	for i, tok := range tokens {
		if tok.kind == tokenWord && attachmentWords[tok.text] {
			label.Kind = catalog.ContentKindAttachment
			label.Designator = DefaultDesignator
			if i+1 < len(tokens) {
				if d, ok := designator(tokens[i+1]); ok {
					label.Designator = d
				}
			}
			label.Resolved = true
			return label
		}
	}

	i := 0
	for i < len(tokens) && tokens[i].kind == tokenWord && articlePrefixes[tokens[i].text] {
		i++
	}
	if i >= len(tokens) {
		return label
	}
	switch {
	case tokens[i].kind == tokenNumber:
		n, err := strconv.Atoi(tokens[i].text)
		if err != nil {
			return label
		}
		label.Number = n
	case tokens[i].text == "unico":
		label.Number = 1
	default:
		return label
	}
	if i+1 < len(tokens) && tokens[i+1].kind == tokenWord {
		word := tokens[i+1].text
		if rank := SuffixRank(word); rank > 0 {
			label.Suffix = normalizeSuffix(word)
			label.Rank = rank
			if label.Suffix == "vicies" && i+2 < len(tokens) && tokens[i+2].kind == tokenWord {
				if unit := viciesUnits[tokens[i+2].text]; unit > 0 {
					label.Suffix += "-" + tokens[i+2].text
					label.Rank += unit
				}
			}
		} else if looksLikeSuffix(word) {
			label.Number = UnresolvedNumber
			return label
		}
	}
	label.Resolved = true
	return label
}

// AttachmentDesignator returns the designator named by an attachment label
// and whether the label names one. Labels without an attachment word report
// false.
func AttachmentDesignator(raw string) (string, bool) {
	tokens := tokenize(raw)
	for i, tok := range tokens {
		if tok.kind != tokenWord || !attachmentWords[tok.text] {
			continue
		}
		if i+1 < len(tokens) {
			if d, ok := designator(tokens[i+1]); ok {
				return d, true
			}
		}
		return DefaultDesignator, false
	}
	return "", false
}

// designator accepts digits, a single letter or a roman numeral.
func designator(tok token) (string, bool) {
	if tok.kind == tokenNumber {
		n, err := strconv.Atoi(tok.text)
		if err != nil {
			return "", false
		}
		return strconv.Itoa(n), true
	}
	if len([]rune(tok.text)) == 1 || romanValue(tok.text) > 0 {
		return strings.ToUpper(tok.text), true
	}
	return "", false
}

// Canonical renders the identity shared by all versions of an article:
// "4", "4-bis" or "Allegato-A". Unresolved labels keep their raw text with
// whitespace collapsed.
func (l ArticleLabel) Canonical() string {
	switch {
	case l.Kind == catalog.ContentKindAttachment:
		return "Allegato-" + l.Designator
	case !l.Resolved:
		return strings.Join(strings.Fields(l.Raw), " ")
	case l.Suffix != "":
		return strconv.Itoa(l.Number) + "-" + l.Suffix
	default:
		return strconv.Itoa(l.Number)
	}
}

func (l ArticleLabel) String() string {
	return l.Canonical()
}
