package identity

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

// UpdateMarkerParam is the query flag the source sets on update views.
const UpdateMarkerParam = "imUpdate"

var (
	updateWords   = map[string]bool{"agg": true, "aggiornamento": true}
	originalWords = map[string]bool{"orig": true, "originale": true}
)

// IsVersionLabel reports whether a link label names a version ("orig.",
// "agg.2") rather than an article.
func IsVersionLabel(label string) bool {
	tokens := tokenize(label)
	if len(tokens) == 0 || tokens[0].kind != tokenWord {
		return false
	}
	return updateWords[tokens[0].text] || originalWords[tokens[0].text]
}

// ParseVersionHint classifies a version link. "agg.N" is update N and "orig."
// is the original. A link without an explicit label whose URL carries the
// update marker is an update without a number; anything else is the live view.
func ParseVersionHint(label, rawURL string) catalog.VersionHint {
	tokens := tokenize(label)
	if len(tokens) > 0 && tokens[0].kind == tokenWord {
		switch {
		case updateWords[tokens[0].text]:
			hint := catalog.VersionHint{Kind: catalog.HintUpdate}
			if len(tokens) > 1 && tokens[1].kind == tokenNumber {
				if n, err := strconv.Atoi(tokens[1].text); err == nil && n > 0 {
					hint.Sequence = n
				}
			}
			return hint
		case originalWords[tokens[0].text]:
			return catalog.VersionHint{Kind: catalog.HintOriginal}
		}
	}
	if hasUpdateMarker(rawURL) {
		return catalog.VersionHint{Kind: catalog.HintUpdate}
	}
	return catalog.VersionHint{Kind: catalog.HintCurrent}
}

func hasUpdateMarker(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.Contains(rawURL, UpdateMarkerParam+"=true")
	}
	return strings.EqualFold(u.Query().Get(UpdateMarkerParam), "true")
}
