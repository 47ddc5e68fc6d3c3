// Package fallback re-fetches pages with the headless renderer when the plain
// response looks like an unrendered shell.
package fallback

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

// DefaultBodyLengthThreshold is the size under which a script-heavy page is
// treated as a shell.
const DefaultBodyLengthThreshold = 2048

// Heuristic decides whether a plain response needs rendering.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = DefaultBodyLengthThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

// renderedMarkers are fragments only present once the document tree or the
// article text has been rendered server side.
var renderedMarkers = [][]byte{
	[]byte("showArticle("),
	[]byte("bodyTesto"),
	[]byte("Provvedimento non trovato"),
}

var shellMarkers = [][]byte{
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
	[]byte("ng-app"),
}

// ShouldRender reports whether resp should be fetched again headlessly.
func (h *Heuristic) ShouldRender(resp catalog.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	body := resp.Body
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	for _, marker := range renderedMarkers {
		if bytes.Contains(body, marker) {
			return false
		}
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	for _, marker := range shellMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptDensityHigh reports whether script elements cover at least a quarter
// of the body.
func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		tagEnd := strings.IndexByte(lower[start:], '>')
		if tagEnd == -1 {
			covered += total - start
			break
		}
		contentStart := start + tagEnd + 1
		next := total
		if end := strings.Index(lower[contentStart:], closeTag); end != -1 {
			next = contentStart + end + len(closeTag)
		}
		covered += next - start
		pos = next
	}
	return covered*100/total >= 25
}
