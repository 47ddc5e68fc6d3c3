// Package source builds and parses the addresses used by the legal database:
// document URLs, URNs and display permalinks.
package source

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL is the public endpoint of the legal database.
const DefaultBaseURL = "https://www.normattiva.it"

const (
	urnPrefix          = "urn:nir:"
	consolidatedSuffix = "!multivigente~"
)

// DocumentURL returns the year/number address of a document. The consolidated
// flag requests the rendering where every version of every article is linked.
func DocumentURL(base string, year int, number string, consolidated bool) string {
	if base == "" {
		base = DefaultBaseURL
	}
	u := fmt.Sprintf("%s/uri-res/N2Ls?%s%d;%s", strings.TrimRight(base, "/"), urnPrefix, year, number)
	if consolidated {
		u += consolidatedSuffix
	}
	return u
}

// URN is a parsed urn:nir identifier, either full
// (urn:nir:stato:legge:2023-12-01;123) or short (urn:nir:2000;13).
type URN struct {
	Raw       string
	Authority string
	ActType   string
	Date      string
	Year      int
	Number    string
}

// ParseURN parses a urn:nir identifier. Version and fragment suffixes after
// "!", "~" or "@" are ignored.
func ParseURN(raw string) (URN, error) {
	if !strings.HasPrefix(strings.ToLower(raw), urnPrefix) {
		return URN{}, fmt.Errorf("not a urn:nir identifier: %q", raw)
	}
	body := raw[len(urnPrefix):]
	if i := strings.IndexAny(body, "!~@"); i >= 0 {
		body = body[:i]
	}
	main, number, _ := strings.Cut(body, ";")
	parts := strings.Split(main, ":")

	out := URN{Raw: urnPrefix + body, Number: number}
	switch len(parts) {
	case 1:
		out.Date = parts[0]
	case 2:
		out.ActType, out.Date = parts[0], parts[1]
	default:
		out.Authority = parts[0]
		out.ActType = parts[1]
		out.Date = parts[2]
	}
	if len(out.Date) < 4 {
		return URN{}, fmt.Errorf("urn %q has no year", raw)
	}
	year, err := strconv.Atoi(out.Date[:4])
	if err != nil {
		return URN{}, fmt.Errorf("urn %q has no year: %w", raw, err)
	}
	out.Year = year
	return out, nil
}

// ActTypeName renders the dotted act type of a URN ("decreto.legislativo")
// as a title ("Decreto Legislativo").
func (u URN) ActTypeName() string {
	words := strings.FieldsFunc(u.ActType, func(r rune) bool { return r == '.' || r == '-' || r == ' ' })
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// URNFromURL extracts the urn:nir identifier embedded in a URL, if any.
func URNFromURL(rawURL string) string {
	decoded, err := url.QueryUnescape(rawURL)
	if err != nil {
		decoded = rawURL
	}
	i := strings.Index(strings.ToLower(decoded), urnPrefix)
	if i < 0 {
		return ""
	}
	urn := decoded[i:]
	if j := strings.IndexAny(urn, "!&#"); j >= 0 {
		urn = urn[:j]
	}
	return urn
}

// Resolve turns ref into an absolute URL against base.
func Resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() {
		return r.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		b, _ = url.Parse(DefaultBaseURL)
	}
	return b.ResolveReference(r).String()
}

// Permalink returns the https form of a URL, resolving relative paths against
// the public endpoint.
func Permalink(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	abs := Resolve(DefaultBaseURL+"/", rawURL)
	if strings.HasPrefix(abs, "http://") {
		return "https://" + strings.TrimPrefix(abs, "http://")
	}
	return abs
}
