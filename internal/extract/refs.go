package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

// Kinds of correlated references.
const (
	RefArticle = "article"
	RefComma   = "comma"
	RefLetter  = "letter"
	RefURL     = "url"
)

var textRefPatterns = []struct {
	kind    string
	pattern *regexp.Regexp
}{
	{RefArticle, regexp.MustCompile(`(?i)\bart\.\s*(\d+)`)},
	{RefArticle, regexp.MustCompile(`(?i)\barticol[oi]\s+(\d+)`)},
	{RefArticle, regexp.MustCompile(`(?i)\bart\s+(\d+)`)},
	{RefComma, regexp.MustCompile(`(?i)\bcomm[ai]\s+(\d+)`)},
	{RefLetter, regexp.MustCompile(`(?i)\blettera\s+([a-z])\b`)},
}

var hrefRefPattern = regexp.MustCompile(`(?i)art[^0-9]*(\d+)`)

// CorrelatedRefs scans the links inside a text container for references to
// other articles, deduplicated by (href, number) in discovery order.
func CorrelatedRefs(container *goquery.Selection) []catalog.CorrelatedRef {
	var refs []catalog.CorrelatedRef
	seen := make(map[[2]string]bool)
	add := func(ref catalog.CorrelatedRef) {
		key := [2]string{ref.Href, ref.Number}
		if seen[key] {
			return
		}
		seen[key] = true
		refs = append(refs, ref)
	}

	container.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href := strings.TrimSpace(link.AttrOr("href", ""))
		text := strings.Join(strings.Fields(link.Text()), " ")
		if href == "" || text == "" {
			return
		}
		for _, p := range textRefPatterns {
			for _, m := range p.pattern.FindAllStringSubmatch(text, -1) {
				add(catalog.CorrelatedRef{Text: text, Href: href, Number: strings.ToLower(m[1]), Kind: p.kind})
			}
		}
		if m := hrefRefPattern.FindStringSubmatch(href); m != nil {
			add(catalog.CorrelatedRef{Text: text, Href: href, Number: m[1], Kind: RefURL})
		}
	})
	return refs
}
