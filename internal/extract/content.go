package extract

import (
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

var (
	primarySelectors   = []string{"#testoNormalizzato .bodyTesto", ".bodyTesto"}
	secondarySelectors = []string{
		"#articolo", ".articolo", ".contenutoArticolo", ".art-text",
		"#contenuto", "#containerTesto", "main", "article",
	}
	attachmentContentSelectors = []string{".bodyTesto", ".allegato", "#contenuto", ".contenuto"}
	wholePageArticleSelector   = "div.articolo, article"
)

// container is the element chosen to hold a version's text.
type container struct {
	sel  *goquery.Selection
	tier catalog.ContainerTier
	text string
}

// selectContainer walks the three extraction tiers and returns the first
// container with non-empty text. The whole page is the last resort, and its
// text may still be empty.
func selectContainer(page *goquery.Selection) container {
	if c, ok := firstWithText(page, primarySelectors); ok {
		c.tier = catalog.TierPrimary
		return c
	}
	if c, ok := firstWithText(page, secondarySelectors); ok {
		c.tier = catalog.TierSecondary
		return c
	}
	body := page.Find("body")
	if body.Length() == 0 {
		body = page
	}
	return container{sel: body, tier: catalog.TierWholePage, text: blockText(body)}
}

func firstWithText(page *goquery.Selection, selectors []string) (container, bool) {
	for _, selector := range selectors {
		var found container
		page.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if text := blockText(s); text != "" {
				found = container{sel: s, text: text}
				return false
			}
			return true
		})
		if found.sel != nil {
			return found, true
		}
	}
	return container{}, false
}

// WholePage builds versions straight from a document page that has no article
// navigation: one version per article element, or a single article "1" made
// of the whole page. Elements without text are skipped.
func WholePage(page *goquery.Document, pageURL string) []catalog.Version {
	ref := func(label string, position int) catalog.RawReference {
		return catalog.RawReference{
			Label:    label,
			URL:      pageURL,
			Hint:     catalog.VersionHint{Kind: catalog.HintCurrent},
			Kind:     catalog.ContentKindArticle,
			Position: position,
		}
	}

	var versions []catalog.Version
	page.Find(wholePageArticleSelector).Each(func(i int, s *goquery.Selection) {
		if v, ok := versionFrom(s, ref(strconv.Itoa(i+1), i), catalog.TierSecondary); ok {
			versions = append(versions, v)
		}
	})
	if len(versions) > 0 {
		return versions
	}
	c := selectContainer(page.Selection)
	if v, ok := versionFrom(c.sel, ref("1", 0), c.tier); ok {
		versions = append(versions, v)
	}
	return versions
}

func versionFrom(sel *goquery.Selection, ref catalog.RawReference, tier catalog.ContainerTier) (catalog.Version, bool) {
	full := blockText(sel)
	normalized := Normalize(full)
	if normalized == "" {
		return catalog.Version{}, false
	}
	from, to := ValidityDates(sel)
	return catalog.Version{
		Ref:            ref,
		FullText:       full,
		NormalizedText: normalized,
		CorrelatedRefs: CorrelatedRefs(sel),
		ValidFrom:      from,
		ValidTo:        to,
		SourceURL:      ref.URL,
		Tier:           tier,
	}, true
}
