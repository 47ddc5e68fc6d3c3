// Package extract turns document and article pages into navigation
// references, version records and document metadata.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
	"github.com/JakeFAU/normattiva-catalog/internal/identity"
	"github.com/JakeFAU/normattiva-catalog/internal/source"
)

const (
	showArticleAction = "showArticle"
	showUpdatesAction = "showUpdatesArticle"
	updateListPrefix  = "agg-"
)

var (
	showArticleCall  = regexp.MustCompile(`showArticle\(\s*['"]([^'"]+)['"]`)
	updateAnchorID   = regexp.MustCompile(`^a(\d+)-`)
	attachmentNumber = regexp.MustCompile(`(?i)allegato[\s/_=\-]*([A-Z0-9]+)`)
)

// Navigation extracts the ordered raw references of a document page: one per
// article link and one per version link ("orig.", "agg.N") found in the
// article's update list, plus attachment links found anywhere on the page.
// References are ordered by identity and deduplicated by target URL.
func Navigation(page *goquery.Document, pageURL string) ([]catalog.RawReference, error) {
	owners := updateOwners(page)

	var (
		refs        []catalog.RawReference
		seen        = make(map[string]bool)
		lastArticle string
	)
	add := func(ref catalog.RawReference) {
		if seen[ref.URL] {
			return
		}
		seen[ref.URL] = true
		ref.Position = len(refs)
		refs = append(refs, ref)
	}

	page.Find(`a[onclick*="showArticle"]`).Each(func(_ int, a *goquery.Selection) {
		m := showArticleCall.FindStringSubmatch(a.AttrOr("onclick", ""))
		if m == nil {
			return
		}
		target := source.Resolve(pageURL, m[1])
		text := linkText(a)
		if text == "" {
			return
		}
		if identity.IsVersionLabel(text) {
			owner := versionOwner(a, owners, lastArticle)
			if owner == "" {
				return
			}
			add(catalog.RawReference{
				Label:       owner,
				VersionText: text,
				URL:         target,
				Hint:        identity.ParseVersionHint(text, m[1]),
				Kind:        identity.ParseLabel(owner).Kind,
			})
			return
		}
		lastArticle = text
		add(catalog.RawReference{
			Label: text,
			URL:   target,
			Hint:  identity.ParseVersionHint(text, m[1]),
			Kind:  identity.ParseLabel(text).Kind,
		})
	})

	for _, link := range attachmentLinks(page.Selection, pageURL) {
		add(catalog.RawReference{
			Label: link.label,
			URL:   link.url,
			Hint:  catalog.VersionHint{Kind: catalog.HintCurrent},
			Kind:  catalog.ContentKindAttachment,
		})
	}

	if len(refs) == 0 {
		return nil, catalog.ErrNoNavigationFound
	}
	identity.SortReferences(refs)
	return refs, nil
}

// updateOwners maps the id of every "show updates" button to the label of
// the article link preceding it.
func updateOwners(page *goquery.Document) map[string]string {
	owners := make(map[string]string)
	last := ""
	page.Find("a[onclick]").Each(func(_ int, a *goquery.Selection) {
		onclick := a.AttrOr("onclick", "")
		switch {
		case strings.Contains(onclick, showUpdatesAction):
			if id := a.AttrOr("id", ""); id != "" && last != "" {
				owners[id] = last
			}
		case strings.Contains(onclick, showArticleAction):
			if text := linkText(a); text != "" && !identity.IsVersionLabel(text) {
				last = text
			}
		}
	})
	return owners
}

// versionOwner finds the article a version link belongs to: the owner of the
// "agg-<id>" update list containing it, else the article number encoded in
// that id, else the most recent article link.
func versionOwner(a *goquery.Selection, owners map[string]string, lastArticle string) string {
	owner := ""
	a.ParentsFiltered("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		for _, class := range strings.Fields(li.AttrOr("class", "")) {
			id, ok := strings.CutPrefix(class, updateListPrefix)
			if !ok {
				continue
			}
			if label, found := owners[id]; found {
				owner = label
				return false
			}
			if m := updateAnchorID.FindStringSubmatch(id); m != nil {
				owner = m[1]
				return false
			}
		}
		return true
	})
	if owner == "" {
		owner = lastArticle
	}
	return owner
}

type link struct {
	label string
	title string
	url   string
}

// attachmentLinks returns the links whose label or URL carries the
// attachment marker, resolved against pageURL. Links that name no designator
// are numbered per distinct URL in discovery order, skipping designators
// already named by other links, so that distinct attachments never share an
// identity.
func attachmentLinks(scope *goquery.Selection, pageURL string) []link {
	type candidate struct {
		url        string
		title      string
		designator string
		named      bool
	}
	var found []candidate
	taken := make(map[string]bool)
	scope.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		lower := strings.ToLower(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(lower, "javascript:") {
			return
		}
		text := linkText(a)
		if !strings.Contains(strings.ToLower(text), "allegat") && !strings.Contains(lower, "allegato") {
			return
		}
		d, named := attachmentDesignator(text, href)
		if named {
			taken[d] = true
		}
		found = append(found, candidate{url: source.Resolve(pageURL, href), title: text, designator: d, named: named})
	})

	links := make([]link, 0, len(found))
	assigned := make(map[string]string)
	next := 1
	for _, c := range found {
		d := c.designator
		if !c.named {
			if prev, ok := assigned[c.url]; ok {
				d = prev
			} else {
				for taken[strconv.Itoa(next)] {
					next++
				}
				d = strconv.Itoa(next)
				taken[d] = true
				assigned[c.url] = d
			}
		}
		links = append(links, link{label: "Allegato " + d, title: c.title, url: c.url})
	}
	return links
}

// attachmentDesignator reads the designator from the link text, then from
// the URL. It reports false when neither names one.
func attachmentDesignator(text, href string) (string, bool) {
	if identity.ParseLabel(text).Kind == catalog.ContentKindAttachment {
		if d, ok := identity.AttachmentDesignator(text); ok {
			return d, true
		}
	} else if m := attachmentNumber.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1]), true
	}
	if m := attachmentNumber.FindStringSubmatch(href); m != nil {
		return strings.ToUpper(m[1]), true
	}
	return identity.DefaultDesignator, false
}

func linkText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
