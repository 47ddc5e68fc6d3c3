package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
	"github.com/JakeFAU/normattiva-catalog/internal/source"
)

// NotFoundMarker is the message the source renders for unknown documents.
const NotFoundMarker = "Provvedimento non trovato in banca dati"

// DefaultDocumentTextCap bounds the stored document text, in runes.
const DefaultDocumentTextCap = 10000

var (
	titleYear   = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})\b`)
	titleNumber = regexp.MustCompile(`(?i)\bn\.\s*(\d+)`)
)

var actTypeKeywords = []struct {
	keywords []string
	name     string
}{
	{[]string{"DECRETO LEGISLATIVO", "D.LGS"}, "Decreto Legislativo"},
	{[]string{"DECRETO DEL PRESIDENTE DELLA REPUBBLICA", "D.P.R"}, "Decreto del Presidente della Repubblica"},
	{[]string{"DECRETO-LEGGE", "DECRETO LEGGE", "D.L."}, "Decreto-Legge"},
	{[]string{"LEGGE"}, "Legge"},
	{[]string{"DECRETO"}, "Decreto"},
	{[]string{"REGOLAMENTO"}, "Regolamento"},
	{[]string{"COSTITUZIONE"}, "Costituzione"},
	{[]string{"CODICE"}, "Codice"},
}

// DocumentMeta extracts the metadata and capped normalized text of a
// document page. Pages carrying NotFoundMarker return ErrDocumentNotFound.
func DocumentMeta(page *goquery.Document, pageURL string, textCap int) (catalog.Document, error) {
	if strings.Contains(page.Text(), NotFoundMarker) {
		return catalog.Document{}, catalog.ErrDocumentNotFound
	}
	if textCap <= 0 {
		textCap = DefaultDocumentTextCap
	}

	doc := catalog.Document{
		Title:     documentTitle(page),
		SourceURL: source.Permalink(pageURL),
	}

	var urn source.URN
	if raw := documentURN(page, pageURL); raw != "" {
		if parsed, err := source.ParseURN(raw); err == nil {
			urn = parsed
			doc.URN = parsed.Raw
		}
	}

	doc.ActType = eliActType(page)
	if doc.ActType == "" {
		doc.ActType = urn.ActTypeName()
	}
	if doc.ActType == "" {
		doc.ActType = ActTypeFromTitle(doc.Title)
	}

	doc.Year = eliYear(page)
	if doc.Year == 0 {
		doc.Year = urn.Year
	}
	if doc.Year == 0 {
		if m := titleYear.FindStringSubmatch(doc.Title); m != nil {
			doc.Year, _ = strconv.Atoi(m[1])
		}
	}

	doc.Number = urn.Number
	if doc.Number == "" {
		if m := titleNumber.FindStringSubmatch(doc.Title); m != nil {
			doc.Number = m[1]
		}
	}

	doc.FullText = truncateRunes(Normalize(selectContainer(page.Selection).text), textCap)
	return doc, nil
}

// ActTypeFromTitle classifies an act by the keywords in its title.
func ActTypeFromTitle(title string) string {
	upper := strings.ToUpper(title)
	for _, entry := range actTypeKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(upper, kw) {
				return entry.name
			}
		}
	}
	return "Documento"
}

func documentTitle(page *goquery.Document) string {
	for _, selector := range []string{"#titoloAtto", ".titoloAtto"} {
		if text := linkText(page.Find(selector).First()); text != "" {
			return text
		}
	}
	if title := metaValue(page, "eli:title", "content"); title != "" {
		return title
	}
	return linkText(page.Find("title").First())
}

func documentURN(page *goquery.Document, pageURL string) string {
	if urn := source.URNFromURL(pageURL); urn != "" {
		return urn
	}
	if id := metaValue(page, "eli:id_local", "content"); strings.HasPrefix(strings.ToLower(id), "urn:nir:") {
		return id
	}
	return ""
}

func eliActType(page *goquery.Document) string {
	resource := metaValue(page, "eli:type_document", "resource")
	_, fragment, found := strings.Cut(resource, "#")
	if !found || fragment == "" {
		return ""
	}
	return source.URN{ActType: fragment}.ActTypeName()
}

func eliYear(page *goquery.Document) int {
	date := metaValue(page, "eli:date_document", "content")
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

func metaValue(page *goquery.Document, property, attr string) string {
	sel := page.Find(`meta[property="` + property + `"]`).First()
	if sel.Length() == 0 {
		sel = page.Find(`meta[name="` + property + `"]`).First()
	}
	return strings.TrimSpace(sel.AttrOr(attr, ""))
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}
