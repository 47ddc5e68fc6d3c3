package extract

import (
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	validFromSelector = "#artInizio"
	validToSelector   = "#artFine"
)

var (
	dateNoise   = regexp.MustCompile(`[^\d\-/]`)
	dateFormats = []struct {
		pattern *regexp.Regexp
		layout  string
	}{
		{regexp.MustCompile(`\d{1,2}-\d{1,2}-\d{4}`), "2-1-2006"},
		{regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`), "2/1/2006"},
	}
)

// ParseDate finds the first DD-MM-YYYY date in text, else the first
// DD/MM/YYYY date. Characters other than digits and separators are dropped
// before matching, as the markers wrap dates in labels and non-breaking spaces.
func ParseDate(text string) (time.Time, bool) {
	cleaned := dateNoise.ReplaceAllString(text, "")
	for _, format := range dateFormats {
		for _, candidate := range format.pattern.FindAllString(cleaned, -1) {
			if t, err := time.Parse(format.layout, candidate); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// ValidityDates reads the validity start and end markers of a version page.
func ValidityDates(page *goquery.Selection) (from, to *time.Time) {
	return markerDate(page, validFromSelector), markerDate(page, validToSelector)
}

func markerDate(page *goquery.Selection, selector string) *time.Time {
	marker := page.Find(selector).First()
	if marker.Length() == 0 {
		return nil
	}
	t, ok := ParseDate(marker.Text())
	if !ok {
		return nil
	}
	return &t
}
