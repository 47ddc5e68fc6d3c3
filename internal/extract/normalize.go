package extract

import (
	"regexp"
	"strings"
)

var (
	whitespace       = regexp.MustCompile(`\s+`)
	emptyParentheses = regexp.MustCompile(`\s*\(\s*\)`)
	emptyBrackets    = regexp.MustCompile(`\s*\[\s*\]`)
	spaceBeforePunct = regexp.MustCompile(`\s+([.,;:])`)
)

// boilerplate is page furniture that can appear anywhere in the rendered text.
var boilerplate = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bstampa questa pagina\b`),
	regexp.MustCompile(`(?i)\btorna su\b`),
	regexp.MustCompile(`(?i)\bvai al contenuto\b`),
	regexp.MustCompile(`(?i)\bmenu di navigazione\b`),
	regexp.MustCompile(`(?i)\bvisualizza atto intero\b`),
	regexp.MustCompile(`(?i)\belemento grafico\b`),
	regexp.MustCompile(`(?i)\bmostra\s*/?\s*nascondi\b`),
	regexp.MustCompile(`(?i)\bnascondi\b`),
	regexp.MustCompile(`(?i)\bchiudi\s*/\s*apri\b`),
	regexp.MustCompile(`(?i)\btesto in vigore dal:?\s*\d{1,2}/\d{1,2}/\d{4}`),
	regexp.MustCompile(`(?i)\bvigente al:?\s*\d{1,2}/\d{1,2}/\d{4}`),
	regexp.MustCompile(`(?i)\(\s*GU\s+n\.\s*\d+\s+del\s+\d{1,2}-\d{1,2}-\d{4}\s*\)`),
}

// edgeBoilerplate is furniture that is also ordinary legal prose ("articolo
// precedente"), so it is only stripped at the start or end of the text.
var edgeBoilerplate = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:articolo (?:precedente|successivo)|condividi|home|indietro|cerca)\b\s*`),
	regexp.MustCompile(`(?i)\s*\b(?:articolo (?:precedente|successivo)|condividi|home|indietro|cerca)$`),
}

// Normalize collapses whitespace, drops empty parentheses and brackets and
// strips the fixed list of navigation boilerplate.
func Normalize(text string) string {
	text = whitespace.ReplaceAllString(text, " ")
	text = emptyParentheses.ReplaceAllString(text, "")
	text = emptyBrackets.ReplaceAllString(text, "")
	for _, pattern := range boilerplate {
		text = pattern.ReplaceAllString(text, " ")
	}
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	for {
		before := text
		for _, pattern := range edgeBoilerplate {
			text = strings.TrimSpace(pattern.ReplaceAllString(text, ""))
		}
		if text == before {
			break
		}
	}
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	return text
}
