package identity

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenNumber
)

type token struct {
	kind tokenKind
	text string
}

// tokenize splits a label into lower-cased words and digit runs. Every other
// rune separates tokens, and a change between letters and digits starts a new
// token, so "1bis", "1-bis" and "1 bis" all lex to [1 bis].
func tokenize(label string) []token {
	var (
		tokens []token
		buf    strings.Builder
		kind   tokenKind
	)
	flush := func() {
		if buf.Len() > 0 {
			tokens = append(tokens, token{kind: kind, text: buf.String()})
			buf.Reset()
		}
	}
	for _, r := range label {
		switch {
		case unicode.IsDigit(r):
			if buf.Len() > 0 && kind != tokenNumber {
				flush()
			}
			kind = tokenNumber
			buf.WriteRune(r)
		case unicode.IsLetter(r):
			if buf.Len() > 0 && kind != tokenWord {
				flush()
			}
			kind = tokenWord
			buf.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}
