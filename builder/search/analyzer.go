package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Token is a normalized word and its rune offset inside the field value.
type Token struct {
	Text   string `json:"t" msgpack:"t"`
	Offset int    `json:"o" msgpack:"o"`
}

// Analyzer turns field values and queries into comparable tokens: accents
// are removed, case is folded and anything that is not a letter or digit
// separates words.
type Analyzer struct {
	minTokenLength int
}

// NewAnalyzer creates an analyzer dropping tokens shorter than minTokenLength runes
func NewAnalyzer(minTokenLength int) *Analyzer {
	if minTokenLength < 1 {
		minTokenLength = 1
	}
	return &Analyzer{minTokenLength: minTokenLength}
}

// Normalize strips diacritics and lowercases text.
// Transformers and casers keep state, so a fresh chain is built per call.
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		out = text
	}
	return cases.Lower(language.Und).String(out)
}

// Analyze returns the tokens of one field value.
func (a *Analyzer) Analyze(text string) []Token {
	if len(text) == 0 {
		return nil
	}
	text = Normalize(text)

	tokens := make([]Token, 0, max(8, len(text)/5))
	var buf strings.Builder
	buf.Grow(32)
	start, pos := 0, 0

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		word := buf.String()
		if utf8.RuneCountInString(word) >= a.minTokenLength {
			tokens = append(tokens, Token{Text: word, Offset: start})
		}
		buf.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if buf.Len() == 0 {
				start = pos
			}
			buf.WriteRune(r)
		} else {
			flush()
		}
		pos++
	}
	flush()

	return tokens
}

// Terms returns the distinct query terms of text in first-seen order.
func (a *Analyzer) Terms(text string) []string {
	tokens := a.Analyze(text)
	seen := make(map[string]bool, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if seen[tok.Text] {
			continue
		}
		seen[tok.Text] = true
		terms = append(terms, tok.Text)
	}
	return terms
}
