package utils

import (
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

// NewHTMLMinifier returns a minifier for rendered post bodies
func NewHTMLMinifier() *minify.M {
	m := minify.New()
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return m
}

// MinifyHTML minifies a fragment, returning the input unchanged on error
func MinifyHTML(m *minify.M, s string) string {
	if m == nil {
		return s
	}
	out, err := m.String("text/html", s)
	if err != nil {
		return s
	}
	return out
}
