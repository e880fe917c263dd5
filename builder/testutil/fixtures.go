// Package testutil provides testing utilities and fixtures
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"time"

	"github.com/Kush-Singh-26/quill/builder/models"
)

// CreateSampleSourcePost creates a valid SourcePost for testing
func CreateSampleSourcePost(id int, permalink string) models.SourcePost {
	return models.SourcePost{
		ID:         id,
		Title:      "Test Post " + permalink,
		Date:       time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		Permalink:  permalink,
		Tags:       []string{"test", "go"},
		Categories: []string{"tutorial"},
		Path:       permalink + ".md",
		Source:     []byte("Some content for " + permalink),
		HTML:       "<p>Some content for " + permalink + "</p>",
		Text:       "Some content for " + permalink,
	}
}

// ScenarioPosts is the five-post corpus used across retrieval tests:
// A has tags azure+bicep in cloud; B and C share the azure tag; D shares
// the cloud category; E shares nothing.
func ScenarioPosts() []models.SourcePost {
	date := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id int, slug, title string, tags, cats []string) models.SourcePost {
		return models.SourcePost{
			ID:         id,
			Title:      title,
			Date:       date.AddDate(0, 0, id),
			Permalink:  "/" + slug + "/",
			Tags:       tags,
			Categories: cats,
			Path:       slug + ".md",
			Source:     []byte(title),
			HTML:       "<p>" + title + "</p>",
			Text:       title,
		}
	}
	return []models.SourcePost{
		mk(1, "a", "Deploying infrastructure with Bicep", []string{"azure", "bicep"}, []string{"cloud"}),
		mk(2, "b", "Azure Functions in practice", []string{"azure", "serverless"}, []string{"development"}),
		mk(3, "c", "Cost alerts on Azure", []string{"azure", "billing"}, []string{"operations"}),
		mk(4, "d", "Comparing object storage tiers", []string{"storage"}, []string{"cloud"}),
		mk(5, "e", "Sourdough starter notes", []string{"baking"}, []string{"kitchen"}),
	}
}

// ScenarioProcessed is ScenarioPosts projected for retrieval.
func ScenarioProcessed() []models.ProcessedPost {
	return models.ProcessAll(ScenarioPosts(), false)
}

// CreateTestMarkdown creates a markdown post with the required frontmatter
func CreateTestMarkdown(id int, title, permalink string, tags, categories []string) string {
	return `---
id: ` + fmt.Sprint(id) + `
title: "` + title + `"
date: 2026-01-15
permalink: "` + permalink + `"
tags: [` + quoteList(tags) + `]
categories: [` + quoteList(categories) + `]
---

# ` + title + `

Test content for **` + title + `**.
`
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = `"` + s + `"`
	}
	return strings.Join(quoted, ", ")
}

// CreateTestPNG encodes a w x h gradient PNG. seed changes the pixels so
// two images of the same size hash differently.
func CreateTestPNG(w, h int, seed uint8) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x) + seed, G: uint8(y), B: seed, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// CreateLargeHTML creates HTML content larger than the inline threshold
func CreateLargeHTML() string {
	return "<p>" + strings.Repeat("x", 35000) + "</p>"
}
