// Package new scaffolds a post file with the frontmatter the loader requires.
package new

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/Kush-Singh-26/quill/builder/content"
)

// ErrExists is returned instead of overwriting a post
var ErrExists = errors.New("post already exists")

// slugRegex matches characters that are unsafe for filenames/URLs
var slugRegex = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// sanitizeSlug converts a title to a safe filename slug
func sanitizeSlug(title string) string {
	slug := strings.ToLower(title)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = slugRegex.ReplaceAllString(slug, "")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	// Limit length to prevent excessively long filenames
	if r := []rune(slug); len(r) > 100 {
		slug = strings.TrimRight(string(r[:100]), "-")
	}
	return slug
}

// Options describes the post to create
type Options struct {
	Dir        string
	Title      string
	Tags       []string
	Categories []string
	Draft      bool
	Now        time.Time
}

// Post is the created file
type Post struct {
	Path      string
	ID        int
	Permalink string
}

// Create writes <Dir>/<slug>.md with the next free id
func Create(fs afero.Fs, opts Options) (*Post, error) {
	slug := sanitizeSlug(opts.Title)
	if slug == "" {
		return nil, fmt.Errorf("title %q produces an empty slug", opts.Title)
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	path := filepath.Join(opts.Dir, slug+".md")
	if ok, _ := afero.Exists(fs, path); ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, path)
	}

	id, err := nextID(fs, opts.Dir)
	if err != nil {
		return nil, err
	}
	post := &Post{Path: path, ID: id, Permalink: "/" + slug + "/"}

	body := fmt.Sprintf(`---
id: %d
title: %q
date: %s
permalink: %q
tags: [%s]
categories: [%s]
draft: %t
---

## Introduction

Start writing here...
`, id, opts.Title, opts.Now.Format("2006-01-02"), post.Permalink,
		quoteList(opts.Tags), quoteList(opts.Categories), opts.Draft)

	if err := fs.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, err
	}
	if err := afero.WriteFile(fs, path, []byte(body), 0644); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return post, nil
}

// nextID is one past the highest id among readable posts, drafts included
func nextID(fs afero.Fs, dir string) (int, error) {
	if ok, _ := afero.DirExists(fs, dir); !ok {
		return 1, nil
	}
	loader := content.NewLoader(fs, content.Options{Dir: dir, IncludeDrafts: true})
	files, err := loader.Files()
	if err != nil {
		return 0, err
	}
	max := 0
	for _, f := range files {
		p, err := loader.Load(f)
		if err != nil {
			continue
		}
		if p.ID > max {
			max = p.ID
		}
	}
	return max + 1, nil
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
