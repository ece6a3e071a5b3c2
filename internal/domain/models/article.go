package models

import (
	"strings"
	"time"
)

// Article is a news item produced by a news collaborator.
// Description is nil when the provider sent no description.
type Article struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	URL         string     `json:"url"`
	Source      string     `json:"source,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Text returns the scored text: title and description joined by one space.
// An absent description counts as the empty string.
func (a Article) Text() string {
	desc := ""
	if a.Description != nil {
		desc = *a.Description
	}
	return a.Title + " " + desc
}

// Valid reports whether the article carries a usable title.
func (a Article) Valid() bool {
	return strings.TrimSpace(a.Title) != ""
}

// StringPtr is a small helper for optional text fields.
func StringPtr(s string) *string { return &s }

// ScoredArticle pairs an article with its compound sentiment score.
type ScoredArticle struct {
	Article Article `json:"article"`
	Score   float64 `json:"score"`
}
