// Package fetcher retrieves pages from trusted government sources and turns
// them into plain text, name candidates and query-relevant sentences.
package fetcher

import (
	"context"
)

// Document is a fetched page reduced to plain text.
type Document struct {
	URL   string
	Title string
	Text  string
}

// Result is what one source contributes for a query. Both lists are empty
// when the source could not be fetched.
type Result struct {
	URL          string   `json:"url"`
	FoundNames   []string `json:"found_names"`
	RelevantText []string `json:"relevant_text"`
}

// Fetcher downloads and parses a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Document, error)
}
