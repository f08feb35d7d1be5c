package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/politica-cm/politica-scanner/internal/extract"
	"github.com/politica-cm/politica-scanner/internal/resilience"
)

// DefaultSearchURLTemplate builds a site search URL from a domain and an
// escaped query.
const DefaultSearchURLTemplate = "https://%s/?s=%s"

// DefaultMaxRelevantSentences caps relevant sentences taken per source.
const DefaultMaxRelevantSentences = 10

// Search fetches one URL and extracts name candidates and sentences relevant
// to query. It never fails: any error is logged and yields an empty Result so
// a broken source lowers confidence instead of aborting the scan.
func Search(ctx context.Context, f Fetcher, rawURL, query string, limit int) Result {
	res := Result{URL: rawURL}
	doc, err := f.Fetch(ctx, rawURL)
	if err != nil {
		zap.L().Warn("fetcher: source fetch failed",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return res
	}
	res.FoundNames = extract.Names(doc.Text)
	res.RelevantText = extract.RelevantSentences(doc.Text, query, limit)
	return res
}

// Snippet is a relevant sentence with the URL it came from.
type Snippet struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Evidence merges what every trusted source returned for one query.
type Evidence struct {
	Names    []string  `json:"names"`
	Snippets []Snippet `json:"snippets"`
	Checked  []string  `json:"checked"`
}

// Sentences returns the snippet texts in source order.
func (e Evidence) Sentences() []string {
	out := make([]string, len(e.Snippets))
	for i, s := range e.Snippets {
		out[i] = s.Text
	}
	return out
}

// SourceOf returns the URL of the first snippet containing any of terms, or
// the first checked URL when none matches.
func (e Evidence) SourceOf(terms ...string) string {
	for _, s := range e.Snippets {
		if extract.ContainsAny(extract.Fold(s.Text), terms) {
			return s.URL
		}
	}
	if len(e.Snippets) > 0 {
		return e.Snippets[0].URL
	}
	return ""
}

// Searcher is the query surface analyzers use. Implementations must not
// return errors for individual source failures.
type Searcher interface {
	Search(ctx context.Context, query string) Evidence
}

// SourceSearcher queries every trusted domain through its site search page.
type SourceSearcher struct {
	fetcher      Fetcher
	sources      *TrustedSources
	template     string
	maxSentences int
	breakers     *resilience.Breakers
}

// SearcherOption customizes a SourceSearcher.
type SearcherOption func(*SourceSearcher)

// WithSearchURLTemplate sets the fmt template (domain, escaped query).
func WithSearchURLTemplate(tmpl string) SearcherOption {
	return func(s *SourceSearcher) {
		if tmpl != "" {
			s.template = tmpl
		}
	}
}

// WithMaxSentences caps relevant sentences per source.
func WithMaxSentences(n int) SearcherOption {
	return func(s *SourceSearcher) {
		if n > 0 {
			s.maxSentences = n
		}
	}
}

// WithBreakers guards each domain with a circuit breaker.
func WithBreakers(b *resilience.Breakers) SearcherOption {
	return func(s *SourceSearcher) { s.breakers = b }
}

// NewSourceSearcher creates a searcher over every domain in sources.
func NewSourceSearcher(f Fetcher, sources *TrustedSources, opts ...SearcherOption) *SourceSearcher {
	s := &SourceSearcher{
		fetcher:      f,
		sources:      sources,
		template:     DefaultSearchURLTemplate,
		maxSentences: DefaultMaxRelevantSentences,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SearchURL builds the search URL for one domain.
func (s *SourceSearcher) SearchURL(domain, query string) string {
	return fmt.Sprintf(s.template, domain, url.QueryEscape(query))
}

// Search queries each trusted source in order and merges the results.
func (s *SourceSearcher) Search(ctx context.Context, query string) Evidence {
	var ev Evidence
	query = strings.TrimSpace(query)
	if query == "" {
		return ev
	}
	for _, domain := range s.sources.Domains() {
		if ctx.Err() != nil {
			break
		}
		u := s.SearchURL(domain, query)
		ev.Checked = append(ev.Checked, u)

		res := s.searchOne(ctx, domain, u, query)
		for _, n := range res.FoundNames {
			if !slices.Contains(ev.Names, n) {
				ev.Names = append(ev.Names, n)
			}
		}
		for _, t := range res.RelevantText {
			ev.Snippets = append(ev.Snippets, Snippet{URL: u, Text: t})
		}
	}
	return ev
}

func (s *SourceSearcher) searchOne(ctx context.Context, domain, u, query string) Result {
	if s.breakers == nil {
		return Search(ctx, s.fetcher, u, query, s.maxSentences)
	}
	res, err := resilience.ExecuteVal(ctx, s.breakers.Get(domain), func(ctx context.Context) (Result, error) {
		doc, err := s.fetcher.Fetch(ctx, u)
		if err != nil {
			return Result{URL: u}, err
		}
		return Result{
			URL:          u,
			FoundNames:   extract.Names(doc.Text),
			RelevantText: extract.RelevantSentences(doc.Text, query, s.maxSentences),
		}, nil
	})
	if err != nil {
		zap.L().Warn("fetcher: source fetch failed",
			zap.String("domain", domain),
			zap.String("url", u),
			zap.Error(err),
		)
		return Result{URL: u}
	}
	return res
}
