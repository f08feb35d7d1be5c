package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/politica-cm/politica-scanner/internal/resilience"
)

// ErrUntrustedSource is returned for URLs outside the allow-list.
var ErrUntrustedSource = eris.New("fetcher: url not on trusted allow-list")

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	// RatePerHost is the steady-state request rate allowed per host.
	RatePerHost rate.Limit
	Retry       resilience.RetryConfig
}

// HTTPFetcher implements Fetcher using net/http with per-host rate limiting
// and retry on transient failures. It does not cache.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	sources *TrustedSources

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher restricted to sources.
func NewHTTPFetcher(sources *TrustedSources, opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "politica-scanner/1.0"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 2 << 20
	}
	if opts.RatePerHost <= 0 {
		opts.RatePerHost = 5
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		opts:     opts,
		sources:  sources,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(f.opts.RatePerHost, int(f.opts.RatePerHost)+1)
		f.limiters[host] = lim
	}
	return lim
}

// Fetch downloads rawURL and reduces it to plain text. Non-2xx responses,
// untrusted hosts and unparseable HTML are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	if !f.sources.Allowed(rawURL) {
		return nil, eris.Wrapf(ErrUntrustedSource, "fetch %s", rawURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}

	retry := f.opts.Retry
	retry.OnRetry = resilience.RetryLogger("fetch", rawURL)
	body, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		if err := f.limiterFor(u.Host).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}
		return f.get(ctx, rawURL)
	})
	if err != nil {
		return nil, err
	}

	doc, err := ParseHTML(body)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse %s", rawURL)
	}
	doc.URL = rawURL
	return doc, nil
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "fr,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := eris.Errorf("fetcher: status %d from %s", resp.StatusCode, rawURL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read body")
	}
	return body, nil
}

// nonContentSelectors are stripped before taking the body text.
const nonContentSelectors = "script, style, noscript, template, svg"

var blankRe = regexp.MustCompile(`[ \t\r\f\v]+`)
var newlinesRe = regexp.MustCompile(`\n\s*\n+`)

// ParseHTML parses raw HTML and returns its title and body text.
func ParseHTML(body []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse html")
	}

	out := &Document{Title: strings.TrimSpace(doc.Find("title").First().Text())}

	root := doc.Find("body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}
	root.Find(nonContentSelectors).Remove()

	// Block-level elements end a line so sentence splitting sees boundaries
	// that the markup implied.
	root.Find("p, div, li, h1, h2, h3, h4, h5, h6, br, tr, section, article").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	text := blankRe.ReplaceAllString(root.Text(), " ")
	text = newlinesRe.ReplaceAllString(text, "\n")
	out.Text = strings.TrimSpace(text)
	return out, nil
}
