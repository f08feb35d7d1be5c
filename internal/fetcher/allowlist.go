package fetcher

import (
	"net/url"
	"slices"
	"strings"
)

// DefaultTrustedDomains are the government and public-media domains scanned
// when no list is configured.
var DefaultTrustedDomains = []string{
	"elecam.cm",
	"gov.cm",
	"minat.gov.cm",
	"assemblee-nationale.cm",
	"senat.cm",
	"cameroon-tribune.cm",
	"mincom.gov.cm",
	"prc.cm",
}

// TrustedSources is the allow-list of domains the fetcher may contact. A host
// is allowed when it equals a listed domain or is a subdomain of one.
type TrustedSources struct {
	domains []string
}

// NewTrustedSources normalizes and deduplicates domains.
func NewTrustedSources(domains []string) *TrustedSources {
	var out []string
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d == "" || slices.Contains(out, d) {
			continue
		}
		out = append(out, d)
	}
	return &TrustedSources{domains: out}
}

// Domains returns the allow-listed domains in configured order.
func (t *TrustedSources) Domains() []string {
	return slices.Clone(t.domains)
}

// Allowed reports whether rawURL is an http(s) URL on a trusted host.
func (t *TrustedSources) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return t.AllowedHost(u.Hostname())
}

// AllowedHost reports whether host is trusted.
func (t *TrustedSources) AllowedHost(host string) bool {
	host = strings.ToLower(host)
	for _, d := range t.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// URLs returns the https root URL of every trusted domain.
func (t *TrustedSources) URLs() []string {
	out := make([]string, len(t.domains))
	for i, d := range t.domains {
		out[i] = "https://" + d
	}
	return out
}
