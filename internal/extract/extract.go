// Package extract pulls name candidates and query-relevant sentences out of
// plain text scraped from trusted sources.
package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	minNameLen = 5
	maxNameLen = 50
)

// capWord matches a capitalized word, including all-caps surnames such as
// "BIYA" and accented initials such as "Émile".
const capWord = `\p{Lu}[\p{L}'’\-]+`

var (
	honorificRe = regexp.MustCompile(`(?:Dr\.|Prof\.|Hon\.|Mrs\.|Mr\.|Mme\.?|M\.)[ \t]+(` + capWord + `(?:[ \t]+` + capWord + `){0,2})`)
	bareNameRe  = regexp.MustCompile(capWord + `(?:[ \t]+` + capWord + `){1,2}`)
	sentenceRe  = regexp.MustCompile(`[.!?\n]+`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// Names returns deduplicated name-like sequences found in text, in first-seen
// order. Honorific-prefixed names are collected first with the prefix
// stripped, then bare two-or-three-word capitalized sequences. Candidates
// outside 5..50 runes are dropped.
func Names(text string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
		n := utf8.RuneCountInString(s)
		if n < minNameLen || n > maxNameLen || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, m := range honorificRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range bareNameRe.FindAllString(text, -1) {
		add(m)
	}
	return out
}

// Sentences splits text on sentence terminators and newlines, dropping blanks.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.Split(text, -1) {
		s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RelevantSentences keeps sentences that contain at least one token of the
// query, in document order, capped at limit. Tokens of two runes or fewer
// ("de", "of") are ignored so connectives do not match every sentence.
func RelevantSentences(text, query string, limit int) []string {
	tokens := Keywords(query, 2)
	if len(tokens) == 0 || limit <= 0 {
		return nil
	}
	var out []string
	for _, s := range Sentences(text) {
		folded := Fold(s)
		for _, tok := range tokens {
			if strings.Contains(folded, tok) {
				out = append(out, s)
				break
			}
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Keywords splits s into lowercased, accent-folded tokens longer than minLen
// runes. Duplicates are removed, order is preserved.
func Keywords(s string, minLen int) []string {
	fields := strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= minLen || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Fold lowercases s and strips diacritics so "Décédé" compares equal to
// "decede".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}

// ContainsAny reports whether folded text contains any of the folded terms.
func ContainsAny(folded string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(folded, t) {
			return true
		}
	}
	return false
}
