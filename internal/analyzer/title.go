package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/politica-cm/politica-scanner/internal/extract"
	"github.com/politica-cm/politica-scanner/internal/model"
)

// titleTerms maps folded French title words to their English form. Words
// are translated independently, so map order does not matter.
var titleTerms = map[string]string{
	"ministre":    "Minister",
	"directeur":   "Director",
	"directrice":  "Director",
	"president":   "President",
	"presidente":  "President",
	"depute":      "Deputy",
	"deputee":     "Deputy",
	"senateur":    "Senator",
	"senatrice":   "Senator",
	"secretaire":  "Secretary",
	"gouverneur":  "Governor",
	"maire":       "Mayor",
	"delegue":     "Delegate",
	"deleguee":    "Delegate",
	"ancien":      "Former",
	"ancienne":    "Former",
	"vice":        "Vice",
	"conseiller":  "Adviser",
	"ambassadeur": "Ambassador",
}

// minorWords stay lowercase unless they open the title.
var minorWords = map[string]bool{"of": true, "and": true, "the": true}

// titleRule rewrites the words of a title.
type titleRule func(words []string) []string

// titleRules run in order over the space-separated words of a title.
var titleRules = []titleRule{translateTerms, titleCase, lowercaseMinor}

// FormatOfficialTitle normalizes a role title: known French terms become
// English, every word is capitalized, and of/and/the are lowercased after
// the first word. French connectives such as "de" and "la" are capitalized
// like any other word.
func FormatOfficialTitle(title string) string {
	words := strings.Fields(title)
	for _, rule := range titleRules {
		words = rule(words)
	}
	return strings.Join(words, " ")
}

// eachPart applies fn to every hyphen-separated part of w.
func eachPart(w string, fn func(string) string) string {
	parts := strings.Split(w, "-")
	for i, p := range parts {
		parts[i] = fn(p)
	}
	return strings.Join(parts, "-")
}

func translateTerms(words []string) []string {
	for i, w := range words {
		words[i] = eachPart(w, func(p string) string {
			if en, ok := titleTerms[extract.Fold(p)]; ok {
				return en
			}
			return p
		})
	}
	return words
}

func titleCase(words []string) []string {
	for i, w := range words {
		words[i] = eachPart(w, capitalize)
	}
	return words
}

func lowercaseMinor(words []string) []string {
	for i, w := range words {
		if i > 0 && minorWords[strings.ToLower(w)] {
			words[i] = strings.ToLower(w)
		}
	}
	return words
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// formerThreshold is the status confidence above which a retired
// politician's title gains the "Former" prefix.
const formerThreshold = 0.6

// ApplyStatusPrefix prefixes "Former " to a title when the politician is
// confidently classified as Retired and the title does not already say so.
// Both conditions are required: reading the rule as "Retired or confidence
// above 0.6" would also prefix confidently Active politicians.
func ApplyStatusPrefix(title string, status model.PersonStatus, confidence float64) string {
	if status != model.StatusRetired || confidence <= formerThreshold {
		return title
	}
	if extract.ContainsAny(extract.Fold(title), []string{"former", "ancien", "ex-"}) {
		return title
	}
	return "Former " + title
}
