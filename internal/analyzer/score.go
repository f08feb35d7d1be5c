package analyzer

import (
	"regexp"
	"strings"
	"time"

	"github.com/politica-cm/politica-scanner/internal/extract"
)

// Weak priors returned when no corroborating text is found. Absence of
// evidence is inconclusive, so none of these is zero.
const (
	PriorPosition     = 0.3
	PriorParty        = 0.4
	PriorBirthDate    = 0.3
	PriorImage        = 0.5
	PriorImageInvalid = 0.2
	PriorEducation    = 0.3
	PriorBio          = 0.3
	PriorStatus       = 0.3
	PriorFoundingDate = 0.4
	PriorHeadquarters = 0.35
	PriorLeadership   = 0.3
)

// trustedImageConfidence applies to profile images hosted on a trusted domain.
const trustedImageConfidence = 0.8

// Date evidence scores.
const (
	fullDateConfidence = 0.9
	yearConfidence     = 0.7
)

// LeadershipTerms mark a sentence as being about who leads an organization.
var LeadershipTerms = []string{"president", "chairman", "leader", "head", "dirigeant"}

// Ramp turns a match count into a confidence: prior when there are no
// matches, otherwise base + step per match, capped at ceiling.
type Ramp struct {
	Prior   float64
	Base    float64
	Step    float64
	Ceiling float64
}

// Score applies the ramp to a match count.
func (r Ramp) Score(matches int) float64 {
	if matches <= 0 {
		return r.Prior
	}
	return min(r.Base+r.Step*float64(matches-1), r.Ceiling)
}

// Cooccurrences counts sentences that mention the entity (any entity keyword),
// the field (any field keyword) and, when terms is non-empty, one of terms.
// Keywords and terms must already be folded.
func Cooccurrences(sentences, entityKeys, fieldKeys, terms []string) int {
	if len(entityKeys) == 0 || len(fieldKeys) == 0 {
		return 0
	}
	n := 0
	for _, s := range sentences {
		f := extract.Fold(s)
		if !extract.ContainsAny(f, entityKeys) || !extract.ContainsAny(f, fieldKeys) {
			continue
		}
		if len(terms) > 0 && !extract.ContainsAny(f, terms) {
			continue
		}
		n++
	}
	return n
}

// entityKeys are the tokens used to recognize the entity in a sentence.
func entityKeys(name string) []string {
	return extract.Keywords(name, 2)
}

// PositionConfidence scores a role title against evidence sentences.
func PositionConfidence(title, entityName string, sentences []string) float64 {
	m := Cooccurrences(sentences, entityKeys(entityName), extract.Keywords(title, 3), nil)
	return Ramp{Prior: PriorPosition, Base: 0.65, Step: 0.1, Ceiling: 0.95}.Score(m)
}

// PartyConfidence scores a politician's party affiliation.
func PartyConfidence(party, entityName string, sentences []string) float64 {
	m := Cooccurrences(sentences, entityKeys(entityName), extract.Keywords(party, 2), nil)
	return Ramp{Prior: PriorParty, Base: 0.6, Step: 0.1, Ceiling: 0.9}.Score(m)
}

// EducationConfidence scores an education entry.
func EducationConfidence(education, entityName string, sentences []string) float64 {
	m := Cooccurrences(sentences, entityKeys(entityName), extract.Keywords(education, 3), nil)
	return Ramp{Prior: PriorEducation, Base: 0.6, Step: 0.1, Ceiling: 0.9}.Score(m)
}

// LeadershipConfidence scores a party president. Sentences must mention the
// party, the president and a leadership term.
func LeadershipConfidence(president, partyName string, sentences []string) float64 {
	m := Cooccurrences(sentences, entityKeys(partyName), extract.Keywords(president, 2), LeadershipTerms)
	return Ramp{Prior: PriorLeadership, Base: 0.7, Step: 0.1, Ceiling: 0.95}.Score(m)
}

// HeadquartersConfidence scores a party headquarters address.
func HeadquartersConfidence(address, partyName string, sentences []string) float64 {
	m := Cooccurrences(sentences, entityKeys(partyName), extract.Keywords(address, 3), nil)
	return Ramp{Prior: PriorHeadquarters, Base: 0.6, Step: 0.1, Ceiling: 0.9}.Score(m)
}

// maxBioKeywords bounds how many bio keywords are checked.
const maxBioKeywords = 20

// BioConfidence scores a biography by the share of its keywords (longer than
// four runes) that appear anywhere in the evidence.
func BioConfidence(bio string, sentences []string) float64 {
	keys := extract.Keywords(bio, 4)
	if len(keys) > maxBioKeywords {
		keys = keys[:maxBioKeywords]
	}
	if len(keys) == 0 || len(sentences) == 0 {
		return PriorBio
	}
	corpus := extract.Fold(strings.Join(sentences, " "))
	found := 0
	for _, k := range keys {
		if strings.Contains(corpus, k) {
			found++
		}
	}
	if found == 0 {
		return PriorBio
	}
	share := float64(found) / float64(len(keys))
	return max(PriorBio, min(0.3+0.6*share, 0.9))
}

var yearRe = regexp.MustCompile(`(1[89]|20)\d{2}`)

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "January 2, 2006", "2 January 2006"}

// Month names in the languages the trusted sources publish in.
var monthNames = map[time.Month][]string{
	time.January:   {"january", "janvier"},
	time.February:  {"february", "fevrier"},
	time.March:     {"march", "mars"},
	time.April:     {"april", "avril"},
	time.May:       {"may", "mai"},
	time.June:      {"june", "juin"},
	time.July:      {"july", "juillet"},
	time.August:    {"august", "aout"},
	time.September: {"september", "septembre"},
	time.October:   {"october", "octobre"},
	time.November:  {"november", "novembre"},
	time.December:  {"december", "decembre"},
}

// DateConfidence scores a date field. A sentence naming the entity and the
// year counts as partial support; one that also names the day and month (or
// the literal date string) counts as full support.
func DateConfidence(date, entityName string, sentences []string, prior float64) float64 {
	year := yearRe.FindString(date)
	if year == "" {
		return prior
	}
	var full []string
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(date)); err == nil {
			day := t.Format("2")
			for _, m := range monthNames[t.Month()] {
				full = append(full, day+" "+m, m+" "+day)
			}
			break
		}
	}
	full = append(full, extract.Fold(strings.TrimSpace(date)))

	keys := entityKeys(entityName)
	best := prior
	for _, s := range sentences {
		f := extract.Fold(s)
		if !extract.ContainsAny(f, keys) || !strings.Contains(f, year) {
			continue
		}
		if extract.ContainsAny(f, full) {
			return fullDateConfidence
		}
		best = max(best, yearConfidence)
	}
	return best
}
