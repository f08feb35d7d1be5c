// Package analyzer verifies individual record fields against evidence
// gathered from trusted sources. Every analyzer searches with the entity name
// and the field value, scores what comes back and reports a
// model.FieldVerification. Scoring is done by pure functions over the
// evidence sentences so it can be tested without the network.
package analyzer

import (
	"context"
	"net/url"
	"strings"

	"github.com/politica-cm/politica-scanner/internal/extract"
	"github.com/politica-cm/politica-scanner/internal/fetcher"
	"github.com/politica-cm/politica-scanner/internal/model"
	"github.com/politica-cm/politica-scanner/internal/similarity"
)

// Analyzer checks one field of a target.
type Analyzer interface {
	Field() model.Field
	Applies(t model.Target) bool
	Analyze(ctx context.Context, t model.Target) (model.FieldVerification, error)
}

// positionThreshold is the confidence a corrected title needs before it is
// proposed as an update.
const positionThreshold = 0.5

// query joins the entity name and a field value into one search string.
func query(t model.Target, value string) string {
	return strings.TrimSpace(t.Name() + " " + value)
}

// echo is the verification of a non-correcting analyzer.
func echo(f model.Field, current, source string, confidence float64) model.FieldVerification {
	return model.FieldVerification{
		Field:        f,
		CurrentValue: current,
		FoundValue:   current,
		SourceURL:    source,
		Confidence:   confidence,
	}
}

// scoreFunc scores a field value for an entity against evidence sentences.
type scoreFunc func(value, entityName string, sentences []string) float64

// evidenceAnalyzer is a non-correcting analyzer that searches for the field
// value and scores the returned sentences.
type evidenceAnalyzer struct {
	field      model.Field
	targetType model.TargetType
	searcher   fetcher.Searcher
	score      scoreFunc
	minKeyLen  int
}

func (a *evidenceAnalyzer) Field() model.Field { return a.field }

func (a *evidenceAnalyzer) Applies(t model.Target) bool {
	return t.Type == a.targetType && t.Has(a.field)
}

func (a *evidenceAnalyzer) Analyze(ctx context.Context, t model.Target) (model.FieldVerification, error) {
	value := t.Value(a.field)
	ev := a.searcher.Search(ctx, query(t, value))
	if err := ctx.Err(); err != nil {
		return model.FieldVerification{}, err
	}
	conf := a.score(value, t.Name(), ev.Sentences())
	return echo(a.field, value, ev.SourceOf(extract.Keywords(value, a.minKeyLen)...), conf), nil
}

// NameAnalyzer compares the stored name with names found on trusted sources
// and proposes the best close match when it differs.
type NameAnalyzer struct {
	targetType model.TargetType
	searcher   fetcher.Searcher
}

func (a *NameAnalyzer) Field() model.Field { return model.FieldName }

func (a *NameAnalyzer) Applies(t model.Target) bool { return t.Type == a.targetType }

func (a *NameAnalyzer) Analyze(ctx context.Context, t model.Target) (model.FieldVerification, error) {
	name := t.Name()
	ev := a.searcher.Search(ctx, name)
	if err := ctx.Err(); err != nil {
		return model.FieldVerification{}, err
	}

	v := model.FieldVerification{
		Field:        model.FieldName,
		CurrentValue: name,
		FoundValue:   name,
		Confidence:   similarity.NameMatchConfidence(name, ev.Names),
	}
	if best, ok := similarity.BestNameMatch(name, ev.Names); ok {
		v.FoundValue = best
		v.SourceURL = ev.SourceOf(extract.Fold(best))
		v.NeedsUpdate = !strings.EqualFold(best, name)
	}
	return v, nil
}

// PositionAnalyzer verifies a role title and proposes a normalized one.
type PositionAnalyzer struct {
	searcher fetcher.Searcher
}

func (a *PositionAnalyzer) Field() model.Field { return model.FieldRoleTitle }

func (a *PositionAnalyzer) Applies(t model.Target) bool {
	return t.Type == model.TargetPolitician && t.Has(model.FieldRoleTitle)
}

func (a *PositionAnalyzer) Analyze(ctx context.Context, t model.Target) (model.FieldVerification, error) {
	title := t.Value(model.FieldRoleTitle)
	ev := a.searcher.Search(ctx, query(t, title))
	if err := ctx.Err(); err != nil {
		return model.FieldVerification{}, err
	}

	sentences := ev.Sentences()
	conf := PositionConfidence(title, t.Name(), sentences)
	status, statusConf, _ := ClassifyStatus(t.Name(), sentences)
	corrected := FormatOfficialTitle(ApplyStatusPrefix(title, status, statusConf))

	return model.FieldVerification{
		Field:        model.FieldRoleTitle,
		CurrentValue: title,
		FoundValue:   corrected,
		SourceURL:    ev.SourceOf(extract.Keywords(title, 3)...),
		Confidence:   conf,
		NeedsUpdate:  corrected != title && conf > positionThreshold,
	}, nil
}

// StatusAnalyzer classifies whether a politician is active, retired or
// deceased.
type StatusAnalyzer struct {
	searcher fetcher.Searcher
}

func (a *StatusAnalyzer) Field() model.Field { return model.FieldStatus }

func (a *StatusAnalyzer) Applies(t model.Target) bool { return t.Type == model.TargetPolitician }

func (a *StatusAnalyzer) Analyze(ctx context.Context, t model.Target) (model.FieldVerification, error) {
	current := t.Value(model.FieldStatus)
	ev := a.searcher.Search(ctx, query(t, current))
	if err := ctx.Err(); err != nil {
		return model.FieldVerification{}, err
	}

	status, conf, ok := ClassifyStatus(t.Name(), ev.Sentences())
	if !ok {
		// No classifiable sentence: keep what is stored.
		return echo(model.FieldStatus, current, "", conf), nil
	}
	terms := ActiveTerms
	switch status {
	case model.StatusRetired:
		terms = RetiredTerms
	case model.StatusDeceased:
		terms = DeceasedTerms
	}
	return model.FieldVerification{
		Field:        model.FieldStatus,
		CurrentValue: current,
		FoundValue:   string(status),
		SourceURL:    ev.SourceOf(terms...),
		Confidence:   conf,
		NeedsUpdate:  string(status) != current,
	}, nil
}

// ImageAnalyzer judges a profile image URL by where it is hosted. It makes no
// network calls.
type ImageAnalyzer struct {
	sources *fetcher.TrustedSources
}

func (a *ImageAnalyzer) Field() model.Field { return model.FieldProfileImage }

func (a *ImageAnalyzer) Applies(t model.Target) bool {
	return t.Type == model.TargetPolitician && t.Has(model.FieldProfileImage)
}

func (a *ImageAnalyzer) Analyze(_ context.Context, t model.Target) (model.FieldVerification, error) {
	raw := t.Value(model.FieldProfileImage)
	return echo(model.FieldProfileImage, raw, raw, ImageConfidence(raw, a.sources)), nil
}

// ImageConfidence scores an image URL: trusted host, any well-formed http(s)
// URL, or invalid.
func ImageConfidence(raw string, sources *fetcher.TrustedSources) float64 {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return PriorImageInvalid
	}
	if sources != nil && sources.Allowed(raw) {
		return trustedImageConfidence
	}
	return PriorImage
}

func birthDateScore(value, name string, sentences []string) float64 {
	return DateConfidence(value, name, sentences, PriorBirthDate)
}

func foundingDateScore(value, name string, sentences []string) float64 {
	return DateConfidence(value, name, sentences, PriorFoundingDate)
}

func bioScore(value, _ string, sentences []string) float64 {
	return BioConfidence(value, sentences)
}

// ForTarget returns every analyzer defined for a target type. Callers filter
// with Applies.
func ForTarget(tt model.TargetType, searcher fetcher.Searcher, sources *fetcher.TrustedSources) []Analyzer {
	switch tt {
	case model.TargetPolitician:
		return []Analyzer{
			&NameAnalyzer{targetType: tt, searcher: searcher},
			&PositionAnalyzer{searcher: searcher},
			&evidenceAnalyzer{field: model.FieldParty, targetType: tt, searcher: searcher, score: PartyConfidence, minKeyLen: 2},
			&evidenceAnalyzer{field: model.FieldBirthDate, targetType: tt, searcher: searcher, score: birthDateScore, minKeyLen: 3},
			&ImageAnalyzer{sources: sources},
			&evidenceAnalyzer{field: model.FieldEducation, targetType: tt, searcher: searcher, score: EducationConfidence, minKeyLen: 3},
			&evidenceAnalyzer{field: model.FieldBio, targetType: tt, searcher: searcher, score: bioScore, minKeyLen: 4},
			&StatusAnalyzer{searcher: searcher},
		}
	case model.TargetParty:
		return []Analyzer{
			&NameAnalyzer{targetType: tt, searcher: searcher},
			&evidenceAnalyzer{field: model.FieldFoundingDate, targetType: tt, searcher: searcher, score: foundingDateScore, minKeyLen: 3},
			&evidenceAnalyzer{field: model.FieldHeadquarters, targetType: tt, searcher: searcher, score: HeadquartersConfidence, minKeyLen: 3},
			&evidenceAnalyzer{field: model.FieldPartyPresident, targetType: tt, searcher: searcher, score: LeadershipConfidence, minKeyLen: 2},
		}
	}
	return nil
}

// Applicable filters analyzers to those that apply to t.
func Applicable(all []Analyzer, t model.Target) []Analyzer {
	var out []Analyzer
	for _, a := range all {
		if a.Applies(t) {
			out = append(out, a)
		}
	}
	return out
}
