package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// TargetType identifies which kind of record a scan verifies.
type TargetType string

const (
	TargetPolitician TargetType = "politician"
	TargetParty      TargetType = "political_party"
)

// ParseTargetType validates a raw target type string.
func ParseTargetType(s string) (TargetType, error) {
	switch TargetType(strings.TrimSpace(s)) {
	case TargetPolitician:
		return TargetPolitician, nil
	case TargetParty:
		return TargetParty, nil
	default:
		return "", eris.Errorf("model: unknown target type %q", s)
	}
}

// Field names a verifiable attribute. Values match the database columns.
type Field string

const (
	FieldName           Field = "name"
	FieldRoleTitle      Field = "role_title"
	FieldParty          Field = "party"
	FieldBirthDate      Field = "birth_date"
	FieldProfileImage   Field = "profile_image_url"
	FieldEducation      Field = "education"
	FieldBio            Field = "bio"
	FieldStatus         Field = "status"
	FieldFoundingDate   Field = "founding_date"
	FieldHeadquarters   Field = "headquarters_address"
	FieldPartyPresident Field = "party_president"
)

// PersonStatus classifies whether a politician currently holds office.
type PersonStatus string

const (
	StatusActive   PersonStatus = "Active"
	StatusRetired  PersonStatus = "Retired"
	StatusDeceased PersonStatus = "Deceased"
)

// Politician is a person record subject to verification.
type Politician struct {
	ID              string `json:"id" yaml:"id" csv:"id"`
	Name            string `json:"name" yaml:"name" csv:"name"`
	RoleTitle       string `json:"role_title,omitempty" yaml:"role_title,omitempty" csv:"role_title,omitempty"`
	Region          string `json:"region,omitempty" yaml:"region,omitempty" csv:"region,omitempty"`
	Party           string `json:"party,omitempty" yaml:"party,omitempty" csv:"party,omitempty"`
	BirthDate       string `json:"birth_date,omitempty" yaml:"birth_date,omitempty" csv:"birth_date,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty" yaml:"profile_image_url,omitempty" csv:"profile_image_url,omitempty"`
	Education       string `json:"education,omitempty" yaml:"education,omitempty" csv:"education,omitempty"`
	Bio             string `json:"bio,omitempty" yaml:"bio,omitempty" csv:"bio,omitempty"`
	Status          string `json:"status,omitempty" yaml:"status,omitempty" csv:"status,omitempty"`
}

// PoliticalParty is a party record subject to verification.
type PoliticalParty struct {
	ID                  string `json:"id" yaml:"id" csv:"id"`
	Name                string `json:"name" yaml:"name" csv:"name"`
	PartyPresident      string `json:"party_president,omitempty" yaml:"party_president,omitempty" csv:"party_president,omitempty"`
	FoundingDate        string `json:"founding_date,omitempty" yaml:"founding_date,omitempty" csv:"founding_date,omitempty"`
	HeadquartersAddress string `json:"headquarters_address,omitempty" yaml:"headquarters_address,omitempty" csv:"headquarters_address,omitempty"`
}

// Target wraps exactly one of Politician or Party.
type Target struct {
	Type       TargetType      `json:"target_type"`
	Politician *Politician     `json:"politician,omitempty"`
	Party      *PoliticalParty `json:"party,omitempty"`
}

// PoliticianTarget wraps a politician record.
func PoliticianTarget(p Politician) Target {
	return Target{Type: TargetPolitician, Politician: &p}
}

// PartyTarget wraps a party record.
func PartyTarget(p PoliticalParty) Target {
	return Target{Type: TargetParty, Party: &p}
}

// ID returns the primary key of the wrapped record.
func (t Target) ID() string {
	switch {
	case t.Politician != nil:
		return t.Politician.ID
	case t.Party != nil:
		return t.Party.ID
	}
	return ""
}

// Name returns the entity name used as the search anchor.
func (t Target) Name() string {
	return t.Value(FieldName)
}

// Value returns the current value of a field, or "" when the field does not
// exist for this target type.
func (t Target) Value(f Field) string {
	if p := t.Politician; p != nil {
		switch f {
		case FieldName:
			return p.Name
		case FieldRoleTitle:
			return p.RoleTitle
		case FieldParty:
			return p.Party
		case FieldBirthDate:
			return p.BirthDate
		case FieldProfileImage:
			return p.ProfileImageURL
		case FieldEducation:
			return p.Education
		case FieldBio:
			return p.Bio
		case FieldStatus:
			if p.Status == "" {
				return string(StatusActive)
			}
			return p.Status
		}
		return ""
	}
	if p := t.Party; p != nil {
		switch f {
		case FieldName:
			return p.Name
		case FieldPartyPresident:
			return p.PartyPresident
		case FieldFoundingDate:
			return p.FoundingDate
		case FieldHeadquarters:
			return p.HeadquartersAddress
		}
	}
	return ""
}

// Has reports whether the field carries a non-blank value.
func (t Target) Has(f Field) bool {
	return strings.TrimSpace(t.Value(f)) != ""
}

// Updatable lists the columns the update applier may write for a target type.
func Updatable(tt TargetType) []Field {
	switch tt {
	case TargetPolitician:
		return []Field{FieldName, FieldRoleTitle, FieldParty, FieldBirthDate,
			FieldProfileImage, FieldEducation, FieldBio, FieldStatus}
	case TargetParty:
		return []Field{FieldName, FieldPartyPresident, FieldFoundingDate, FieldHeadquarters}
	}
	return nil
}

// CanUpdate reports whether f is a writable column for tt.
func CanUpdate(tt TargetType, f Field) bool {
	for _, u := range Updatable(tt) {
		if u == f {
			return true
		}
	}
	return false
}
