package store

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/politica-cm/politica-scanner/internal/model"
)

// Queries use Postgres $n placeholders; the SQLite store rebinds them to ?n.

const selectPolitician = `SELECT id, name, COALESCE(role_title, ''), COALESCE(region, ''), COALESCE(party, ''),
	COALESCE(birth_date, ''), COALESCE(profile_image_url, ''), COALESCE(education, ''), COALESCE(bio, ''),
	COALESCE(status, 'Active')
	FROM politicians WHERE id = $1`

const selectParty = `SELECT id, name, COALESCE(party_president, ''), COALESCE(founding_date, ''),
	COALESCE(headquarters_address, '')
	FROM political_parties WHERE id = $1`

const upsertPolitician = `INSERT INTO politicians
	(id, name, role_title, region, party, birth_date, profile_image_url, education, bio, status, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, role_title = EXCLUDED.role_title, region = EXCLUDED.region,
		party = EXCLUDED.party, birth_date = EXCLUDED.birth_date,
		profile_image_url = EXCLUDED.profile_image_url, education = EXCLUDED.education,
		bio = EXCLUDED.bio, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`

const upsertParty = `INSERT INTO political_parties
	(id, name, party_president, founding_date, headquarters_address, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, party_president = EXCLUDED.party_president,
		founding_date = EXCLUDED.founding_date, headquarters_address = EXCLUDED.headquarters_address,
		updated_at = EXCLUDED.updated_at`

const insertScanLog = `INSERT INTO politica_ai_logs
	(id, target_type, target_id, action_type, status, ai_confidence_score, sources_verified, changes_made, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const completeScanLog = `UPDATE politica_ai_logs
	SET status = $1, ai_confidence_score = $2, sources_verified = $3, changes_made = $4, completed_at = $5
	WHERE id = $6`

const selectScanLogs = `SELECT id, target_type, target_id, action_type, status, ai_confidence_score,
	sources_verified, changes_made, COALESCE(error, ''), created_at, completed_at
	FROM politica_ai_logs`

const failStaleScanLogs = `UPDATE politica_ai_logs
	SET status = $1, error = $2, completed_at = $3
	WHERE status = $4 AND created_at < $5`

// updateTargetSQL builds a partial UPDATE for the given columns. Values bind
// to $1..$n, updated_at to $n+1 and the id to $n+2.
func updateTargetSQL(table string, cols []string) string {
	sets := make([]string, 0, len(cols)+1)
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{c}.Sanitize(), i+1))
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(cols)+1))
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(sets, ", "), len(cols)+2)
}

func upsertVerificationSQL(t tables) string {
	return fmt.Sprintf(`INSERT INTO %s
	(%s, last_verified_at, verification_status, verification_score, sources_count,
	 last_sources_checked, outdated_fields, disputed_fields)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (%s) DO UPDATE SET
		last_verified_at = EXCLUDED.last_verified_at,
		verification_status = EXCLUDED.verification_status,
		verification_score = EXCLUDED.verification_score,
		sources_count = EXCLUDED.sources_count,
		last_sources_checked = EXCLUDED.last_sources_checked,
		outdated_fields = EXCLUDED.outdated_fields,
		disputed_fields = EXCLUDED.disputed_fields`, t.ledger, t.ledgerKey, t.ledgerKey)
}

func selectVerificationSQL(t tables) string {
	return fmt.Sprintf(`SELECT %s, last_verified_at, verification_status, verification_score, sources_count,
	last_sources_checked, outdated_fields, disputed_fields
	FROM %s WHERE %s = $1`, t.ledgerKey, t.ledger, t.ledgerKey)
}

// listScanLogsSQL appends the filter to selectScanLogs.
func listScanLogsSQL(f ScanLogFilter) (string, []any) {
	q := selectScanLogs + ` WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.TargetID != "" {
		args = append(args, f.TargetID)
		q += fmt.Sprintf(` AND target_id = $%d`, len(args))
	}
	if !f.CreatedAfter.IsZero() {
		args = append(args, f.CreatedAfter.UTC())
		q += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLogLimit
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))
	return q, args
}

func politicianArgs(p *model.Politician, now time.Time) []any {
	status := p.Status
	if status == "" {
		status = string(model.StatusActive)
	}
	return []any{p.ID, p.Name, p.RoleTitle, p.Region, p.Party, p.BirthDate,
		p.ProfileImageURL, p.Education, p.Bio, status, now}
}

func partyArgs(p *model.PoliticalParty, now time.Time) []any {
	return []any{p.ID, p.Name, p.PartyPresident, p.FoundingDate, p.HeadquartersAddress, now}
}

type scannable interface {
	Scan(dest ...any) error
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

func scanTarget(tt model.TargetType, row scannable) (*model.Target, error) {
	switch tt {
	case model.TargetPolitician:
		var p model.Politician
		if err := row.Scan(&p.ID, &p.Name, &p.RoleTitle, &p.Region, &p.Party, &p.BirthDate,
			&p.ProfileImageURL, &p.Education, &p.Bio, &p.Status); err != nil {
			return nil, err
		}
		t := model.PoliticianTarget(p)
		return &t, nil
	default:
		var p model.PoliticalParty
		if err := row.Scan(&p.ID, &p.Name, &p.PartyPresident, &p.FoundingDate, &p.HeadquartersAddress); err != nil {
			return nil, err
		}
		t := model.PartyTarget(p)
		return &t, nil
	}
}

func scanLedger(tt model.TargetType, row scannable) (*model.LedgerEntry, error) {
	e := model.LedgerEntry{TargetType: tt}
	var j ledgerJSON
	var status string
	if err := row.Scan(&e.TargetID, &e.LastVerifiedAt, &status, &e.VerificationScore, &e.SourcesCount,
		&j.sources, &j.outdated, &j.disputed); err != nil {
		return nil, err
	}
	e.VerificationStatus = model.VerificationStatus(status)
	if err := decodeLedger(&e, j); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanLogEntry(row scannable) (*model.ScanLogEntry, error) {
	var e model.ScanLogEntry
	var j logJSON
	var targetType, status string
	var completed sql.NullTime
	if err := row.Scan(&e.ID, &targetType, &e.TargetID, &e.ActionType, &status, &e.AIConfidenceScore,
		&j.sources, &j.changes, &e.Error, &e.CreatedAt, &completed); err != nil {
		return nil, err
	}
	e.TargetType = model.TargetType(targetType)
	e.Status = model.ScanLogStatus(status)
	if completed.Valid {
		t := completed.Time
		e.CompletedAt = &t
	}
	if err := decodeLog(&e, j); err != nil {
		return nil, err
	}
	return &e, nil
}

func selectTargetSQL(tt model.TargetType) string {
	if tt == model.TargetParty {
		return selectParty
	}
	return selectPolitician
}

func upsertTargetSQL(t model.Target, now time.Time) (string, []any, error) {
	switch {
	case t.Type == model.TargetPolitician && t.Politician != nil:
		return upsertPolitician, politicianArgs(t.Politician, now), nil
	case t.Type == model.TargetParty && t.Party != nil:
		return upsertParty, partyArgs(t.Party, now), nil
	}
	return "", nil, eris.Errorf("store: target of type %q carries no record", t.Type)
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// rebind converts $n placeholders to SQLite's ?n form.
func rebind(q string) string {
	return placeholderRe.ReplaceAllString(q, "?$1")
}
