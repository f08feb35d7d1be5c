package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/politica-cm/politica-scanner/internal/model"
)

// sqlQuerier is satisfied by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) q() sqlQuerier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS politicians (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	role_title        TEXT,
	region            TEXT,
	party             TEXT,
	birth_date        TEXT,
	profile_image_url TEXT,
	education         TEXT,
	bio               TEXT,
	status            TEXT NOT NULL DEFAULT 'Active',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS political_parties (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	party_president      TEXT,
	founding_date        TEXT,
	headquarters_address TEXT,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS politician_ai_verification (
	politician_id        TEXT PRIMARY KEY REFERENCES politicians(id) ON DELETE CASCADE,
	last_verified_at     DATETIME NOT NULL,
	verification_status  TEXT NOT NULL,
	verification_score   REAL NOT NULL DEFAULT 0,
	sources_count        INTEGER NOT NULL DEFAULT 0,
	last_sources_checked TEXT NOT NULL DEFAULT '[]',
	outdated_fields      TEXT NOT NULL DEFAULT '[]',
	disputed_fields      TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS party_ai_verification (
	party_id             TEXT PRIMARY KEY REFERENCES political_parties(id) ON DELETE CASCADE,
	last_verified_at     DATETIME NOT NULL,
	verification_status  TEXT NOT NULL,
	verification_score   REAL NOT NULL DEFAULT 0,
	sources_count        INTEGER NOT NULL DEFAULT 0,
	last_sources_checked TEXT NOT NULL DEFAULT '[]',
	outdated_fields      TEXT NOT NULL DEFAULT '[]',
	disputed_fields      TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS politica_ai_logs (
	id                  TEXT PRIMARY KEY,
	target_type         TEXT NOT NULL,
	target_id           TEXT NOT NULL,
	action_type         TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'pending',
	ai_confidence_score REAL NOT NULL DEFAULT 0,
	sources_verified    TEXT NOT NULL DEFAULT '[]',
	changes_made        TEXT NOT NULL DEFAULT '[]',
	error               TEXT,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at        DATETIME
);

CREATE INDEX IF NOT EXISTS idx_politica_ai_logs_status_created ON politica_ai_logs(status, created_at);
CREATE INDEX IF NOT EXISTS idx_politica_ai_logs_target ON politica_ai_logs(target_type, target_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(&SQLiteStore{db: s.db, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			zap.L().Warn("sqlite: rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func (s *SQLiteStore) GetTarget(ctx context.Context, tt model.TargetType, id string) (*model.Target, error) {
	if _, err := tablesFor(tt); err != nil {
		return nil, err
	}
	t, err := scanTarget(tt, s.q().QueryRowContext(ctx, rebind(selectTargetSQL(tt)), id))
	if err != nil {
		if isNoRows(err) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: %s %s", tt, id)
		}
		return nil, eris.Wrapf(err, "sqlite: get %s %s", tt, id)
	}
	return t, nil
}

func (s *SQLiteStore) SaveTarget(ctx context.Context, t model.Target) error {
	query, args, err := upsertTargetSQL(t, time.Now().UTC())
	if err != nil {
		return err
	}
	_, err = s.q().ExecContext(ctx, rebind(query), args...)
	return eris.Wrapf(err, "sqlite: save %s %s", t.Type, t.ID())
}

func (s *SQLiteStore) UpdateTarget(ctx context.Context, tt model.TargetType, id string, updates map[model.Field]string) error {
	tbl, err := tablesFor(tt)
	if err != nil {
		return err
	}
	cols, vals, err := updateColumns(tt, updates)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}

	args := append(vals, time.Now().UTC(), id)
	res, err := s.q().ExecContext(ctx, rebind(updateTargetSQL(tbl.entity, cols)), args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s %s", tt, id)
	}
	return checkRowsAffected(res, string(tt), id)
}

func (s *SQLiteStore) UpsertVerification(ctx context.Context, e model.LedgerEntry) error {
	tbl, err := tablesFor(e.TargetType)
	if err != nil {
		return err
	}
	j, err := encodeLedger(e)
	if err != nil {
		return err
	}
	_, err = s.q().ExecContext(ctx, rebind(upsertVerificationSQL(tbl)),
		e.TargetID, e.LastVerifiedAt.UTC(), string(e.VerificationStatus), e.VerificationScore, e.SourcesCount,
		string(j.sources), string(j.outdated), string(j.disputed),
	)
	return eris.Wrapf(err, "sqlite: upsert verification %s", e.TargetID)
}

func (s *SQLiteStore) GetVerification(ctx context.Context, tt model.TargetType, id string) (*model.LedgerEntry, error) {
	tbl, err := tablesFor(tt)
	if err != nil {
		return nil, err
	}
	e, err := scanLedger(tt, s.q().QueryRowContext(ctx, rebind(selectVerificationSQL(tbl)), id))
	if err != nil {
		if isNoRows(err) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: verification %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get verification %s", id)
	}
	return e, nil
}

func (s *SQLiteStore) CreateScanLog(ctx context.Context, e *model.ScanLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	j, err := encodeLog(e.SourcesVerified, e.ChangesMade)
	if err != nil {
		return err
	}
	_, err = s.q().ExecContext(ctx, rebind(insertScanLog),
		e.ID, string(e.TargetType), e.TargetID, e.ActionType, string(e.Status), e.AIConfidenceScore,
		string(j.sources), string(j.changes), e.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert scan log %s", e.ID)
}

func (s *SQLiteStore) CompleteScanLog(ctx context.Context, id string, score float64, sources []string, changes []model.FieldChange, completedAt time.Time) error {
	j, err := encodeLog(sources, changes)
	if err != nil {
		return err
	}
	res, err := s.q().ExecContext(ctx, rebind(completeScanLog),
		string(model.ScanLogCompleted), score, string(j.sources), string(j.changes), completedAt.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete scan log %s", id)
	}
	return checkRowsAffected(res, "scan log", id)
}

func (s *SQLiteStore) GetScanLog(ctx context.Context, id string) (*model.ScanLogEntry, error) {
	e, err := scanLogEntry(s.q().QueryRowContext(ctx, rebind(selectScanLogs+` WHERE id = $1`), id))
	if err != nil {
		if isNoRows(err) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: scan log %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get scan log %s", id)
	}
	return e, nil
}

func (s *SQLiteStore) ListScanLogs(ctx context.Context, filter ScanLogFilter) ([]model.ScanLogEntry, error) {
	query, args := listScanLogsSQL(filter)
	rows, err := s.q().QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scan logs")
	}
	defer func() { _ = rows.Close() }()

	var out []model.ScanLogEntry
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan log row")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list scan logs iterate")
}

func (s *SQLiteStore) FailStaleScanLogs(ctx context.Context, olderThan time.Time, reason string) (int64, error) {
	res, err := s.q().ExecContext(ctx, rebind(failStaleScanLogs),
		string(model.ScanLogFailed), reason, time.Now().UTC(), string(model.ScanLogPending), olderThan.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: fail stale scan logs")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", entity, id)
	}
	return nil
}
