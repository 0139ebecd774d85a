package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/platewise/recipe-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	source_url     TEXT NOT NULL,
	platform       TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	method         TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	failure        TEXT,
	failure_detail TEXT,
	preflight      TEXT,
	recipe         TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_source_url ON runs(source_url);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, sourceURL string, platform model.Platform) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source_url, platform, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, sourceURL, string(platform), string(model.RunRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		SourceURL: sourceURL,
		Platform:  platform,
		Status:    model.RunRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) AttachPreflight(ctx context.Context, runID string, pf *model.PreflightResult) error {
	pfJSON, err := json.Marshal(pf)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal preflight")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET preflight = ?, updated_at = ? WHERE id = ?`,
		string(pfJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: attach preflight %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, method model.ExtractionMethod, retryCount int, recipe *model.Recipe) error {
	recipeJSON, err := json.Marshal(recipe)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal recipe")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, method = ?, retry_count = ?, recipe = ?, updated_at = ? WHERE id = ?`,
		string(model.RunSucceeded), string(method), retryCount, string(recipeJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, retryCount int, failure model.FailureReason, detail string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, retry_count = ?, failure = ?, failure_detail = ?, updated_at = ? WHERE id = ?`,
		string(model.RunFailed), retryCount, string(failure), detail, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		runSelect+` WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) GetRunBySourceURL(ctx context.Context, sourceURL string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		runSelect+` WHERE source_url = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		sourceURL,
	)
	r, err := scanRun(row)
	if eris.Is(err, errRunNotFound) {
		return nil, nil
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := runSelect + ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SourceURL != "" {
		query += ` AND source_url = ?`
		args = append(args, filter.SourceURL)
	}
	if filter.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, string(filter.Platform))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

const runSelect = `SELECT id, source_url, platform, status, method, retry_count, failure, failure_detail, preflight, recipe, created_at, updated_at FROM runs`

var errRunNotFound = eris.New("run not found")

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var method, failure, detail, pfJSON, recipeJSON sql.NullString

	err := row.Scan(&r.ID, &r.SourceURL, &r.Platform, &r.Status, &method,
		&r.RetryCount, &failure, &detail, &pfJSON, &recipeJSON,
		&r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Method = model.ExtractionMethod(method.String)
	r.Failure = model.FailureReason(failure.String)
	r.FailureDetail = detail.String
	if pfJSON.Valid && pfJSON.String != "" {
		r.Preflight = &model.PreflightResult{}
		if err := json.Unmarshal([]byte(pfJSON.String), r.Preflight); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal preflight")
		}
	}
	if recipeJSON.Valid && recipeJSON.String != "" {
		r.Recipe = &model.Recipe{}
		if err := json.Unmarshal([]byte(recipeJSON.String), r.Recipe); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal recipe")
		}
	}
	return &r, nil
}
