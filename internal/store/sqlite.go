package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailagent/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if strings.Contains(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveRun inserts a run and all of its step outcomes in one transaction.
func (s *SQLiteStore) SaveRun(
	ctx context.Context,
	task string,
	result *model.TaskResult,
) (string, error) {
	if result == nil {
		return "", errors.New("saving run: nil result")
	}

	id := uuid.New().String()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, task, plan, status, step_count, failure_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, task, result.Plan, result.Status,
		len(result.Results), len(result.Failures()), s.now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO run_steps (
			run_id, position, operation, raw_text,
			status, error, result, diagnostics
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing step statement: %w", err)
	}
	defer stmt.Close()

	for i, o := range result.Results {
		step, err := toRunStep(id, i+1, o)
		if err != nil {
			return "", err
		}

		_, err = stmt.ExecContext(ctx,
			step.RunID, step.Position, step.Operation, step.RawText,
			step.Status, step.Error, step.Result, step.Diagnostics,
		)
		if err != nil {
			return "", fmt.Errorf("inserting step %d: %w", step.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// GetRun retrieves a run and its steps by id.
func (s *SQLiteStore) GetRun(
	ctx context.Context,
	id string,
) (*model.RunRecord, error) {
	var run model.RunRecord
	err := s.db.GetContext(ctx, &run, `
		SELECT id, task, plan, status, step_count, failure_count, created_at
		FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}

	err = s.db.SelectContext(ctx, &run.Steps, `
		SELECT run_id, position, operation, raw_text,
			status, error, result, diagnostics
		FROM run_steps WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("getting steps for run %s: %w", id, err)
	}

	return &run, nil
}

// ListRuns retrieves runs matching filter, newest first.
func (s *SQLiteStore) ListRuns(
	ctx context.Context,
	filter RunFilter,
) ([]model.RunRecord, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}

	query := `SELECT id, task, plan, status, step_count, failure_count, created_at FROM runs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	var runs []model.RunRecord
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run; its steps cascade.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// toRunStep flattens an outcome into its stored form.
func toRunStep(runID string, position int, o model.StepOutcome) (model.RunStep, error) {
	step := model.RunStep{
		RunID:     runID,
		Position:  position,
		Operation: string(o.Step.Operation),
		RawText:   o.Step.RawText,
		Status:    model.StatusSuccess,
		Error:     o.Error,
	}
	if o.IsFailure() {
		step.Status = model.StatusFailed
	}

	if o.Result != nil {
		data, err := json.Marshal(o.Result)
		if err != nil {
			return model.RunStep{}, fmt.Errorf("marshaling result of step %d: %w", position, err)
		}
		step.Result = string(data)
	}

	if len(o.Diagnostics) > 0 {
		data, err := json.Marshal(o.Diagnostics)
		if err != nil {
			return model.RunStep{}, fmt.Errorf("marshaling diagnostics of step %d: %w", position, err)
		}
		step.Diagnostics = string(data)
	}

	return step, nil
}
