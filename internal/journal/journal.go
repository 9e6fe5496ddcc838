// Package journal keeps a local SQLite history of mutating curation runs so a
// user can see which ROMs a past delete or move touched.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"nogal/internal/curate"
)

// Store is the run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Run is one recorded curation run.
type Run struct {
	ID          string             `json:"id" yaml:"id"`
	Disposition curate.Disposition `json:"disposition" yaml:"disposition"`
	Status      curate.Status      `json:"status" yaml:"status"`
	Directory   string             `json:"directory" yaml:"directory"`
	BackupDir   string             `json:"backup_dir,omitempty" yaml:"backup_dir,omitempty"`
	Filter      string             `json:"filter" yaml:"filter"`
	Videos      bool               `json:"videos" yaml:"videos"`
	Matched     int                `json:"matched" yaml:"matched"`
	Succeeded   int                `json:"succeeded" yaml:"succeeded"`
	Failed      int                `json:"failed" yaml:"failed"`
	StartedAt   time.Time          `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time          `json:"finished_at" yaml:"finished_at"`
}

// Action is one recorded file outcome within a run.
type Action struct {
	Seq         int               `json:"seq" yaml:"seq"`
	Kind        curate.ActionKind `json:"kind" yaml:"kind"`
	ROM         string            `json:"rom" yaml:"rom"`
	Name        string            `json:"file" yaml:"file"`
	Source      string            `json:"source" yaml:"source"`
	Destination string            `json:"destination,omitempty" yaml:"destination,omitempty"`
	Error       string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// Succeeded reports whether the file was handled.
func (a Action) Succeeded() bool {
	return a.Error == ""
}

var (
	// ErrRunNotFound is returned for an unknown run ID.
	ErrRunNotFound = errors.New("run not found")
	// ErrAmbiguousRun is returned when an ID prefix matches several runs.
	ErrAmbiguousRun = errors.New("run id prefix is ambiguous")
)

// Open creates or connects to the history database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record stores a finished run and each of its file actions, returning the
// generated run ID.
func (s *Store) Record(ctx context.Context, report curate.Report) (string, error) {
	id := uuid.NewString()
	err := retryOnBusy(ctx, func() error {
		return s.insertRun(ctx, id, report)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) insertRun(ctx context.Context, id string, report curate.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (
            id, disposition, status, directory, backup_dir, filter, videos,
            matched, succeeded, failed, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		string(report.Disposition),
		string(report.Status),
		report.Directory,
		nullableString(report.BackupDir),
		report.Filter.String(),
		boolToInt(report.Videos),
		len(report.Matches),
		report.Succeeded,
		report.Failed,
		formatTime(report.StartedAt),
		formatTime(report.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO actions (run_id, seq, kind, rom, name, source, destination, error_message)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare action insert: %w", err)
	}
	defer stmt.Close()

	for i, a := range report.Actions {
		var errMsg string
		if a.Err != nil {
			errMsg = a.Err.Error()
		}
		if _, err := stmt.ExecContext(ctx,
			id, i+1, string(a.Kind), a.ROM, a.Name, a.Source,
			nullableString(a.Destination), nullableString(errMsg),
		); err != nil {
			return fmt.Errorf("insert action %s: %w", a.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `id, disposition, status, directory, backup_dir, filter, videos,
    matched, succeeded, failed, started_at, finished_at`

// Recent returns up to limit runs, newest first. A non-positive limit returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Get returns a single run.
func (s *Store) Get(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// Resolve expands a run ID prefix to the full ID.
func (s *Store) Resolve(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrRunNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM runs WHERE substr(id, 1, ?) = ? ORDER BY id LIMIT 2`, len(prefix), prefix)
	if err != nil {
		return "", fmt.Errorf("resolve run: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate run ids: %w", err)
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousRun, prefix)
	}
}

// Actions returns the file actions of one run in execution order.
func (s *Store) Actions(ctx context.Context, runID string) ([]Action, error) {
	if _, err := s.Get(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, kind, rom, name, source, destination, error_message
         FROM actions WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	actions := make([]Action, 0)
	for rows.Next() {
		var (
			a           Action
			kind        string
			destination sql.NullString
			errMsg      sql.NullString
		)
		if err := rows.Scan(&a.Seq, &kind, &a.ROM, &a.Name, &a.Source, &destination, &errMsg); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Kind = curate.ActionKind(kind)
		a.Destination = destination.String
		a.Error = errMsg.String
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return actions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run         Run
		disposition string
		status      string
		backupDir   sql.NullString
		videos      int
		startedAt   string
		finishedAt  string
	)
	err := row.Scan(
		&run.ID, &disposition, &status, &run.Directory, &backupDir, &run.Filter, &videos,
		&run.Matched, &run.Succeeded, &run.Failed, &startedAt, &finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Disposition = curate.Disposition(disposition)
	run.Status = curate.Status(status)
	run.BackupDir = backupDir.String
	run.Videos = videos != 0
	run.StartedAt = parseTime(startedAt)
	run.FinishedAt = parseTime(finishedAt)
	return run, nil
}
