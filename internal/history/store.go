// Package history records finished runs in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dkoosis/kind2run/pkg/event"
	"github.com/dkoosis/kind2run/pkg/outcome"
	"github.com/dkoosis/kind2run/pkg/result"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Store is the run history database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Run is one recorded run.
type Run struct {
	ID       string
	Name     string
	State    string
	Started  time.Time
	Finished time.Time
	ExitCode int
	Error    string
	// Counts tallies property statuses by name, e.g. "VALID".
	Counts map[string]int
}

// Property is one recorded property row.
type Property struct {
	Name    string
	Status  string
	Source  string
	K       int
	Runtime float64
}

// Open creates or opens the history database at path, creating parent
// directories as needed.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}
	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		db.Close()
		return nil, fmt.Errorf("set user_version: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores a finished run and its properties. Recording the same run
// ID twice replaces the earlier rows.
func (s *Store) Record(ctx context.Context, snap result.Snapshot, exitCode int, runErr error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, snap.ID); err != nil {
		return fmt.Errorf("replace run: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, name, state, started, finished, exit_code, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Name, snap.State.String(),
		snap.Started.UTC().Format(timeLayout), snap.Finished.UTC().Format(timeLayout),
		exitCode, errText,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, pr := range snap.Properties {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO properties (run_id, position, name, status, source, k, runtime_seconds)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			snap.ID, i, pr.Name, pr.Status().String(),
			outcome.SourceOf(pr.Property), depth(pr), outcome.RuntimeOf(pr.Property),
		)
		if err != nil {
			return fmt.Errorf("insert property %s: %w", pr.Name, err)
		}
	}
	return tx.Commit()
}

// List returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, name, state, started, finished, exit_code, error FROM runs ORDER BY started DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	for i := range runs {
		if runs[i].Counts, err = s.counts(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// Get returns one run with its properties in their recorded order.
func (s *Store) Get(ctx context.Context, id string) (Run, []Property, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, state, started, finished, exit_code, error FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, nil, err
	}
	if r.Counts, err = s.counts(ctx, id); err != nil {
		return Run{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, status, source, k, runtime_seconds FROM properties
		WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return Run{}, nil, fmt.Errorf("get properties: %w", err)
	}
	defer rows.Close()

	var props []Property
	for rows.Next() {
		var p Property
		if err := rows.Scan(&p.Name, &p.Status, &p.Source, &p.K, &p.Runtime); err != nil {
			return Run{}, nil, fmt.Errorf("scan property: %w", err)
		}
		props = append(props, p)
	}
	return r, props, rows.Err()
}

func (s *Store) counts(ctx context.Context, id string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM properties WHERE run_id = ? GROUP BY status`, id)
	if err != nil {
		return nil, fmt.Errorf("count properties: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var started, finished string
	if err := sc.Scan(&r.ID, &r.Name, &r.State, &started, &finished, &r.ExitCode, &r.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan run: %w", err)
	}
	var err error
	if r.Started, err = time.Parse(timeLayout, started); err != nil {
		return r, fmt.Errorf("run %s started: %w", r.ID, err)
	}
	if r.Finished, err = time.Parse(timeLayout, finished); err != nil {
		return r, fmt.Errorf("run %s finished: %w", r.ID, err)
	}
	return r, nil
}

// ObserveEvent is a no-op; only finished runs are recorded.
func (s *Store) ObserveEvent(event.Event) {}

// ObserveRun records the run. Failures are logged, not returned.
func (s *Store) ObserveRun(snap result.Snapshot, exitCode int, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if recErr := s.Record(ctx, snap, exitCode, err); recErr != nil {
		s.logger.Warn("recording run history", "run", snap.ID, "error", recErr)
	}
}

func depth(pr result.PropertyResult) int {
	switch v := pr.Property.(type) {
	case outcome.Valid:
		return v.K
	case outcome.Inconsistent:
		return v.K
	case outcome.Unknown:
		return v.TrueFor
	case outcome.Invalid:
		return v.Counterexample.Length
	}
	return pr.BaseProgress
}
