package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"proofbuild/internal/config"
	"proofbuild/internal/pipeline"
)

// Outcome summarizes how a run ended.
type Outcome string

const (
	OutcomeReady   Outcome = "ready"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

// Trigger names what started a run.
const (
	TriggerPoll   = "poll"
	TriggerResume = "resume"
)

const defaultLimit = 50

// Entry is one ledger row.
type Entry struct {
	RunID        string         `json:"runId"`
	ProjectID    string         `json:"projectId"`
	Trigger      string         `json:"trigger"`
	StartedAt    time.Time      `json:"startedAt"`
	FinishedAt   time.Time      `json:"finishedAt"`
	StartStage   pipeline.Stage `json:"startStage"`
	FinalStage   pipeline.Stage `json:"finalStage"`
	Outcome      Outcome        `json:"outcome"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}

// Duration is the wall time of the run.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Recorder accepts finished runs.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Store manages the ledger backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// OpenFromConfig opens the ledger at cfg.RunLogPath().
func OpenFromConfig(cfg *config.Config) (*Store, error) {
	return Open(cfg.RunLogPath())
}

// Open initializes or connects to the ledger database.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
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

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts a finished run.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.RunID) == "" || strings.TrimSpace(entry.ProjectID) == "" {
		return errors.New("runlog: run id and project id are required")
	}
	if entry.Trigger == "" {
		entry.Trigger = TriggerPoll
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO runs (
                run_id, project_id, run_trigger, started_at, finished_at,
                start_stage, final_stage, outcome, error_message
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.RunID,
			entry.ProjectID,
			entry.Trigger,
			entry.StartedAt.UTC().Format(time.RFC3339Nano),
			entry.FinishedAt.UTC().Format(time.RFC3339Nano),
			string(entry.StartStage),
			string(entry.FinalStage),
			string(entry.Outcome),
			nullableString(entry.ErrorMessage),
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return nil
	})
}

// Recent returns the newest runs first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx, "", limit)
}

// ForProject returns the newest runs of one project first.
func (s *Store) ForProject(ctx context.Context, projectID string, limit int) ([]Entry, error) {
	return s.query(ctx, projectID, limit)
}

func (s *Store) query(ctx context.Context, projectID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	query := `SELECT run_id, project_id, run_trigger, started_at, finished_at,
                     start_stage, final_stage, outcome, error_message
              FROM runs`
	args := []any{}
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY started_at DESC, run_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		entry                 Entry
		started, finished     string
		startStage, lastStage string
		outcome               string
		errorMessage          sql.NullString
	)
	if err := rows.Scan(&entry.RunID, &entry.ProjectID, &entry.Trigger, &started, &finished,
		&startStage, &lastStage, &outcome, &errorMessage); err != nil {
		return Entry{}, fmt.Errorf("scan run: %w", err)
	}
	entry.StartedAt = parseTime(started)
	entry.FinishedAt = parseTime(finished)
	entry.StartStage = pipeline.Stage(startStage)
	entry.FinalStage = pipeline.Stage(lastStage)
	entry.Outcome = Outcome(outcome)
	entry.ErrorMessage = errorMessage.String
	return entry, nil
}

func parseTime(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
