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
)

// timeLayout is fixed width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Outcome summarizes a stop attempt.
type Outcome string

const (
	OutcomeStopped Outcome = "stopped"
	OutcomeFailed  Outcome = "failed"
)

// Entry is one recorded stop attempt.
type Entry struct {
	ID            string
	CorrelationID string
	Path          string
	Port          int
	Outcome       Outcome
	FailureKind   string
	FailedOp      string
	Message       string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Duration returns how long the attempt took.
func (e Entry) Duration() time.Duration {
	if e.FinishedAt.Before(e.StartedAt) {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// Journal persists stop attempts in SQLite.
type Journal struct {
	db   *sql.DB
	path string
}

// Open creates or opens the journal at dbPath and applies migrations.
func Open(dbPath string) (*Journal, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
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

	j := &Journal{db: db, path: dbPath}
	if err := j.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the database file location.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record stores e, assigning an ID when empty, and returns the stored entry.
func (j *Journal) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC()
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = e.StartedAt
	}
	if e.Outcome == "" {
		return Entry{}, errors.New("journal entry requires an outcome")
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO stop_attempts (
            id, correlation_id, lookup_path, registry_port, outcome,
            failure_kind, failed_op, message, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		nullableString(e.CorrelationID),
		e.Path,
		e.Port,
		string(e.Outcome),
		nullableString(e.FailureKind),
		nullableString(e.FailedOp),
		nullableString(e.Message),
		e.StartedAt.UTC().Format(timeLayout),
		e.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert stop attempt: %w", err)
	}
	return e, nil
}

// List returns the most recent entries first. A limit <= 0 returns all.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, correlation_id, lookup_path, registry_port, outcome,
        failure_kind, failed_op, message, started_at, finished_at
        FROM stop_attempts ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stop attempts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stop attempts: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e                                         Entry
		correlationID, failureKind, failedOp, msg sql.NullString
		outcome, startedAt, finishedAt            string
	)
	if err := rows.Scan(&e.ID, &correlationID, &e.Path, &e.Port, &outcome,
		&failureKind, &failedOp, &msg, &startedAt, &finishedAt); err != nil {
		return Entry{}, fmt.Errorf("scan stop attempt: %w", err)
	}
	e.CorrelationID = correlationID.String
	e.Outcome = Outcome(outcome)
	e.FailureKind = failureKind.String
	e.FailedOp = failedOp.String
	e.Message = msg.String

	var err error
	if e.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return Entry{}, fmt.Errorf("parse started_at: %w", err)
	}
	if e.FinishedAt, err = time.Parse(timeLayout, finishedAt); err != nil {
		return Entry{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return e, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
