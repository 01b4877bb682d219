// Package history stores one row per publish attempt in SQLite and serves
// paginated queries over it.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// timeLayout is fixed-width so created_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000Z"
)

// Record is a single publish attempt.
type Record struct {
	ID          string    `json:"id"`
	Topic       string    `json:"topic"`
	PayloadSize int       `json:"payload_size"`
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error,omitempty"`
	Backend     string    `json:"backend"`
	RequestID   string    `json:"request_id,omitempty"`
	DurationMS  float64   `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter controls which records List returns.
type Filter struct {
	Topic   string // optional: exact topic
	Outcome string // optional: published, invalid_topic, connection_unavailable, publish_rejected
	Limit   int    // default 50, max 200
	Offset  int
}

// ListResult is one page of records.
type ListResult struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Repository persists publish records.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	CountByOutcome(ctx context.Context) (map[string]int, error)
}

// SQLiteRepository implements Repository on the publish_log table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts rec, generating ID and CreatedAt when empty.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO publish_log (id, topic, payload_size, outcome, error, backend, request_id, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Topic, rec.PayloadSize, rec.Outcome,
		nullableString(rec.Error), rec.Backend, nullableString(rec.RequestID),
		rec.DurationMS, rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting publish record: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns records matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter = clampFilter(filter)

	var conditions []string
	var args []any
	if filter.Topic != "" {
		conditions = append(conditions, "topic = ?")
		args = append(args, filter.Topic)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM publish_log " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting publish records: %w", err)
	}

	query := "SELECT id, topic, payload_size, outcome, error, backend, request_id, duration_ms, created_at FROM publish_log " + //nolint:gosec // as above
		where + " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying publish records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var errText, requestID sql.NullString
		var createdAt string

		if err := rows.Scan(&rec.ID, &rec.Topic, &rec.PayloadSize, &rec.Outcome,
			&errText, &rec.Backend, &requestID, &rec.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning publish record: %w", err)
		}
		rec.Error = errText.String
		rec.RequestID = requestID.String

		rec.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing publish record timestamp %q: %w", createdAt, err)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating publish records: %w", err)
	}

	return &ListResult{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// CountByOutcome returns the number of records per outcome.
func (r *SQLiteRepository) CountByOutcome(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM publish_log GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("counting publish outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scanning publish outcome: %w", err)
		}
		counts[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating publish outcomes: %w", err)
	}
	return counts, nil
}

func clampFilter(f Filter) Filter {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
