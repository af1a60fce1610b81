// Package history persists upload outcomes to PostgreSQL.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/flatsheet/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultLimit and MaxLimit bound Recent.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// DB is the subset of pgxpool.Pool the store uses, so pgxmock can stand in.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Entry is one stored upload.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	SessionID  string    `json:"session_id"`
	FileName   string    `json:"file_name"`
	FileType   string    `json:"file_type"`
	SizeBytes  int64     `json:"size_bytes"`
	Rows       int       `json:"rows"`
	Columns    int       `json:"columns"`
	Collisions int       `json:"collisions"`
	ErrorCode  string    `json:"error_code,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Succeeded reports whether the upload produced a dataset.
func (e Entry) Succeeded() bool { return e.ErrorCode == "" }

// Store reads and writes upload_history.
type Store struct {
	db DB
}

// NewStore returns a Store backed by db.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const insertUploadSQL = `INSERT INTO upload_history
    (id, session_id, file_name, file_type, size_bytes, row_count, column_count,
     collisions, error_code, duration_ms, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12, $13)`

// RecordUpload implements core.HistoryRecorder.
func (s *Store) RecordUpload(ctx context.Context, rec core.UploadRecord) error {
	_, err := s.db.Exec(ctx, insertUploadSQL,
		rec.ID,
		rec.SessionID,
		rec.FileName,
		string(rec.FileType),
		rec.SizeBytes,
		rec.Rows,
		rec.Columns,
		rec.Collisions,
		rec.ErrorCode,
		rec.Duration.Milliseconds(),
		rec.IPAddress,
		rec.UserAgent,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert upload history: %w", err)
	}
	return nil
}

const recentUploadsSQL = `SELECT id::text, session_id, file_name, file_type, size_bytes, row_count,
    column_count, collisions, error_code, duration_ms, ip_address, user_agent, created_at
FROM upload_history
ORDER BY created_at DESC
LIMIT $1`

// Recent returns the newest uploads first. limit is clamped to
// 1..MaxLimit; non-positive selects DefaultLimit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := s.db.Query(ctx, recentUploadsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query upload history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e         Entry
			id        string
			errorCode *string
		)
		if err := rows.Scan(
			&id, &e.SessionID, &e.FileName, &e.FileType, &e.SizeBytes, &e.Rows,
			&e.Columns, &e.Collisions, &errorCode, &e.DurationMS, &e.IPAddress, &e.UserAgent, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan upload history: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse upload id %q: %w", id, err)
		}
		if errorCode != nil {
			e.ErrorCode = *errorCode
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upload history: %w", err)
	}
	return entries, nil
}

const countFailuresSQL = `SELECT count(*), count(error_code) FROM upload_history WHERE created_at >= $1`

// Summary counts uploads since a point in time.
type Summary struct {
	Total  int64 `json:"total"`
	Failed int64 `json:"failed"`
}

// SummarySince counts uploads and failures at or after since.
func (s *Store) SummarySince(ctx context.Context, since time.Time) (Summary, error) {
	var sum Summary
	if err := s.db.QueryRow(ctx, countFailuresSQL, since).Scan(&sum.Total, &sum.Failed); err != nil {
		return Summary{}, fmt.Errorf("summarize upload history: %w", err)
	}
	return sum, nil
}
