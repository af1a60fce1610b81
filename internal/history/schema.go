package history

import (
	"context"
	"fmt"
)

// Schema creates the upload history table.
const Schema = `
CREATE TABLE IF NOT EXISTS upload_history (
    id          UUID PRIMARY KEY,
    session_id  TEXT        NOT NULL,
    file_name   TEXT        NOT NULL,
    file_type   TEXT        NOT NULL DEFAULT '',
    size_bytes  BIGINT      NOT NULL DEFAULT 0,
    row_count   INTEGER     NOT NULL DEFAULT 0,
    column_count INTEGER    NOT NULL DEFAULT 0,
    collisions  INTEGER     NOT NULL DEFAULT 0,
    error_code  TEXT,
    duration_ms BIGINT      NOT NULL DEFAULT 0,
    ip_address  TEXT        NOT NULL DEFAULT '',
    user_agent  TEXT        NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS upload_history_created_at_idx ON upload_history (created_at DESC);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate upload_history: %w", err)
	}
	return nil
}
