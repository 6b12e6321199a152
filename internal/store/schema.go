package store

import (
	"context"
	"database/sql"
	"fmt"
)

const notificationsSchema = `
CREATE TABLE IF NOT EXISTS notifications (
    id          VARCHAR(36) PRIMARY KEY,
    message     TEXT NOT NULL,
    keyword     VARCHAR(50) NOT NULL,
    source      VARCHAR(100),
    is_notified BOOLEAN NOT NULL DEFAULT FALSE,
    notified_at TIMESTAMPTZ,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_notifications_created_at
    ON notifications(created_at DESC);

CREATE INDEX IF NOT EXISTS idx_notifications_pending
    ON notifications(is_notified) WHERE is_notified = FALSE;
`

// InitSchema applies the notifications schema. Safe to run on every startup.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, notificationsSchema); err != nil {
		return fmt.Errorf("apply notifications schema: %w", err)
	}
	return nil
}
