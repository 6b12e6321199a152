// Package store owns the durable records of the alert pipeline: notification
// history in PostgreSQL and operator-editable configuration in Redis. The
// rest of the service holds no cache over either; every operation reads or
// writes through.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "wecom-keyword-alert/internal/common/errors"
)

// Notification is one detected-keyword record. After creation only the
// notified fields ever change, and only once, after a confirmed delivery.
type Notification struct {
	ID         string     `json:"id"`
	Message    string     `json:"message"`
	Keyword    string     `json:"keyword"`
	Source     string     `json:"source,omitempty"`
	IsNotified bool       `json:"isNotified"`
	NotifiedAt *time.Time `json:"notifiedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Stats are aggregate counts over the full table, computed per call.
type Stats struct {
	Total      int `json:"total"`
	Notified   int `json:"notified"`
	UnNotified int `json:"unNotified"`
}

// Filter narrows List results. Nil fields are ignored.
type Filter struct {
	Keyword    *string
	IsNotified *bool
	Source     *string
}

// NotificationStore persists notification records in PostgreSQL.
type NotificationStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db, now: time.Now}
}

// Create inserts a new record. notified controls the initial is_notified
// value; the pessimistic dispatch policy always passes false and flips it
// via MarkDelivered after a confirmed send.
func (s *NotificationStore) Create(ctx context.Context, message, keyword, source string, notified bool) (*Notification, error) {
	n := &Notification{
		ID:         uuid.New().String(),
		Message:    message,
		Keyword:    keyword,
		Source:     source,
		IsNotified: notified,
		CreatedAt:  s.now().UTC(),
	}
	if notified {
		t := n.CreatedAt
		n.NotifiedAt = &t
	}

	const q = `INSERT INTO notifications (id, message, keyword, source, is_notified, notified_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, q,
		n.ID, n.Message, n.Keyword, nullString(n.Source), n.IsNotified, nullTime(n.NotifiedAt), n.CreatedAt)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to create notification", err)
	}
	return n, nil
}

// MarkDelivered sets is_notified and stamps notified_at. Idempotent: a second
// call leaves the original notified_at untouched and is not an error.
func (s *NotificationStore) MarkDelivered(ctx context.Context, id string) (*Notification, error) {
	const q = `UPDATE notifications
		SET is_notified = TRUE, notified_at = COALESCE(notified_at, $2)
		WHERE id = $1
		RETURNING id, message, keyword, source, is_notified, notified_at, created_at`

	n, err := scanNotification(s.db.QueryRowContext(ctx, q, id, s.now().UTC()))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("notification %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to mark notification delivered", err)
	}
	return n, nil
}

// GetByID fetches a single record.
func (s *NotificationStore) GetByID(ctx context.Context, id string) (*Notification, error) {
	const q = `SELECT id, message, keyword, source, is_notified, notified_at, created_at
		FROM notifications WHERE id = $1`

	n, err := scanNotification(s.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("notification %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to load notification", err)
	}
	return n, nil
}

// List returns records newest-first, paged by skip/limit.
func (s *NotificationStore) List(ctx context.Context, skip, limit int, filter Filter) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}

	var (
		conditions []string
		args       []interface{}
	)
	addCondition := func(expr string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}

	if filter.Keyword != nil {
		addCondition("keyword = $%d", *filter.Keyword)
	}
	if filter.IsNotified != nil {
		addCondition("is_notified = $%d", *filter.IsNotified)
	}
	if filter.Source != nil {
		addCondition("source = $%d", *filter.Source)
	}

	q := `SELECT id, message, keyword, source, is_notified, notified_at, created_at FROM notifications`
	if len(conditions) > 0 {
		q += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit, skip)
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to list notifications", err)
	}
	defer rows.Close()

	notifications := make([]Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, apperrors.NewPersistenceError("failed to scan notification", err)
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceError("failed to iterate notifications", err)
	}
	return notifications, nil
}

// Stats computes aggregate counts in a single query so the
// total == notified + unNotified invariant holds for any store state.
func (s *NotificationStore) Stats(ctx context.Context) (*Stats, error) {
	const q = `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_notified) FROM notifications`

	var total, notified int
	if err := s.db.QueryRowContext(ctx, q).Scan(&total, &notified); err != nil {
		return nil, apperrors.NewPersistenceError("failed to compute notification stats", err)
	}
	return &Stats{Total: total, Notified: notified, UnNotified: total - notified}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*Notification, error) {
	var (
		n          Notification
		source     sql.NullString
		notifiedAt sql.NullTime
	)
	if err := row.Scan(&n.ID, &n.Message, &n.Keyword, &source, &n.IsNotified, &notifiedAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Source = source.String
	if notifiedAt.Valid {
		t := notifiedAt.Time
		n.NotifiedAt = &t
	}
	return &n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
