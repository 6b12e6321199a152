package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wecom-keyword-alert/internal/common/errors"
)

func newMockStore(t *testing.T) (*NotificationStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	s := NewNotificationStore(db)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s, mock, func() { db.Close() }
}

func TestNotificationStore_Create_Pending(t *testing.T) {
	s, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO notifications`)).
		WithArgs(sqlmock.AnyArg(), "人找车：北京到上海", "人找车",
			sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := s.Create(context.Background(), "人找车：北京到上海", "人找车", "企业微信群机器人", false)
	require.NoError(t, err)

	assert.NotEmpty(t, n.ID)
	assert.False(t, n.IsNotified)
	assert.Nil(t, n.NotifiedAt)
	assert.Equal(t, "企业微信群机器人", n.Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationStore_Create_OptimisticSetsNotifiedAt(t *testing.T) {
	s, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO notifications`)).
		WithArgs(sqlmock.AnyArg(), "msg", "人找车", sqlmock.AnyArg(), true,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := s.Create(context.Background(), "msg", "人找车", "", true)
	require.NoError(t, err)

	// notified_at is set iff is_notified.
	require.NotNil(t, n.NotifiedAt)
	assert.Equal(t, n.CreatedAt, *n.NotifiedAt)
}

func TestNotificationStore_Create_StoreUnreachable(t *testing.T) {
	s, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO notifications`)).
		WillReturnError(sql.ErrConnDone)

	_, err := s.Create(context.Background(), "msg", "人找车", "", false)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePersistenceFailed, apperrors.CodeOf(err))
}

func notificationRows(id string, notified bool, notifiedAt *time.Time, createdAt time.Time) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "message", "keyword", "source", "is_notified", "notified_at", "created_at"})
	var na interface{}
	if notifiedAt != nil {
		na = *notifiedAt
	}
	return rows.AddRow(id, "msg", "人找车", "企业微信群机器人", notified, na, createdAt)
}

func TestNotificationStore_MarkDelivered_Idempotent(t *testing.T) {
	s, mock, done := newMockStore(t)
	defer done()

	created := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	firstNotify := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// First call stamps notified_at.
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE notifications`)).
		WithArgs("id-1", sqlmock.AnyArg()).
		WillReturnRows(notificationRows("id-1", true, &firstNotify, created))

	// Second call: COALESCE keeps the original stamp.
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE notifications`)).
		WithArgs("id-1", sqlmock.AnyArg()).
		WillReturnRows(notificationRows("id-1", true, &firstNotify, created))

	n1, err := s.MarkDelivered(context.Background(), "id-1")
	require.NoError(t, err)
	n2, err := s.MarkDelivered(context.Background(), "id-1")
	require.NoError(t, err)

	assert.True(t, n1.IsNotified)
	assert.True(t, n2.IsNotified)
	require.NotNil(t, n1.NotifiedAt)
	require.NotNil(t, n2.NotifiedAt)
	assert.Equal(t, *n1.NotifiedAt, *n2.NotifiedAt)
}

func TestNotificationStore_MarkDelivered_NotFound(t *testing.T) {
	s, mock, done := newMockStore(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE notifications`)).
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	_, err := s.MarkDelivered(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))
}

func TestNotificationStore_List_Filters(t *testing.T) {
	s, mock, done := newMockStore(t)
	defer done()

	created := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE keyword = $1 AND is_notified = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`)).
		WithArgs("人找车", false, 10, 5).
		WillReturnRows(notificationRows("id-1", false, nil, created))

	kw := "人找车"
	pending := false
	got, err := s.List(context.Background(), 5, 10, Filter{Keyword: &kw, IsNotified: &pending})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "id-1", got[0].ID)
	assert.False(t, got[0].IsNotified)
	assert.Nil(t, got[0].NotifiedAt)
}

func TestNotificationStore_List_NoFilterDefaults(t *testing.T) {
	s, mock, done := newMockStore(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC LIMIT $1 OFFSET $2`)).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "message", "keyword", "source", "is_notified", "notified_at", "created_at"}))

	got, err := s.List(context.Background(), -3, 0, Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNotificationStore_Stats(t *testing.T) {
	s, mock, done := newMockStore(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_notified) FROM notifications`)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "filter"}).AddRow(7, 4))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 4, stats.Notified)
	assert.Equal(t, 3, stats.UnNotified)
	assert.Equal(t, stats.Total, stats.Notified+stats.UnNotified)
}
