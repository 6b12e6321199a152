package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wecom-keyword-alert/internal/common/errors"
)

func newMiniredisStore(t *testing.T) *ConfigStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	s := NewConfigStore(rdb)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestConfigStore_SetGet_Upsert(t *testing.T) {
	s := newMiniredisStore(t)
	ctx := context.Background()

	_, err := s.Set(ctx, "greeting", "hello", "first write")
	require.NoError(t, err)

	entry, err := s.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", entry.Value)
	assert.Equal(t, "first write", entry.Description)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), entry.UpdatedAt)

	// Writing an existing key updates in place.
	_, err = s.Set(ctx, "greeting", "你好", "second write")
	require.NoError(t, err)

	entry, err = s.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "你好", entry.Value)
	assert.Equal(t, "second write", entry.Description)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestConfigStore_Get_NotFound(t *testing.T) {
	s := newMiniredisStore(t)

	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))

	value, err := s.GetValue(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestConfigStore_All_SortedByKey(t *testing.T) {
	s := newMiniredisStore(t)
	ctx := context.Background()

	for _, key := range []string{"zebra", "alpha", "middle"} {
		_, err := s.Set(ctx, key, "v", "")
		require.NoError(t, err)
	}

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Key)
	assert.Equal(t, "middle", all[1].Key)
	assert.Equal(t, "zebra", all[2].Key)
}

func TestConfigStore_Recipients_RoundTrip(t *testing.T) {
	s := newMiniredisStore(t)
	ctx := context.Background()

	phones := []string{"13800138000", "15912345678"}
	require.NoError(t, s.SetRecipients(ctx, KeySMSPhoneNumbers, phones))

	got, err := s.GetRecipients(ctx, KeySMSPhoneNumbers)
	require.NoError(t, err)
	assert.Equal(t, phones, got)

	// Replacement is whole-list, not a merge.
	require.NoError(t, s.SetRecipients(ctx, KeySMSPhoneNumbers, []string{"13900139000"}))
	got, err = s.GetRecipients(ctx, KeySMSPhoneNumbers)
	require.NoError(t, err)
	assert.Equal(t, []string{"13900139000"}, got)
}

func TestConfigStore_Recipients_EmptyAndBroken(t *testing.T) {
	s := newMiniredisStore(t)
	ctx := context.Background()

	got, err := s.GetRecipients(ctx, KeyWeComUserIDs)
	require.NoError(t, err)
	assert.Empty(t, got)

	// An unparseable value degrades to an empty list instead of failing the
	// dispatch path.
	_, err = s.Set(ctx, KeyWeComUserIDs, "not-json", "")
	require.NoError(t, err)

	got, err = s.GetRecipients(ctx, KeyWeComUserIDs)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestConfigStore_Delete(t *testing.T) {
	s := newMiniredisStore(t)
	ctx := context.Background()

	_, err := s.Set(ctx, "temp", "v", "")
	require.NoError(t, err)

	removed, err := s.Delete(ctx, "temp")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, "temp")
	require.NoError(t, err)
	assert.False(t, removed)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestConfigStore_Get_StoreUnreachable(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	s := NewConfigStore(rdb)

	mock.ExpectHGetAll("config:" + KeySMSPhoneNumbers).SetErr(errors.New("connection refused"))

	_, err := s.Get(context.Background(), KeySMSPhoneNumbers)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePersistenceFailed, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
