package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "wecom-keyword-alert/internal/common/errors"
)

// Well-known configuration keys. Each holds a JSON-encoded string array.
const (
	KeySMSPhoneNumbers = "sms_phone_numbers"
	KeyWeComUserIDs    = "wecom_user_ids"
	KeyEmailRecipients = "email_recipients"
)

const (
	configKeyPrefix = "config:"
	configKeySet    = "config:keys"
)

// ConfigEntry is one operator-editable key/value setting.
type ConfigEntry struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ConfigStore persists configuration entries in Redis, one hash per key.
// Writes replace the whole value (upsert), matching the atomically-swapped
// recipient-set semantics the dispatcher relies on.
type ConfigStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewConfigStore(rdb *redis.Client) *ConfigStore {
	return &ConfigStore{rdb: rdb, now: time.Now}
}

// Set upserts a configuration entry.
func (s *ConfigStore) Set(ctx context.Context, key, value, description string) (*ConfigEntry, error) {
	entry := &ConfigEntry{
		Key:         key,
		Value:       value,
		Description: description,
		UpdatedAt:   s.now().UTC(),
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, configKeyPrefix+key,
		"value", entry.Value,
		"description", entry.Description,
		"updated_at", entry.UpdatedAt.Format(time.RFC3339Nano),
	)
	pipe.SAdd(ctx, configKeySet, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, apperrors.NewPersistenceError(fmt.Sprintf("failed to set config %s", key), err)
	}
	return entry, nil
}

// Get loads one entry, NOT_FOUND when the key has never been written.
func (s *ConfigStore) Get(ctx context.Context, key string) (*ConfigEntry, error) {
	fields, err := s.rdb.HGetAll(ctx, configKeyPrefix+key).Result()
	if err != nil {
		return nil, apperrors.NewPersistenceError(fmt.Sprintf("failed to get config %s", key), err)
	}
	if len(fields) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("config %s not found", key))
	}

	entry := &ConfigEntry{
		Key:         key,
		Value:       fields["value"],
		Description: fields["description"],
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		entry.UpdatedAt = ts
	}
	return entry, nil
}

// GetValue returns the raw value, or empty when the key is absent.
func (s *ConfigStore) GetValue(ctx context.Context, key string) (string, error) {
	entry, err := s.Get(ctx, key)
	if apperrors.Is(err, apperrors.ErrCodeNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

// All returns every entry, ordered by key.
func (s *ConfigStore) All(ctx context.Context) ([]ConfigEntry, error) {
	keys, err := s.rdb.SMembers(ctx, configKeySet).Result()
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to list config keys", err)
	}
	sort.Strings(keys)

	entries := make([]ConfigEntry, 0, len(keys))
	for _, key := range keys {
		entry, err := s.Get(ctx, key)
		if apperrors.Is(err, apperrors.ErrCodeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Delete removes an entry. Returns false when the key did not exist.
func (s *ConfigStore) Delete(ctx context.Context, key string) (bool, error) {
	pipe := s.rdb.TxPipeline()
	del := pipe.Del(ctx, configKeyPrefix+key)
	pipe.SRem(ctx, configKeySet, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, apperrors.NewPersistenceError(fmt.Sprintf("failed to delete config %s", key), err)
	}
	return del.Val() > 0, nil
}

// GetRecipients decodes the JSON-encoded recipient list stored under key.
// Absent or unparseable values yield an empty list, never an error: a broken
// recipient config must not take the webhook down.
func (s *ConfigStore) GetRecipients(ctx context.Context, key string) ([]string, error) {
	value, err := s.GetValue(ctx, key)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return []string{}, nil
	}

	var recipients []string
	if err := json.Unmarshal([]byte(value), &recipients); err != nil {
		return []string{}, nil
	}
	return recipients, nil
}

// SetRecipients replaces the whole recipient list stored under key.
func (s *ConfigStore) SetRecipients(ctx context.Context, key string, recipients []string) error {
	if recipients == nil {
		recipients = []string{}
	}
	value, err := json.Marshal(recipients)
	if err != nil {
		return apperrors.NewPersistenceError("failed to encode recipient list", err)
	}

	_, err = s.Set(ctx, key, string(value), descriptionFor(key))
	return err
}

func descriptionFor(key string) string {
	switch key {
	case KeySMSPhoneNumbers:
		return "接收短信通知的手机号列表（JSON 数组）"
	case KeyWeComUserIDs:
		return "企业微信通知接收人 UserID 列表（JSON 数组）"
	case KeyEmailRecipients:
		return "接收邮件通知的邮箱列表（JSON 数组）"
	default:
		return ""
	}
}
