package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wecom-keyword-alert/internal/store"
)

func TestSetConfig_Upsert(t *testing.T) {
	f := newTestServer(t)

	w := f.do(http.MethodPost, "/api/configs", `{"key":"greeting","value":"hello","description":"test entry"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "配置已更新", body["message"])
	assert.Equal(t, "greeting", f.configs.lastSetKey)
	assert.Equal(t, "hello", f.configs.lastSetValue)
}

func TestSetConfig_ArrayValueStoredAsJSON(t *testing.T) {
	f := newTestServer(t)

	w := f.do(http.MethodPost, "/api/configs", `{"key":"sms_phone_numbers","value":["13800138000"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `["13800138000"]`, f.configs.lastSetValue)
}

func TestSetConfig_MissingKeyRejected(t *testing.T) {
	f := newTestServer(t)

	for _, payload := range []string{
		`{"value":"x"}`,
		`{"key":"","value":"x"}`,
		`{"key":"a"}`,
		`not json`,
	} {
		w := f.do(http.MethodPost, "/api/configs", payload)
		assert.Equal(t, http.StatusBadRequest, w.Code, "payload: %s", payload)
	}
}

func TestListConfigs_DecodesJSONValues(t *testing.T) {
	f := newTestServer(t)
	f.configs.entries = []store.ConfigEntry{
		{Key: "sms_phone_numbers", Value: `["13800138000"]`, UpdatedAt: time.Now()},
		{Key: "greeting", Value: "hello", UpdatedAt: time.Now()},
	}

	w := f.do(http.MethodGet, "/api/configs", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)

	phones := data["sms_phone_numbers"].(map[string]interface{})
	assert.Equal(t, []interface{}{"13800138000"}, phones["value"])

	greeting := data["greeting"].(map[string]interface{})
	assert.Equal(t, "hello", greeting["value"])
}

func TestSetPhoneNumbers_ValidBatch(t *testing.T) {
	f := newTestServer(t)

	w := f.do(http.MethodPost, "/api/configs/sms-phone-numbers", `{"phoneNumbers":["13800138000","15912345678"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "已设置 2 个手机号", body["message"])
	assert.Equal(t, []string{"13800138000", "15912345678"}, f.configs.savedRecipients[store.KeySMSPhoneNumbers])
}

func TestSetPhoneNumbers_OneBadNumberRejectsWholeBatch(t *testing.T) {
	f := newTestServer(t)

	w := f.do(http.MethodPost, "/api/configs/sms-phone-numbers", `{"phoneNumbers":["13800138000","12345","10086"]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	// Every offender is named, and nothing was written.
	assert.Contains(t, body["error"], "12345")
	assert.Contains(t, body["error"], "10086")
	assert.Empty(t, f.configs.savedRecipients)
}

func TestSetPhoneNumbers_NotAnArray(t *testing.T) {
	f := newTestServer(t)

	w := f.do(http.MethodPost, "/api/configs/sms-phone-numbers", `{"phoneNumbers":"13800138000"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "phoneNumbers 必须是数组", body["error"])
}

func TestSetUserIDs_EmptyStringRejected(t *testing.T) {
	f := newTestServer(t)

	w := f.do(http.MethodPost, "/api/configs/wecom-user-ids", `{"userIds":["zhangsan",""]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetUserIDs_Valid(t *testing.T) {
	f := newTestServer(t)

	w := f.do(http.MethodPost, "/api/configs/wecom-user-ids", `{"userIds":["zhangsan","lisi"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "已设置 2 个接收人", body["message"])
	assert.Equal(t, []string{"zhangsan", "lisi"}, f.configs.savedRecipients[store.KeyWeComUserIDs])
}

func TestSetEmailRecipients_Validation(t *testing.T) {
	f := newTestServer(t)

	w := f.do(http.MethodPost, "/api/configs/email-recipients", `{"emails":["ops@example.com","not-an-email"]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/configs/email-recipients", `{"emails":["ops@example.com"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"ops@example.com"}, f.configs.savedRecipients[store.KeyEmailRecipients])
}

func TestGetRecipients(t *testing.T) {
	f := newTestServer(t)
	f.configs.recipients[store.KeySMSPhoneNumbers] = []string{"13800138000"}

	w := f.do(http.MethodGet, "/api/configs/sms-phone-numbers", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, []interface{}{"13800138000"}, body["data"])
}
