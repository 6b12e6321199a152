package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wecom-keyword-alert/internal/channel"
)

func TestTestSend_WeComSimulated(t *testing.T) {
	f := newTestServer(t)

	w := f.do(http.MethodPost, "/api/wecom/test", `{"userIds":["zhangsan"],"content":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, channel.ModeSimulation, data["mode"])
	assert.Contains(t, data["content"], "【测试消息】hello")
}

func TestTestSend_MissingRecipients(t *testing.T) {
	f := newTestServer(t)

	for _, payload := range []string{
		`{"content":"hello"}`,
		`{"userIds":[],"content":"hello"}`,
		`{"userIds":"zhangsan","content":"hello"}`,
	} {
		w := f.do(http.MethodPost, "/api/wecom/test", payload)
		assert.Equal(t, http.StatusBadRequest, w.Code, "payload: %s", payload)
		body := decodeBody(t, w)
		assert.Equal(t, "请提供接收人列表", body["error"])
	}
}

func TestTestSend_MissingContent(t *testing.T) {
	f := newTestServer(t)

	w := f.do(http.MethodPost, "/api/sms/test", `{"phoneNumbers":["13800138000"]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "请提供短信内容", body["error"])
}

func TestTestSend_UnknownChannel(t *testing.T) {
	// The fixture wires wecom and sms only; email is not registered.
	f := newTestServer(t)

	w := f.do(http.MethodPost, "/api/email/test", `{"emails":["ops@example.com"],"content":"hello"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}
