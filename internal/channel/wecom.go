package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wecom-keyword-alert/internal/common/config"
	apperrors "wecom-keyword-alert/internal/common/errors"
	commonhttp "wecom-keyword-alert/internal/common/http"
	"wecom-keyword-alert/internal/common/logger"
)

const wecomChannelName = "wecom"

// WeCom delivers alerts through the enterprise-messaging push gateway. When
// any of the three send credentials (corp id, agent id, agent secret) is
// missing the constructor wires the simulated sender instead, so the service
// stays operable without live credentials.
type WeCom struct {
	log    logger.Logger
	sender wecomSender
	now    func() time.Time
}

type wecomSender interface {
	mode() string
	send(ctx context.Context, toUser, content string) error
}

func NewWeCom(cfg config.WeComConfig, log logger.Logger) *WeCom {
	log = log.WithFields(map[string]interface{}{"channel": wecomChannelName})

	if !cfg.Configured() {
		log.Warn("WeCom credentials incomplete, channel degrades to simulation mode", nil)
		return &WeCom{log: log, sender: &simulatedWeComSender{log: log}, now: time.Now}
	}

	return &WeCom{
		log: log,
		sender: &liveWeComSender{
			corpID:  cfg.CorpID,
			agentID: cfg.AgentID,
			secret:  cfg.AgentSecret,
			baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
			httpc:   commonhttp.NewClient(config.GetDuration(cfg.Timeout)),
			now:     time.Now,
		},
		now: time.Now,
	}
}

func (w *WeCom) Name() string { return wecomChannelName }

func (w *WeCom) SendAlert(ctx context.Context, recipients []string, content string) (*Result, error) {
	if len(recipients) == 0 {
		return nil, apperrors.NewNoRecipientsError("未配置接收人，无法发送通知")
	}

	// The gateway takes one pipe-separated recipient string.
	toUser := strings.Join(recipients, "|")

	if err := w.sender.send(ctx, toUser, content); err != nil {
		return nil, err
	}

	w.log.Info("WeCom alert sent", map[string]interface{}{
		"toUser": toUser,
		"mode":   w.sender.mode(),
	})

	return &Result{
		Channel:   wecomChannelName,
		Mode:      w.sender.mode(),
		ToUser:    toUser,
		Content:   content,
		Timestamp: w.now().UTC(),
	}, nil
}

// simulatedWeComSender logs the would-be delivery and reports success.
type simulatedWeComSender struct {
	log logger.Logger
}

func (s *simulatedWeComSender) mode() string { return ModeSimulation }

func (s *simulatedWeComSender) send(_ context.Context, toUser, content string) error {
	s.log.Info("WeCom delivery simulated", map[string]interface{}{
		"toUser":  toUser,
		"content": content,
	})
	return nil
}

// liveWeComSender talks to the real gateway. It owns the cached access token;
// a redundant refresh under concurrent sends costs one extra token request
// and nothing else.
type liveWeComSender struct {
	corpID  string
	agentID string
	secret  string
	baseURL string
	httpc   *commonhttp.Client

	accessToken string
	tokenExpiry time.Time
	now         func() time.Time
}

func (s *liveWeComSender) mode() string { return ModeLive }

type tokenResponse struct {
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type sendResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// getAccessToken returns the cached token or fetches a fresh one. The cached
// expiry is provider expiry minus 300s, forcing refresh before the token
// actually dies.
func (s *liveWeComSender) getAccessToken(ctx context.Context) (string, error) {
	if s.accessToken != "" && s.now().Before(s.tokenExpiry) {
		return s.accessToken, nil
	}

	tokenURL := fmt.Sprintf("%s/cgi-bin/gettoken?corpid=%s&corpsecret=%s",
		s.baseURL, url.QueryEscape(s.corpID), url.QueryEscape(s.secret))

	req, err := http.NewRequest(http.MethodGet, tokenURL, nil)
	if err != nil {
		return "", apperrors.NewCredentialError("failed to build token request", err)
	}

	resp, err := s.httpc.DoWithContext(ctx, req)
	if err != nil {
		return "", apperrors.NewCredentialError("token request failed", err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", apperrors.NewCredentialError("failed to decode token response", err)
	}
	if tr.ErrCode != 0 {
		return "", apperrors.NewCredentialError(
			fmt.Sprintf("token endpoint rejected request: %s", tr.ErrMsg), nil)
	}

	s.accessToken = tr.AccessToken
	s.tokenExpiry = s.now().Add(time.Duration(tr.ExpiresIn-300) * time.Second)
	return s.accessToken, nil
}

func (s *liveWeComSender) send(ctx context.Context, toUser, content string) error {
	token, err := s.getAccessToken(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"touser":  toUser,
		"msgtype": "text",
		"agentid": s.agentID,
		"text":    map[string]string{"content": content},
		"safe":    0,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewTransportError("failed to encode send payload", err)
	}

	sendURL := fmt.Sprintf("%s/cgi-bin/message/send?access_token=%s", s.baseURL, url.QueryEscape(token))
	req, err := http.NewRequest(http.MethodPost, sendURL, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewTransportError("failed to build send request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.DoWithContext(ctx, req)
	if err != nil {
		return apperrors.NewTransportError("send request failed", err)
	}
	defer resp.Body.Close()

	var sr sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return apperrors.NewTransportError("failed to decode send response", err)
	}
	if sr.ErrCode != 0 {
		return apperrors.NewDeliveryFailedError(fmt.Sprintf("发送消息失败: %s", sr.ErrMsg))
	}
	return nil
}
