package api

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// webhookSource labels records created from the group-robot webhook.
const webhookSource = "企业微信群机器人"

type webhookText struct {
	Content       string   `json:"content"`
	MentionedList []string `json:"mentioned_list"`
}

// webhookMessage is the group-robot callback payload. Only text messages
// carry a body the pipeline inspects.
type webhookMessage struct {
	MsgType string       `json:"msgtype"`
	Text    *webhookText `json:"text"`
}

// handleWebhook runs the dispatch pipeline for one inbound message. Delivery
// failures never change the response; the caller (the WeCom platform) would
// retry the whole message otherwise.
func (s *Server) handleWebhook() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg webhookMessage
		if err := c.ShouldBindJSON(&msg); err != nil {
			s.log.WithError(err).Warn("failed to parse webhook payload", nil)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "处理消息失败"})
			return
		}

		content := ""
		if msg.Text != nil {
			content = msg.Text.Content
		}

		outcome, err := s.dispatcher.HandleMessage(c.Request.Context(), msg.MsgType, content, webhookSource)
		if err != nil {
			s.log.WithError(err).Error("webhook processing failed", nil)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "处理消息失败"})
			return
		}

		if outcome.Keyword != "" {
			c.JSON(http.StatusOK, gin.H{
				"success":    true,
				"message":    "检测到关键字，已发送通知",
				"keyword":    outcome.Keyword,
				"detectedAt": outcome.DetectedAt.Format(time.RFC3339),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "消息已接收，未检测到关键字",
		})
	}
}

// handleWebhookStatus reports the service as reachable, with the active
// keyword list. Used to verify the webhook URL is wired correctly.
func (s *Server) handleWebhookStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "running",
			"keywords":  s.cfg.Keywords,
			"message":   "微信群监听 Webhook 服务运行中",
			"timestamp": s.now().UTC().Format(time.RFC3339),
		})
	}
}

// computeSignature implements the WeCom URL-verification signature:
// sha1 over the lexicographically sorted concatenation of token, timestamp
// and nonce.
func computeSignature(token, timestamp, nonce string) string {
	parts := []string{token, timestamp, nonce}
	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(sum[:])
}

// handleWebhookVerify answers the platform's URL-verification GET. A matching
// signature echoes back echostr as plain text; anything else is rejected.
func (s *Server) handleWebhookVerify() gin.HandlerFunc {
	return func(c *gin.Context) {
		signature := c.Query("msg_signature")
		timestamp := c.Query("timestamp")
		nonce := c.Query("nonce")
		echostr := c.Query("echostr")

		if signature == "" || timestamp == "" || nonce == "" || echostr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "缺少验证参数"})
			return
		}
		if s.cfg.WeCom.Token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "未配置验证令牌"})
			return
		}

		if computeSignature(s.cfg.WeCom.Token, timestamp, nonce) != signature {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "签名不匹配"})
			return
		}

		c.String(http.StatusOK, echostr)
	}
}

// handleWebhookDebug is the diagnostics variant of URL verification: it
// reports the received parameters and the computed signature alongside the
// verdict, so a failing handshake can be diagnosed from the response alone.
func (s *Server) handleWebhookDebug() gin.HandlerFunc {
	return func(c *gin.Context) {
		signature := c.Query("msg_signature")
		timestamp := c.Query("timestamp")
		nonce := c.Query("nonce")
		echostr := c.Query("echostr")

		orMissing := func(v string) string {
			if v == "" {
				return "未提供"
			}
			return v
		}

		debug := gin.H{
			"params": gin.H{
				"msg_signature": orMissing(signature),
				"timestamp":     orMissing(timestamp),
				"nonce":         orMissing(nonce),
				"echostr":       orMissing(echostr),
			},
			"tokenConfigured": s.cfg.WeCom.Token != "",
		}

		if signature == "" || timestamp == "" || nonce == "" || echostr == "" {
			c.JSON(http.StatusOK, debug)
			return
		}
		if s.cfg.WeCom.Token == "" {
			debug["verification"] = gin.H{"success": false, "error": "未配置验证令牌"}
			c.JSON(http.StatusBadRequest, debug)
			return
		}

		calculated := computeSignature(s.cfg.WeCom.Token, timestamp, nonce)
		if calculated == signature {
			c.String(http.StatusOK, echostr)
			return
		}

		debug["verification"] = gin.H{
			"success":              false,
			"error":                "签名不匹配",
			"calculated_signature": calculated,
			"expected_signature":   signature,
		}
		c.JSON(http.StatusBadRequest, debug)
	}
}
