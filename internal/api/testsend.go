package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wecom-keyword-alert/internal/channel"
)

// handleTestSend sends an operator-supplied message straight through one
// channel, bypassing detection and persistence. The recipient list comes
// from the request, not the stored config, so a new list can be tried
// before saving it.
func (s *Server) handleTestSend(channelName, field, missingRecipients, missingContent string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, ok := s.channels[channelName]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "通道未启用"})
			return
		}

		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": missingRecipients})
			return
		}

		raw, ok := body[field].([]interface{})
		if !ok || len(raw) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": missingRecipients})
			return
		}
		recipients := make([]string, 0, len(raw))
		for _, item := range raw {
			v, ok := item.(string)
			if !ok || v == "" {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": missingRecipients})
				return
			}
			recipients = append(recipients, v)
		}

		content, _ := body["content"].(string)
		if content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": missingContent})
			return
		}

		result, err := ch.SendAlert(c.Request.Context(), recipients, channel.FormatTestMessage(content, s.now()))
		if err != nil {
			s.log.WithError(err).Error("test send failed", map[string]interface{}{"channel": channelName})
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "发送测试消息失败"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    result,
			"message": "测试消息已发送",
		})
	}
}
