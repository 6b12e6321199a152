package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wecom-keyword-alert/internal/store"
)

func (s *Server) handleListNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		var filter store.Filter
		if keyword := c.Query("keyword"); keyword != "" {
			filter.Keyword = &keyword
		}
		if raw := c.Query("isNotified"); raw != "" {
			notified := raw == "true"
			filter.IsNotified = &notified
		}

		notifications, err := s.notifications.List(c.Request.Context(), skip, limit, filter)
		if err != nil {
			s.log.WithError(err).Error("failed to list notifications", nil)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "获取通知列表失败"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    notifications,
			"count":   len(notifications),
		})
	}
}

type createNotificationRequest struct {
	Message string `json:"message"`
	Keyword string `json:"keyword"`
	Source  string `json:"source"`
}

// handleCreateNotification inserts a manual record, for testing the history
// view without a live webhook. Manual records are marked delivered.
func (s *Server) handleCreateNotification() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createNotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" || req.Keyword == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "缺少必需参数：message 或 keyword"})
			return
		}

		source := req.Source
		if source == "" {
			source = "手动测试"
		}

		notification, err := s.notifications.Create(c.Request.Context(), req.Message, req.Keyword, source, true)
		if err != nil {
			s.log.WithError(err).Error("failed to create notification", nil)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "创建测试通知失败"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    notification,
			"message": "测试通知创建成功",
		})
	}
}

func (s *Server) handleNotificationStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := s.notifications.Stats(c.Request.Context())
		if err != nil {
			s.log.WithError(err).Error("failed to compute notification stats", nil)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "获取统计数据失败"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
	}
}
