// Package api exposes the HTTP surface: the inbound webhook, the WeCom URL
// verification handshake, notification history queries, the operator config
// endpoints and the channel test sends.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wecom-keyword-alert/internal/channel"
	"wecom-keyword-alert/internal/common/config"
	"wecom-keyword-alert/internal/common/logger"
	"wecom-keyword-alert/internal/dispatch"
	"wecom-keyword-alert/internal/store"
)

type dispatcher interface {
	HandleMessage(ctx context.Context, msgtype, content, source string) (*dispatch.Outcome, error)
}

type notificationStore interface {
	Create(ctx context.Context, message, keyword, source string, notified bool) (*store.Notification, error)
	List(ctx context.Context, skip, limit int, filter store.Filter) ([]store.Notification, error)
	Stats(ctx context.Context) (*store.Stats, error)
}

type configStore interface {
	Set(ctx context.Context, key, value, description string) (*store.ConfigEntry, error)
	All(ctx context.Context) ([]store.ConfigEntry, error)
	GetRecipients(ctx context.Context, key string) ([]string, error)
	SetRecipients(ctx context.Context, key string, recipients []string) error
}

// Server is the HTTP server for the alert service.
type Server struct {
	router        *gin.Engine
	cfg           *config.Config
	log           logger.Logger
	dispatcher    dispatcher
	notifications notificationStore
	configs       configStore
	// channels holds the outbound channels by name, for the test-send
	// endpoints. Missing entries disable the corresponding endpoint.
	channels map[string]channel.Channel
	now      func() time.Time
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	d dispatcher,
	notifications notificationStore,
	configs configStore,
	channels map[string]channel.Channel,
) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metricsMiddleware())

	s := &Server{
		router:        router,
		cfg:           cfg,
		log:           log.WithFields(map[string]interface{}{"component": "api"}),
		dispatcher:    d,
		notifications: notifications,
		configs:       configs,
		channels:      channels,
		now:           time.Now,
	}
	s.setupRoutes()
	return s
}

// Handler returns the underlying router, for embedding in an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%d", s.cfg.Server.Port))
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.POST("/webhook", s.handleWebhook())
		api.GET("/webhook", s.handleWebhookStatus())
		api.GET("/webhook/verify", s.handleWebhookVerify())
		api.GET("/webhook-debug", s.handleWebhookDebug())

		api.GET("/notifications", s.handleListNotifications())
		api.POST("/notifications", s.handleCreateNotification())
		api.GET("/notifications/stats", s.handleNotificationStats())

		api.GET("/configs", s.handleListConfigs())
		api.POST("/configs", s.handleSetConfig())

		api.GET("/configs/sms-phone-numbers", s.handleGetRecipients(store.KeySMSPhoneNumbers))
		api.POST("/configs/sms-phone-numbers", s.handleSetRecipients(phoneNumbersEndpoint))
		api.GET("/configs/wecom-user-ids", s.handleGetRecipients(store.KeyWeComUserIDs))
		api.POST("/configs/wecom-user-ids", s.handleSetRecipients(userIDsEndpoint))
		api.GET("/configs/email-recipients", s.handleGetRecipients(store.KeyEmailRecipients))
		api.POST("/configs/email-recipients", s.handleSetRecipients(emailRecipientsEndpoint))

		api.POST("/sms/test", s.handleTestSend("sms", "phoneNumbers", "请提供手机号列表", "请提供短信内容"))
		api.POST("/wecom/test", s.handleTestSend("wecom", "userIds", "请提供接收人列表", "请提供消息内容"))
		api.POST("/email/test", s.handleTestSend("email", "emails", "请提供邮箱列表", "请提供邮件内容"))
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": s.cfg.App.Name})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
