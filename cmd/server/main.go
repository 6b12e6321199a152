// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"wecom-keyword-alert/internal/api"
	"wecom-keyword-alert/internal/channel"
	"wecom-keyword-alert/internal/common/config"
	"wecom-keyword-alert/internal/common/database"
	"wecom-keyword-alert/internal/common/logger"
	"wecom-keyword-alert/internal/common/observability"
	"wecom-keyword-alert/internal/detect"
	"wecom-keyword-alert/internal/dispatch"
	"wecom-keyword-alert/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting keyword alert service...",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.Strings("keywords", cfg.Keywords),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	if err := store.InitSchema(ctx, pg.DB); err != nil {
		zapLog.Fatal("schema init failed", zap.Error(err))
	}

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Stores ---
	notifications := store.NewNotificationStore(pg.DB)
	configs := store.NewConfigStore(rdb.Client)

	// --- Outbound channels ---
	wecomChannel := channel.NewWeCom(cfg.WeCom, log)
	smsChannel, err := channel.NewSMS(cfg.SMS, log)
	if err != nil {
		zapLog.Fatal("sms channel init failed", zap.Error(err))
	}
	emailChannel, err := channel.NewEmail(cfg.Email, log)
	if err != nil {
		zapLog.Fatal("email channel init failed", zap.Error(err))
	}

	channels := map[string]channel.Channel{
		"wecom": wecomChannel,
		"sms":   smsChannel,
		"email": emailChannel,
	}

	// --- Dispatch pipeline ---
	bindings := []dispatch.Binding{
		{
			Channel:      wecomChannel,
			RecipientKey: store.KeyWeComUserIDs,
			Format:       channel.FormatKeywordAlert,
		},
		{
			Channel:      smsChannel,
			RecipientKey: store.KeySMSPhoneNumbers,
			Format: func(keyword, message, _ string, at time.Time) string {
				return channel.FormatSMSAlert(keyword, message, at)
			},
		},
		{
			Channel:      emailChannel,
			RecipientKey: store.KeyEmailRecipients,
			Format:       channel.FormatKeywordAlert,
		},
	}

	orchestrator := dispatch.New(
		detect.NewMatcher(cfg.Keywords),
		notifications,
		configs,
		bindings,
		log,
		obs,
	)

	// --- HTTP server ---
	server := api.NewServer(cfg, log, orchestrator, notifications, configs, channels)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// pprof on a local-only port
	go func() {
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			zapLog.Warn("pprof server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Shutdown complete")
}
