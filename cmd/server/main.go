package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notihub/internal/config"
	"notihub/internal/domain/notification"
	"notihub/internal/infra/ratelimit"
	"notihub/internal/infra/store"
	"notihub/internal/router"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded", "port", cfg.Server.Port, "mode", cfg.Server.Mode)

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	// Notification store
	notifStore, err := newStore(cfg)
	if err != nil {
		slog.Error("failed to initialize store", "error", err, "driver", cfg.Store.Driver)
		os.Exit(1)
	}
	slog.Info("store initialized", "driver", cfg.Store.Driver)

	if cfg.Store.Seed {
		if err := store.Seed(context.Background(), notifStore); err != nil {
			slog.Error("failed to seed store", "error", err)
			os.Exit(1)
		}
	}

	// Dispatch simulator
	simulator := notification.NewSimulator(dispatchPolicy(cfg.Dispatch), nil)

	// Per-recipient send quota
	var recipientLimiter notification.RecipientRateLimiter
	if cfg.RecipientRateLimit.Enabled {
		redisLimiter := ratelimit.NewRedisRecipientLimiter(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.RecipientRateLimit.MaxPerHour,
		)
		defer redisLimiter.Close()
		recipientLimiter = redisLimiter
		slog.Info("recipient quota enabled", "max_per_hour", cfg.RecipientRateLimit.MaxPerHour)
	}

	// Service
	notificationService := notification.NewService(notifStore, simulator, recipientLimiter)

	// Handler
	notificationHandler := notification.NewHandler(notificationService)

	// Router
	r := router.New(cfg, notificationHandler)

	// ==========================================
	// Stale-Pending Sweeper
	// ==========================================

	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	defer sweeperCancel()

	if cfg.Sweeper.Enabled {
		sweeper := notification.NewSweeper(notifStore, notificationService, notification.SweeperConfig{
			Interval:       time.Duration(cfg.Sweeper.IntervalSec) * time.Second,
			StaleThreshold: time.Duration(cfg.Sweeper.StaleThresholdSec) * time.Second,
			BatchSize:      cfg.Sweeper.BatchSize,
		})
		go sweeper.Run(sweeperCtx)
	}

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	sweeperCancel()

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// newStore builds the configured notification store backend.
func newStore(cfg *config.Config) (notification.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "supabase":
		return store.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// dispatchPolicy converts the configured dispatch settings into a simulator
// policy.
func dispatchPolicy(d config.DispatchConfig) notification.DispatchPolicy {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }

	return notification.DispatchPolicy{
		EmailFailurePercent:  d.EmailFailurePercent,
		SMSFailurePercent:    d.SMSFailurePercent,
		ResendFailurePercent: d.ResendFailurePercent,
		EmailDelay:           notification.DelayRange{Min: ms(d.EmailDelayMinMs), Max: ms(d.EmailDelayMaxMs)},
		SMSDelay:             notification.DelayRange{Min: ms(d.SMSDelayMinMs), Max: ms(d.SMSDelayMaxMs)},
		ResendDelay:          notification.DelayRange{Min: ms(d.ResendDelayMinMs), Max: ms(d.ResendDelayMaxMs)},
	}
}
