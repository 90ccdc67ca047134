package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"referral-points-system/config"
	"referral-points-system/database"
	"referral-points-system/handlers"
	"referral-points-system/logging"
	"referral-points-system/middleware"
	"referral-points-system/services"
	"referral-points-system/utils"
	"referral-points-system/workers"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const settingsCacheTTL = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		bootLog := logging.New("development")
		bootLog.Fatal("invalid configuration", zap.Error(err))
	}

	log := logging.New(cfg.Env)
	defer log.AtExit()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBDriver, cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if cfg.DBAutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("failed to migrate database", zap.Error(err))
		}
		log.Info("database migrated", zap.String("driver", cfg.DBDriver))
	}

	var cache services.SettingsCache
	rdb, err := database.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	switch {
	case err != nil:
		log.Warn("redis unavailable, settings cache disabled", zap.Error(err))
	case rdb != nil:
		defer rdb.Close()
		cache = services.NewRedisSettingsCache(rdb, settingsCacheTTL)
		log.Info("settings cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(registry)

	settingsService := services.NewSettingsService(db, cache, log)
	if _, err := settingsService.Get(ctx); err != nil {
		log.Fatal("failed to load settings", zap.Error(err))
	}
	codes := services.NewReferralCodeGenerator()
	tokens := services.NewTokenCodec(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := services.NewAuthService(db, tokens, codes, settingsService, metrics, log)
	ledgerService := services.NewLedgerService(db, settingsService, metrics, log)
	referralService := services.NewReferralService(db, codes, settingsService, log)

	jobs := []services.Job{
		workers.NewBalanceReconciler(ledgerService, log).Job(cfg.BalanceReconcileInterval),
		workers.NewTokenPruner(authService, log).Job(cfg.TokenPruneInterval),
	}
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Client(ctx, cfg.R2)
		if err != nil {
			log.Fatal("failed to initialize R2 client", zap.Error(err))
		}
		jobs = append(jobs, workers.NewLedgerExporter(db, r2, cfg.LedgerExportInterval, log).Job())
	} else {
		log.Info("R2 not configured, ledger export disabled")
	}
	sched, err := services.StartScheduler(ctx, log, jobs...)
	if err != nil {
		log.Fatal("failed to start scheduler", zap.Error(err))
	}

	loginLimiter := middleware.NewRateLimiter(cfg.LoginRatePerSec, cfg.LoginBurst)
	loginLimiter.StartCleanup(ctx)

	app := handlers.NewApp(log, cfg.IsDevelopment(), cfg.AllowedOrigins)
	handlers.SetupRoutes(app, log, handlers.Deps{
		DB:            db,
		Auth:          authService,
		Referrals:     referralService,
		Ledger:        ledgerService,
		Settings:      settingsService,
		Gatherer:      registry,
		LoginLimiter:  loginLimiter,
		AdminToken:    cfg.AdminToken,
		SecureCookies: !cfg.IsDevelopment(),
	})

	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", addr), zap.Strings("origins", cfg.AllowedOrigins))
		serverErr <- app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error("server error", zap.Error(err))
		}
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	if err := sched.Shutdown(); err != nil {
		log.Error("scheduler shutdown failed", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
