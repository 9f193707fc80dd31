package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gymcrm-calls/internal/audit"
	"gymcrm-calls/internal/auth"
	"gymcrm-calls/internal/calls"
	"gymcrm-calls/internal/chat"
	"gymcrm-calls/internal/config"
	"gymcrm-calls/internal/httpapi"
	"gymcrm-calls/internal/reporting"
	"gymcrm-calls/internal/telephony"
	"gymcrm-calls/internal/tenancy"
	"gymcrm-calls/pkg/logger"
	"gymcrm-calls/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	tenants := tenancy.NewCachedResolver(tenancy.NewPostgresResolver(db), rdb, cfg.Calls.TenantCacheTTL)
	callService := calls.NewService(calls.NewPostgresRepo(db), tenants, cfg.Calls.DefaultDirectorID)

	var verifier telephony.Verifier = telephony.NopVerifier{}
	if cfg.PBX.VerifySignature {
		verifier = telephony.SignatureVerifier{APIKey: cfg.PBX.APIKey, Salt: cfg.PBX.APISalt}
	} else {
		log.Warn("pbx signature verification disabled")
	}

	limiter := telephony.NewIPRateLimiter(cfg.Webhook.RateLimitRPS, cfg.Webhook.RateLimitBurst)
	go limiter.RunSweeper(rootCtx, 10*time.Minute)

	deps := routeDeps{
		DB: db,
		Webhooks: telephony.WebhookHandler{
			Calls:    callService,
			Verifier: verifier,
		},
		Chat:    chat.WebhookHandler{Chat: chat.NewService(chat.NewPostgresRepo(db))},
		Limiter: limiter,
		API: httpapi.Handlers{
			Calls:       callService,
			Reports:     reporting.NewService(reporting.NewPostgresRepo(db)),
			Audit:       audit.NewService(audit.NewPostgresRepo(db)),
			TenantCache: tenants,
		},
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerPublicRoutes(r, deps)
	registerProtectedRoutes(r, auth.RequireAccessToken(authManager), deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
