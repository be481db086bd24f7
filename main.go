package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/bondageclub/server/api"
	"github.com/kasuganosora/bondageclub/server/config"
	dbadapter "github.com/kasuganosora/bondageclub/server/db"
	"github.com/kasuganosora/bondageclub/server/game/account"
	"github.com/kasuganosora/bondageclub/server/game/player"
	"github.com/kasuganosora/bondageclub/server/scheduler"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envFile := ".env"
	if len(os.Args) > 1 {
		envFile = os.Args[1]
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}
	if cfg.Security.ExposeCredentials {
		logger.Warn("security.expose_credentials is on; LoginResponse carries password hashes")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Account store ----
	openCtx, cancel := context.WithTimeout(ctx, cfg.DB.ConnectTimeout+5*time.Second)
	store, err := dbadapter.Open(openCtx, cfg.DB, logger)
	cancel()
	if err != nil {
		logger.Fatal("account store unavailable", zap.String("mode", cfg.DB.Mode), zap.Error(err))
	}
	logger.Info("account store ready", zap.String("mode", cfg.DB.Mode))

	alloc, err := account.BootstrapAllocator(ctx, store)
	if err != nil {
		logger.Fatal("member number bootstrap failed", zap.Error(err))
	}
	logger.Info("member numbers ready", zap.Uint32("next", alloc.Next()))

	// ---- Sessions / accounts ----
	sm := player.NewSessionManager(logger)
	svc := account.NewService(store, sm, alloc, account.Config{
		MaxIPAccountPerDay:  cfg.MaxIPAccountPerDay,
		MaxIPAccountPerHour: cfg.MaxIPAccountPerHour,
		ExposeCredentials:   cfg.Security.ExposeCredentials,
	}, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	scheduler.RegisterAccountTasks(sched, svc, cfg.Server.InfoInterval, logger)

	// ---- HTTP ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := api.NewEngine(ctx, api.Deps{
		Server:   cfg.Server,
		Security: cfg.Security,
		Store:    store,
		Sessions: sm,
		Accounts: svc,
		Sched:    sched,
		Logger:   logger,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop()
	sm.CloseAllSessions()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.Error("store close", zap.Error(err))
	}
}
