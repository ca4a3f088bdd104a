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

	"github.com/iliyamo/library-reservation/internal/config"
	"github.com/iliyamo/library-reservation/internal/database"
	"github.com/iliyamo/library-reservation/internal/handler"
	"github.com/iliyamo/library-reservation/internal/logging"
	"github.com/iliyamo/library-reservation/internal/repository"
	"github.com/iliyamo/library-reservation/internal/router"
	"github.com/iliyamo/library-reservation/internal/service"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogFormat, cfg.LogLevel)

	db, err := database.Open(context.Background(), cfg.Database())
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		slog.Warn("redis unavailable; rate limiting and response cache disabled")
	} else {
		defer rdb.Close()
	}

	events, closeEvents := newPublisher(cfg)
	defer closeEvents()

	accounts := repository.NewAccountRepo(db)
	tokens := repository.NewTokenRepo(db)
	directory := service.NewDirectoryService(accounts, tokens, cfg.BcryptCost)
	auth := service.NewAuthService(service.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
	}, accounts, tokens, directory)
	catalog := service.NewCatalogService(db)
	lending := service.NewLendingService(service.NewSQLLendingStore(db), events)

	deps := router.Deps{
		JWTSecret: cfg.JWTSecret,
		Accounts:  accounts,
		DB:        db,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
	}
	e := router.NewEcho()
	router.RegisterRoutes(e, deps)
	router.RegisterAuth(e, handler.NewAuthHandler(auth, directory), deps)
	router.RegisterMember(e, handler.NewMemberHandler(lending, catalog), deps)
	router.RegisterLibrarian(e, handler.NewLibrarianHandler(lending), deps)
	router.RegisterAdmin(e, handler.NewAdminHandler(directory, catalog), deps)

	addr := ":" + cfg.Port
	go func() {
		slog.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}

// newPublisher returns the lending event publisher selected by cfg and a
// function releasing its broker connection.
func newPublisher(cfg config.Config) (service.EventPublisher, func()) {
	if !cfg.EventsEnabled || cfg.AMQPURL == "" {
		slog.Info("lending events disabled")
		return service.NopPublisher{}, func() {}
	}
	p := service.NewAMQPPublisher(cfg.AMQPURL)
	return p, func() {
		if err := p.Close(); err != nil {
			slog.Warn("closing event publisher", "error", err)
		}
	}
}
