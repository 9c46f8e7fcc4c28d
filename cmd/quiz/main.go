package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Skotchmaster/quiz_platform/internal/config"
	"github.com/Skotchmaster/quiz_platform/internal/httpserver"
	"github.com/Skotchmaster/quiz_platform/internal/metrics"
	"github.com/Skotchmaster/quiz_platform/internal/repo"
	"github.com/Skotchmaster/quiz_platform/internal/search"
	"github.com/Skotchmaster/quiz_platform/internal/service"
	pkgconfig "github.com/Skotchmaster/quiz_platform/pkg/config"
	pkgdb "github.com/Skotchmaster/quiz_platform/pkg/db"
	"github.com/Skotchmaster/quiz_platform/pkg/events"
	"github.com/Skotchmaster/quiz_platform/pkg/logging"
	loggingmw "github.com/Skotchmaster/quiz_platform/pkg/middleware/logging"
	"github.com/Skotchmaster/quiz_platform/pkg/response"
	"github.com/Skotchmaster/quiz_platform/pkg/tokens"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

func main() {
	envErr := config.LoadEnv(".env")
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	if envErr != nil {
		logger.Info("env_file_not_loaded", "error", envErr)
	}
	pkgconfig.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(initCtx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err == nil {
		err = repo.Migrate(initCtx, db)
	}
	cancel()
	if err != nil {
		logger.Error("db_init_failed", "error", err)
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("db_init_failed", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	publisher := events.New(cfg.KafkaBrokers)
	defer publisher.Close()

	var index service.UserIndex
	if cfg.ElasticURL != "" {
		esCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		idx, err := newUserIndex(esCtx, cfg)
		cancel()
		if err != nil {
			logger.Warn("search_index_disabled", "error", err)
		} else {
			index = idx
		}
	}

	m := metrics.New()
	gormRepo := &repo.GormRepo{DB: db}
	tokenSvc := tokens.NewService(cfg.Tokens)

	authSvc := &service.AuthService{
		Repo:    gormRepo,
		Tokens:  tokenSvc,
		Events:  publisher,
		Index:   index,
		Metrics: m,
	}
	userSvc := &service.UserService{
		Repo:   gormRepo,
		Index:  index,
		Events: publisher,
	}

	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword != "" {
		ctx := logging.IntoContext(context.Background(), logger)
		created, err := userSvc.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
		if err != nil {
			logger.Error("bootstrap_admin_failed", "error", err)
			os.Exit(1)
		}
		if created {
			logger.Info("bootstrap_admin_created", "email", cfg.BootstrapAdminEmail)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.HTTPErrorHandler = response.ErrorHandler

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Secure())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(m.Middleware())
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		Auth:          &httpserver.AuthHTTP{Svc: authSvc, Tokens: tokenSvc},
		Users:         &httpserver.UserHTTP{Svc: userSvc},
		Stats:         &httpserver.StatsHTTP{Svc: &service.StatsService{Repo: gormRepo}},
		Tokens:        tokenSvc,
		Metrics:       m,
		Ready:         func(ctx context.Context) error { return pkgdb.Ready(ctx, sqlDB) },
		AuthRateLimit: cfg.AuthRateLimit,
	})

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	go func() {
		logger.Info("http_server_starting", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("http_server_failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown", "error", err)
	}
	logger.Info("http_server_stopped")
}

func newUserIndex(ctx context.Context, cfg config.Config) (*search.UserIndex, error) {
	client, err := search.NewClient(ctx, cfg.ElasticURL, cfg.ElasticUser, cfg.ElasticPassword)
	if err != nil {
		return nil, err
	}
	idx := search.NewUserIndex(client, cfg.ElasticIndex)
	if err := idx.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}
