package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sumire/todoshare/internal/changefeed"
	"github.com/sumire/todoshare/internal/config"
	"github.com/sumire/todoshare/internal/handler"
	"github.com/sumire/todoshare/internal/logger"
	"github.com/sumire/todoshare/internal/repository"
	"github.com/sumire/todoshare/internal/repository/memory"
	"github.com/sumire/todoshare/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "application error: %v\n", err)
		os.Exit(1)
	}
}

// stores bundles one storage backend's implementations of the service
// contracts.
type stores struct {
	tx            service.Transactor
	users         service.UserStore
	profiles      service.ProfileStore
	tasks         service.TaskStore
	notifications service.NotificationStore
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	bus, err := openBus(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			log.Warn("close change feed", zap.Error(err))
		}
	}()

	authSvc := service.NewAuthService(st.users, st.profiles, bus, log, service.AuthConfig{
		JWTSecret:          cfg.JWTSecret,
		AccessTokenTTL:     cfg.AccessTokenTTL,
		RefreshTokenTTL:    cfg.RefreshTokenTTL,
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		GitHubClientID:     cfg.GitHubClientID,
		GitHubClientSecret: cfg.GitHubClientSecret,
		FrontendURL:        cfg.FrontendURL,
	})

	e := handler.NewRouter(handler.Services{
		Auth:          authSvc,
		Tasks:         service.NewTaskService(st.tasks, bus, log),
		Sharing:       service.NewSharingService(st.tx, st.tasks, st.profiles, st.notifications, bus, log),
		Notifications: service.NewNotificationService(st.notifications, bus, log),
		Profiles:      service.NewProfileService(st.profiles),
		Feed:          bus,
	}, []string{cfg.FrontendURL}, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      e,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("storage", cfg.StorageDriver),
			zap.String("feed", cfg.FeedDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (stores, func(), error) {
	if cfg.StorageDriver == config.DriverMemory {
		log.Warn("using in-memory storage, data is lost on exit")
		m := memory.New()
		return stores{
			tx:            m,
			users:         m.Users(),
			profiles:      m.Profiles(),
			tasks:         m.Tasks(),
			notifications: m.Notifications(),
		}, func() {}, nil
	}

	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.DatabaseURL)
	if err != nil {
		return stores{}, nil, fmt.Errorf("connect database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	if err := repository.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return stores{}, nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("database connected")

	return stores{
		tx:            repository.NewTransactor(db),
		users:         repository.NewUserRepository(db),
		profiles:      repository.NewProfileRepository(db),
		tasks:         repository.NewTaskRepository(db),
		notifications: repository.NewNotificationRepository(db),
	}, func() { _ = db.Close() }, nil
}

func openBus(ctx context.Context, cfg config.Config, log *zap.Logger) (changefeed.Bus, error) {
	if cfg.FeedDriver == config.DriverMemory {
		return changefeed.NewMemoryBus(log), nil
	}

	bus, err := changefeed.NewRedisBus(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info("change feed connected", zap.String("addr", cfg.RedisAddr))
	return bus, nil
}
