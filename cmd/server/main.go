package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"smartflow/backend/config"
	"smartflow/backend/internal/api/handler"
	"smartflow/backend/internal/api/router"
	"smartflow/backend/internal/event"
	"smartflow/backend/internal/repository"
	"smartflow/backend/internal/service"
	"smartflow/backend/pkg/database"
	"smartflow/backend/pkg/jwt"
	applogger "smartflow/backend/pkg/logger"
	"smartflow/backend/pkg/redis"
	"smartflow/backend/pkg/response"
)

const (
	eventDispatchTimeout = 5 * time.Second
	shutdownTimeout      = 10 * time.Second
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "smartflow",
		Short:         "SmartFlow Medic booking and virtual queue API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config/config.yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads the config and builds the logger every command needs.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func openDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// ────────────────────── serve ──────────────────────

func serveCmd() *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on start")
	return cmd
}

func runServer(skipMigrations bool) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting smartflow",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("clinic_timezone", cfg.Clinic.Timezone),
	)
	response.SetDebug(cfg.Server.Debug)

	// 1. database
	db, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB(db)

	if !skipMigrations {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("get sql.DB: %w", err)
		}
		if err := database.RunMigrations(sqlDB, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// 2. redis is optional; without it revocation and rate limits are off
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, token revocation and rate limiting disabled", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// 3. events: websocket hub always, kafka when brokers are set
	hub := event.NewHub(logger)
	sinks := []event.Sink{hub}
	var kafkaSink *event.KafkaSink
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink = event.NewKafkaSink(&cfg.Kafka, logger)
		sinks = append(sinks, kafkaSink)
	}
	dispatcher := event.NewDispatcher(logger, eventDispatchTimeout, sinks...)

	// 4. Repository → Service → Handler
	clinic, err := service.NewClinic(&cfg.Clinic)
	if err != nil {
		return fmt.Errorf("clinic settings: %w", err)
	}
	jwtMgr := jwt.NewManager(&cfg.Auth)
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, clinic, dispatcher, logger)
	h := handler.NewHandler(svc, hub, cfg.Server.CORS.AllowOrigins, logger)

	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	// drain pending events before the sinks go away
	dispatcher.Close()
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Warn("kafka writer close failed", zap.Error(err))
		}
	}

	logger.Info("server stopped")
	return nil
}
