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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vladislav-moscow/Social/internal/broker"
	"github.com/vladislav-moscow/Social/internal/config"
	"github.com/vladislav-moscow/Social/internal/database"
	"github.com/vladislav-moscow/Social/internal/handlers"
	"github.com/vladislav-moscow/Social/internal/logger"
	"github.com/vladislav-moscow/Social/internal/metrics"
	"github.com/vladislav-moscow/Social/internal/seed"
	"github.com/vladislav-moscow/Social/internal/storage"
	"github.com/vladislav-moscow/Social/internal/telemetry"
)

var (
	cfg       config.Server
	seedUsers int
	seedValue int64
)

var rootCmd = &cobra.Command{
	Use:   "social-server",
	Short: "REST API for conversations, messages, posts and follows",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.LoadServer(); err != nil {
			return err
		}
		if err := logger.Initialize(cfg.LogLevel, cfg.LogFile, "server.log"); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close(db)
		return database.Migrate(db)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with fake users, posts and conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close(db)
		if err := database.Migrate(db); err != nil {
			return err
		}

		res, err := seed.NewSeeder(db, seedValue).SeedDev(cmd.Context(), seedUsers)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d users: %v\n", len(res.Users), res.Users)
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedUsers, "users", 20, "Number of fake users")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 0, "Random seed (0 picks one)")

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openDatabase() (*gorm.DB, error) {
	dsn := cfg.DatabaseURL
	if cfg.DBDriver == "sqlite" && dsn == "" {
		dsn = cfg.SQLitePath
	}
	return database.Initialize(database.Config{
		Driver:      cfg.DBDriver,
		DSN:         dsn,
		Development: cfg.LogLevel == "debug",
	})
}

func newUploader() (storage.ImageUploader, error) {
	if cfg.UploadBackend == "s3" {
		u, err := storage.NewS3Uploader(cfg.AWSRegion, cfg.S3Bucket, "")
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	u, err := storage.NewLocalUploader(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	metrics.Initialize()

	tp, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  "social-server",
		Environment:  cfg.Telemetry.Environment,
		OTLPEndpoint: cfg.Telemetry.Endpoint,
		Enabled:      cfg.Telemetry.Enabled,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.WarnWithFields("Tracing disabled", err)
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		return err
	}

	h := handlers.NewHandlers(db)

	uploader, err := newUploader()
	if err != nil {
		return fmt.Errorf("failed to initialize uploads: %w", err)
	}
	h.SetUploader(uploader, cfg.MaxUploadSize)

	if cfg.Redis.Enabled {
		b, err := broker.NewRedisBroker(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
		if err != nil {
			logger.WarnWithFields("Redis unavailable, relay notifications disabled", err)
		} else {
			defer b.Close()
			h.SetPublisher(b)
		}
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	routerCfg := handlers.RouterConfig{AllowedOrigin: cfg.AllowedOrigin}
	if local, ok := uploader.(*storage.LocalUploader); ok {
		routerCfg.StaticDir = local.Dir()
		routerCfg.StaticPath = cfg.UploadBaseURL
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(h, routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server listening",
			zap.String("addr", cfg.Addr()),
			zap.String("db_driver", cfg.DBDriver),
			zap.String("upload_backend", cfg.UploadBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Server failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}
	if err := telemetry.Shutdown(ctx, tp); err != nil {
		logger.WarnWithFields("Tracer shutdown", err)
	}
	logger.Log.Info("Server exited")
	return nil
}
