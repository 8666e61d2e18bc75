package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/covercheck/covercheck/internal/config"
	"github.com/covercheck/covercheck/internal/domain/chart"
	"github.com/covercheck/covercheck/internal/domain/pamphlet"
	"github.com/covercheck/covercheck/internal/domain/publication"
	"github.com/covercheck/covercheck/internal/domain/stats"
	"github.com/covercheck/covercheck/internal/platform/auth"
	"github.com/covercheck/covercheck/internal/platform/blobstore"
	"github.com/covercheck/covercheck/internal/platform/cache"
	"github.com/covercheck/covercheck/internal/platform/db"
	"github.com/covercheck/covercheck/internal/platform/fonts"
	"github.com/covercheck/covercheck/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "covercheck-server",
		Short: "Coverage-check pamphlet statistics API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// tokenCmd mints a consultant bearer token with the configured gateway
// secret, for local testing against a running server.
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a consultant bearer token for testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			phone, _ := cmd.Flags().GetString("phone")
			org, _ := cmd.Flags().GetString("org")
			role, _ := cmd.Flags().GetString("role")
			fcCode, _ := cmd.Flags().GetString("fc-code")
			ttlMinutes, _ := cmd.Flags().GetInt("ttl")

			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if role != auth.RoleFC && role != auth.RoleAdmin {
				return fmt.Errorf("--role must be %q or %q", auth.RoleFC, auth.RoleAdmin)
			}
			if role == auth.RoleFC && phone == "" {
				return fmt.Errorf("--phone is required for fc tokens")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.GatewaySecret == "" {
				return fmt.Errorf("GATEWAY_SECRET is not configured")
			}

			token, err := auth.Mint([]byte(cfg.GatewaySecret), auth.Consultant{
				Name:   name,
				Phone:  phone,
				Org:    org,
				Role:   role,
				FCCode: fcCode,
			}, time.Duration(ttlMinutes)*time.Minute)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("name", "", "Consultant name")
	cmd.Flags().String("phone", "", "Consultant phone")
	cmd.Flags().String("org", "", "Consultant organization")
	cmd.Flags().String("role", auth.RoleFC, "Role: fc or admin")
	cmd.Flags().String("fc-code", "", "Consultant FC code")
	cmd.Flags().Int("ttl", 60, "Token lifetime in minutes")
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	reportTZ, err := time.LoadLocation(cfg.ReportTimeZone)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid report time zone")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Blob storage
	var blobs blobstore.BlobStore
	switch cfg.BlobBackend {
	case "gcs":
		gcs, err := blobstore.NewGCSBlobStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open GCS bucket")
		}
		defer gcs.Close()
		blobs = gcs
		logger.Info().Str("bucket", cfg.GCSBucket).Msg("using GCS blob storage")
	default:
		blobs = blobstore.NewInMemoryBlobStore()
		logger.Warn().Msg("using in-memory blob storage, artifacts will not survive a restart")
	}

	// Shared memo cache with a background sweep
	memo := cache.New(cfg.StatsCacheTTL())
	sweepCtx, sweepCancel := context.WithCancel(ctx)
	defer sweepCancel()
	memo.StartCleanup(sweepCtx, 10*time.Minute)

	// Domain wiring
	fontLib := fonts.NewLibrary(cfg.ChartFontRegular, cfg.ChartFontBold, logger)
	composer := chart.NewComposer(fontLib, logger)

	statsSvc := stats.NewService(stats.NewRepoPG(pool), memo, logger, cfg.QueryTimeout())
	pamphletSvc := pamphlet.NewService(statsSvc, composer, cfg.BrandName, cfg.ContentVersion, reportTZ, logger)
	publicationSvc := publication.NewService(publication.NewRepoPG(pool), blobs,
		cfg.ServiceCode, cfg.ContentVersion, reportTZ, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() && cfg.GatewaySecret == "" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.GatewayAuthMiddleware([]byte(cfg.GatewaySecret)))
	}

	// Remote-store calls must fail rather than hang.
	e.Use(middleware.RequestTimeout(cfg.QueryTimeout()))

	// Routes
	apiV1 := e.Group("/api/v1")
	stats.NewHandler(statsSvc, composer).RegisterRoutes(apiV1)
	pamphlet.NewHandler(pamphletSvc).RegisterRoutes(apiV1)
	publication.NewHandler(publicationSvc).RegisterRoutes(apiV1)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": cfg.ContentVersion,
		})
	})
	e.GET("/healthz/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
