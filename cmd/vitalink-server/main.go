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

	"github.com/vitalink/vitalink/internal/config"
	"github.com/vitalink/vitalink/internal/domain/consent"
	"github.com/vitalink/vitalink/internal/domain/emergency"
	"github.com/vitalink/vitalink/internal/domain/insights"
	"github.com/vitalink/vitalink/internal/domain/journal"
	"github.com/vitalink/vitalink/internal/domain/profile"
	"github.com/vitalink/vitalink/internal/domain/task"
	"github.com/vitalink/vitalink/internal/domain/vitals"
	"github.com/vitalink/vitalink/internal/platform/auth"
	"github.com/vitalink/vitalink/internal/platform/blobstore"
	"github.com/vitalink/vitalink/internal/platform/db"
	"github.com/vitalink/vitalink/internal/platform/middleware"
	"github.com/vitalink/vitalink/internal/platform/notify"
	"github.com/vitalink/vitalink/internal/platform/realtime"
	"github.com/vitalink/vitalink/internal/platform/retry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vitalink-server",
		Short: "Vitalink patient monitoring API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

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

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Offline replay queue for outbound requests captured while upstreams
	// were unreachable, and the backoff schedule transports retry on.
	offlineQueue := retry.NewQueue(retry.NewPGQueueRepo(pool), retry.NewHTTPReplayer(), logger)
	retryCoord := retry.NewCoordinator(retry.Config{
		MaxRetries:    cfg.EmergencyMaxRetries,
		InitialDelay:  cfg.EmergencyInitialDelay,
		MaxDelay:      cfg.EmergencyMaxDelay,
		BackoffFactor: cfg.EmergencyBackoffFactor,
	}, nil)

	// Outbound transports. Dispatcher treats an unconfigured transport as an
	// unavailable channel.
	var emailSender notify.EmailSender
	if cfg.EmailAPIURL != "" {
		emailSender = notify.NewAPIEmailSender(notify.APIEmailConfig{
			URL:    cfg.EmailAPIURL,
			APIKey: cfg.EmailAPIKey,
			From:   cfg.EmailFrom,
		}).WithRetry(retryCoord, offlineQueue)
	} else {
		logger.Warn().Msg("EMAIL_API_URL not set; email channel disabled")
	}
	var smsSender notify.SMSSender
	if cfg.SMSGatewayURL != "" {
		smsSender = notify.NewGatewaySMSSender(notify.GatewaySMSConfig{
			URL:      cfg.SMSGatewayURL,
			Username: cfg.SMSGatewayUser,
			Password: cfg.SMSGatewayPass,
			SenderID: cfg.SMSSenderID,
		}).WithRetry(retryCoord, offlineQueue)
	} else {
		logger.Warn().Msg("SMS_GATEWAY_URL not set; sms channel disabled")
	}

	// Blob storage for journal attachments.
	blobs, err := blobstore.NewFSBlobStore(cfg.StorageDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.StorageDir).Msg("failed to open blob storage")
	}

	// Realtime hub.
	hub := realtime.NewHub()

	// Repositories.
	patientRepo := profile.NewPatientRepoPG(pool)
	contactRepo := profile.NewContactRepoPG(pool)
	snapshotRepo := vitals.NewSnapshotRepoPG(pool)
	consentRepo := consent.NewConsentRepoPG(pool)
	eventRepo := emergency.NewEventRepoPG(pool)
	notificationRepo := emergency.NewNotificationRepoPG(pool)
	entryRepo := journal.NewEntryRepoPG(pool)
	reminderRepo := task.NewReminderRepoPG(pool)
	insightRepo := insights.NewInsightRepoPG(pool)

	// Services.
	profileSvc := profile.NewService(patientRepo, contactRepo)
	vitalsSvc := vitals.NewService(snapshotRepo, hub, logger)

	consentBroker := consent.NewDeviceBroker()
	consentMgr := consent.NewManager(consentRepo, consentBroker, cfg.LocationConsentTimeout, logger)

	dispatcher := emergency.NewDispatcher(emailSender, smsSender, logger)
	controller := emergency.NewController(
		eventRepo, notificationRepo,
		profileSvc, profileSvc, vitalsSvc, consentMgr,
		dispatcher, hub, logger,
	)

	journalSvc := journal.NewService(entryRepo, blobs, hub, logger)

	templates := notify.NewTemplateEngine()
	taskSvc := task.NewService(reminderRepo, hub, logger).
		WithNotifier(templates, emailSender, profileSvc)

	var generator insights.Generator
	if cfg.InsightsURL != "" {
		generator = insights.NewHTTPGenerator(insights.HTTPGeneratorConfig{
			URL:     cfg.InsightsURL,
			APIKey:  cfg.InsightsAPIKey,
			Timeout: cfg.InsightsTimeout,
		})
	}

	// Echo server.
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("25M"))
	e.Use(middleware.RequestTimeout(60 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.JWTSecret),
		}))
	}

	e.Use(middleware.Audit(logger))

	api := e.Group("/api")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	e.GET("/health", db.HealthHandler(pool))

	// Domain handlers.
	profile.NewHandler(profileSvc).RegisterRoutes(api)
	vitals.NewHandler(vitalsSvc).RegisterRoutes(api)
	consent.NewHandler(consentMgr, consentBroker).RegisterRoutes(api)
	emergency.NewHandler(controller).RegisterRoutes(api)
	journal.NewHandler(journalSvc).RegisterRoutes(api)
	task.NewHandler(taskSvc).RegisterRoutes(api)
	if generator != nil {
		insightsSvc := insights.NewService(insightRepo, vitalsSvc, generator, logger)
		insights.NewHandler(insightsSvc).RegisterRoutes(api)
	} else {
		logger.Warn().Msg("INSIGHTS_URL not set; insights endpoints disabled")
	}

	blobstore.NewBlobHandler(blobs).RegisterRoutes(api)
	realtime.NewHandler(hub).RegisterRoutes(api)

	// Background loops: due-reminder notifications and offline replay.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-bgCtx.Done():
				return
			case now := <-ticker.C:
				if sent := taskSvc.NotifyDue(bgCtx, now.UTC(), 100); sent > 0 {
					logger.Info().Int("sent", sent).Msg("reminder notifications delivered")
				}
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-bgCtx.Done():
				return
			case <-ticker.C:
				res, err := offlineQueue.Process(bgCtx, 50)
				if err != nil {
					logger.Warn().Err(err).Msg("offline queue pass failed")
					continue
				}
				if res.Delivered > 0 || res.Failed > 0 {
					logger.Info().
						Int("delivered", res.Delivered).
						Int("failed", res.Failed).
						Msg("offline queue processed")
				}
			}
		}
	}()

	// Start server with graceful shutdown.
	go func() {
		addr := ":" + cfg.Port
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()
	logger.Info().Str("port", cfg.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	bgCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	return nil
}
