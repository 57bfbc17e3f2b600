package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"cdrpulse/internal/archive"
	"cdrpulse/internal/config"
	"cdrpulse/internal/db"
	"cdrpulse/internal/events"
	"cdrpulse/internal/handlers"
	"cdrpulse/internal/metrics"
	"cdrpulse/internal/otel"
	"cdrpulse/internal/store"
	"cdrpulse/internal/version"
	"cdrpulse/pkg/bus"
	"cdrpulse/pkg/render"
	"cdrpulse/pkg/s3"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

// loadConfig reads the service configuration and applies its logging settings.
func loadConfig(ctx context.Context) (config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := stderrLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openDatabase connects and brings the schema up to date.
func openDatabase(ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	database, err := db.Connect(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(ctx, database, cfg.DBDriver); err != nil {
		_ = db.Close(database)
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return database, nil
}

func closeDatabase(database *gorm.DB) {
	if err := db.Close(database); err != nil {
		log.Error().Err(err).Msg("close database")
	}
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	cleanup, err := otel.Init(ctx, version.Name, version.Version, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown otel")
		}
	}()

	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(database)

	st, err := store.New(database, store.WithRunLimits(cfg.RunsLimit, cfg.RunsMaxLimit))
	if err != nil {
		return err
	}
	if cfg.DBSeed {
		if err := st.Seed(ctx); err != nil {
			return fmt.Errorf("seed database: %w", err)
		}
	}

	emitter := events.NewEmitter(nil)
	if cfg.NATSURL != "" {
		b, err := bus.Connect(bus.Config{
			URL:      cfg.NATSURL,
			Name:     version.Name,
			Stream:   events.Stream,
			Subjects: []string{events.All},
		})
		if err != nil {
			return err
		}
		defer b.Close()
		emitter = events.NewEmitter(b)
		log.Info().Str("url", cfg.NATSURL).Msg("publishing lifecycle events")
	}

	var archiver *archive.Archiver
	if cfg.S3.Enabled() {
		client, err := s3.NewClient(ctx, s3.Options{
			Endpoint:       cfg.S3.Endpoint,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			Region:         cfg.S3.Region,
			DisableTLS:     cfg.S3.DisableTLS,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fmt.Errorf("s3 client: %w", err)
		}
		if err := client.EnsureBucket(ctx, cfg.S3.Bucket); err != nil {
			log.Warn().Err(err).Str("bucket", cfg.S3.Bucket).Msg("archive bucket unavailable")
		}
		archiver = archive.New(client, cfg.S3.Bucket)
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("archiving completed runs")
	}

	renderer, err := render.New()
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	api, err := handlers.New(handlers.Options{
		Store:          st,
		Renderer:       renderer,
		Events:         emitter,
		Archive:        archiver,
		Metrics:        metrics.New(),
		Logger:         &log.Logger,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("version", version.Version).Msg("starting " + version.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
	return nil
}
