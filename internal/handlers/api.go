// Package handlers exposes the configuration and run store over a chi router.
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cdrpulse/internal/archive"
	"cdrpulse/internal/catalog"
	"cdrpulse/internal/events"
	"cdrpulse/internal/metrics"
	"cdrpulse/internal/models"
	"cdrpulse/internal/schema"
	"cdrpulse/internal/version"
	"cdrpulse/pkg/render"
)

const (
	defaultRateLimit      = 600
	defaultRequestTimeout = 60 * time.Second
	archiveURLExpiry      = 15 * time.Minute
	maxBodyBytes          = 1 << 20
)

// Store is the persistence surface the handlers depend on. *store.Store implements it.
type Store interface {
	CreateConfiguration(ctx context.Context, in schema.ConfigurationCreate) (models.TestConfiguration, error)
	GetConfiguration(ctx context.Context, id string) (models.TestConfiguration, error)
	ListConfigurations(ctx context.Context) ([]models.TestConfiguration, error)
	UpdateConfiguration(ctx context.Context, id string, in schema.ConfigurationUpdate) (models.TestConfiguration, error)
	DeleteConfiguration(ctx context.Context, id string) (bool, error)

	CreateRun(ctx context.Context, in schema.RunCreate) (models.TestRun, error)
	GetRun(ctx context.Context, id string) (models.TestRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.TestRun, error)
	ListRunsForConfiguration(ctx context.Context, configID string) ([]models.TestRun, error)
	UpdateRun(ctx context.Context, id string, in schema.RunUpdate) (models.TestRun, models.RunStatus, error)

	RunStats(ctx context.Context) (models.RunStats, error)
	Limits() (def, max int)
	Ping(ctx context.Context) error
}

// Options carries the dependencies of the API. Only Store is required.
type Options struct {
	Store          Store
	Catalog        *catalog.Catalog
	Renderer       *render.Engine
	Events         *events.Emitter
	Archive        *archive.Archiver
	Metrics        *metrics.Metrics
	Logger         *zerolog.Logger
	AllowedOrigins []string
	RateLimit      int
	RequestTimeout time.Duration
	ServiceName    string
}

// API wires the store and its side effects to HTTP handlers.
type API struct {
	store    Store
	catalog  *catalog.Catalog
	renderer *render.Engine
	events   *events.Emitter
	archive  *archive.Archiver
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	opts     Options
}

// New initialises the API layer with defaults applied to opts.
func New(opts Options) (*API, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Renderer == nil {
		renderer, err := render.New()
		if err != nil {
			return nil, err
		}
		opts.Renderer = renderer
	}
	if opts.Events == nil {
		opts.Events = events.NewEmitter(nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.ServiceName == "" {
		opts.ServiceName = version.Name
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &API{
		store:    opts.Store,
		catalog:  opts.Catalog,
		renderer: opts.Renderer,
		events:   opts.Events,
		archive:  opts.Archive,
		metrics:  opts.Metrics,
		logger:   logger,
		opts:     opts,
	}, nil
}
