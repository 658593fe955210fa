package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/winniio/dashboard/internal/config"
	"github.com/winniio/dashboard/internal/domain/dashboard"
	"github.com/winniio/dashboard/internal/domain/eventlog"
	"github.com/winniio/dashboard/internal/platform/db"
	"github.com/winniio/dashboard/internal/platform/middleware"
	"github.com/winniio/dashboard/internal/platform/mutation"
	"github.com/winniio/dashboard/internal/platform/scheduler"
	"github.com/winniio/dashboard/internal/platform/store"
	"github.com/winniio/dashboard/internal/platform/telemetry"
	"github.com/winniio/dashboard/internal/platform/view"
	"github.com/winniio/dashboard/internal/platform/websocket"
)

const version = "0.1.0"

// backend is an opened record store plus whatever must be released with it.
type backend struct {
	store store.Store
	pool  *pgxpool.Pool
	close func()
}

func (b *backend) Close() {
	if b.close != nil {
		b.close()
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backend, error) {
	switch cfg.StoreDriver {
	case store.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		st := store.NewPGStore(pool)
		if err := st.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info().Msg("connected to database")
		return &backend{store: st, pool: pool, close: pool.Close}, nil
	case store.DriverSQLite:
		st, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite store")
		return &backend{store: st, close: func() { _ = st.Close() }}, nil
	default:
		st, err := store.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open data dir: %w", err)
		}
		logger.Info().Str("dir", st.Root()).Msg("using file store")
		return &backend{store: st}, nil
	}
}

// pipeline is the refresh loop and everything that consumes its output.
type pipeline struct {
	board     *view.Board
	defs      []dashboard.PanelDef
	hub       *websocket.Hub
	scheduler *scheduler.Scheduler
	events    *eventlog.Service
	registry  *prometheus.Registry
}

func newPipeline(cfg *config.Config, st store.Store, logger zerolog.Logger) *pipeline {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := websocket.NewHub(logger, dashboard.Topic, eventlog.Topic)
	board := view.NewBoard()
	defs := dashboard.DefaultPanels(dashboard.Sources{
		Agents:   cfg.AgentsSource,
		Patients: cfg.PatientsSource,
	}, cfg.MutationProbability)

	sched := scheduler.New(
		st,
		mutation.New(mutation.WithSeed(cfg.MutationSeed)),
		dashboard.Feeds(defs),
		dashboard.NewPublisher(board, defs, hub, logger),
		scheduler.WithInterval(cfg.RefreshInterval()),
		scheduler.WithLogger(logger.With().Str("component", "scheduler").Logger()),
		scheduler.WithMetrics(scheduler.NewMetrics(reg)),
	)

	events := eventlog.NewService(st, cfg.EventLogSource, logger)
	events.SetPublisher(hub)

	return &pipeline{
		board:     board,
		defs:      defs,
		hub:       hub,
		scheduler: sched,
		events:    events,
		registry:  reg,
	}
}

func newServer(cfg *config.Config, logger zerolog.Logger, p *pipeline, b *backend) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
		Skip: func(c echo.Context) bool {
			return strings.HasSuffix(c.Path(), "/ws")
		},
	}

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger, "/health", "/metrics"))
	e.Use(telemetry.NewHTTPMetrics(p.registry).Middleware())
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/store", db.HealthHandler(cfg.StoreDriver, b.store, b.pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})))

	// API
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	dash := dashboard.NewHandler(p.board, p.defs)
	dash.SetStatusSource(p.scheduler)
	dash.RegisterRoutes(apiV1)

	eventlog.NewHandler(p.events).RegisterRoutes(apiV1)

	websocket.NewHandler(p.hub, logger, cfg.CORSOrigins, dashboard.Topic).RegisterRoutes(apiV1)

	return e
}
