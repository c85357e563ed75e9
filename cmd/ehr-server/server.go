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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/clinicalquery/internal/config"
	"github.com/ehr/clinicalquery/internal/domain/clinical"
	"github.com/ehr/clinicalquery/internal/domain/medication"
	"github.com/ehr/clinicalquery/internal/domain/research"
	"github.com/ehr/clinicalquery/internal/platform/httperror"
	"github.com/ehr/clinicalquery/internal/platform/idgen"
	"github.com/ehr/clinicalquery/internal/platform/middleware"
)

const shutdownGrace = 10 * time.Second

// deps are the read-only resources shared by every request.
type deps struct {
	store   *clinical.Store
	catalog *research.Catalog
	orderID idgen.Generator
}

func loadDeps(cfg *config.Config) (*deps, error) {
	store, err := clinical.LoadStore(cfg.DatasetPath)
	if err != nil {
		return nil, err
	}
	catalog, err := research.LoadCatalog(cfg.TrialCatalogPath)
	if err != nil {
		return nil, err
	}
	return &deps{store: store, catalog: catalog, orderID: idgen.UUID{}}, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

func newServer(cfg *config.Config, d *deps, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httperror.Handler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.Audit(logger))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("")

	clinicalSvc := clinical.NewService(d.store)
	clinical.NewHandler(clinicalSvc, logger).RegisterRoutes(api)

	orderSvc := medication.NewService(d.orderID)
	medication.NewHandler(orderSvc, logger).RegisterRoutes(api)

	evidenceSvc := research.NewService(d.catalog)
	research.NewHandler(evidenceSvc, logger).RegisterRoutes(api)

	return e
}

func runServer(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg)

	d, err := loadDeps(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load clinical data")
		return err
	}
	logger.Info().
		Int("patients", len(d.store.PatientIDs())).
		Int("trials", len(d.catalog.Trials)).
		Msg("clinical data loaded")

	if cfg.AllowsAllOrigins() && !cfg.IsDev() {
		logger.Warn().Msg("CORS allows any origin; set EHR_ALLOW_ORIGINS to restrict it")
	}

	e := newServer(cfg, d, logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Addr()).
			Strs("allow_origins", cfg.AllowOrigins).
			Msg("starting server")
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error().Err(err).Msg("server error")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
