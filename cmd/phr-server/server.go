package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/phr/internal/config"
	"github.com/ehr/phr/internal/domain/condition"
	"github.com/ehr/phr/internal/domain/medication"
	"github.com/ehr/phr/internal/domain/patient"
	"github.com/ehr/phr/internal/domain/treatment"
	"github.com/ehr/phr/internal/platform/apperr"
	"github.com/ehr/phr/internal/platform/auth"
	"github.com/ehr/phr/internal/platform/db"
	"github.com/ehr/phr/internal/platform/middleware"
	"github.com/ehr/phr/internal/platform/telemetry"
)

const shutdownTimeout = 10 * time.Second

type services struct {
	patients    *patient.Service
	medications *medication.Service
	conditions  *condition.Service
	treatments  *treatment.Service
}

func newServices(pool *pgxpool.Pool, rec telemetry.LinkRecorder) services {
	tx := db.NewTransactor(pool)
	meds := medication.NewService(medication.NewRepoPG(pool))
	conds := condition.NewService(condition.NewRepoPG(pool), condition.NewLinkRepoPG(pool), meds, tx, rec)
	treats := treatment.NewService(treatment.NewRepoPG(pool), treatment.NewLinkRepoPG(pool), meds, conds, tx, rec)
	return services{
		patients:    patient.NewService(patient.NewRepoPG(pool), tx),
		medications: meds,
		conditions:  conds,
		treatments:  treats,
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).Level(cfg.Level()).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(cfg.Level()).With().Timestamp().Logger()
	}
	return logger
}

// newRouter builds the HTTP surface. health reports database reachability;
// done stops background sweepers.
func newRouter(cfg *config.Config, logger zerolog.Logger, svc services, metrics *telemetry.Metrics,
	health echo.HandlerFunc, done <-chan struct{}) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.ErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", patient.PatientHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, done))
	e.Use(metrics.Middleware())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", health)
	e.GET("/metrics", metrics.Handler())

	api := e.Group("/api/v1", middleware.AccessLog(logger))
	if cfg.IsDev() {
		logger.Warn().Msg("development auth enabled; every request is trusted")
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	patient.NewHandler(svc.patients).RegisterRoutes(api)

	scoped := api.Group("", patient.Scope(svc.patients))
	medication.NewHandler(svc.medications).RegisterRoutes(scoped)
	condition.NewHandler(svc.conditions).RegisterRoutes(scoped)
	treatment.NewHandler(svc.treatments).RegisterRoutes(scoped)

	return e
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	metrics := telemetry.New()
	metrics.WatchPool(pool.Stat)

	e := newRouter(cfg, logger, newServices(pool, metrics), metrics, db.HealthHandler(pool, pool.Stat), ctx.Done())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
