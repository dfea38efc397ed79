package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	echoapi "github.com/cmskit/clientlogin/api/echo"
	"github.com/cmskit/clientlogin/auth"
	"github.com/cmskit/clientlogin/config"
	"github.com/cmskit/clientlogin/domain"
	"github.com/cmskit/clientlogin/internal/metrics"
	"github.com/cmskit/clientlogin/internal/provider"
	"github.com/cmskit/clientlogin/mongodb"
	"github.com/cmskit/clientlogin/sessionstore"
)

// sweepInterval is how often expired sessions are purged from storage.
const sweepInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("root_url", cfg.RootURL).
		Str("mongo_db_name", cfg.MongoDBName).
		Int("providers", len(cfg.Providers)).
		Msg("Starting clientlogin server")

	ctx := context.Background()
	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MongoDB connection")
	}
	defer mongodb.CloseMongoDB(context.Background())
	db := mongodb.GetDB()

	profileRepo, err := mongodb.NewProfileRepositoryMongo(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ProfileRepository")
	}
	sessionRepo, err := mongodb.NewSessionRepositoryMongo(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize SessionRepository")
	}

	store := newSessionStore(cfg)
	tokens := sessionstore.NewTokenStore(store)

	registry := provider.NewRegistry(cfg.ProviderConfigs())

	authenticator := auth.NewAuthenticator(auth.Options{
		Registry:     registry,
		Profiles:     profileRepo,
		Sessions:     sessionRepo,
		Tokens:       tokens,
		RootURL:      cfg.RootURL,
		BasePath:     cfg.BasePath,
		ResponseNoun: cfg.ResponseNoun,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	api := echoapi.NewClientLoginAPI(authenticator, registry, cfg.BasePath, cfg.ResponseNoun)
	api.RegisterRoutes(e)

	e.GET("/healthz", func(c echo.Context) error {
		if err := mongodb.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics.Init(reg)
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sessionMaxAge := time.Duration(cfg.LoginExpiryDays) * 24 * time.Hour
	go sweepExpiredSessions(sweepCtx, sessionRepo, sweepInterval, sessionMaxAge)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down clientlogin server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// newSessionStore selects Redis when configured, the in-process store
// otherwise.
func newSessionStore(cfg *config.Config) sessionstore.SessionStore {
	if cfg.RedisAddr == "" {
		log.Info().Msg("Using in-memory session store")
		return sessionstore.NewMemoryStore()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis session store")
	return sessionstore.NewRedisStore(client, "")
}

// sweepExpiredSessions purges long-expired sessions on a fixed cadence.
// maxAge is the grace window past token expiry during which a session is kept
// so its refresh token can still be redeemed; only rows expired longer than
// that are removed. Expired sessions are also rejected at read time, so the
// cadence only bounds storage growth.
func sweepExpiredSessions(ctx context.Context, sessions domain.SessionRepository, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
			if _, err := sessions.DeleteExpired(sweepCtx, maxAge); err != nil {
				log.Error().Err(err).Msg("Expired session sweep failed")
			}
			cancel()
		}
	}
}
