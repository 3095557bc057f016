package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/wrale/oauth2-device-relay/internal/deviceflow"
	"github.com/wrale/oauth2-device-relay/internal/metrics"
	"github.com/wrale/oauth2-device-relay/internal/oauth"
)

// Version is set by the build process
var Version = "dev"

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("relay stopped")
	}
}

func run(cfg Config, logger zerolog.Logger) error {
	m := metrics.New()

	store, cleanup, err := newStore(cfg, logger, m)
	if err != nil {
		return err
	}
	defer cleanup()

	flow := deviceflow.NewOrchestrator(store,
		oauth.NewClient(oauth.WithTimeout(cfg.UpstreamTimeout)),
		deviceflow.WithExpiryDuration(cfg.CodeExpiry),
		deviceflow.WithPollInterval(cfg.PollInterval),
		deviceflow.WithEndpoints(cfg.Endpoints()),
		deviceflow.WithLogger(logger.With().Str("component", "deviceflow").Logger()),
		deviceflow.WithMetrics(m),
	)

	srv, err := newServer(cfg, flow, m, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Create HTTP server with proper timeout configurations
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info().
			Int("port", cfg.Port).
			Str("store", cfg.Store).
			Str("version", Version).
			Msg("server listening")
		serverErrors <- httpServer.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	// Block until we receive a signal or error
	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("starting server: %w", err)

	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("starting shutdown")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
			if err := httpServer.Close(); err != nil {
				logger.Error().Err(err).Msg("closing server")
			}
		}
	}

	return nil
}

// newLogger builds the root logger from LOG_LEVEL and LOG_FORMAT
func newLogger(cfg Config, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("LOG_LEVEL: %w", err)
	}

	switch cfg.LogFormat {
	case "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.LogFormat)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// newStore opens the configured backend. The returned cleanup closes it and
// any connection it owns.
func newStore(cfg Config, logger zerolog.Logger, m *metrics.Metrics) (deviceflow.Store, func(), error) {
	storeLogger := logger.With().Str("component", "store").Str("backend", cfg.Store).Logger()

	if cfg.Store != storeRedis {
		store := deviceflow.NewMemoryStore(
			deviceflow.WithSweepInterval(cfg.SweepInterval),
			deviceflow.WithStoreLogger(storeLogger),
			deviceflow.WithSweepHook(m.Swept),
		)
		return store, func() { _ = store.Close() }, nil
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	client := redis.NewClient(redisOpts)

	// Verify Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}

	store := deviceflow.NewRedisStore(client)
	cleanup := func() {
		_ = store.Close()
		if err := client.Close(); err != nil {
			storeLogger.Error().Err(err).Msg("closing redis connection")
		}
	}
	return store, cleanup, nil
}
