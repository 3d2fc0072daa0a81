package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/hermes/internal/api"
	"github.com/UnknownOlympus/hermes/internal/backend"
	"github.com/UnknownOlympus/hermes/internal/capture"
	"github.com/UnknownOlympus/hermes/internal/config"
	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/location"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/notify"
	"github.com/UnknownOlympus/hermes/internal/pod"
	"github.com/UnknownOlympus/hermes/internal/queue"
	"github.com/UnknownOlympus/hermes/internal/repository"
	"github.com/UnknownOlympus/hermes/internal/routing"
	"github.com/UnknownOlympus/hermes/internal/session"
	"github.com/UnknownOlympus/hermes/internal/uploader"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

const (
	sinkKafka       = "kafka"
	pingTimeout     = 3 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	dtb, err := repository.NewDatabase(
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
	)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dtb.Close()

	repo := repository.NewRepository(dtb, logger)
	if err = repo.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate DB: %v", err)
	}

	samples := queue.New(repo, logger, appMetrics, cfg.Upload.QueueMax)
	recovered, err := samples.Recover(ctx)
	if err != nil {
		log.Fatalf("Failed to recover upload queue: %v", err)
	}
	logger.InfoContext(ctx, "Upload queue recovered", "in_flight_reset", recovered)

	tokens := session.NewTokenSource(cfg.Session.Token, cfg.Session.TokenFile)
	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.APIKey)

	sink, closeSink := newSink(cfg, client)
	defer closeSink()

	tracker := capture.New(
		newLocationSource(cfg, logger),
		samples,
		tokens,
		client,
		notify.NewLogNotifier(logger),
		capture.Config{
			Interval:           cfg.Capture.Interval,
			SupervisorInterval: cfg.Capture.SupervisorInterval,
			RestartCooldown:    cfg.Capture.RestartCooldown,
		},
		appMetrics,
		logger,
	)

	upl := uploader.New(logger, samples, sink, tokens, appMetrics, uploader.Config{
		Interval:   cfg.Upload.Interval,
		BatchSize:  cfg.Upload.BatchSize,
		MaxRetries: cfg.Upload.MaxRetries,
	})

	optimizer, err := newOptimizer(cfg, appMetrics, logger)
	if err != nil {
		log.Fatalf("Failed to create route optimizer: %v", err)
	}

	pods := pod.NewService(repo, client, tokens, pod.NewPingProbe(client, pingTimeout), appMetrics, logger)

	handler := api.NewHandler(tracker, session.StaticIdentity(cfg.DriverID), samples, optimizer, pods, repo, logger)
	readTimeout := 5
	writeTimeout := 30
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      api.NewRouter(handler, reg, logger),
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}

	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		upl.Run(gctx)
		return nil
	})
	group.Go(func() error {
		logger.InfoContext(gctx, "Starting control server", "port", cfg.HTTPPort)
		if serr := server.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			return fmt.Errorf("control server failed: %w", serr)
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.InfoContext(gctx, "Shutdown signal received. Stopping application...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		if serr := tracker.Stop(shutdownCtx); serr != nil {
			logger.ErrorContext(shutdownCtx, "Failed to stop tracking", "error", serr)
		}
		return server.Shutdown(shutdownCtx)
	})

	if err = group.Wait(); err != nil {
		logger.Error("Application stopped with error", "error", err)
		return
	}

	logger.Info("Application stopped gracefully.")
}

// newLocationSource replays a GPX track when one is configured. Without a track there is no
// position provider on this host and every permission request is denied.
func newLocationSource(cfg *config.Config, logger *slog.Logger) location.Source {
	if cfg.GPX.Track == "" {
		logger.Warn("No location provider configured, tracking is unavailable")
		return location.UnavailableSource{}
	}

	source, err := location.NewGPXSource(cfg.GPX.Track, cfg.GPX.Speedup, true, logger)
	if err != nil {
		log.Fatalf("Failed to load GPX track: %v", err)
	}
	logger.Info("GPX location source loaded", "track", cfg.GPX.Track, "points", source.Len())

	return source
}

func newSink(cfg *config.Config, client *backend.Client) (uploader.Sink, func()) {
	if cfg.Sink != sinkKafka {
		return client, func() {}
	}

	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatal("Kafka sink selected but no brokers configured")
	}
	sink := backend.NewKafkaSink(backend.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))

	return sink, func() {
		if err := sink.Close(); err != nil {
			log.Printf("Failed to close kafka writer: %v", err)
		}
	}
}

// newOptimizer builds the route optimizer. Exact ordering needs the Directions API, so it is
// only enabled for the Google geocoder with a key; otherwise every route uses the heuristic.
func newOptimizer(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*routing.Optimizer, error) {
	provider, err := geocoding.NewProvider(geocoding.ProviderConfig{
		Type:      geocoding.ProviderType(cfg.Geocoder.Type),
		APIKey:    cfg.Geocoder.APIKey,
		RateLimit: cfg.Geocoder.RateLimit,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoding provider: %w", err)
	}
	logger.Info("Geocoding provider initialized", "type", cfg.Geocoder.Type)

	var exact routing.ExactOptimizer
	if geocoding.ProviderType(cfg.Geocoder.Type) == geocoding.ProviderTypeGoogle && cfg.Geocoder.APIKey != "" {
		client, cerr := geocoding.NewMapsClient(cfg.Geocoder.APIKey, cfg.Geocoder.RateLimit)
		if cerr != nil {
			return nil, cerr
		}
		exact = routing.NewGoogleOptimizer(client, logger)
	}

	aliases := routing.NewAliasTable()
	if cfg.Routing.CityAliases != "" {
		aliases, err = routing.LoadAliasTable(cfg.Routing.CityAliases)
		if err != nil {
			return nil, err
		}
	}

	return routing.NewOptimizer(provider, cfg.Geocoder.Type, exact, aliases, routing.Config{
		WaypointLimit: cfg.Routing.Limit,
		AddressSuffix: cfg.Geocoder.AddressSuffix,
	}, m, logger), nil
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelWarn,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelError,
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
