package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stmtguard/internal/dedupe/app"
	"stmtguard/internal/dedupe/events"
	"stmtguard/internal/dedupe/handler"
	dedupemetrics "stmtguard/internal/dedupe/metrics"
	"stmtguard/internal/dedupe/ports"
	jwttoken "stmtguard/internal/jwt_token"
	"stmtguard/internal/platform/config"
	"stmtguard/internal/platform/httpserver"
	"stmtguard/internal/platform/kafka"
	"stmtguard/internal/platform/logger"
	"stmtguard/internal/platform/metrics"
	"stmtguard/internal/platform/middleware"
	"stmtguard/pkg/platform/httputil"
	"stmtguard/pkg/platform/middleware/requesttime"
)

// main wires dependencies, exposes the HTTP router and owns the server
// lifecycle. Business logic lives in internal/dedupe.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	idx, err := openIndex(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := idx.close(); err != nil {
			log.Error("failed to close token index", "error", err)
		}
	}()

	dm := dedupemetrics.New()
	publisher, closePublisher, err := buildPublisher(ctx, cfg.Kafka, log, dm)
	if err != nil {
		return err
	}
	defer closePublisher()

	components, err := app.New(idx, app.Options{
		Logger:          log,
		PathSpecFile:    cfg.PathSpecFile,
		DisableCombined: !cfg.CombinedTokens,
		Metrics:         dm,
		Publisher:       publisher,
	})
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, jwttoken.DefaultIssuer, jwttoken.DefaultAudience)
	statements := handler.New(
		components.Service,
		log,
		metrics.New(),
		jwttoken.NewJWTServiceAdapter(jwtService),
		cfg.MaxUploadBytes,
	)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(requesttime.Middleware)
	r.Get("/health", healthHandler(idx))
	r.Handle("/metrics", promhttp.Handler())
	statements.Register(r)

	srv := httpserver.New(cfg.Addr, r)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting stmtguard", "addr", cfg.Addr, "index", cfg.Index.Backend, "combined_tokens", cfg.CombinedTokens)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildPublisher returns the Kafka publisher when brokers are configured and
// a log-only publisher otherwise.
func buildPublisher(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger, m *dedupemetrics.Metrics) (ports.EventPublisher, func(), error) {
	if !cfg.Enabled() {
		log.Info("kafka not configured, flag events are logged only")
		return events.NewLogPublisher(log), func() {}, nil
	}

	producer, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := producer.Ping(pingCtx); err != nil {
		// Brokers may come up later; the breaker handles outages per publish.
		log.Warn("kafka brokers unreachable at startup", "brokers", cfg.Brokers, "error", err)
	} else if err := producer.EnsureTopic(pingCtx, 3, -1); err != nil {
		log.Warn("could not ensure flag topic", "topic", cfg.FlagTopic, "error", err)
	}

	publisher, err := events.NewKafkaPublisher(producer, events.WithLogger(log), events.WithMetrics(m))
	if err != nil {
		_ = producer.Close(context.Background())
		return nil, nil, err
	}
	closeFn := func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := producer.Close(flushCtx); err != nil {
			log.Error("failed to flush kafka producer", "error", err)
		}
	}
	return publisher, closeFn, nil
}

func healthHandler(idx *index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := idx.ping(ctx); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
