// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chatshare/internal/config"
	"github.com/capitalize-ai/chatshare/internal/handler"
	"github.com/capitalize-ai/chatshare/internal/idgen"
	"github.com/capitalize-ai/chatshare/internal/ingest"
	natsclient "github.com/capitalize-ai/chatshare/internal/nats"
	"github.com/capitalize-ai/chatshare/internal/ratelimit"
	"github.com/capitalize-ai/chatshare/internal/service"
	"github.com/capitalize-ai/chatshare/internal/storage"
	"github.com/capitalize-ai/chatshare/pkg/logger"
	"github.com/capitalize-ai/chatshare/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server", zap.String("store_backend", cfg.StoreBackend))

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chatshare", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS when the store or the event stream needs it
	var natsClient *natsclient.Client
	if cfg.StoreBackend == config.BackendNATS || cfg.EventsEnabled {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()
	}

	// Open stores
	records, counters, closeStores, err := openStores(ctx, cfg, natsClient)
	if err != nil {
		log.Fatal("failed to open store", zap.String("store_backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeStores()

	// Ensure JetStream stream exists
	var events service.EventPublisher
	var eventsHealth storage.Pinger
	if cfg.EventsEnabled {
		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		events = streamManager
		eventsHealth = natsClient
	}

	// Initialize services
	allocator := idgen.NewAllocator(records, cfg.IDMaxAttempts)
	parser := ingest.NewParser(ingest.ParserConfig{MultiTurn: cfg.StructuredMultiTurn}, log)
	limiter := ratelimit.New(counters, ratelimit.Config{
		Limit:  cfg.RateLimitRequests,
		Window: cfg.RateLimitWindow,
		Atomic: cfg.RateLimitAtomic,
	})
	if cfg.RateLimitAtomic && !limiter.Atomic() {
		log.Warn("store has no atomic increment, rate limiting falls back to read-modify-write",
			zap.String("store_backend", cfg.StoreBackend))
	}
	conversationSvc := service.NewConversationService(records, allocator, parser, events, cfg.MaxContentBytes, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(records, eventsHealth)
	conversationHandler := handler.NewConversationHandler(conversationSvc, cfg.PublicBaseURL, log)

	// Create router
	r := handler.NewRouter(handler.RouterConfig{
		Conversations:      conversationHandler,
		Health:             healthHandler,
		Limiter:            limiter,
		Logger:             log,
		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
	})
	if cfg.TrustProxyHeaders {
		log.Info("client addresses taken from proxy headers")
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// openStores returns the record store and the rate limit counter store.
// Only the NATS backend keeps them in separate buckets.
func openStores(ctx context.Context, cfg *config.Config, nc *natsclient.Client) (records, counters storage.Store, closeFn func(), err error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.BackendRedis:
		rs, err := storage.NewRedisStore(ctx, storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, noop, err
		}
		s := storage.Instrument(rs, config.BackendRedis)
		return s, s, func() { rs.Close() }, nil

	case config.BackendBolt:
		bs, err := storage.OpenBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, nil, noop, err
		}
		s := storage.Instrument(bs, config.BackendBolt)
		return s, s, func() { bs.Close() }, nil

	case config.BackendNATS:
		rec, err := natsclient.EnsureKeyValue(ctx, nc, natsclient.RecordsBucket, 0)
		if err != nil {
			return nil, nil, noop, err
		}
		cnt, err := natsclient.EnsureKeyValue(ctx, nc, natsclient.CountersBucket, cfg.RateLimitWindow)
		if err != nil {
			return nil, nil, noop, err
		}
		return storage.Instrument(rec, config.BackendNATS), storage.Instrument(cnt, config.BackendNATS), noop, nil

	default:
		s := storage.Instrument(storage.NewMemoryStore(), config.BackendMemory)
		return s, s, noop, nil
	}
}
