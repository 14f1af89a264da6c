// Package main is the entry point for the API server.
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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/capitalize-ai/faqbot/internal/config"
	"github.com/capitalize-ai/faqbot/internal/conversation"
	"github.com/capitalize-ai/faqbot/internal/database"
	"github.com/capitalize-ai/faqbot/internal/embedding"
	"github.com/capitalize-ai/faqbot/internal/faq"
	"github.com/capitalize-ai/faqbot/internal/handler"
	"github.com/capitalize-ai/faqbot/internal/llm"
	"github.com/capitalize-ai/faqbot/internal/middleware"
	natsclient "github.com/capitalize-ai/faqbot/internal/nats"
	"github.com/capitalize-ai/faqbot/internal/querylog"
	"github.com/capitalize-ai/faqbot/internal/rewriter"
	"github.com/capitalize-ai/faqbot/internal/routing"
	"github.com/capitalize-ai/faqbot/internal/search"
	"github.com/capitalize-ai/faqbot/internal/synth"
	"github.com/capitalize-ai/faqbot/pkg/logger"
	"github.com/capitalize-ai/faqbot/pkg/tracing"
)

const embedderRetryInterval = 10 * time.Second

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "faqbot", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	embedder := embedding.NewOpenAIEmbedder(embedding.Config{
		APIKey:  cfg.EmbeddingAPIKey,
		BaseURL: cfg.EmbeddingBaseURL,
		Model:   cfg.EmbeddingModel,
	}, log.Named("embedding"))

	// FAQ corpus and query log: Postgres when configured, memory otherwise
	var (
		gateway  search.Gateway
		faqRepo  faq.Repository
		sinks    querylog.MultiSink
		dbPinger handler.Pinger
		memory   *search.MemoryGateway
	)
	if cfg.DatabaseURL != "" {
		db, err := openDatabase(ctx, cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal("failed to open database", zap.Error(err))
		}
		defer database.Close(db)

		gateway = search.NewPGVectorGateway(db, log)
		faqRepo = faq.NewGormRepository(db)
		sinks = append(sinks, querylog.NewGormRepository(db))
		dbPinger = handler.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, db) })
	} else {
		log.Warn("DATABASE_URL not set, serving FAQs from memory", zap.String("seed_file", cfg.FAQSeedFile))
		memory = search.NewMemoryGateway()
		gateway = memory
		faqRepo = memory
		sinks = append(sinks, querylog.NewLogSink(log))
	}
	catalog := faq.NewService(faqRepo, embedder, log)

	// Sessions, with Redis as durable backing when configured
	sessionOpts := conversation.Options{
		MaxMessages:   cfg.Session.MaxMessages,
		IdleTimeout:   cfg.Session.IdleTimeout,
		SweepInterval: cfg.Session.SweepInterval,
	}
	if cfg.RedisURL != "" {
		rdb, err := conversation.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("redis unavailable, sessions will not survive restarts", zap.Error(err))
		} else {
			defer rdb.Close()
			sessionOpts.Backend = conversation.NewRedisBackend(rdb, cfg.Session.IdleTimeout)
		}
	}
	sessions := conversation.NewMemoryStore(sessionOpts, log.Named("conversation"))
	log.Info("session store ready", zap.String("mode", string(sessions.Mode())))

	// Route decision events on NATS JetStream
	var eventsPinger handler.Pinger
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS, decision events disabled", zap.Error(err))
		} else {
			defer natsClient.Close()
			if err := natsclient.EnsureStream(ctx, natsClient.JetStream()); err != nil {
				log.Error("failed to ensure stream", zap.Error(err))
			}
			sinks = append(sinks, natsclient.NewEventPublisher(natsClient.JetStream()))
			eventsPinger = natsClient
		}
	}

	// The dispatcher outlives ctx so queued records can drain during shutdown.
	recorder := querylog.NewDispatcher(sinks, log)
	if err := recorder.Start(context.Background()); err != nil {
		log.Fatal("failed to start query log dispatcher", zap.Error(err))
	}

	rules := rewriter.DefaultRules()
	if cfg.RewriterRulesFile != "" {
		rules, err = rewriter.LoadRules(cfg.RewriterRulesFile)
		if err != nil {
			log.Fatal("failed to load rewriter rules", zap.Error(err))
		}
	}

	routingCfg := routing.Config{
		DirectThreshold:  cfg.Routing.DirectThreshold,
		SynthThreshold:   cfg.Routing.SynthThreshold,
		ContextThreshold: cfg.Routing.ContextThreshold,
		SearchLimit:      cfg.Routing.SearchLimit,
		HistoryWindow:    cfg.Routing.HistoryWindow,
	}
	if err := routingCfg.Validate(); err != nil {
		log.Fatal("invalid routing configuration", zap.Error(err))
	}

	engine := routing.NewEngine(routing.Deps{
		Embedder:    embedder,
		Search:      gateway,
		Synthesizer: newSynthesizer(cfg, log),
		Rewriter:    rewriter.New(rules),
		Sessions:    sessions,
		Recorder:    recorder,
	}, routingCfg, log)

	// The embedder may come up after the server; /ready reports 503 meanwhile.
	go func() {
		embedder.InitWithRetry(ctx, embedderRetryInterval)
		if memory != nil {
			seedMemory(ctx, catalog, cfg.FAQSeedFile, log)
		}
	}()

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(embedder, sessions, dbPinger, eventsPinger)
	searchHandler := handler.NewSearchHandler(engine, recorder, log)
	sessionHandler := handler.NewSessionHandler(sessions, log)
	adminHandler := handler.NewAdminHandler(catalog, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public chat endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Post("/search", searchHandler.Search)
			r.Post("/feedback", searchHandler.Feedback)
			r.Post("/sessions", sessionHandler.Create)
			r.Get("/sessions/{id}/messages", sessionHandler.Messages)
		})

		// Catalog administration
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(middleware.AuthConfig{
				Secret:   cfg.JWTSecret,
				Issuer:   cfg.JWTIssuer,
				Audience: cfg.JWTAudience,
				Leeway:   30 * time.Second,
			}))
			r.Use(middleware.RequireScope(middleware.ScopeFAQAdmin))
			r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Post("/faqs", adminHandler.CreateFAQ)
			r.Post("/faqs/{id}/reembed", adminHandler.Reembed)
		})
	})

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
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		log.Warn("query log not fully flushed", zap.Error(err))
	}
	if err := sessions.Close(shutdownCtx); err != nil {
		log.Warn("session snapshots not fully flushed", zap.Error(err))
	}

	log.Info("server stopped")
}

func openDatabase(ctx context.Context, dsn string, log *logger.Logger) (*gorm.DB, error) {
	db, err := database.Open(dsn, log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		database.Close(db)
		return nil, err
	}
	return db, nil
}

// newSynthesizer builds the guarded LLM synthesizer, or a disabled one when
// no provider key is configured.
func newSynthesizer(cfg *config.Config, log *logger.Logger) synth.Synthesizer {
	apiKey := cfg.AnthropicAPIKey
	if llm.Provider(cfg.LLMProvider) == llm.ProviderOpenAI {
		apiKey = cfg.OpenAIAPIKey
	}

	client, err := llm.NewClient(llm.Provider(cfg.LLMProvider), llm.Options{
		APIKey:     apiKey,
		BaseURL:    cfg.LLMBaseURL,
		MaxRetries: cfg.LLMMaxRetries,
	})
	if err != nil {
		log.Warn("LLM synthesis disabled", zap.String("provider", cfg.LLMProvider), zap.Error(err))
		return synth.Disabled{}
	}

	return synth.NewGuard(synth.NewLLMBackend(client, cfg.LLMModel), synth.Config{
		FailureThreshold: cfg.Synth.FailureThreshold,
		Cooldown:         cfg.Synth.Cooldown,
		DailyCap:         cfg.Synth.DailyCap,
		Timeout:          cfg.Synth.Timeout,
		RatePerMinute:    cfg.Synth.RatePerMinute,
		MaxQueryChars:    cfg.Synth.MaxQueryChars,
		MaxContextChars:  cfg.Synth.MaxContextChars,
		MaxOutputChars:   cfg.Synth.MaxOutputChars,
	}, log)
}

func seedMemory(ctx context.Context, catalog *faq.Service, path string, log *logger.Logger) {
	reqs, err := faq.LoadSeedFile(path)
	if err != nil {
		log.Error("failed to load FAQ seed file", zap.Error(err))
		return
	}
	n, err := catalog.Seed(ctx, reqs)
	if err != nil {
		log.Error("failed to seed FAQs", zap.Int("created", n), zap.Error(err))
		return
	}
	log.Info("FAQ corpus seeded", zap.Int("created", n))
}
