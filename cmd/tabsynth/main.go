package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tabsynth/tabsynth/internal/config"
	logpkg "github.com/tabsynth/tabsynth/internal/logger"
	"github.com/tabsynth/tabsynth/internal/metrics"
	"github.com/tabsynth/tabsynth/internal/model"
	"github.com/tabsynth/tabsynth/internal/model/llm"
	datasetrepo "github.com/tabsynth/tabsynth/internal/repository/dataset"
	sessionrepo "github.com/tabsynth/tabsynth/internal/repository/session"
	chiTransport "github.com/tabsynth/tabsynth/internal/transport/chi"
	"github.com/tabsynth/tabsynth/internal/usecase/fieldgen"
	healthuc "github.com/tabsynth/tabsynth/internal/usecase/health"
	"github.com/tabsynth/tabsynth/internal/usecase/sampler"
	sessionuc "github.com/tabsynth/tabsynth/internal/usecase/session"
	"github.com/tabsynth/tabsynth/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting tabsynth API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.String("default_backend", cfg.Model.DefaultBackend),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterSamplingMetrics()
	metrics.RegisterHTTPMetrics()

	// Artifact storage
	store, err := datasetrepo.NewStore(cfg.Storage.DataDir, logger)
	if err != nil {
		logger.Fatal("Failed to open artifact store", zap.Error(err))
	}

	// Model backends — composition root
	var llmCfg *llm.Config
	if cfg.Model.LLM.Model != "" {
		llmCfg = &llm.Config{
			APIKey:         cfg.Model.LLM.APIKey,
			BaseURL:        cfg.Model.LLM.BaseURL,
			Model:          cfg.Model.LLM.Model,
			Provider:       cfg.Model.LLM.Provider,
			Temperature:    float32(cfg.Model.LLM.Temperature),
			MaxExampleRows: cfg.Model.LLM.MaxExampleRows,
			Logger:         logger,
		}
	}
	factory := model.NewFactory(cfg.Model.DefaultBackend, cfg.Model.Seed, llmCfg, logger)

	// Constrained sampler shared across sessions
	smp := sampler.New(sampler.Policy{
		MaxRounds:        cfg.Sampler.MaxRounds,
		MaxSampledFactor: cfg.Sampler.MaxSampledFactor,
		MaxDuration:      time.Duration(cfg.Sampler.MaxDurationSec) * time.Second,
	}, logger)

	// Use case services
	sessionSvc := sessionuc.New(sessionrepo.New(), store, factory, smp, logger)
	fieldgenSvc := fieldgen.New(cfg.FieldGen.MaxRecords, cfg.FieldGen.Seed, logger)

	var backendChecker healthuc.BackendChecker
	if llmCfg != nil {
		backendChecker = llm.New(llmCfg)
	}
	healthSvc := healthuc.New(store, backendChecker)

	// HTTP server
	server := chiTransport.NewServer(
		sessionSvc, fieldgenSvc, healthSvc,
		int64(cfg.HTTP.MaxUploadMB)<<20, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
