// Package main is the entry point for the Polabooth API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/polabooth/internal/api"
	"github.com/onnwee/polabooth/internal/caption"
	"github.com/onnwee/polabooth/internal/capture"
	"github.com/onnwee/polabooth/internal/config"
	"github.com/onnwee/polabooth/internal/export"
	"github.com/onnwee/polabooth/internal/health"
	"github.com/onnwee/polabooth/internal/middleware"
	"github.com/onnwee/polabooth/internal/photo"
	"github.com/onnwee/polabooth/internal/tracing"
)

const serviceName = "polabooth-api"

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to YAML config file (env vars take precedence)")
	flag.Parse()

	if *help {
		fmt.Println("Polabooth API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	// Initialize logger
	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Initialize distributed tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Prometheus registry with process and Go runtime collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}

	captionMetrics := caption.NewMetrics()
	if err := captionMetrics.Register(registry); err != nil {
		logger.Error("failed to register caption metrics", "error", err)
		os.Exit(1)
	}

	// Booth state and services
	store := photo.NewStore()
	broadcaster := photo.NewBroadcaster()
	processor := capture.NewProcessor(capture.Config{
		Width:   cfg.PhotoWidth,
		Height:  cfg.PhotoHeight,
		Quality: cfg.PhotoQuality,
		Mirror:  true,
	})
	renderer := export.NewRenderer(export.DefaultConfig())
	captionClient := caption.NewClient(caption.ClientConfig{
		URL:      cfg.CaptionAPIURL,
		APIKey:   cfg.CaptionAPIKey,
		Fallback: cfg.CaptionFallback,
		Timeout:  time.Duration(cfg.CaptionTimeoutSeconds) * time.Second,
	}, captionMetrics)

	boothHandlers := api.NewBoothHandlers(api.BoothHandlersConfig{
		Store:          store,
		Processor:      processor,
		Renderer:       renderer,
		Captioner:      captionClient,
		Broadcaster:    broadcaster,
		DevelopDelay:   time.Duration(cfg.DevelopDelayMS) * time.Millisecond,
		CaptionTimeout: time.Duration(cfg.CaptionTimeoutSeconds) * time.Second,
		DefaultLocale:  cfg.CaptionLocale,
		MaxUploadBytes: int64(cfg.MaxUploadSizeMB) * 1024 * 1024,
	})
	wsHandlers := api.NewBoothWebSocketHandlers(broadcaster, cfg.AllowedOrigins)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		CaptionChecker: health.NewCaptionChecker(cfg.CaptionAPIURL),
		MetricsEnabled: true,
	})

	// Routes
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/captures", boothHandlers.Captures)
	mux.HandleFunc("/photos", boothHandlers.Photos)
	mux.HandleFunc("/photos/", boothHandlers.PhotoByID)
	mux.HandleFunc("/booth/ws", wsHandlers.SubscribeToBoothEvents)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"polabooth-api","version":"0.0.1"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Apply middleware: RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS
	var handler http.Handler = mux
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         300,
	})(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	if tracerProvider.IsEnabled() {
		handler = middleware.Tracing(serviceName)(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracerProvider.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down tracer provider", "error", err)
	}

	logger.Info("server stopped")
}
