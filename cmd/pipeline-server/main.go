package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pixel-learning/image-label-pipeline/internal/config"
	"github.com/pixel-learning/image-label-pipeline/internal/detect"
	"github.com/pixel-learning/image-label-pipeline/internal/event"
	"github.com/pixel-learning/image-label-pipeline/internal/handlers"
	"github.com/pixel-learning/image-label-pipeline/internal/logging"
	"github.com/pixel-learning/image-label-pipeline/internal/metrics"
	"github.com/pixel-learning/image-label-pipeline/internal/pipeline"
	"github.com/pixel-learning/image-label-pipeline/internal/policy"
	"github.com/pixel-learning/image-label-pipeline/internal/record"
	"github.com/pixel-learning/image-label-pipeline/internal/store"
	"github.com/pixel-learning/image-label-pipeline/internal/track"
	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

// Local development server emulating the managed runtime: POST an S3
// notification batch to /v1/events and get the outcome report back.
func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, true)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("Failed to load AWS configuration: %v", err)
	}

	orch, err := pipeline.NewOrchestrator(pipeline.Config{
		Decoder:      event.NewDecoder(track.NewResolver(cfg.TrackRules()), cfg.AllowedExtensions),
		Detector:     detect.NewClient(rekognition.NewFromConfig(awsCfg)),
		Policy:       policy.Policy{MinConfidence: cfg.MinConfidence, MaxLabels: cfg.MaxLabels},
		Builder:      record.NewBuilder(results.MethodLambdaTrigger, cfg.Retention()),
		Writer:       store.NewStore(dynamodb.NewFromConfig(awsCfg), cfg.Tables()),
		Logger:       logger,
		Concurrency:  cfg.WorkerConcurrency,
		EventTimeout: cfg.EventTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	logger.Info("✓ pipeline initialized",
		zap.String("environment", cfg.Environment),
		zap.Int("max_labels", cfg.MaxLabels),
		zap.Float64("min_confidence", cfg.MinConfidence),
		zap.Int("concurrency", cfg.WorkerConcurrency))

	registry := prometheus.NewRegistry()
	pm, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	eventsHandler := handlers.NewEventsHandler(orch, pm, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", eventsHandler.HandleHealth)
	mux.HandleFunc("/v1/events", eventsHandler.HandleSubmit)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	logger.Info("✓ registered endpoints",
		zap.Strings("paths", []string{"/health", "/v1/events", "/metrics"}))

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	// Start server in goroutine
	go func() {
		logger.Info("pipeline server starting", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server stopped")
}
