package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/pixel-learning/image-label-pipeline/internal/config"
	"github.com/pixel-learning/image-label-pipeline/internal/detect"
	"github.com/pixel-learning/image-label-pipeline/internal/event"
	"github.com/pixel-learning/image-label-pipeline/internal/handlers"
	"github.com/pixel-learning/image-label-pipeline/internal/logging"
	"github.com/pixel-learning/image-label-pipeline/internal/pipeline"
	"github.com/pixel-learning/image-label-pipeline/internal/policy"
	"github.com/pixel-learning/image-label-pipeline/internal/record"
	"github.com/pixel-learning/image-label-pipeline/internal/store"
	"github.com/pixel-learning/image-label-pipeline/internal/track"
	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

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

	h := handlers.NewLambdaHandler(orch, logger)

	logger.Info("lambda handler ready",
		zap.String("event_source", cfg.EventSource),
		zap.String("environment", cfg.Environment),
		zap.Int("concurrency", cfg.WorkerConcurrency))

	switch cfg.EventSource {
	case config.SourceSQS:
		lambda.Start(h.HandleSQS)
	default:
		lambda.Start(h.HandleS3)
	}
}
