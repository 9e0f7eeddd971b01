package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"

	"github.com/pixel-learning/image-label-pipeline/internal/config"
	"github.com/pixel-learning/image-label-pipeline/internal/detect"
	"github.com/pixel-learning/image-label-pipeline/internal/event"
	"github.com/pixel-learning/image-label-pipeline/internal/logging"
	"github.com/pixel-learning/image-label-pipeline/internal/pipeline"
	"github.com/pixel-learning/image-label-pipeline/internal/policy"
	"github.com/pixel-learning/image-label-pipeline/internal/record"
	"github.com/pixel-learning/image-label-pipeline/internal/storage"
	"github.com/pixel-learning/image-label-pipeline/internal/store"
	"github.com/pixel-learning/image-label-pipeline/internal/track"
	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

// Direct analysis CLI: uploads a local image to the input bucket and runs the
// same pipeline the Lambda runs, synchronously, printing the stored record.
func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	trackFlag := flag.String("track", "", "target track: beta or prod (default: ENVIRONMENT)")
	listFlag := flag.Bool("list", false, "list recent records for the track instead of analyzing")
	limitFlag := flag.Int("limit", 10, "maximum records to list")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage:\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  analyze [flags] <image-path>   upload and analyze one image\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  analyze -list [flags]          list recent records for a track\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, false)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	name := *trackFlag
	if name == "" {
		name = cfg.Environment
	}
	tr, err := results.ParseTrack(name)
	if err != nil {
		log.Fatalf("Invalid track: %v", err)
	}

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("Failed to load AWS configuration: %v", err)
	}

	resultStore := store.NewStore(dynamodb.NewFromConfig(awsCfg), cfg.Tables())

	if *listFlag {
		listRecords(ctx, resultStore, tr, *limitFlag)
		return
	}

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	imagePath := flag.Arg(0)

	if cfg.Bucket == "" {
		log.Fatalf("S3_BUCKET is required")
	}
	if _, err := os.Stat(imagePath); err != nil {
		log.Fatalf("Image file not found: %s", imagePath)
	}
	if !allowedExtension(cfg, imagePath) {
		log.Fatalf("Invalid file type %q: must be one of %s",
			filepath.Ext(imagePath), strings.Join(cfg.AllowedExtensions, ", "))
	}

	fmt.Printf("Processing image: %s\n", filepath.Base(imagePath))
	fmt.Printf("  Track:  %s\n", tr)
	fmt.Printf("  Bucket: %s\n", cfg.Bucket)

	uploader := storage.NewUploader(s3.NewFromConfig(awsCfg), cfg.Bucket)
	key, err := uploader.Upload(ctx, imagePath, prefixFor(cfg, tr), tr)
	if err != nil {
		log.Fatalf("Upload failed: %v", err)
	}
	fmt.Printf("✓ Uploaded s3://%s/%s\n", cfg.Bucket, key)

	orch, err := pipeline.NewOrchestrator(pipeline.Config{
		Decoder:      event.NewDecoder(track.NewResolver(cfg.TrackRules()), cfg.AllowedExtensions),
		Detector:     detect.NewClient(rekognition.NewFromConfig(awsCfg)),
		Policy:       policy.Policy{MinConfidence: cfg.MinConfidence, MaxLabels: cfg.MaxLabels},
		Builder:      record.NewBuilder(results.MethodDirectScript, cfg.Retention()),
		Writer:       resultStore,
		Logger:       logger,
		Concurrency:  1,
		EventTimeout: cfg.EventTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	res := orch.ProcessBatch(ctx, "", []events.S3EventRecord{{
		EventTime: time.Now().UTC(),
		S3: events.S3Entity{
			Bucket: events.S3Bucket{Name: cfg.Bucket},
			Object: events.S3Object{Key: notificationKey(key)},
		},
	}})

	out := res.Outcomes[0]
	switch {
	case out.Persisted():
		fmt.Printf("✓ Analysis complete: %d labels\n", out.Record.LabelCount)
		for _, l := range out.Record.Labels {
			fmt.Printf("  - %s: %.2f%%\n", l.Name, l.Confidence)
		}
		printJSON(out.Record)
	case out.Skipped():
		log.Fatalf("Event skipped: %s", out.Skip)
	default:
		log.Fatalf("Analysis failed: %v", out.Err)
	}
}

func listRecords(ctx context.Context, s *store.Store, tr results.Track, limit int) {
	recs, err := s.RecentByTrack(ctx, tr, limit)
	if err != nil {
		log.Fatalf("Failed to list records: %v", err)
	}
	if len(recs) == 0 {
		fmt.Printf("No records for track %s\n", tr)
		return
	}
	fmt.Printf("Recent records for track %s (newest first):\n", tr)
	printJSON(recs)
}

func printJSON(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to render output: %v", err)
	}
	fmt.Println(string(b))
}

func prefixFor(cfg *config.Config, tr results.Track) string {
	if tr == results.TrackProd {
		return cfg.PrefixProd
	}
	return cfg.PrefixBeta
}

func allowedExtension(cfg *config.Config, p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	for _, allowed := range cfg.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// notificationKey mirrors the URL-encoding S3 applies to object keys in
// notifications, so the decoder sees the same shape the runtime delivers.
func notificationKey(key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = url.QueryEscape(seg)
	}
	return strings.Join(segs, "/")
}
