package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pixel-learning/image-label-pipeline/internal/track"
	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

// Event source constants
const (
	SourceS3  = "s3"
	SourceSQS = "sqs"
)

// Config is the process configuration, read once at startup and
// injected into the pipeline; handler logic never consults the
// environment directly.
type Config struct {
	Environment string

	TableBeta string
	TableProd string

	MaxLabels     int
	MinConfidence float64

	PrefixBeta string
	PrefixProd string

	AllowedExtensions []string

	TTLBeta time.Duration
	TTLProd time.Duration

	EventSource string

	// EventTimeout bounds one event's detection and write; zero
	// means only the invocation deadline applies.
	EventTimeout time.Duration

	WorkerConcurrency int

	// Bucket is the upload target for the analyze CLI and the local
	// server harness; the Lambda path reads buckets from the events.
	Bucket string

	HTTPAddr string
	LogLevel string
}

// Load creates a Config from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment:       getEnv("ENVIRONMENT", "beta"),
		TableBeta:         getEnv("DYNAMODB_TABLE_BETA", "beta_results"),
		TableProd:         getEnv("DYNAMODB_TABLE_PROD", "prod_results"),
		MaxLabels:         getEnvAsInt("MAX_LABELS", 10),
		MinConfidence:     getEnvAsFloat("MIN_CONFIDENCE", 70.0),
		PrefixBeta:        getEnv("TRACK_PREFIX_BETA", "rekognition-input/beta/"),
		PrefixProd:        getEnv("TRACK_PREFIX_PROD", "rekognition-input/prod/"),
		AllowedExtensions: splitExtensions(getEnv("ALLOWED_EXTENSIONS", ".jpg,.jpeg,.png")),
		TTLBeta:           time.Duration(getEnvAsInt("RESULT_TTL_DAYS_BETA", 0)) * 24 * time.Hour,
		TTLProd:           time.Duration(getEnvAsInt("RESULT_TTL_DAYS_PROD", 0)) * 24 * time.Hour,
		EventSource:       getEnv("EVENT_SOURCE", SourceS3),
		EventTimeout:      getEnvAsDuration("EVENT_TIMEOUT", 0),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 4),
		Bucket:            getEnv("S3_BUCKET", ""),
		HTTPAddr:          getEnv("PIPELINE_HTTP_ADDR", ":8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	if c.TableBeta == "" || c.TableProd == "" {
		return fmt.Errorf("result table names must not be empty")
	}
	if c.MaxLabels <= 0 {
		return fmt.Errorf("MAX_LABELS must be positive, got %d", c.MaxLabels)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		return fmt.Errorf("MIN_CONFIDENCE must be within [0,100], got %v", c.MinConfidence)
	}
	if c.PrefixBeta == "" || c.PrefixProd == "" {
		return fmt.Errorf("track prefixes must not be empty")
	}
	if len(c.AllowedExtensions) == 0 {
		return fmt.Errorf("ALLOWED_EXTENSIONS must name at least one extension")
	}
	if c.TTLBeta < 0 || c.TTLProd < 0 {
		return fmt.Errorf("retention days must not be negative")
	}
	if c.EventSource != SourceS3 && c.EventSource != SourceSQS {
		return fmt.Errorf("unknown EVENT_SOURCE: %q", c.EventSource)
	}
	if c.EventTimeout < 0 {
		return fmt.Errorf("EVENT_TIMEOUT must not be negative")
	}
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency)
	}
	return nil
}

// Tables maps each track to its result table
func (c *Config) Tables() map[results.Track]string {
	return map[results.Track]string{
		results.TrackBeta: c.TableBeta,
		results.TrackProd: c.TableProd,
	}
}

// TrackRules returns the prefix table used for track resolution
func (c *Config) TrackRules() []track.Rule {
	return []track.Rule{
		{Prefix: c.PrefixBeta, Track: results.TrackBeta},
		{Prefix: c.PrefixProd, Track: results.TrackProd},
	}
}

// Retention maps each track to its record retention window;
// zero disables expiry for that track
func (c *Config) Retention() map[results.Track]time.Duration {
	return map[results.Track]time.Duration{
		results.TrackBeta: c.TTLBeta,
		results.TrackProd: c.TTLProd,
	}
}

func splitExtensions(raw string) []string {
	var exts []string
	for _, part := range strings.Split(raw, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return exts
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
