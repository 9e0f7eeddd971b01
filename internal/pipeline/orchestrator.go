package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pixel-learning/image-label-pipeline/internal/event"
	"github.com/pixel-learning/image-label-pipeline/internal/policy"
	"github.com/pixel-learning/image-label-pipeline/internal/record"
	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

// Detector fetches raw labels for one stored object
type Detector interface {
	Detect(ctx context.Context, bucket, key string) ([]results.Label, error)
}

// RecordWriter persists one result record
type RecordWriter interface {
	Put(ctx context.Context, rec results.Record) error
}

// Config wires an orchestrator
type Config struct {
	Decoder  *event.Decoder
	Detector Detector
	Policy   policy.Policy
	Builder  *record.Builder
	Writer   RecordWriter
	Logger   *zap.Logger

	// Concurrency bounds how many events run at once (default 4)
	Concurrency int

	// EventTimeout tightens the invocation deadline per event; zero
	// leaves only the invocation deadline in place
	EventTimeout time.Duration

	// Now is the processing clock, replaceable in tests
	Now func() time.Time
}

// Orchestrator drives each upload event through decode, detect,
// filter, build and persist, keeping events isolated from each other
type Orchestrator struct {
	decoder      *event.Decoder
	detector     Detector
	policy       policy.Policy
	builder      *record.Builder
	writer       RecordWriter
	logger       *zap.Logger
	concurrency  int
	eventTimeout time.Duration
	now          func() time.Time
}

// NewOrchestrator validates the wiring and applies defaults
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Decoder == nil || cfg.Detector == nil || cfg.Builder == nil || cfg.Writer == nil {
		return nil, errors.New("orchestrator requires decoder, detector, builder and writer")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		decoder:      cfg.Decoder,
		detector:     cfg.Detector,
		policy:       cfg.Policy,
		builder:      cfg.Builder,
		writer:       cfg.Writer,
		logger:       cfg.Logger,
		concurrency:  cfg.Concurrency,
		eventTimeout: cfg.EventTimeout,
		now:          cfg.Now,
	}, nil
}

// ProcessBatch runs every record to a terminal outcome. Events touch
// only their own record key, so they run across a bounded worker
// group with no cross-event coordination; workers park their outcome
// in the event's own slot and never return an error, so one event's
// failure cannot abort its siblings.
func (o *Orchestrator) ProcessBatch(ctx context.Context, runID string, records []events.S3EventRecord) *BatchResult {
	if runID == "" {
		runID = uuid.New().String()
	}

	outcomes := make([]Outcome, len(records))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			outcomes[i] = o.processOne(ctx, runID, i, rec)
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{RunID: runID, Outcomes: outcomes}

	rep := result.Report()
	o.logger.Info("batch processed",
		zap.String("run_id", runID),
		zap.Int("received", rep.Received),
		zap.Int("persisted", rep.Persisted),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed),
		zap.Bool("retryable", rep.Retryable))

	return result
}

func (o *Orchestrator) processOne(ctx context.Context, runID string, idx int, raw events.S3EventRecord) Outcome {
	out := Outcome{Index: idx, Stage: StageReceived}

	res := o.decoder.DecodeRecord(raw)
	if !res.Valid() {
		out.Skip = res.Skip
		out.Filename = res.RawKey
		o.logger.Warn("event skipped",
			zap.String("run_id", runID),
			zap.String("key", res.RawKey),
			zap.String("reason", string(res.Skip)))
		return out
	}

	ev := res.Event
	out.Stage = StageDecoded
	out.Filename = ev.Key
	out.Bucket = ev.Bucket
	out.Track = ev.Track

	if o.eventTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.eventTimeout)
		defer cancel()
	}

	rawLabels, err := o.detector.Detect(ctx, ev.Bucket, ev.Key)
	if err != nil {
		return o.fail(out, runID, err)
	}
	out.Stage = StageLabelsFetched

	labels := o.policy.Apply(rawLabels)
	out.Stage = StageFiltered

	rec := o.builder.Build(ev, labels, o.now())

	if err := o.writer.Put(ctx, rec); err != nil {
		return o.fail(out, runID, err)
	}
	out.Stage = StagePersisted
	out.Record = &rec

	o.logger.Info("record persisted",
		zap.String("run_id", runID),
		zap.String("filename", rec.Filename),
		zap.String("timestamp", rec.Timestamp),
		zap.String("track", string(rec.Branch)),
		zap.Int("label_count", rec.LabelCount))
	return out
}

// fail records the error on the outcome. Transient failures are
// surfaced to the runtime for redelivery; permanent ones are logged
// and absorbed, since re-running them cannot change the result.
func (o *Orchestrator) fail(out Outcome, runID string, err error) Outcome {
	out.Err = err
	if Transient(err) {
		o.logger.Warn("event failed, redelivery expected",
			zap.String("run_id", runID),
			zap.String("filename", out.Filename),
			zap.String("stage", string(out.Stage)),
			zap.Error(err))
	} else {
		o.logger.Error("event failed permanently",
			zap.String("run_id", runID),
			zap.String("filename", out.Filename),
			zap.String("stage", string(out.Stage)),
			zap.Error(err))
	}
	return out
}
