package pipeline

import (
	"fmt"

	"github.com/pixel-learning/image-label-pipeline/internal/event"
	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

// Stage names how far an event progressed through the pipeline
type Stage string

// Stage constants
const (
	StageReceived      Stage = "received"
	StageDecoded       Stage = "decoded"
	StageLabelsFetched Stage = "labels_fetched"
	StageFiltered      Stage = "filtered"
	StagePersisted     Stage = "persisted"
)

// Outcome is the terminal state of one event within a batch. Stage is
// the last stage the event completed; Err is set when the event
// failed, Skip when decoding rejected the envelope.
type Outcome struct {
	Index    int
	Filename string
	Bucket   string
	Track    results.Track
	Stage    Stage
	Skip     event.SkipReason
	Err      error
	Record   *results.Record
}

// Persisted reports whether the event reached the store
func (o Outcome) Persisted() bool {
	return o.Err == nil && o.Skip == ""
}

// Skipped reports whether decoding rejected the envelope
func (o Outcome) Skipped() bool {
	return o.Skip != ""
}

// Failed reports whether the event failed at any stage
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Retryable reports whether redelivering this event can help
func (o Outcome) Retryable() bool {
	return Transient(o.Err)
}

// BatchResult aggregates per-event outcomes for one invocation
type BatchResult struct {
	RunID    string
	Outcomes []Outcome
}

// Retryable reports whether any event failed transiently
func (r *BatchResult) Retryable() bool {
	for _, o := range r.Outcomes {
		if o.Retryable() {
			return true
		}
	}
	return false
}

// RetryableError summarizes the transient failures as one error for
// runtimes that can only retry the whole batch; nil means redelivery
// is not needed
func (r *BatchResult) RetryableError() error {
	var n int
	var first error
	for _, o := range r.Outcomes {
		if o.Retryable() {
			n++
			if first == nil {
				first = o.Err
			}
		}
	}
	if n == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d events failed transiently: %w", n, len(r.Outcomes), first)
}

// Report renders the batch as the public outcome report
func (r *BatchResult) Report() results.BatchReport {
	rep := results.BatchReport{
		RunID:    r.RunID,
		Received: len(r.Outcomes),
		Events:   make([]results.EventReport, len(r.Outcomes)),
	}
	for i, o := range r.Outcomes {
		er := results.EventReport{
			Filename: o.Filename,
			Bucket:   o.Bucket,
			Track:    string(o.Track),
			Stage:    string(o.Stage),
		}
		switch {
		case o.Failed():
			er.Outcome = results.OutcomeFailed
			er.Reason = o.Err.Error()
			er.Retryable = o.Retryable()
			rep.Failed++
			if er.Retryable {
				rep.Retryable = true
			}
		case o.Skipped():
			er.Outcome = results.OutcomeSkipped
			er.Reason = string(o.Skip)
			rep.Skipped++
		default:
			er.Outcome = results.OutcomePersisted
			if o.Record != nil {
				er.LabelCount = o.Record.LabelCount
			}
			rep.Persisted++
		}
		rep.Events[i] = er
	}
	return rep
}
