package record

import (
	"time"

	"github.com/pixel-learning/image-label-pipeline/internal/event"
	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

// Builder assembles immutable result records
type Builder struct {
	// Method tags every record with how it was produced
	Method string
	// Retention maps each track to its expiry window; zero disables
	// expiry for that track
	Retention map[results.Track]time.Duration
}

// NewBuilder creates a builder for the given analysis method
func NewBuilder(method string, retention map[results.Track]time.Duration) *Builder {
	return &Builder{Method: method, Retention: retention}
}

// Build produces the record for one decoded event and its filtered
// labels. The sort key derives from the upload's own event time
// (UTC, second precision) so a redelivered notification rebuilds the
// identical (filename, timestamp) key and overwrites instead of
// duplicating; now is the fallback for envelopes without a time.
func (b *Builder) Build(ev *event.ImageUploadEvent, labels []results.Label, now time.Time) results.Record {
	ts := ev.EventTime
	if ts.IsZero() {
		ts = now
	}
	ts = ts.UTC().Truncate(time.Second)

	if labels == nil {
		labels = []results.Label{}
	}

	rec := results.Record{
		Filename:       ev.Key,
		Timestamp:      ts.Format(time.RFC3339),
		Labels:         labels,
		Branch:         ev.Track,
		Environment:    string(ev.Track),
		LabelCount:     len(labels),
		AnalysisMethod: b.Method,
		S3Bucket:       ev.Bucket,
	}

	if d := b.Retention[ev.Track]; d > 0 {
		rec.TTL = ts.Add(d).Unix()
	}

	return rec
}
