package event

import (
	"time"

	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

// ImageUploadEvent is one decoded upload notification
type ImageUploadEvent struct {
	Bucket string
	// Key is URL-decoded; notification payloads carry it query-escaped
	Key       string
	EventTime time.Time
	Track     results.Track
}

// SkipReason classifies why an envelope produced no event
type SkipReason string

// SkipReason constants
const (
	SkipUnrecognizedTrack SkipReason = "unrecognized_track"
	SkipMalformedEvent    SkipReason = "malformed_event"
	SkipUnsupportedFile   SkipReason = "unsupported_file_type"
)

// DecodeResult holds either a valid event or a skip reason, never
// both. RawKey keeps whatever key material was available so skips can
// be logged.
type DecodeResult struct {
	Event  *ImageUploadEvent
	Skip   SkipReason
	RawKey string
}

// Valid reports whether the envelope decoded into an event
func (r DecodeResult) Valid() bool {
	return r.Event != nil
}
