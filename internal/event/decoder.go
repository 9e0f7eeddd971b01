package event

import (
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/pixel-learning/image-label-pipeline/internal/track"
)

// Decoder turns raw S3 notification records into typed upload events.
// It has no side effects; callers decide what to do with skips.
type Decoder struct {
	resolver *track.Resolver
	allowed  map[string]struct{}
}

// NewDecoder creates a decoder over the given track table and allowed
// file extensions (lowercase, leading dot)
func NewDecoder(resolver *track.Resolver, extensions []string) *Decoder {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	return &Decoder{resolver: resolver, allowed: allowed}
}

// DecodeRecord classifies a single notification record
func (d *Decoder) DecodeRecord(rec events.S3EventRecord) DecodeResult {
	bucket := rec.S3.Bucket.Name
	rawKey := rec.S3.Object.Key
	if bucket == "" || rawKey == "" {
		return DecodeResult{Skip: SkipMalformedEvent, RawKey: rawKey}
	}

	// S3 delivers keys query-escaped ("my photo.jpg" as "my+photo.jpg")
	key, err := url.QueryUnescape(rawKey)
	if err != nil {
		return DecodeResult{Skip: SkipMalformedEvent, RawKey: rawKey}
	}

	if _, ok := d.allowed[strings.ToLower(path.Ext(key))]; !ok {
		return DecodeResult{Skip: SkipUnsupportedFile, RawKey: key}
	}

	tr, ok := d.resolver.Resolve(key)
	if !ok {
		return DecodeResult{Skip: SkipUnrecognizedTrack, RawKey: key}
	}

	return DecodeResult{
		Event: &ImageUploadEvent{
			Bucket:    bucket,
			Key:       key,
			EventTime: rec.EventTime,
			Track:     tr,
		},
		RawKey: key,
	}
}

// Decode classifies a whole batch, one result per record, in order
func (d *Decoder) Decode(records []events.S3EventRecord) []DecodeResult {
	out := make([]DecodeResult, len(records))
	for i, rec := range records {
		out[i] = d.DecodeRecord(rec)
	}
	return out
}
