package results

import "fmt"

// Track identifies the deployment lane an image was uploaded to.
// Each track maps to its own isolated result table.
type Track string

// Track constants
const (
	TrackBeta Track = "beta"
	TrackProd Track = "prod"
)

// ParseTrack validates a raw track value
func ParseTrack(s string) (Track, error) {
	switch Track(s) {
	case TrackBeta, TrackProd:
		return Track(s), nil
	}
	return "", fmt.Errorf("unknown track: %q", s)
}

func (t Track) String() string {
	return string(t)
}

// AnalysisMethod constants (tag recorded on every stored result)
const (
	MethodLambdaTrigger = "lambda_s3_trigger"
	MethodDirectScript  = "direct_script"
)

// Label is a single classification with its confidence score.
// The capitalized attribute names are the wire shape existing
// consumers read; do not rename.
type Label struct {
	Name       string  `json:"Name" dynamodbav:"Name"`
	Confidence float64 `json:"Confidence" dynamodbav:"Confidence"`
}

// Record is the persisted result of labeling one uploaded image.
// (filename, timestamp) is the record's identity; label_count always
// equals len(labels); environment mirrors branch. Records are written
// once and never updated.
type Record struct {
	Filename       string  `json:"filename" dynamodbav:"filename"`
	Timestamp      string  `json:"timestamp" dynamodbav:"timestamp"`
	Labels         []Label `json:"labels" dynamodbav:"labels"`
	Branch         Track   `json:"branch" dynamodbav:"branch"`
	Environment    string  `json:"environment" dynamodbav:"environment"`
	LabelCount     int     `json:"label_count" dynamodbav:"label_count"`
	AnalysisMethod string  `json:"analysis_method" dynamodbav:"analysis_method"`
	S3Bucket       string  `json:"s3_bucket" dynamodbav:"s3_bucket"`
	TTL            int64   `json:"ttl,omitempty" dynamodbav:"ttl,omitempty"`
}
