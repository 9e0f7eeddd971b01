package results

// Outcome constants for per-event reports
const (
	OutcomePersisted = "persisted"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// EventReport describes the terminal outcome of one upload event
type EventReport struct {
	Filename   string `json:"filename,omitempty"`
	Bucket     string `json:"bucket,omitempty"`
	Track      string `json:"track,omitempty"`
	Outcome    string `json:"outcome"`
	Stage      string `json:"stage,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
	LabelCount int    `json:"label_count"`
}

// BatchReport aggregates per-event outcomes for one invocation
type BatchReport struct {
	RunID     string        `json:"run_id"`
	Received  int           `json:"received"`
	Persisted int           `json:"persisted"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Retryable bool          `json:"retryable"`
	Events    []EventReport `json:"events"`
}
