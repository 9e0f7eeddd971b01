package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/pixel-learning/image-label-pipeline/internal/metrics"
	"github.com/pixel-learning/image-label-pipeline/internal/pipeline"
)

// EventsHandler serves the local development harness, which accepts S3
// notification batches over HTTP instead of through the Lambda runtime.
type EventsHandler struct {
	orch    *pipeline.Orchestrator
	metrics *metrics.PipelineMetrics
	logger  *zap.Logger
}

// NewEventsHandler creates a new events handler. The metrics may be nil.
func NewEventsHandler(orch *pipeline.Orchestrator, m *metrics.PipelineMetrics, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{
		orch:    orch,
		metrics: m,
		logger:  logger,
	}
}

// HandleSubmit handles POST /v1/events - processes an S3 notification batch
// and returns the per-event outcome report.
func (h *EventsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ev events.S3Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if len(ev.Records) == 0 {
		http.Error(w, "records are required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	res := h.orch.ProcessBatch(r.Context(), "", ev.Records)
	report := res.Report()
	if h.metrics != nil {
		h.metrics.ObserveBatch(report, time.Since(start))
	}

	w.Header().Set("Content-Type", "application/json")
	if report.Retryable {
		// Mirror the Lambda contract: transient failures surface as an
		// invocation error so callers know to resubmit.
		w.WriteHeader(http.StatusInternalServerError)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(report)
}

// HandleHealth returns health status
func (h *EventsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}
