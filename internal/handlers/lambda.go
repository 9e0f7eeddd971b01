package handlers

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"

	"github.com/pixel-learning/image-label-pipeline/internal/pipeline"
)

// LambdaHandler adapts batch processing to the Lambda invocation shapes.
type LambdaHandler struct {
	orch   *pipeline.Orchestrator
	logger *zap.Logger
}

// NewLambdaHandler creates a new Lambda handler
func NewLambdaHandler(orch *pipeline.Orchestrator, logger *zap.Logger) *LambdaHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LambdaHandler{
		orch:   orch,
		logger: logger,
	}
}

// HandleS3 processes a directly-delivered S3 notification batch. The returned
// error is non-nil only when at least one event failed transiently, so the
// runtime redelivers the batch; skips and permanent failures are absorbed.
func (h *LambdaHandler) HandleS3(ctx context.Context, ev events.S3Event) error {
	res := h.orch.ProcessBatch(ctx, requestID(ctx), ev.Records)
	return res.RetryableError()
}

// HandleSQS processes S3 notifications wrapped in SQS messages, one S3 event
// per message body. Messages whose events failed transiently are reported as
// batch item failures so the queue redelivers only those.
func (h *LambdaHandler) HandleSQS(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, msg := range ev.Records {
		var notification events.S3Event
		if err := json.Unmarshal([]byte(msg.Body), &notification); err != nil {
			h.logger.Warn("dropping undecodable message",
				zap.String("message_id", msg.MessageId),
				zap.Error(err))
			continue
		}
		if len(notification.Records) == 0 {
			// s3:TestEvent and other bucket-configuration chatter carry no records.
			h.logger.Info("message carries no records, dropping",
				zap.String("message_id", msg.MessageId))
			continue
		}

		res := h.orch.ProcessBatch(ctx, msg.MessageId, notification.Records)
		if res.Retryable() {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: msg.MessageId,
			})
		}
	}
	return resp, nil
}

// requestID prefers the platform-assigned invocation ID so log lines
// correlate with the Lambda console.
func requestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		return lc.AwsRequestID
	}
	return ""
}
