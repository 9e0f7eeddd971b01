package detect

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rektypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"

	"github.com/pixel-learning/image-label-pipeline/internal/pipeline"
	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

// DetectLabelsAPI is the Rekognition surface this package needs
type DetectLabelsAPI interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// Client calls the vision-labeling service for one object at a time
type Client struct {
	api DetectLabelsAPI
}

// NewClient creates a detection client on top of a Rekognition API
func NewClient(api DetectLabelsAPI) *Client {
	return &Client{api: api}
}

// Detect runs one DetectLabels call for the referenced object and
// returns the raw labels, confidence rounded to two decimals. The
// request carries only the object reference: confidence filtering and
// truncation are the policy's job. No retry loop here; redelivery by
// the invoking runtime is the only retry mechanism.
func (c *Client) Detect(ctx context.Context, bucket, key string) ([]results.Label, error) {
	out, err := c.api.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image: &rektypes.Image{
			S3Object: &rektypes.S3Object{
				Bucket: aws.String(bucket),
				Name:   aws.String(key),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("detect labels %s/%s: %w", bucket, key, classify(err))
	}

	labels := make([]results.Label, 0, len(out.Labels))
	for _, l := range out.Labels {
		if l.Name == nil || *l.Name == "" {
			continue
		}
		var conf float64
		if l.Confidence != nil {
			conf = round2(float64(*l.Confidence))
		}
		labels = append(labels, results.Label{Name: *l.Name, Confidence: conf})
	}
	return labels, nil
}

// classify maps a service failure onto the shared taxonomy. Throttling
// and server faults are transient; permission and image problems are
// permanent and will not be helped by redelivery.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", pipeline.ErrUnavailable, err)
	}

	var (
		provisioned *rektypes.ProvisionedThroughputExceededException
		throttling  *rektypes.ThrottlingException
		limited     *rektypes.LimitExceededException
		denied      *rektypes.AccessDeniedException
		badFormat   *rektypes.InvalidImageFormatException
		tooLarge    *rektypes.ImageTooLargeException
		badObject   *rektypes.InvalidS3ObjectException
		badParam    *rektypes.InvalidParameterException
		serverFault *rektypes.InternalServerError
	)

	switch {
	case errors.As(err, &provisioned), errors.As(err, &throttling), errors.As(err, &limited):
		return fmt.Errorf("%w: %v", pipeline.ErrThrottled, err)
	case errors.As(err, &denied):
		return fmt.Errorf("%w: %v", pipeline.ErrAccessDenied, err)
	case errors.As(err, &badFormat), errors.As(err, &tooLarge), errors.As(err, &badObject), errors.As(err, &badParam):
		return fmt.Errorf("%w: %v", pipeline.ErrInvalidImage, err)
	case errors.As(err, &serverFault):
		return fmt.Errorf("%w: %v", pipeline.ErrUnavailable, err)
	}

	// Codes cover errors the SDK did not model as typed exceptions
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ProvisionedThroughputExceededException",
			"LimitExceededException", "TooManyRequestsException":
			return fmt.Errorf("%w: %v", pipeline.ErrThrottled, err)
		case "AccessDeniedException", "AccessDenied", "UnauthorizedOperation":
			return fmt.Errorf("%w: %v", pipeline.ErrAccessDenied, err)
		}
	}

	return fmt.Errorf("%w: %v", pipeline.ErrUnavailable, err)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
