package detect

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rektypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixel-learning/image-label-pipeline/internal/pipeline"
)

type fakeAPI func(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)

func (f fakeAPI) DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
	return f(ctx, params, optFns...)
}

func TestDetectRequestShape(t *testing.T) {
	var got *rekognition.DetectLabelsInput
	api := fakeAPI(func(_ context.Context, params *rekognition.DetectLabelsInput, _ ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
		got = params
		return &rekognition.DetectLabelsOutput{}, nil
	})

	_, err := NewClient(api).Detect(context.Background(), "uploads", "rekognition-input/prod/cat.jpg")
	require.NoError(t, err)

	require.NotNil(t, got)
	require.NotNil(t, got.Image)
	require.NotNil(t, got.Image.S3Object)
	assert.Equal(t, "uploads", aws.ToString(got.Image.S3Object.Bucket))
	assert.Equal(t, "rekognition-input/prod/cat.jpg", aws.ToString(got.Image.S3Object.Name))

	// Filtering is the policy's job, so the request must not narrow
	// the response.
	assert.Nil(t, got.MaxLabels)
	assert.Nil(t, got.MinConfidence)
}

func TestDetectNormalizesLabels(t *testing.T) {
	api := fakeAPI(func(_ context.Context, _ *rekognition.DetectLabelsInput, _ ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
		return &rekognition.DetectLabelsOutput{
			Labels: []rektypes.Label{
				{Name: aws.String("Cat"), Confidence: aws.Float32(99.12345)},
				{Name: aws.String("Animal"), Confidence: aws.Float32(85)},
				{Name: nil, Confidence: aws.Float32(50)},
				{Name: aws.String(""), Confidence: aws.Float32(49)},
				{Name: aws.String("Pet"), Confidence: nil},
			},
		}, nil
	})

	labels, err := NewClient(api).Detect(context.Background(), "uploads", "k.jpg")
	require.NoError(t, err)

	require.Len(t, labels, 3)
	assert.Equal(t, "Cat", labels[0].Name)
	assert.InDelta(t, 99.12, labels[0].Confidence, 0.001)
	assert.Equal(t, "Animal", labels[1].Name)
	assert.InDelta(t, 85.0, labels[1].Confidence, 0.001)
	assert.Equal(t, "Pet", labels[2].Name)
	assert.Equal(t, 0.0, labels[2].Confidence)
}

func TestDetectErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		apiErr    error
		want      error
		transient bool
	}{
		{
			name:      "provisioned throughput",
			apiErr:    &rektypes.ProvisionedThroughputExceededException{Message: aws.String("slow down")},
			want:      pipeline.ErrThrottled,
			transient: true,
		},
		{
			name:      "throttling",
			apiErr:    &rektypes.ThrottlingException{Message: aws.String("slow down")},
			want:      pipeline.ErrThrottled,
			transient: true,
		},
		{
			name:      "limit exceeded",
			apiErr:    &rektypes.LimitExceededException{Message: aws.String("limit")},
			want:      pipeline.ErrThrottled,
			transient: true,
		},
		{
			name:      "access denied",
			apiErr:    &rektypes.AccessDeniedException{Message: aws.String("nope")},
			want:      pipeline.ErrAccessDenied,
			transient: false,
		},
		{
			name:      "invalid image format",
			apiErr:    &rektypes.InvalidImageFormatException{Message: aws.String("not an image")},
			want:      pipeline.ErrInvalidImage,
			transient: false,
		},
		{
			name:      "image too large",
			apiErr:    &rektypes.ImageTooLargeException{Message: aws.String("too big")},
			want:      pipeline.ErrInvalidImage,
			transient: false,
		},
		{
			name:      "invalid s3 object",
			apiErr:    &rektypes.InvalidS3ObjectException{Message: aws.String("gone")},
			want:      pipeline.ErrInvalidImage,
			transient: false,
		},
		{
			name:      "internal server error",
			apiErr:    &rektypes.InternalServerError{Message: aws.String("oops")},
			want:      pipeline.ErrUnavailable,
			transient: true,
		},
		{
			name:      "untyped throttling code",
			apiErr:    &smithy.GenericAPIError{Code: "TooManyRequestsException", Message: "busy"},
			want:      pipeline.ErrThrottled,
			transient: true,
		},
		{
			name:      "untyped access denied code",
			apiErr:    &smithy.GenericAPIError{Code: "AccessDenied", Message: "nope"},
			want:      pipeline.ErrAccessDenied,
			transient: false,
		},
		{
			name:      "plain transport error",
			apiErr:    errors.New("connection reset"),
			want:      pipeline.ErrUnavailable,
			transient: true,
		},
		{
			name:      "deadline expiry",
			apiErr:    context.DeadlineExceeded,
			want:      pipeline.ErrUnavailable,
			transient: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := fakeAPI(func(_ context.Context, _ *rekognition.DetectLabelsInput, _ ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
				return nil, tt.apiErr
			})

			labels, err := NewClient(api).Detect(context.Background(), "uploads", "k.jpg")
			require.Error(t, err)
			assert.Nil(t, labels)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.transient, pipeline.Transient(err))
		})
	}
}
