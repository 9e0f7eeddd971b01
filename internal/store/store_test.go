package store

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixel-learning/image-label-pipeline/internal/pipeline"
	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

type fakeDB struct {
	putIn    *dynamodb.PutItemInput
	putErr   error
	queryIn  *dynamodb.QueryInput
	queryOut *dynamodb.QueryOutput
	queryErr error
}

func (f *fakeDB) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putIn = params
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDB) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryIn = params
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.queryOut != nil {
		return f.queryOut, nil
	}
	return &dynamodb.QueryOutput{}, nil
}

func testTables() map[results.Track]string {
	return map[results.Track]string{
		results.TrackBeta: "beta_results",
		results.TrackProd: "prod_results",
	}
}

func sampleRecord(tr results.Track) results.Record {
	return results.Record{
		Filename:  "rekognition-input/" + string(tr) + "/cat.jpg",
		Timestamp: "2024-05-04T12:30:45Z",
		Labels: []results.Label{
			{Name: "Cat", Confidence: 99.1},
			{Name: "Animal", Confidence: 85.0},
		},
		Branch:         tr,
		Environment:    string(tr),
		LabelCount:     2,
		AnalysisMethod: results.MethodLambdaTrigger,
		S3Bucket:       "uploads",
	}
}

func TestPutRoutesByTrack(t *testing.T) {
	tests := []struct {
		track     results.Track
		wantTable string
	}{
		{results.TrackBeta, "beta_results"},
		{results.TrackProd, "prod_results"},
	}

	for _, tt := range tests {
		t.Run(string(tt.track), func(t *testing.T) {
			db := &fakeDB{}
			s := NewStore(db, testTables())

			err := s.Put(context.Background(), sampleRecord(tt.track))
			require.NoError(t, err)
			require.NotNil(t, db.putIn)
			assert.Equal(t, tt.wantTable, aws.ToString(db.putIn.TableName))
		})
	}
}

func TestPutItemShape(t *testing.T) {
	db := &fakeDB{}
	s := NewStore(db, testTables())

	require.NoError(t, s.Put(context.Background(), sampleRecord(results.TrackProd)))
	require.NotNil(t, db.putIn)

	item := db.putIn.Item
	fn, ok := item["filename"].(*ddbtypes.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "rekognition-input/prod/cat.jpg", fn.Value)

	ts, ok := item["timestamp"].(*ddbtypes.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "2024-05-04T12:30:45Z", ts.Value)

	branch, ok := item["branch"].(*ddbtypes.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "prod", branch.Value)

	count, ok := item["label_count"].(*ddbtypes.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "2", count.Value)

	labels, ok := item["labels"].(*ddbtypes.AttributeValueMemberL)
	require.True(t, ok)
	require.Len(t, labels.Value, 2)
	first, ok := labels.Value[0].(*ddbtypes.AttributeValueMemberM)
	require.True(t, ok)
	name, ok := first.Value["Name"].(*ddbtypes.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "Cat", name.Value)

	_, hasTTL := item["ttl"]
	assert.False(t, hasTTL, "zero ttl must be omitted so the table never expires it")
}

func TestPutKeepsTTLWhenSet(t *testing.T) {
	db := &fakeDB{}
	s := NewStore(db, testTables())

	rec := sampleRecord(results.TrackBeta)
	rec.TTL = 1722772245

	require.NoError(t, s.Put(context.Background(), rec))
	ttl, ok := db.putIn.Item["ttl"].(*ddbtypes.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "1722772245", ttl.Value)
}

func TestPutUnknownTrack(t *testing.T) {
	db := &fakeDB{}
	s := NewStore(db, testTables())

	rec := sampleRecord(results.TrackBeta)
	rec.Branch = "staging"

	err := s.Put(context.Background(), rec)
	require.Error(t, err)
	assert.Nil(t, db.putIn, "no write may happen for an unroutable record")
}

func TestPutErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		dbErr     error
		want      error
		transient bool
	}{
		{
			name:      "provisioned throughput",
			dbErr:     &ddbtypes.ProvisionedThroughputExceededException{Message: aws.String("slow down")},
			want:      pipeline.ErrThrottled,
			transient: true,
		},
		{
			name:      "request limit",
			dbErr:     &ddbtypes.RequestLimitExceeded{Message: aws.String("limit")},
			want:      pipeline.ErrThrottled,
			transient: true,
		},
		{
			name:      "internal server error",
			dbErr:     &ddbtypes.InternalServerError{Message: aws.String("oops")},
			want:      pipeline.ErrUnavailable,
			transient: true,
		},
		{
			name:      "access denied by code",
			dbErr:     &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "nope"},
			want:      pipeline.ErrAccessDenied,
			transient: false,
		},
		{
			name:      "plain transport error",
			dbErr:     errors.New("connection refused"),
			want:      pipeline.ErrUnavailable,
			transient: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{putErr: tt.dbErr}
			s := NewStore(db, testTables())

			err := s.Put(context.Background(), sampleRecord(results.TrackProd))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.transient, pipeline.Transient(err))
		})
	}
}

func TestRecentByTrackQueryShape(t *testing.T) {
	db := &fakeDB{}
	s := NewStore(db, testTables())

	_, err := s.RecentByTrack(context.Background(), results.TrackProd, 5)
	require.NoError(t, err)
	require.NotNil(t, db.queryIn)

	in := db.queryIn
	assert.Equal(t, "prod_results", aws.ToString(in.TableName))
	assert.Equal(t, BranchIndexName, aws.ToString(in.IndexName))
	assert.Equal(t, "#b = :branch", aws.ToString(in.KeyConditionExpression))
	assert.Equal(t, "branch", in.ExpressionAttributeNames["#b"])

	val, ok := in.ExpressionAttributeValues[":branch"].(*ddbtypes.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "prod", val.Value)

	require.NotNil(t, in.ScanIndexForward)
	assert.False(t, *in.ScanIndexForward, "newest records must come first")
	assert.Equal(t, int32(5), aws.ToInt32(in.Limit))
}

func TestRecentByTrackDefaultsLimit(t *testing.T) {
	db := &fakeDB{}
	s := NewStore(db, testTables())

	_, err := s.RecentByTrack(context.Background(), results.TrackBeta, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(DefaultQueryLimit), aws.ToInt32(db.queryIn.Limit))
}

func TestRecentByTrackUnmarshals(t *testing.T) {
	newer := sampleRecord(results.TrackProd)
	newer.Timestamp = "2024-05-04T12:31:00Z"
	older := sampleRecord(results.TrackProd)

	newerItem, err := attributevalue.MarshalMap(newer)
	require.NoError(t, err)
	olderItem, err := attributevalue.MarshalMap(older)
	require.NoError(t, err)

	db := &fakeDB{queryOut: &dynamodb.QueryOutput{
		Items: []map[string]ddbtypes.AttributeValue{newerItem, olderItem},
	}}
	s := NewStore(db, testTables())

	recs, err := s.RecentByTrack(context.Background(), results.TrackProd, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, newer, recs[0])
	assert.Equal(t, older, recs[1])
}

func TestRecentByTrackUnknownTrack(t *testing.T) {
	db := &fakeDB{}
	s := NewStore(db, testTables())

	_, err := s.RecentByTrack(context.Background(), "staging", 5)
	require.Error(t, err)
	assert.Nil(t, db.queryIn)
}
