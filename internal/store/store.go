package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/pixel-learning/image-label-pipeline/internal/pipeline"
	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

// BranchIndexName is the GSI keyed (branch, timestamp) that serves
// track-scoped, time-ordered reads without a table scan
const BranchIndexName = "BranchIndex"

// DefaultQueryLimit caps RecentByTrack when the caller passes no limit
const DefaultQueryLimit = 10

// DynamoDBAPI is the store surface this package needs
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store writes result records into per-track tables. Tables for
// different tracks are fully isolated; a record can only ever reach
// the table bound to its own branch.
type Store struct {
	api    DynamoDBAPI
	tables map[results.Track]string
}

// NewStore creates a store over the given track-to-table binding
func NewStore(api DynamoDBAPI, tables map[results.Track]string) *Store {
	return &Store{api: api, tables: tables}
}

// Put writes one record to the table bound to its branch. The put is
// unconditional: re-writing an existing (filename, timestamp) key
// overwrites silently, which is what makes redelivery idempotent.
// DynamoDB applies the item atomically, so a cancelled call leaves
// either the old state or the new record, never a partial write.
func (s *Store) Put(ctx context.Context, rec results.Record) error {
	table, ok := s.tables[rec.Branch]
	if !ok {
		return fmt.Errorf("no table bound to track %q", rec.Branch)
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.Filename, err)
	}

	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put %s to %s: %w", rec.Filename, table, classify(err))
	}
	return nil
}

// RecentByTrack returns up to limit records for one track, newest
// first, through the branch index
func (s *Store) RecentByTrack(ctx context.Context, tr results.Track, limit int) ([]results.Record, error) {
	table, ok := s.tables[tr]
	if !ok {
		return nil, fmt.Errorf("no table bound to track %q", tr)
	}
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(table),
		IndexName:              aws.String(BranchIndexName),
		KeyConditionExpression: aws.String("#b = :branch"),
		ExpressionAttributeNames: map[string]string{
			"#b": "branch",
		},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":branch": &ddbtypes.AttributeValueMemberS{Value: string(tr)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s by track %s: %w", table, tr, classify(err))
	}

	var recs []results.Record
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal records from %s: %w", table, err)
	}
	return recs, nil
}

// classify maps a store failure onto the shared taxonomy
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", pipeline.ErrUnavailable, err)
	}

	var (
		throughput *ddbtypes.ProvisionedThroughputExceededException
		requests   *ddbtypes.RequestLimitExceeded
		serverErr  *ddbtypes.InternalServerError
	)

	switch {
	case errors.As(err, &throughput), errors.As(err, &requests):
		return fmt.Errorf("%w: %v", pipeline.ErrThrottled, err)
	case errors.As(err, &serverErr):
		return fmt.Errorf("%w: %v", pipeline.ErrUnavailable, err)
	}

	// DynamoDB reports permission failures only by code
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "AccessDenied", "UnrecognizedClientException":
			return fmt.Errorf("%w: %v", pipeline.ErrAccessDenied, err)
		case "ThrottlingException":
			return fmt.Errorf("%w: %v", pipeline.ErrThrottled, err)
		}
	}

	return fmt.Errorf("%w: %v", pipeline.ErrUnavailable, err)
}
