package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// sortKeyTimeFormat is RFC3339 with fixed-width nanoseconds so that
// lexicographic order on the sort key matches chronological order.
const sortKeyTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// DynamoSnapshotStore stores snapshots in DynamoDB.
//
// Table schema:
//   - subject (partition key): "<subject_type>/<subject_id>"
//   - sort_key (sort key): "<created_at fixed-width>#<snapshot_id>"
//
// Querying descending on sort_key yields newest first, with snapshot id
// breaking created_at ties.
type DynamoSnapshotStore struct {
	client    *dynamodb.Client
	tableName string
}

var _ SnapshotStoreInterface = (*DynamoSnapshotStore)(nil)

// dynamoSnapshot represents the DynamoDB item structure
type dynamoSnapshot struct {
	Subject     string `dynamodbav:"subject"`
	SortKey     string `dynamodbav:"sort_key"`
	ID          string `dynamodbav:"id"`
	SubjectType string `dynamodbav:"subject_type"`
	SubjectID   string `dynamodbav:"subject_id"`
	State       string `dynamodbav:"state,omitempty"`
	Payload     string `dynamodbav:"payload"`
	CreatedAt   string `dynamodbav:"created_at"`
	CreatedBy   string `dynamodbav:"created_by,omitempty"`
}

func NewDynamoSnapshotStore(client *dynamodb.Client, tableName string) *DynamoSnapshotStore {
	return &DynamoSnapshotStore{
		client:    client,
		tableName: tableName,
	}
}

// Append stores a snapshot item in DynamoDB.
func (ds *DynamoSnapshotStore) Append(ctx context.Context, subjectType, subjectID string, payload json.RawMessage, state, createdBy string) (*Snapshot, error) {
	snapshotID := uuid.New().String()
	timestamp := time.Now().UTC()

	item := dynamoSnapshot{
		Subject:     subjectKey(subjectType, subjectID),
		SortKey:     timestamp.Format(sortKeyTimeFormat) + "#" + snapshotID,
		ID:          snapshotID,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		State:       state,
		Payload:     string(payload),
		CreatedAt:   timestamp.Format(time.RFC3339Nano),
		CreatedBy:   createdBy,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Conditional write so a key collision never silently overwrites
	_, err = ds.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(ds.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(subject) AND attribute_not_exists(sort_key)"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put snapshot: %w", err)
	}

	return &Snapshot{
		ID:          snapshotID,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		State:       state,
		Payload:     payload,
		CreatedAt:   timestamp,
		CreatedBy:   createdBy,
	}, nil
}

// Latest returns the most recent snapshot for a subject, or nil.
func (ds *DynamoSnapshotStore) Latest(ctx context.Context, subjectType, subjectID string) (*Snapshot, error) {
	result, err := ds.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(ds.tableName),
		KeyConditionExpression: aws.String("subject = :subject"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":subject": &types.AttributeValueMemberS{Value: subjectKey(subjectType, subjectID)},
		},
		ScanIndexForward: aws.Bool(false), // Descending order
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, nil
	}

	return unmarshalSnapshot(result.Items[0])
}

// LatestAtState returns the most recent snapshot at the given state label,
// or nil. The state filter is applied server-side per page, so the query
// walks pages until a match is found.
func (ds *DynamoSnapshotStore) LatestAtState(ctx context.Context, subjectType, subjectID, state string) (*Snapshot, error) {
	var startKey map[string]types.AttributeValue

	for {
		result, err := ds.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(ds.tableName),
			KeyConditionExpression: aws.String("subject = :subject"),
			FilterExpression:       aws.String("#st = :state"),
			ExpressionAttributeNames: map[string]string{
				"#st": "state", // reserved word in DynamoDB expressions
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":subject": &types.AttributeValueMemberS{Value: subjectKey(subjectType, subjectID)},
				":state":   &types.AttributeValueMemberS{Value: state},
			},
			ScanIndexForward:  aws.Bool(false), // Descending order
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query snapshot at state: %w", err)
		}

		if len(result.Items) > 0 {
			return unmarshalSnapshot(result.Items[0])
		}

		if result.LastEvaluatedKey == nil {
			return nil, nil
		}
		startKey = result.LastEvaluatedKey
	}
}

// List returns every snapshot for a subject, newest first.
func (ds *DynamoSnapshotStore) List(ctx context.Context, subjectType, subjectID string) ([]Snapshot, error) {
	var (
		snapshots []Snapshot
		startKey  map[string]types.AttributeValue
	)

	for {
		result, err := ds.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(ds.tableName),
			KeyConditionExpression: aws.String("subject = :subject"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":subject": &types.AttributeValueMemberS{Value: subjectKey(subjectType, subjectID)},
			},
			ScanIndexForward:  aws.Bool(false), // Descending order
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query snapshots: %w", err)
		}

		for _, item := range result.Items {
			snap, err := unmarshalSnapshot(item)
			if err != nil {
				return nil, err
			}
			snapshots = append(snapshots, *snap)
		}

		if result.LastEvaluatedKey == nil {
			return snapshots, nil
		}
		startKey = result.LastEvaluatedKey
	}
}

// unmarshalSnapshot converts a DynamoDB item to a Snapshot
func unmarshalSnapshot(item map[string]types.AttributeValue) (*Snapshot, error) {
	var d dynamoSnapshot
	if err := attributevalue.UnmarshalMap(item, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, d.CreatedAt)

	return &Snapshot{
		ID:          d.ID,
		SubjectType: d.SubjectType,
		SubjectID:   d.SubjectID,
		State:       d.State,
		Payload:     json.RawMessage(d.Payload),
		CreatedAt:   createdAt,
		CreatedBy:   d.CreatedBy,
	}, nil
}
