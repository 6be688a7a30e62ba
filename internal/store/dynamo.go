package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// listScanLimit caps the ListReadyTrainings scan. The catalog is small
// (an internal training library); past this size the listing needs a
// paginator instead.
const listScanLimit = 100

// Tables names the three DynamoDB tables backing the service.
type Tables struct {
	Trainings  string
	UserStatus string
	Reviews    string
}

// DynamoStore implements Store using AWS DynamoDB.
type DynamoStore struct {
	client *dynamodb.Client
	tables Tables
}

// Compile-time interface check.
var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore over the given tables.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client *dynamodb.Client, tables Tables) *DynamoStore {
	return &DynamoStore{
		client: client,
		tables: tables,
	}
}

// isConditionFailure reports whether err is a DynamoDB conditional
// check failure, i.e. the item state did not match the expression.
func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// --- Training operations ---

func (s *DynamoStore) CreateTraining(ctx context.Context, t *Training) error {
	if t.CreatedAt == 0 {
		t.CreatedAt = now().Unix()
	}

	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal training %s: %w", t.TrainingID, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tables.Trainings,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(TrainingId)"),
	})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("create training %s: %w", t.TrainingID, ErrTrainingExists)
		}
		return fmt.Errorf("create training %s: %w", t.TrainingID, err)
	}

	log.Debug().Str("trainingId", t.TrainingID).Str("title", t.Title).Msg("Training persisted")
	return nil
}

func (s *DynamoStore) GetTraining(ctx context.Context, trainingID string) (*Training, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tables.Trainings,
		Key: map[string]types.AttributeValue{
			"TrainingId": &types.AttributeValueMemberS{Value: trainingID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get training %s: %w", trainingID, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var t Training
	if err := attributevalue.UnmarshalMap(result.Item, &t); err != nil {
		return nil, fmt.Errorf("unmarshal training %s: %w", trainingID, err)
	}
	return &t, nil
}

func (s *DynamoStore) ListReadyTrainings(ctx context.Context, limit int) ([]*Training, error) {
	if limit <= 0 || limit > listScanLimit {
		limit = listScanLimit
	}

	// A ready record is one whose video asset exists. The scan keeps
	// the original projection: listing cards need id, title, description.
	result, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:            &s.tables.Trainings,
		Limit:                aws.Int32(int32(limit)),
		FilterExpression:     aws.String("TrainingStatus = :ready AND attribute_exists(VideoKey)"),
		ProjectionExpression: aws.String("TrainingId, Title, Description, VideoKey, TrainingStatus"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ready": &types.AttributeValueMemberS{Value: string(StatusReady)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list ready trainings: %w", err)
	}

	trainings := make([]*Training, 0, len(result.Items))
	for _, item := range result.Items {
		var t Training
		if err := attributevalue.UnmarshalMap(item, &t); err != nil {
			log.Warn().Err(err).Msg("Failed to unmarshal training, skipping")
			continue
		}
		trainings = append(trainings, &t)
	}
	return trainings, nil
}

func (s *DynamoStore) MarkConverting(ctx context.Context, trainingID string) error {
	err := s.updateStatus(ctx, trainingID, &dynamodb.UpdateItemInput{
		UpdateExpression:    aws.String("SET TrainingStatus = :converting"),
		ConditionExpression: aws.String("TrainingStatus = :pending"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":converting": &types.AttributeValueMemberS{Value: string(StatusConverting)},
			":pending":    &types.AttributeValueMemberS{Value: string(StatusPending)},
		},
	})
	if err != nil {
		return fmt.Errorf("mark training %s converting: %w", trainingID, err)
	}

	log.Debug().Str("trainingId", trainingID).Msg("Training marked converting")
	return nil
}

func (s *DynamoStore) MarkReady(ctx context.Context, trainingID, videoKey string) error {
	// VideoKey is written in the same conditional update that flips the
	// status, keeping the "VideoKey iff Ready" invariant atomic.
	err := s.updateStatus(ctx, trainingID, &dynamodb.UpdateItemInput{
		UpdateExpression:    aws.String("SET TrainingStatus = :ready, VideoKey = :videoKey"),
		ConditionExpression: aws.String("TrainingStatus = :converting AND attribute_not_exists(VideoKey)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ready":      &types.AttributeValueMemberS{Value: string(StatusReady)},
			":videoKey":   &types.AttributeValueMemberS{Value: videoKey},
			":converting": &types.AttributeValueMemberS{Value: string(StatusConverting)},
		},
	})
	if err != nil {
		return fmt.Errorf("mark training %s ready: %w", trainingID, err)
	}

	log.Info().Str("trainingId", trainingID).Str("videoKey", videoKey).Msg("Training marked ready")
	return nil
}

func (s *DynamoStore) MarkFailed(ctx context.Context, trainingID, errMsg string) error {
	err := s.updateStatus(ctx, trainingID, &dynamodb.UpdateItemInput{
		UpdateExpression:    aws.String("SET TrainingStatus = :failed, ErrorMessage = :err"),
		ConditionExpression: aws.String("TrainingStatus = :pending OR TrainingStatus = :converting"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed":     &types.AttributeValueMemberS{Value: string(StatusFailed)},
			":err":        &types.AttributeValueMemberS{Value: errMsg},
			":pending":    &types.AttributeValueMemberS{Value: string(StatusPending)},
			":converting": &types.AttributeValueMemberS{Value: string(StatusConverting)},
		},
	})
	if err != nil {
		return fmt.Errorf("mark training %s failed: %w", trainingID, err)
	}

	log.Info().Str("trainingId", trainingID).Str("error", errMsg).Msg("Training marked failed")
	return nil
}

// updateStatus runs a conditional UpdateItem against the Trainings
// table, mapping condition failures to ErrInvalidTransition.
func (s *DynamoStore) updateStatus(ctx context.Context, trainingID string, input *dynamodb.UpdateItemInput) error {
	input.TableName = &s.tables.Trainings
	input.Key = map[string]types.AttributeValue{
		"TrainingId": &types.AttributeValueMemberS{Value: trainingID},
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		if isConditionFailure(err) {
			return ErrInvalidTransition
		}
		return err
	}
	return nil
}

// --- User training status operations ---

func (s *DynamoStore) GetUserStatus(ctx context.Context, email, trainingID string) (*UserTrainingStatus, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tables.UserStatus,
		Key: map[string]types.AttributeValue{
			"Email":      &types.AttributeValueMemberS{Value: email},
			"TrainingId": &types.AttributeValueMemberS{Value: trainingID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get user status %s/%s: %w", email, trainingID, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var status UserTrainingStatus
	if err := attributevalue.UnmarshalMap(result.Item, &status); err != nil {
		return nil, fmt.Errorf("unmarshal user status %s/%s: %w", email, trainingID, err)
	}
	return &status, nil
}

func (s *DynamoStore) MarkCompleted(ctx context.Context, email, trainingID string) error {
	// Upsert: the row is created lazily on the user's first completion.
	// Only ever sets true, so the flag is monotonic.
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tables.UserStatus,
		Key: map[string]types.AttributeValue{
			"Email":      &types.AttributeValueMemberS{Value: email},
			"TrainingId": &types.AttributeValueMemberS{Value: trainingID},
		},
		UpdateExpression: aws.String("SET IsCompleted = :completed"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":completed": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return fmt.Errorf("mark completed %s/%s: %w", email, trainingID, err)
	}

	log.Debug().Str("email", email).Str("trainingId", trainingID).Msg("Training marked completed for user")
	return nil
}

// --- Review operations ---

func (s *DynamoStore) PutReview(ctx context.Context, r *Review) error {
	if r.Timestamp == "" {
		r.Timestamp = now().Format("2006-01-02T15:04:05")
	}

	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("marshal review %s/%s: %w", r.TrainingID, r.Email, err)
	}

	// Unconditional put: a user re-reviewing a training replaces their
	// previous review.
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tables.Reviews,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put review %s/%s: %w", r.TrainingID, r.Email, err)
	}

	log.Debug().Str("trainingId", r.TrainingID).Str("email", r.Email).Int("rating", r.Rating).Msg("Review persisted")
	return nil
}

func (s *DynamoStore) ListReviews(ctx context.Context, trainingID string) ([]*Review, error) {
	input := &dynamodb.QueryInput{
		TableName:              &s.tables.Reviews,
		KeyConditionExpression: aws.String("TrainingId = :trainingId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":trainingId": &types.AttributeValueMemberS{Value: trainingID},
		},
	}

	var reviews []*Review

	// Handle pagination — DynamoDB returns up to 1MB per Query call.
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list reviews for %s: %w", trainingID, err)
		}
		for _, item := range result.Items {
			var r Review
			if err := attributevalue.UnmarshalMap(item, &r); err != nil {
				log.Warn().Err(err).Str("trainingId", trainingID).Msg("Failed to unmarshal review, skipping")
				continue
			}
			reviews = append(reviews, &r)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return reviews, nil
}
