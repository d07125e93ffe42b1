package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// kvItem is the DynamoDB item layout; the table's partition key is "key".
type kvItem struct {
	Key       string `dynamodbav:"key"`
	Value     string `dynamodbav:"value"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

// DynamoKV stores the lead collection as one DynamoDB item.
type DynamoKV struct {
	client    dynamoAPI
	tableName string
	tracer    trace.Tracer
}

// NewDynamoKV builds a KV backed by the provided DynamoDB client.
func NewDynamoKV(client dynamoAPI, tableName string, tracer trace.Tracer) *DynamoKV {
	if client == nil {
		panic("leads: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("leads: table name cannot be empty")
	}
	if tracer == nil {
		tracer = otel.Tracer("crystalcare.internal.leads.dynamodb")
	}
	return &DynamoKV{client: client, tableName: tableName, tracer: tracer}
}

func (s *DynamoKV) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "leads.dynamodb.get")
	defer span.End()

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            map[string]types.AttributeValue{"key": &types.AttributeValueMemberS{Value: key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("leads: dynamodb get: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, ErrKeyNotFound
	}
	var item kvItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrCorruptCollection, err)
	}
	return []byte(item.Value), nil
}

func (s *DynamoKV) Put(ctx context.Context, key string, value []byte) error {
	ctx, span := s.tracer.Start(ctx, "leads.dynamodb.put")
	defer span.End()

	input, err := s.putInput(key, value)
	if err != nil {
		return err
	}
	if _, err := s.client.PutItem(ctx, input); err != nil {
		span.RecordError(err)
		return fmt.Errorf("leads: dynamodb put: %w", err)
	}
	return nil
}

func (s *DynamoKV) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "leads.dynamodb.put_if_absent")
	defer span.End()

	input, err := s.putInput(key, value)
	if err != nil {
		return false, err
	}
	input.ConditionExpression = aws.String("attribute_not_exists(#k)")
	input.ExpressionAttributeNames = map[string]string{"#k": "key"}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var conditional *types.ConditionalCheckFailedException
		if errors.As(err, &conditional) {
			return false, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("leads: dynamodb conditional put: %w", err)
	}
	return true, nil
}

func (s *DynamoKV) putInput(key string, value []byte) (*dynamodb.PutItemInput, error) {
	item, err := attributevalue.MarshalMap(kvItem{
		Key:       key,
		Value:     string(value),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("leads: failed to marshal item: %w", err)
	}
	return &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}, nil
}
