package leads

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo emulates the single-table item semantics DynamoKV relies on.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	puts  []*dynamodb.PutItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	key := in.Item["key"].(*types.AttributeValueMemberS).Value
	if in.ConditionExpression != nil {
		if _, exists := f.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := in.Key["key"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[key]}, nil
}

func TestDynamoKV_RoundTrip(t *testing.T) {
	fake := newFakeDynamo()
	kv := NewDynamoKV(fake, "kv", nil)
	ctx := context.Background()

	_, err := kv.Get(ctx, "k")
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, kv.Put(ctx, "k", []byte(`[]`)))
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))
	assert.Equal(t, "kv", aws.ToString(fake.puts[0].TableName))
}

func TestDynamoKV_PutIfAbsent(t *testing.T) {
	fake := newFakeDynamo()
	kv := NewDynamoKV(fake, "kv", nil)
	ctx := context.Background()

	wrote, err := kv.PutIfAbsent(ctx, "k", []byte("first"))
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = kv.PutIfAbsent(ctx, "k", []byte("second"))
	require.NoError(t, err)
	assert.False(t, wrote)

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
	assert.Equal(t, "attribute_not_exists(#k)", aws.ToString(fake.puts[0].ConditionExpression))
}

func TestDynamoKV_BackedStoreAddsLead(t *testing.T) {
	store := newTestStore(t, NewDynamoKV(newFakeDynamo(), "kv", nil))
	ctx := context.Background()

	_, err := store.Add(ctx, validLead("Jane Doe"))
	require.NoError(t, err)
	got := store.List(ctx)
	require.Len(t, got, 3)
	assert.Equal(t, "Jane Doe", got[0].Name)
}
