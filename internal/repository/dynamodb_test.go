package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	items         map[string]map[string]types.AttributeValue
	putErr        error
	transactErr   error
	transactErrs  []error
	afterTransact func(call int)
	putCalls      []*dynamodb.PutItemInput
	transactCalls []*dynamodb.TransactWriteItemsInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDynamo) seed(t *testing.T, name string, price string, stock int) {
	t.Helper()
	av, err := attributevalue.MarshalMap(itemRecord{
		PK:            "ITEM#" + name,
		SK:            metadataSK,
		Entity:        entityItem,
		ID:            name + "-id",
		Name:          name,
		Price:         dynamoPrice{decimal.RequireFromString(price)},
		StockQuantity: stock,
		CreatedAt:     time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	f.items["ITEM#"+name] = av
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[pk]}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putCalls = append(f.putCalls, in)
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (f *fakeDynamo) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return &dynamodb.QueryOutput{}, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	out := &dynamodb.ScanOutput{}
	for _, it := range f.items {
		out.Items = append(out.Items, it)
	}
	return out, nil
}

func (f *fakeDynamo) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.transactCalls = append(f.transactCalls, in)
	if f.afterTransact != nil {
		f.afterTransact(len(f.transactCalls))
	}
	if len(f.transactErrs) > 0 {
		err := f.transactErrs[0]
		f.transactErrs = f.transactErrs[1:]
		if err != nil {
			return nil, err
		}
		return &dynamodb.TransactWriteItemsOutput{}, nil
	}
	if f.transactErr != nil {
		return nil, f.transactErr
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func cancelledAt(size int, failed ...int) error {
	reasons := make([]types.CancellationReason, size)
	for i := range reasons {
		reasons[i].Code = aws.String("None")
	}
	for _, i := range failed {
		reasons[i].Code = aws.String("ConditionalCheckFailed")
	}
	return &types.TransactionCanceledException{
		Message:             aws.String("Transaction cancelled"),
		CancellationReasons: reasons,
	}
}

func TestDynamoDBStore_AddItemWritesNumericPrice(t *testing.T) {
	client := newFakeDynamo()
	store := NewDynamoDBStore(client, "ordering")

	item, err := store.AddItem(context.Background(), widget(10))
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)

	require.Len(t, client.putCalls, 1)
	put := client.putCalls[0]
	assert.Equal(t, "attribute_not_exists(PK)", aws.ToString(put.ConditionExpression))

	price, ok := put.Item["price"].(*types.AttributeValueMemberN)
	require.True(t, ok, "price must be stored as a number")
	assert.True(t, decimal.RequireFromString(price.Value).Equal(decimal.RequireFromString("2.50")))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "ITEM#Widget"}, put.Item["PK"])
}

func TestDynamoDBStore_AddItemDuplicateName(t *testing.T) {
	client := newFakeDynamo()
	client.putErr = &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	store := NewDynamoDBStore(client, "ordering")

	_, err := store.AddItem(context.Background(), widget(10))

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDynamoDBStore_GetItem(t *testing.T) {
	client := newFakeDynamo()
	client.seed(t, "Widget", "2.50", 10)
	store := NewDynamoDBStore(client, "ordering")

	item, err := store.GetItem(context.Background(), "Widget")
	require.NoError(t, err)
	assert.Equal(t, "Widget", item.Name)
	assert.Equal(t, 10, item.StockQuantity)
	assert.True(t, decimal.RequireFromString("2.5").Equal(item.Price))

	_, err = store.GetStockQuantity(context.Background(), "Nothing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDynamoDBStore_ListItems(t *testing.T) {
	client := newFakeDynamo()
	client.seed(t, "Widget", "2.50", 10)
	client.seed(t, "Gadget", "5.00", 2)
	store := NewDynamoDBStore(client, "ordering")

	items, err := store.ListItems(context.Background())

	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestDynamoDBStore_CommitOrderBuildsSingleTransaction(t *testing.T) {
	client := newFakeDynamo()
	client.seed(t, "Widget", "2.50", 10)
	store := NewDynamoDBStore(client, "ordering")

	lines := []domain.OrderLine{
		{ItemName: "Widget", Quantity: 3, Price: decimal.RequireFromString("2.50")},
		{ItemName: "Widget", Quantity: 4, Price: decimal.RequireFromString("2.50")},
	}
	levels, err := store.CommitOrder(context.Background(), "20261018120000000001", lines, domain.AggregateQuantities(lines))
	require.NoError(t, err)
	assert.Equal(t, []domain.StockLevel{{ItemName: "Widget", StockQuantity: 3}}, levels)

	require.Len(t, client.transactCalls, 1)
	writes := client.transactCalls[0].TransactItems
	require.Len(t, writes, 4)

	require.NotNil(t, writes[0].Put)
	assert.Equal(t, "attribute_not_exists(PK)", aws.ToString(writes[0].Put.ConditionExpression))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "LINE#0002"}, writes[2].Put.Item["SK"])

	update := writes[3].Update
	require.NotNil(t, update)
	assert.Equal(t, "attribute_exists(PK) AND stock_quantity = :expected", aws.ToString(update.ConditionExpression))
	assert.Equal(t, &types.AttributeValueMemberN{Value: "10"}, update.ExpressionAttributeValues[":expected"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "3"}, update.ExpressionAttributeValues[":next"])
}

func TestDynamoDBStore_CommitOrderShortageWritesNothing(t *testing.T) {
	client := newFakeDynamo()
	client.seed(t, "Gadget", "5.00", 2)
	client.seed(t, "Widget", "2.50", 10)
	store := NewDynamoDBStore(client, "ordering")

	lines := []domain.OrderLine{
		{ItemName: "Widget", Quantity: 1, Price: decimal.RequireFromString("2.50")},
		{ItemName: "Gadget", Quantity: 5, Price: decimal.RequireFromString("5.00")},
	}
	_, err := store.CommitOrder(context.Background(), "order-1", lines, domain.AggregateQuantities(lines))

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, []domain.Shortage{{ItemName: "Gadget", Requested: 5, Available: 2}}, stockErr.Shortages)
	assert.Empty(t, client.transactCalls)
}

func TestDynamoDBStore_CommitOrderRetriesAfterConcurrentChange(t *testing.T) {
	client := newFakeDynamo()
	client.seed(t, "Widget", "2.50", 10)
	// Another order takes 2 between our read and our write.
	client.transactErrs = []error{cancelledAt(3, 2), nil}
	client.afterTransact = func(call int) {
		if call == 1 {
			client.seed(t, "Widget", "2.50", 8)
		}
	}
	store := NewDynamoDBStore(client, "ordering")

	lines := []domain.OrderLine{{ItemName: "Widget", Quantity: 4, Price: decimal.RequireFromString("2.50")}}
	levels, err := store.CommitOrder(context.Background(), "order-1", lines, domain.AggregateQuantities(lines))

	require.NoError(t, err)
	assert.Equal(t, []domain.StockLevel{{ItemName: "Widget", StockQuantity: 4}}, levels)
	require.Len(t, client.transactCalls, 2)
	retried := client.transactCalls[1].TransactItems[2].Update
	assert.Equal(t, &types.AttributeValueMemberN{Value: "8"}, retried.ExpressionAttributeValues[":expected"])
}

func TestDynamoDBStore_CommitOrderLosesRaceForLastStock(t *testing.T) {
	client := newFakeDynamo()
	client.seed(t, "Widget", "2.50", 6)
	client.transactErrs = []error{cancelledAt(3, 2)}
	client.afterTransact = func(call int) {
		client.seed(t, "Widget", "2.50", 2)
	}
	store := NewDynamoDBStore(client, "ordering")

	lines := []domain.OrderLine{{ItemName: "Widget", Quantity: 5, Price: decimal.RequireFromString("2.50")}}
	_, err := store.CommitOrder(context.Background(), "order-1", lines, domain.AggregateQuantities(lines))

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, []domain.Shortage{{ItemName: "Widget", Requested: 5, Available: 2}}, stockErr.Shortages)
	assert.Len(t, client.transactCalls, 1)
}

func TestDynamoDBStore_CommitOrderGivesUpUnderContention(t *testing.T) {
	client := newFakeDynamo()
	client.seed(t, "Widget", "2.50", 10)
	client.transactErr = cancelledAt(3, 2)
	store := NewDynamoDBStore(client, "ordering")

	lines := []domain.OrderLine{{ItemName: "Widget", Quantity: 1, Price: decimal.RequireFromString("2.50")}}
	_, err := store.CommitOrder(context.Background(), "order-1", lines, domain.AggregateQuantities(lines))

	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.True(t, storageErr.Retryable())
	assert.Len(t, client.transactCalls, maxCommitAttempts)
}

func TestDynamoDBStore_CommitOrderExisting(t *testing.T) {
	client := newFakeDynamo()
	client.seed(t, "Widget", "2.50", 10)
	client.transactErr = cancelledAt(3, 0)
	store := NewDynamoDBStore(client, "ordering")

	lines := []domain.OrderLine{{ItemName: "Widget", Quantity: 1, Price: decimal.RequireFromString("2.50")}}
	_, err := store.CommitOrder(context.Background(), "order-1", lines, domain.AggregateQuantities(lines))

	assert.ErrorIs(t, err, domain.ErrOrderExists)
}

func TestDynamoDBStore_RecordOrderReplayIsNoop(t *testing.T) {
	client := newFakeDynamo()
	client.transactErr = cancelledAt(2, 0)
	store := NewDynamoDBStore(client, "ordering")

	lines := []domain.OrderLine{{ItemName: "Widget", Quantity: 1, Price: decimal.RequireFromString("2.50")}}

	assert.NoError(t, store.RecordOrder(context.Background(), "order-1", lines))
}

func TestDynamoDBStore_TransportFailureIsStorageError(t *testing.T) {
	client := newFakeDynamo()
	client.seed(t, "Widget", "2.50", 10)
	client.transactErr = errors.New("connection reset by peer")
	store := NewDynamoDBStore(client, "ordering")

	lines := []domain.OrderLine{{ItemName: "Widget", Quantity: 1, Price: decimal.RequireFromString("2.50")}}
	_, err := store.CommitOrder(context.Background(), "order-1", lines, domain.AggregateQuantities(lines))

	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestDynamoDBStore_DecrementStockShortage(t *testing.T) {
	client := newFakeDynamo()
	client.seed(t, "Gadget", "5.00", 2)
	store := NewDynamoDBStore(client, "ordering")

	err := store.DecrementStock(context.Background(), "Gadget", 5)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	err = store.DecrementStock(context.Background(), "Nothing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
