package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	pkgconfig "github.com/cloud-wave-best-zizon/inventory-service/pkg/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DynamoDB caps a single TransactWriteItems call at 100 actions.
const maxTransactItems = 100

// maxCommitAttempts bounds retries when concurrent orders keep changing
// the same items' stock.
const maxCommitAttempts = 5

var errStockContention = errors.New("stock changed concurrently, commit not applied")

const (
	entityItem      = "ITEM"
	entityOrder     = "ORDER"
	entityOrderLine = "ORDER_LINE"
	metadataSK      = "METADATA"
)

// DynamoDBAPI is the subset of *dynamodb.Client the store uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoDBStore keeps items and ledger lines in one table:
//
//	ITEM#<name>  / METADATA   item
//	ORDER#<id>   / METADATA   order marker, guards idempotency
//	ORDER#<id>   / LINE#0001  ledger line
type DynamoDBStore struct {
	client    DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewDynamoDBClient(ctx context.Context, cfg *pkgconfig.Config) (*dynamodb.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	}), nil
}

func NewDynamoDBStore(client DynamoDBAPI, tableName string) *DynamoDBStore {
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

type dynamoPrice struct {
	decimal.Decimal
}

func (p dynamoPrice) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: p.String()}, nil
}

func (p *dynamoPrice) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return fmt.Errorf("price: unexpected attribute type %T", av)
	}
	d, err := decimal.NewFromString(n.Value)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	p.Decimal = d
	return nil
}

type itemRecord struct {
	PK            string      `dynamodbav:"PK"`
	SK            string      `dynamodbav:"SK"`
	Entity        string      `dynamodbav:"entity"`
	ID            string      `dynamodbav:"id"`
	Name          string      `dynamodbav:"name"`
	Price         dynamoPrice `dynamodbav:"price"`
	StockQuantity int         `dynamodbav:"stock_quantity"`
	CreatedAt     time.Time   `dynamodbav:"created_at"`
}

func (r itemRecord) toDomain() domain.Item {
	return domain.Item{
		ID:            r.ID,
		Name:          r.Name,
		Price:         r.Price.Decimal,
		StockQuantity: r.StockQuantity,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type orderMarker struct {
	PK        string    `dynamodbav:"PK"`
	SK        string    `dynamodbav:"SK"`
	Entity    string    `dynamodbav:"entity"`
	OrderID   string    `dynamodbav:"order_id"`
	LineCount int       `dynamodbav:"line_count"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}

type lineRecord struct {
	PK        string      `dynamodbav:"PK"`
	SK        string      `dynamodbav:"SK"`
	Entity    string      `dynamodbav:"entity"`
	OrderID   string      `dynamodbav:"order_id"`
	LineNo    int         `dynamodbav:"line_no"`
	ItemName  string      `dynamodbav:"item_name"`
	Quantity  int         `dynamodbav:"quantity"`
	Price     dynamoPrice `dynamodbav:"price"`
	CreatedAt time.Time   `dynamodbav:"created_at"`
}

func itemKey(name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "ITEM#" + name},
		"SK": &types.AttributeValueMemberS{Value: metadataSK},
	}
}

func orderPK(orderID string) string {
	return "ORDER#" + orderID
}

func (s *DynamoDBStore) Driver() string { return "dynamodb" }

func (s *DynamoDBStore) Close() error { return nil }

func (s *DynamoDBStore) AddItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	if err := item.Validate(); err != nil {
		return domain.Item{}, err
	}

	item.ID = uuid.New().String()
	item.CreatedAt = s.nowFunc().UTC()

	av, err := attributevalue.MarshalMap(itemRecord{
		PK:            "ITEM#" + item.Name,
		SK:            metadataSK,
		Entity:        entityItem,
		ID:            item.ID,
		Name:          item.Name,
		Price:         dynamoPrice{item.Price},
		StockQuantity: item.StockQuantity,
		CreatedAt:     item.CreatedAt,
	})
	if err != nil {
		return domain.Item{}, fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return domain.Item{}, domain.NewValidationError("name", fmt.Sprintf("item %q already exists", item.Name))
		}
		return domain.Item{}, domain.NewStorageError("add item", err)
	}
	return item, nil
}

func (s *DynamoDBStore) ListItems(ctx context.Context) ([]domain.Item, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		FilterExpression:          aws.String("entity = :entity"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":entity": &types.AttributeValueMemberS{Value: entityItem}},
		ConsistentRead:            aws.Bool(true),
	})

	items := []domain.Item{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, domain.NewStorageError("list items", err)
		}
		var records []itemRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &records); err != nil {
			return nil, domain.NewStorageError("list items", err)
		}
		for _, r := range records {
			items = append(items, r.toDomain())
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *DynamoDBStore) GetItem(ctx context.Context, name string) (domain.Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(name),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Item{}, domain.NewStorageError("get item", err)
	}
	if len(out.Item) == 0 {
		return domain.Item{}, itemNotFound(name)
	}

	var r itemRecord
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return domain.Item{}, domain.NewStorageError("get item", err)
	}
	return r.toDomain(), nil
}

func (s *DynamoDBStore) GetStockQuantity(ctx context.Context, name string) (int, error) {
	item, err := s.GetItem(ctx, name)
	if err != nil {
		return 0, err
	}
	return item.StockQuantity, nil
}

func (s *DynamoDBStore) DecrementStock(ctx context.Context, name string, quantity int) error {
	if err := validateDecrement(name, quantity); err != nil {
		return err
	}

	_, err := s.client.UpdateItem(ctx, decrementUpdate(s.tableName, name, quantity))
	if err == nil {
		return nil
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return domain.NewStorageError("decrement stock", err)
	}
	shortage, err := s.shortage(ctx, name, quantity)
	if err != nil {
		return err
	}
	return &domain.InsufficientStockError{Shortages: []domain.Shortage{shortage}}
}

func (s *DynamoDBStore) RecordOrder(ctx context.Context, orderID string, lines []domain.OrderLine) error {
	if err := validateLines(orderID, lines); err != nil {
		return err
	}

	writes, err := s.ledgerWrites(orderID, lines)
	if err != nil {
		return err
	}
	if len(writes) > maxTransactItems {
		return domain.NewValidationError("lines", fmt.Sprintf("order exceeds %d lines", maxTransactItems-1))
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	if err != nil {
		if failedAt(err, 0) {
			return nil
		}
		return domain.NewStorageError("record order", err)
	}
	return nil
}

func (s *DynamoDBStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :line)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: orderPK(orderID)},
			":line": &types.AttributeValueMemberS{Value: "LINE#"},
		},
		ConsistentRead: aws.Bool(true),
	})

	var records []lineRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, domain.NewStorageError("get order", err)
		}
		var batch []lineRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, domain.NewStorageError("get order", err)
		}
		records = append(records, batch...)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrOrderNotFound, orderID)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].LineNo < records[j].LineNo })

	order := &domain.Order{OrderID: orderID, CreatedAt: records[0].CreatedAt.UTC()}
	for _, r := range records {
		order.Lines = append(order.Lines, domain.OrderLine{
			ItemName: r.ItemName,
			Quantity: r.Quantity,
			Price:    r.Price.Decimal,
		})
	}
	order.TotalAmount = domain.TotalOf(order.Lines)
	return order, nil
}

// CommitOrder conditions every stock update on the exact quantity read just
// before the transaction, so the returned levels are the committed ones. A
// concurrent commit on the same items cancels the transaction and it is
// retried against fresh reads.
func (s *DynamoDBStore) CommitOrder(ctx context.Context, orderID string, lines []domain.OrderLine, quantities map[string]int) ([]domain.StockLevel, error) {
	if err := validateLines(orderID, lines); err != nil {
		return nil, err
	}

	ledger, err := s.ledgerWrites(orderID, lines)
	if err != nil {
		return nil, err
	}
	names := domain.SortedNames(quantities)
	if len(ledger)+len(names) > maxTransactItems {
		return nil, domain.NewValidationError("lines", fmt.Sprintf("order touches more than %d records", maxTransactItems))
	}

	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		current, err := s.currentStock(ctx, names, quantities)
		if err != nil {
			return nil, err
		}

		writes := make([]types.TransactWriteItem, 0, len(ledger)+len(names))
		writes = append(writes, ledger...)
		for _, name := range names {
			writes = append(writes, types.TransactWriteItem{
				Update: stockUpdate(s.tableName, name, current[name], current[name]-quantities[name]),
			})
		}

		_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
		if err == nil {
			levels := make([]domain.StockLevel, 0, len(names))
			for _, name := range names {
				levels = append(levels, domain.StockLevel{ItemName: name, StockQuantity: current[name] - quantities[name]})
			}
			return levels, nil
		}

		retry, err := commitError(err, len(ledger), len(names))
		if !retry {
			return nil, err
		}
	}
	return nil, domain.NewStorageError("commit order", errStockContention)
}

// currentStock reads every item's stock and reports all shortages at once.
func (s *DynamoDBStore) currentStock(ctx context.Context, names []string, quantities map[string]int) (map[string]int, error) {
	current := make(map[string]int, len(names))
	var shortages []domain.Shortage
	for _, name := range names {
		available, err := s.GetStockQuantity(ctx, name)
		if err != nil {
			return nil, err
		}
		if available < quantities[name] {
			shortages = append(shortages, domain.Shortage{
				ItemName:  name,
				Requested: quantities[name],
				Available: available,
			})
		}
		current[name] = available
	}
	if len(shortages) > 0 {
		return nil, &domain.InsufficientStockError{Shortages: shortages}
	}
	return current, nil
}

// commitError reports whether a cancelled commit lost a race on stock and
// should be retried, and otherwise the error to return.
func commitError(err error, firstUpdate, updates int) (bool, error) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false, domain.NewStorageError("commit order", err)
	}
	if failedAt(err, 0) {
		return false, domain.ErrOrderExists
	}
	for i := 0; i < updates; i++ {
		if failedAt(err, firstUpdate+i) {
			return true, nil
		}
	}
	return false, domain.NewStorageError("commit order", err)
}

func (s *DynamoDBStore) shortage(ctx context.Context, name string, requested int) (domain.Shortage, error) {
	available, err := s.GetStockQuantity(ctx, name)
	if err != nil {
		return domain.Shortage{}, err
	}
	return domain.Shortage{ItemName: name, Requested: requested, Available: available}, nil
}

// ledgerWrites builds the order marker put followed by one put per line.
// The marker is always at index 0.
func (s *DynamoDBStore) ledgerWrites(orderID string, lines []domain.OrderLine) ([]types.TransactWriteItem, error) {
	now := s.nowFunc().UTC()

	marker, err := attributevalue.MarshalMap(orderMarker{
		PK:        orderPK(orderID),
		SK:        metadataSK,
		Entity:    entityOrder,
		OrderID:   orderID,
		LineCount: len(lines),
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}

	writes := make([]types.TransactWriteItem, 0, len(lines)+1)
	writes = append(writes, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(s.tableName),
			Item:                marker,
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		},
	})

	for i, line := range lines {
		av, err := attributevalue.MarshalMap(lineRecord{
			PK:        orderPK(orderID),
			SK:        fmt.Sprintf("LINE#%04d", i+1),
			Entity:    entityOrderLine,
			OrderID:   orderID,
			LineNo:    i + 1,
			ItemName:  line.ItemName,
			Quantity:  line.Quantity,
			Price:     dynamoPrice{line.Price},
			CreatedAt: now,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal order line: %w", err)
		}
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{TableName: aws.String(s.tableName), Item: av},
		})
	}
	return writes, nil
}

func decrementUpdate(tableName, name string, quantity int) *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName:           aws.String(tableName),
		Key:                 itemKey(name),
		UpdateExpression:    aws.String("SET stock_quantity = stock_quantity - :qty"),
		ConditionExpression: aws.String("attribute_exists(PK) AND stock_quantity >= :qty"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":qty": &types.AttributeValueMemberN{Value: strconv.Itoa(quantity)},
		},
	}
}

// stockUpdate moves an item from expected to next, failing if another
// writer changed it since it was read.
func stockUpdate(tableName, name string, expected, next int) *types.Update {
	return &types.Update{
		TableName:           aws.String(tableName),
		Key:                 itemKey(name),
		UpdateExpression:    aws.String("SET stock_quantity = :next"),
		ConditionExpression: aws.String("attribute_exists(PK) AND stock_quantity = :expected"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.Itoa(expected)},
			":next":     &types.AttributeValueMemberN{Value: strconv.Itoa(next)},
		},
	}
}

// failedAt reports whether a cancelled transaction failed its condition
// check at action index i.
func failedAt(err error, i int) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) || i >= len(tce.CancellationReasons) {
		return false
	}
	return aws.ToString(tce.CancellationReasons[i].Code) == "ConditionalCheckFailed"
}
