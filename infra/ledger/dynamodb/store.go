// Package dynamodb provides the DynamoDB ledger.Store adapter. All items of
// one AtomicCommit go through a single TransactWriteItems call, which is
// what gives the commit its serializable all-or-nothing semantics.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/p2pwallet/wallet/pkg/ledger"
)

const (
	pkAttr = "PK"
	skAttr = "SK"

	conditionalCheckFailed = "ConditionalCheckFailed"
)

// Client is the slice of the DynamoDB API the store depends on. The
// *dynamodb.Client satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput,
		optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput,
		optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput,
		optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store is a ledger.Store backed by one DynamoDB table with a PK/SK
// composite key.
type Store struct {
	client Client
	table  string
}

// New creates a Store over an existing DynamoDB client.
func New(client Client, table string) *Store {
	return &Store{client: client, table: table}
}

// NewFromConfig creates a Store using the default AWS configuration chain.
func NewFromConfig(ctx context.Context, table string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(dynamodb.NewFromConfig(cfg), table), nil
}

// Get returns the item at key, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, key ledger.Key) (ledger.Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       keyAttributes(key),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return decodeItem(out.Item)
}

// Query returns all items in partition pk whose sort key starts with
// skPrefix, ascending by sort key (DynamoDB's native order).
func (s *Store) Query(ctx context.Context, pk, skPrefix string) ([]ledger.Item, error) {
	var items []ledger.Item
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.table),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: pk},
				":sk": &types.AttributeValueMemberS{Value: skPrefix},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb query: %w", err)
		}
		for _, raw := range out.Items {
			item, err := decodeItem(raw)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return items, nil
}

// AtomicCommit maps the writes onto one TransactWriteItems request. A
// transaction cancelled by conditional checks is translated into a
// positional ConditionFailedError; every other failure is returned
// wrapped and untranslated.
func (s *Store) AtomicCommit(ctx context.Context, writes []ledger.ConditionalWrite) error {
	txItems := make([]types.TransactWriteItem, 0, len(writes))
	for _, w := range writes {
		item, err := s.transactItem(w)
		if err != nil {
			return err
		}
		txItems = append(txItems, item)
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: txItems,
	})
	if err == nil {
		return nil
	}

	var cancelled *types.TransactionCanceledException
	if errors.As(err, &cancelled) {
		failed := make([]bool, len(writes))
		sawConditional := false
		for i, reason := range cancelled.CancellationReasons {
			if i < len(failed) && aws.ToString(reason.Code) == conditionalCheckFailed {
				failed[i] = true
				sawConditional = true
			}
		}
		if sawConditional {
			return &ledger.ConditionFailedError{Failed: failed}
		}
	}
	return fmt.Errorf("dynamodb transact write: %w", err)
}

func (s *Store) transactItem(w ledger.ConditionalWrite) (types.TransactWriteItem, error) {
	switch w.Kind {
	case ledger.WritePut:
		return s.putItem(w)
	case ledger.WriteUpdate:
		return s.updateItem(w)
	default:
		return types.TransactWriteItem{}, fmt.Errorf("dynamodb: unknown write kind %d", w.Kind)
	}
}

func (s *Store) putItem(w ledger.ConditionalWrite) (types.TransactWriteItem, error) {
	av, err := attributevalue.MarshalMap(map[string]any(w.Item))
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("dynamodb marshal: %w", err)
	}
	av[pkAttr] = &types.AttributeValueMemberS{Value: w.Key.PK}
	av[skAttr] = &types.AttributeValueMemberS{Value: w.Key.SK}

	put := &types.Put{
		TableName: aws.String(s.table),
		Item:      av,
	}
	if w.Condition.Absent {
		put.ConditionExpression = aws.String("attribute_not_exists(PK)")
	}
	return types.TransactWriteItem{Put: put}, nil
}

func (s *Store) updateItem(w ledger.ConditionalWrite) (types.TransactWriteItem, error) {
	names := map[string]string{"#bal": ledger.AttrBalance}
	values := map[string]types.AttributeValue{
		":add": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", w.Add)},
	}
	update := "SET #bal = #bal + :add"

	// Deterministic expression for the extra attributes to set.
	attrs := make([]string, 0, len(w.Item))
	for attr := range w.Item {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	for i, attr := range attrs {
		av, err := attributevalue.Marshal(w.Item[attr])
		if err != nil {
			return types.TransactWriteItem{}, fmt.Errorf("dynamodb marshal: %w", err)
		}
		name := fmt.Sprintf("#a%d", i)
		value := fmt.Sprintf(":v%d", i)
		names[name] = attr
		values[value] = av
		update += fmt.Sprintf(", %s = %s", name, value)
	}

	upd := &types.Update{
		TableName:                 aws.String(s.table),
		Key:                       keyAttributes(w.Key),
		UpdateExpression:          aws.String(update),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	if cond := conditionExpression(w.Condition, names, values); cond != "" {
		upd.ConditionExpression = aws.String(cond)
	}
	return types.TransactWriteItem{Update: upd}, nil
}

func conditionExpression(
	c ledger.Condition,
	names map[string]string,
	values map[string]types.AttributeValue,
) string {
	var parts []string
	if c.Absent {
		parts = append(parts, "attribute_not_exists(PK)")
	}
	if c.Exists {
		parts = append(parts, "attribute_exists(PK)")
	}
	if c.MinBalance != nil {
		values[":minbal"] = &types.AttributeValueMemberN{
			Value: fmt.Sprintf("%d", *c.MinBalance),
		}
		parts = append(parts, "#bal >= :minbal")
	}
	if c.Currency != "" {
		names["#cur"] = ledger.AttrCurrency
		values[":cur"] = &types.AttributeValueMemberS{Value: c.Currency}
		parts = append(parts, "#cur = :cur")
	}
	expr := ""
	for i, p := range parts {
		if i > 0 {
			expr += " AND "
		}
		expr += p
	}
	return expr
}

// decodeItem converts a raw DynamoDB item into a ledger.Item. Number
// attributes are parsed as int64 directly from their decimal string form,
// which keeps balances exact where a float64 round trip would not.
func decodeItem(raw map[string]types.AttributeValue) (ledger.Item, error) {
	item := make(ledger.Item, len(raw))
	for attr, av := range raw {
		if attr == pkAttr || attr == skAttr {
			continue
		}
		switch v := av.(type) {
		case *types.AttributeValueMemberS:
			item[attr] = v.Value
		case *types.AttributeValueMemberN:
			n, err := strconv.ParseInt(v.Value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("dynamodb attribute %s: %w", attr, err)
			}
			item[attr] = n
		default:
			return nil, fmt.Errorf("dynamodb attribute %s: unexpected type %T", attr, av)
		}
	}
	return item, nil
}

func keyAttributes(key ledger.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		pkAttr: &types.AttributeValueMemberS{Value: key.PK},
		skAttr: &types.AttributeValueMemberS{Value: key.SK},
	}
}
