package dynamodb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/p2pwallet/wallet/infra/ledger/dynamodb"
	"github.com/p2pwallet/wallet/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient satisfies dynamodb.Client with per-call function fields.
type fakeClient struct {
	getItem   func(*awsdynamodb.GetItemInput) (*awsdynamodb.GetItemOutput, error)
	query     func(*awsdynamodb.QueryInput) (*awsdynamodb.QueryOutput, error)
	transact  func(*awsdynamodb.TransactWriteItemsInput) (*awsdynamodb.TransactWriteItemsOutput, error)
	lastWrite *awsdynamodb.TransactWriteItemsInput
}

func (f *fakeClient) GetItem(
	_ context.Context, params *awsdynamodb.GetItemInput,
	_ ...func(*awsdynamodb.Options),
) (*awsdynamodb.GetItemOutput, error) {
	return f.getItem(params)
}

func (f *fakeClient) Query(
	_ context.Context, params *awsdynamodb.QueryInput,
	_ ...func(*awsdynamodb.Options),
) (*awsdynamodb.QueryOutput, error) {
	return f.query(params)
}

func (f *fakeClient) TransactWriteItems(
	_ context.Context, params *awsdynamodb.TransactWriteItemsInput,
	_ ...func(*awsdynamodb.Options),
) (*awsdynamodb.TransactWriteItemsOutput, error) {
	f.lastWrite = params
	return f.transact(params)
}

func transferWrites() []ledger.ConditionalWrite {
	min := int64(300)
	return []ledger.ConditionalWrite{
		{
			Key:       ledger.Key{PK: "IDEM#k1", SK: "META"},
			Kind:      ledger.WritePut,
			Item:      ledger.Item{ledger.AttrTxID: "t1"},
			Condition: ledger.Condition{Absent: true},
		},
		{
			Key:       ledger.Key{PK: "USER#alice", SK: "PROFILE"},
			Kind:      ledger.WriteUpdate,
			Add:       -300,
			Condition: ledger.Condition{MinBalance: &min, Currency: "USD"},
		},
		{
			Key:       ledger.Key{PK: "USER#bob", SK: "PROFILE"},
			Kind:      ledger.WriteUpdate,
			Add:       300,
			Condition: ledger.Condition{Exists: true},
		},
	}
}

func cancelled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, code := range codes {
		reasons[i] = types.CancellationReason{Code: aws.String(code)}
	}
	return &types.TransactionCanceledException{CancellationReasons: reasons}
}

func TestAtomicCommit_BuildsConditionedTransaction(t *testing.T) {
	client := &fakeClient{
		transact: func(*awsdynamodb.TransactWriteItemsInput) (*awsdynamodb.TransactWriteItemsOutput, error) {
			return &awsdynamodb.TransactWriteItemsOutput{}, nil
		},
	}
	s := dynamodb.New(client, "Ledger")

	require.NoError(t, s.AtomicCommit(context.Background(), transferWrites()))
	require.NotNil(t, client.lastWrite)
	items := client.lastWrite.TransactItems
	require.Len(t, items, 3)

	require.NotNil(t, items[0].Put)
	assert.Equal(t, "attribute_not_exists(PK)", aws.ToString(items[0].Put.ConditionExpression))

	require.NotNil(t, items[1].Update)
	assert.Contains(t, aws.ToString(items[1].Update.UpdateExpression), "#bal = #bal + :add")
	cond := aws.ToString(items[1].Update.ConditionExpression)
	assert.Contains(t, cond, "#bal >= :minbal")
	assert.Contains(t, cond, "#cur = :cur")

	require.NotNil(t, items[2].Update)
	assert.Equal(t, "attribute_exists(PK)", aws.ToString(items[2].Update.ConditionExpression))
}

func TestAtomicCommit_CancellationReasonsMapPositionally(t *testing.T) {
	tests := []struct {
		name   string
		codes  []string
		failed []bool
	}{
		{
			name:   "marker conflict",
			codes:  []string{"ConditionalCheckFailed", "None", "None"},
			failed: []bool{true, false, false},
		},
		{
			name:   "insufficient funds",
			codes:  []string{"None", "ConditionalCheckFailed", "None"},
			failed: []bool{false, true, false},
		},
		{
			name:   "mixed with transaction conflict",
			codes:  []string{"TransactionConflict", "ConditionalCheckFailed", "ConditionalCheckFailed"},
			failed: []bool{false, true, true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{
				transact: func(*awsdynamodb.TransactWriteItemsInput) (*awsdynamodb.TransactWriteItemsOutput, error) {
					return nil, cancelled(tt.codes...)
				},
			}
			s := dynamodb.New(client, "Ledger")

			err := s.AtomicCommit(context.Background(), transferWrites())
			var condErr *ledger.ConditionFailedError
			require.ErrorAs(t, err, &condErr)
			for i, want := range tt.failed {
				assert.Equal(t, want, condErr.FailedAt(i), "write %d", i)
			}
		})
	}
}

func TestAtomicCommit_NoConditionalReasonStaysOpaque(t *testing.T) {
	client := &fakeClient{
		transact: func(*awsdynamodb.TransactWriteItemsInput) (*awsdynamodb.TransactWriteItemsOutput, error) {
			return nil, cancelled("TransactionConflict", "None", "None")
		},
	}
	s := dynamodb.New(client, "Ledger")

	err := s.AtomicCommit(context.Background(), transferWrites())
	require.Error(t, err)
	var condErr *ledger.ConditionFailedError
	assert.False(t, errors.As(err, &condErr))
}

func TestAtomicCommit_TransportErrorWrapped(t *testing.T) {
	boom := errors.New("throttled")
	client := &fakeClient{
		transact: func(*awsdynamodb.TransactWriteItemsInput) (*awsdynamodb.TransactWriteItemsOutput, error) {
			return nil, boom
		},
	}
	s := dynamodb.New(client, "Ledger")

	err := s.AtomicCommit(context.Background(), transferWrites())
	require.ErrorIs(t, err, boom)
	var condErr *ledger.ConditionFailedError
	assert.False(t, errors.As(err, &condErr))
}

func TestGet_Absent(t *testing.T) {
	client := &fakeClient{
		getItem: func(*awsdynamodb.GetItemInput) (*awsdynamodb.GetItemOutput, error) {
			return &awsdynamodb.GetItemOutput{}, nil
		},
	}
	s := dynamodb.New(client, "Ledger")

	item, err := s.Get(context.Background(), ledger.Key{PK: "USER#ghost", SK: "PROFILE"})
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestGet_LargeBalanceStaysExact(t *testing.T) {
	// 2^53+1 is not representable as float64.
	const huge = int64(9007199254740993)
	client := &fakeClient{
		getItem: func(params *awsdynamodb.GetItemInput) (*awsdynamodb.GetItemOutput, error) {
			assert.Equal(t, "Ledger", aws.ToString(params.TableName))
			return &awsdynamodb.GetItemOutput{
				Item: map[string]types.AttributeValue{
					"PK":                  &types.AttributeValueMemberS{Value: "USER#alice"},
					"SK":                  &types.AttributeValueMemberS{Value: "PROFILE"},
					ledger.AttrBalance:    &types.AttributeValueMemberN{Value: "9007199254740993"},
					ledger.AttrCurrency:   &types.AttributeValueMemberS{Value: "USD"},
				},
			}, nil
		},
	}
	s := dynamodb.New(client, "Ledger")

	item, err := s.Get(context.Background(), ledger.Key{PK: "USER#alice", SK: "PROFILE"})
	require.NoError(t, err)
	assert.Equal(t, huge, item[ledger.AttrBalance])
	assert.NotContains(t, item, "PK")
	assert.NotContains(t, item, "SK")
}

func TestQuery_PaginatesAndDecodes(t *testing.T) {
	page := 0
	client := &fakeClient{
		query: func(params *awsdynamodb.QueryInput) (*awsdynamodb.QueryOutput, error) {
			page++
			if page == 1 {
				assert.Nil(t, params.ExclusiveStartKey)
				return &awsdynamodb.QueryOutput{
					Items: []map[string]types.AttributeValue{{
						"PK":               &types.AttributeValueMemberS{Value: "USER#alice"},
						"SK":               &types.AttributeValueMemberS{Value: "TX#a#t1"},
						ledger.AttrTxID:    &types.AttributeValueMemberS{Value: "t1"},
						ledger.AttrAmount:  &types.AttributeValueMemberN{Value: "-300"},
					}},
					LastEvaluatedKey: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: "USER#alice"},
					},
				}, nil
			}
			assert.NotNil(t, params.ExclusiveStartKey)
			return &awsdynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{{
					"PK":               &types.AttributeValueMemberS{Value: "USER#alice"},
					"SK":               &types.AttributeValueMemberS{Value: "TX#b#t2"},
					ledger.AttrTxID:    &types.AttributeValueMemberS{Value: "t2"},
					ledger.AttrAmount:  &types.AttributeValueMemberN{Value: "500"},
				}},
			}, nil
		},
	}
	s := dynamodb.New(client, "Ledger")

	items, err := s.Query(context.Background(), "USER#alice", "TX#")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(-300), items[0][ledger.AttrAmount])
	assert.Equal(t, "t2", items[1][ledger.AttrTxID])
	assert.Equal(t, 2, page)
}
