// Package postgres provides a ledger.Store adapter on PostgreSQL via GORM.
//
// The single-table layout mirrors the key-value shape of the store
// contract: one row per item, addressed by (pk, sk), with the known
// attributes spread over sparse nullable columns. AtomicCommit runs inside
// one serializable SQL transaction that row-locks every touched item before
// evaluating preconditions, so concurrent debits can never both pass a
// stale balance check.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/p2pwallet/wallet/pkg/ledger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
)

// ledgerItem is the row model of the single ledger table.
type ledgerItem struct {
	PK           string  `gorm:"column:pk;primaryKey"`
	SK           string  `gorm:"column:sk;primaryKey"`
	Balance      *int64  `gorm:"column:balance"`
	Currency     *string `gorm:"column:currency"`
	TxID         *string `gorm:"column:tx_id"`
	EntryType    *string `gorm:"column:entry_type"`
	Amount       *int64  `gorm:"column:amount"`
	Counterparty *string `gorm:"column:counterparty"`
	SenderID     *string `gorm:"column:sender_id"`
	TTL          *int64  `gorm:"column:ttl"`
	CreatedAt    *string `gorm:"column:created_at"`
	UpdatedAt    *string `gorm:"column:updated_at"`
}

func (ledgerItem) TableName() string { return "ledger_items" }

// Store is a ledger.Store backed by PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New creates a Store over an existing gorm DB handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and creates a Store.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	return New(db), nil
}

// Migrate creates the ledger table when it does not exist.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&ledgerItem{})
}

// Get returns the item at key, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, key ledger.Key) (ledger.Item, error) {
	var row ledgerItem
	err := s.db.WithContext(ctx).
		Where("pk = ? AND sk = ?", key.PK, key.SK).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get: %w", err)
	}
	return fromRow(row), nil
}

// Query returns all items in partition pk whose sort key starts with
// skPrefix, ascending by sort key.
func (s *Store) Query(ctx context.Context, pk, skPrefix string) ([]ledger.Item, error) {
	var rows []ledgerItem
	err := s.db.WithContext(ctx).
		Where("pk = ? AND sk LIKE ?", pk, skPrefix+"%").
		Order("sk asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("postgres query: %w", err)
	}
	items := make([]ledger.Item, len(rows))
	for i, row := range rows {
		items[i] = fromRow(row)
	}
	return items, nil
}

// AtomicCommit evaluates every precondition under row locks inside one
// serializable transaction, then applies all writes or rolls back.
//
// A concurrent writer can commit an Absent-conditioned row between this
// transaction's snapshot read and its insert; PostgreSQL then rejects the
// insert with a unique violation or a serialization failure instead of a
// failed precondition. Those rejections are translated into the same
// ConditionFailedError a losing precondition check produces, so callers
// see one error shape for both orderings of the race.
func (s *Store) AtomicCommit(ctx context.Context, writes []ledger.ConditionalWrite) error {
	err := s.commit(ctx, writes)
	if err == nil {
		return nil
	}
	var condErr *ledger.ConditionFailedError
	if errors.As(err, &condErr) {
		return err
	}
	if isWriteConflict(err) {
		failed := make([]bool, len(writes))
		flagged := false
		for i, w := range writes {
			if w.Condition.Absent {
				failed[i] = true
				flagged = true
			}
		}
		if flagged {
			return &ledger.ConditionFailedError{Failed: failed}
		}
	}
	return err
}

func (s *Store) commit(ctx context.Context, writes []ledger.ConditionalWrite) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		failed := make([]bool, len(writes))
		anyFailed := false
		rows := make([]*ledgerItem, len(writes))
		for i, w := range writes {
			var row ledgerItem
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("pk = ? AND sk = ?", w.Key.PK, w.Key.SK).
				First(&row).Error
			exists := err == nil
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("postgres lock: %w", err)
			}
			if exists {
				rows[i] = &row
			}
			if !conditionHolds(w.Condition, exists, rows[i]) {
				failed[i] = true
				anyFailed = true
			}
		}
		if anyFailed {
			return &ledger.ConditionFailedError{Failed: failed}
		}

		for i, w := range writes {
			switch w.Kind {
			case ledger.WritePut:
				row := toRow(w.Key, w.Item)
				create := tx
				if !w.Condition.Absent {
					// A plain insert must fail when the row appears
					// concurrently, so only unconditioned puts upsert.
					create = tx.Clauses(clause.OnConflict{
						Columns:   []clause.Column{{Name: "pk"}, {Name: "sk"}},
						UpdateAll: true,
					})
				}
				if err := create.Create(&row).Error; err != nil {
					return fmt.Errorf("postgres put: %w", err)
				}
			case ledger.WriteUpdate:
				row := rows[i]
				if row == nil {
					row = &ledgerItem{PK: w.Key.PK, SK: w.Key.SK}
				}
				balance := int64(0)
				if row.Balance != nil {
					balance = *row.Balance
				}
				balance += w.Add
				row.Balance = &balance
				applyAttributes(row, w.Item)
				err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "pk"}, {Name: "sk"}},
					UpdateAll: true,
				}).Create(row).Error
				if err != nil {
					return fmt.Errorf("postgres update: %w", err)
				}
			}
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// isWriteConflict reports whether err is a unique violation or a
// serialization failure, the two errors PostgreSQL raises when a concurrent
// transaction commits a touched row first.
func isWriteConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation || pgErr.Code == pgSerializationFailure
}

func conditionHolds(c ledger.Condition, exists bool, row *ledgerItem) bool {
	if c.Absent && exists {
		return false
	}
	if c.Exists && !exists {
		return false
	}
	if c.MinBalance != nil {
		if !exists || row.Balance == nil || *row.Balance < *c.MinBalance {
			return false
		}
	}
	if c.Currency != "" {
		if !exists || row.Currency == nil || *row.Currency != c.Currency {
			return false
		}
	}
	return true
}

func toRow(key ledger.Key, item ledger.Item) ledgerItem {
	row := ledgerItem{PK: key.PK, SK: key.SK}
	applyAttributes(&row, item)
	return row
}

func applyAttributes(row *ledgerItem, item ledger.Item) {
	for attr, v := range item {
		switch attr {
		case ledger.AttrBalance:
			row.Balance = int64Ptr(v)
		case ledger.AttrCurrency:
			row.Currency = stringPtr(v)
		case ledger.AttrTxID:
			row.TxID = stringPtr(v)
		case ledger.AttrType:
			row.EntryType = stringPtr(v)
		case ledger.AttrAmount:
			row.Amount = int64Ptr(v)
		case ledger.AttrCounterparty:
			row.Counterparty = stringPtr(v)
		case ledger.AttrSenderID:
			row.SenderID = stringPtr(v)
		case ledger.AttrTTL:
			row.TTL = int64Ptr(v)
		case ledger.AttrCreatedAt:
			row.CreatedAt = stringPtr(v)
		case ledger.AttrUpdatedAt:
			row.UpdatedAt = stringPtr(v)
		}
	}
}

func fromRow(row ledgerItem) ledger.Item {
	item := ledger.Item{}
	setInt64 := func(attr string, v *int64) {
		if v != nil {
			item[attr] = *v
		}
	}
	setString := func(attr string, v *string) {
		if v != nil {
			item[attr] = *v
		}
	}
	setInt64(ledger.AttrBalance, row.Balance)
	setString(ledger.AttrCurrency, row.Currency)
	setString(ledger.AttrTxID, row.TxID)
	setString(ledger.AttrType, row.EntryType)
	setInt64(ledger.AttrAmount, row.Amount)
	setString(ledger.AttrCounterparty, row.Counterparty)
	setString(ledger.AttrSenderID, row.SenderID)
	setInt64(ledger.AttrTTL, row.TTL)
	setString(ledger.AttrCreatedAt, row.CreatedAt)
	setString(ledger.AttrUpdatedAt, row.UpdatedAt)
	return item
}

func int64Ptr(v any) *int64 {
	switch n := v.(type) {
	case int64:
		return &n
	case int:
		i := int64(n)
		return &i
	case float64:
		i := int64(n)
		return &i
	default:
		return nil
	}
}

func stringPtr(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}
