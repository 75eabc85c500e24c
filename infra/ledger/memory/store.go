// Package memory provides an in-memory ledger.Store for tests and local
// development.
//
// A single mutex serializes every commit, which trivially satisfies the
// serializable-isolation requirement of the store contract.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/p2pwallet/wallet/pkg/ledger"
)

// Store is a mutex-serialized in-memory ledger store.
type Store struct {
	mu    sync.Mutex
	items map[ledger.Key]ledger.Item
}

// New creates an empty Store.
func New() *Store {
	return &Store{items: make(map[ledger.Key]ledger.Item)}
}

// Get returns a copy of the item at key, or (nil, nil) when absent.
func (s *Store) Get(_ context.Context, key ledger.Key) (ledger.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	return cloneItem(item), nil
}

// Query returns copies of all items in partition pk whose sort key starts
// with skPrefix, ascending by sort key.
func (s *Store) Query(_ context.Context, pk, skPrefix string) ([]ledger.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type row struct {
		sk   string
		item ledger.Item
	}
	var rows []row
	for key, item := range s.items {
		if key.PK == pk && strings.HasPrefix(key.SK, skPrefix) {
			rows = append(rows, row{sk: key.SK, item: cloneItem(item)})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].sk < rows[j].sk })
	items := make([]ledger.Item, len(rows))
	for i, r := range rows {
		items[i] = r.item
	}
	return items, nil
}

// AtomicCommit checks every precondition under the lock, then applies all
// writes or none.
func (s *Store) AtomicCommit(_ context.Context, writes []ledger.ConditionalWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	failed := make([]bool, len(writes))
	anyFailed := false
	for i, w := range writes {
		item, exists := s.items[w.Key]
		if !conditionHolds(w.Condition, exists, item) {
			failed[i] = true
			anyFailed = true
		}
	}
	if anyFailed {
		return &ledger.ConditionFailedError{Failed: failed}
	}

	for _, w := range writes {
		switch w.Kind {
		case ledger.WritePut:
			s.items[w.Key] = cloneItem(w.Item)
		case ledger.WriteUpdate:
			item, ok := s.items[w.Key]
			if !ok {
				item = ledger.Item{}
			}
			item[ledger.AttrBalance] = itemInt64(item, ledger.AttrBalance) + w.Add
			for attr, v := range w.Item {
				item[attr] = v
			}
			s.items[w.Key] = item
		}
	}
	return nil
}

// Len reports the number of stored items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func conditionHolds(c ledger.Condition, exists bool, item ledger.Item) bool {
	if c.Absent && exists {
		return false
	}
	if c.Exists && !exists {
		return false
	}
	if c.MinBalance != nil {
		if !exists || itemInt64(item, ledger.AttrBalance) < *c.MinBalance {
			return false
		}
	}
	if c.Currency != "" {
		if !exists {
			return false
		}
		stored, _ := item[ledger.AttrCurrency].(string)
		if stored != c.Currency {
			return false
		}
	}
	return true
}

func cloneItem(item ledger.Item) ledger.Item {
	clone := make(ledger.Item, len(item))
	for k, v := range item {
		clone[k] = v
	}
	return clone
}

func itemInt64(item ledger.Item, attr string) int64 {
	switch v := item[attr].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
