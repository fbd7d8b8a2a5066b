package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/betbot/goclob/internal/domain"
	"github.com/betbot/goclob/pkg/orderbook"
)

// Store is the durable keyed record store for Market / OrderBook /
// UserStats records, backed by Badger. Records are JSON-encoded; one
// Commit call writes all records touched by an operation in a single
// Badger transaction, which gives the engine its all-or-nothing
// per-operation persistence boundary.
type Store struct {
	db *badger.DB
}

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: record not found")

type OpenOptions struct {
	Path     string
	InMemory bool // tests run fully in memory
}

func Open(opts OpenOptions) (*Store, error) {
	if !opts.InMemory && strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("store: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithInMemory(opts.InMemory)
	if opts.InMemory {
		bopts = bopts.WithDir("").WithValueDir("")
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func marketKey(id uint32) []byte        { return []byte(fmt.Sprintf("market:%d", id)) }
func bookKey(id uint32) []byte          { return []byte(fmt.Sprintf("book:%d", id)) }
func statsKey(id uint32, user string) []byte {
	return []byte(fmt.Sprintf("stats:%d:%s", id, user))
}

func (s *Store) get(key []byte, out any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

// GetMarket loads a market record.
func (s *Store) GetMarket(id uint32) (*domain.Market, error) {
	var m domain.Market
	if err := s.get(marketKey(id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetBook loads an order book and restores its canonical ordering.
func (s *Store) GetBook(id uint32) (*orderbook.Book, error) {
	var b orderbook.Book
	if err := s.get(bookKey(id), &b); err != nil {
		return nil, err
	}
	b.Normalize()
	return &b, nil
}

// GetStats loads a (user, market) stats record; ErrNotFound when the
// user has never interacted with the market.
func (s *Store) GetStats(marketID uint32, user string) (*domain.UserStats, error) {
	var u domain.UserStats
	if err := s.get(statsKey(marketID, user), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListMarkets returns all market records.
func (s *Store) ListMarkets() ([]*domain.Market, error) {
	var out []*domain.Market
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("market:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m domain.Market
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			out = append(out, &m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Commit writes every non-nil record in one Badger transaction.
func (s *Store) Commit(m *domain.Market, b *orderbook.Book, stats ...*domain.UserStats) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if m != nil {
			if err := setJSON(txn, marketKey(m.ID), m); err != nil {
				return err
			}
		}
		if b != nil {
			if err := setJSON(txn, bookKey(b.MarketID), b); err != nil {
				return err
			}
		}
		for _, u := range stats {
			if u == nil {
				continue
			}
			if err := setJSON(txn, statsKey(u.MarketID, u.User), u); err != nil {
				return err
			}
		}
		return nil
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, raw)
}
