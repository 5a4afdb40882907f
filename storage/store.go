// Package storage persists orders and trades in an embedded pebble database
// so the exchange survives a restart with its audit trail intact.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"boexchange/match"
)

var ErrNotFound = errors.New("record not found")

const (
	orderPrefix = "order/"
	tradePrefix = "trade/"
)

// Store wraps a single pebble database shared by the order and trade
// repositories.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the database under dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // writes must survive a crash
	})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Orders returns a repository view satisfying match.OrderRepository.
func (s *Store) Orders() *OrderRepository {
	return &OrderRepository{db: s.db}
}

// Trades returns a repository view satisfying match.TradeRepository.
func (s *Store) Trades() *TradeRepository {
	return &TradeRepository{db: s.db}
}

// OrderRepository stores every order state transition keyed by order ID, so
// the latest write wins and reflects the order's final state.
type OrderRepository struct {
	db *pebble.DB
}

func (r *OrderRepository) SaveOrder(order *match.Order) error {
	if order == nil || order.OrderID == "" {
		return errors.New("order must have an ID")
	}
	val, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return r.db.Set(orderKey(order.OrderID), val, pebble.Sync)
}

func (r *OrderRepository) GetOrder(orderID string) (*match.Order, error) {
	val, closer, err := r.db.Get(orderKey(orderID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()

	var order match.Order
	if err := json.Unmarshal(val, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ScanOrders visits every stored order. Returning an error from fn stops the
// scan.
func (r *OrderRepository) ScanOrders(fn func(*match.Order) error) error {
	return scan(r.db, orderPrefix, func(val []byte) error {
		var order match.Order
		if err := json.Unmarshal(val, &order); err != nil {
			return err
		}
		return fn(&order)
	})
}

// TradeRepository stores trades keyed by trade ID. Trades are immutable so a
// key is only ever written once.
type TradeRepository struct {
	db *pebble.DB
}

func (r *TradeRepository) SaveTrade(trade *match.Trade) error {
	if trade == nil || trade.ID == "" {
		return errors.New("trade must have an ID")
	}
	val, err := json.Marshal(trade)
	if err != nil {
		return err
	}
	return r.db.Set(tradeKey(trade.ID), val, pebble.Sync)
}

func (r *TradeRepository) GetTrade(tradeID string) (*match.Trade, error) {
	val, closer, err := r.db.Get(tradeKey(tradeID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()

	var trade match.Trade
	if err := json.Unmarshal(val, &trade); err != nil {
		return nil, err
	}
	return &trade, nil
}

func (r *TradeRepository) ScanTrades(fn func(*match.Trade) error) error {
	return scan(r.db, tradePrefix, func(val []byte) error {
		var trade match.Trade
		if err := json.Unmarshal(val, &trade); err != nil {
			return err
		}
		return fn(&trade)
	})
}

func scan(db *pebble.DB, prefix string, fn func(val []byte) error) error {
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: []byte(prefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func orderKey(id string) []byte {
	return []byte(orderPrefix + id)
}

func tradeKey(id string) []byte {
	return []byte(tradePrefix + id)
}
