package match

import (
	"fmt"
	"sync"
)

// Engine owns the set of order books and routes accepted orders into them.
// It is the one structure shared across every connection; per-book locking
// keeps distinct symbols fully parallel.
type Engine struct {
	books  sync.Map // symbol -> *OrderBook
	orders OrderRepository
	trades TradeRepository
}

// NewEngine creates a matching engine backed by the given repositories.
func NewEngine(orders OrderRepository, trades TradeRepository) *Engine {
	return &Engine{
		orders: orders,
		trades: trades,
	}
}

// ProcessOrder applies an accepted order to its symbol's book and returns the
// generated trades. The order must already be in the LIVE lifecycle state; a
// violation aborts processing without touching the book.
func (engine *Engine) ProcessOrder(order *Order) ([]*Trade, error) {
	if order == nil || len(order.Symbol) == 0 || len(order.OrderID) == 0 {
		return nil, ErrInvalidParam
	}
	if !order.Price.IsPositive() || !order.Remaining.IsPositive() {
		return nil, ErrInvalidParam
	}
	if order.State != StateLive {
		return nil, fmt.Errorf("%w: order %s is %s", ErrNotLive, order.OrderID, order.State)
	}

	book := engine.book(order.Symbol)
	trades, makers := book.process(order)

	// Trades are persisted before they are returned; a failed save is
	// surfaced but the book mutation already happened and stays consistent.
	for _, trade := range trades {
		if err := engine.trades.SaveTrade(trade); err != nil {
			return trades, fmt.Errorf("save trade %s: %w", trade.ID, err)
		}
	}
	for _, maker := range makers {
		if err := engine.orders.SaveOrder(maker); err != nil {
			return trades, fmt.Errorf("save maker order %s: %w", maker.OrderID, err)
		}
	}
	if err := engine.orders.SaveOrder(order); err != nil {
		return trades, fmt.Errorf("save order %s: %w", order.OrderID, err)
	}

	logger.Debug("order processed",
		"order_id", order.OrderID,
		"symbol", order.Symbol,
		"state", order.State.String(),
		"trades", len(trades))

	return trades, nil
}

// CancelOrder removes a resting order from its book. Returns ErrNotFound if
// the order does not rest there.
func (engine *Engine) CancelOrder(symbol, orderID string) (*Order, error) {
	if len(symbol) == 0 || len(orderID) == 0 {
		return nil, ErrInvalidParam
	}

	book, ok := engine.lookup(symbol)
	if !ok {
		return nil, ErrNotFound
	}

	order, ok := book.cancel(orderID)
	if !ok {
		return nil, ErrNotFound
	}

	if err := engine.orders.SaveOrder(order); err != nil {
		return order, fmt.Errorf("save cancelled order %s: %w", orderID, err)
	}
	return order, nil
}

// OrderBook returns the book for the symbol if one exists.
func (engine *Engine) OrderBook(symbol string) (*OrderBook, bool) {
	return engine.lookup(symbol)
}

// Size reports the total resting-order count across all books.
func (engine *Engine) Size() int64 {
	var total int64
	engine.books.Range(func(_, value any) bool {
		book, _ := value.(*OrderBook)
		total += book.Size()
		return true
	})
	return total
}

// Symbols returns the symbols that currently have a book.
func (engine *Engine) Symbols() []string {
	var symbols []string
	engine.books.Range(func(key, _ any) bool {
		symbol, _ := key.(string)
		symbols = append(symbols, symbol)
		return true
	})
	return symbols
}

// book returns the symbol's book, creating it on first use.
func (engine *Engine) book(symbol string) *OrderBook {
	value, found := engine.books.Load(symbol)
	if !found {
		value, _ = engine.books.LoadOrStore(symbol, NewOrderBook(symbol))
	}

	book, _ := value.(*OrderBook)
	return book
}

func (engine *Engine) lookup(symbol string) (*OrderBook, bool) {
	value, found := engine.books.Load(symbol)
	if !found {
		return nil, false
	}
	book, _ := value.(*OrderBook)
	return book, true
}
