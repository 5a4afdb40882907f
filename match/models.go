package match

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the order side.
type Side int8

const (
	Buy  Side = 1
	Sell Side = 2
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType represents the type of order.
type OrderType string

const (
	Limit OrderType = "limit"
)

// OrderState is the order lifecycle. Quantity only ever decreases; a terminal
// state is never left.
type OrderState uint8

const (
	StateNew OrderState = iota
	StateLive
	StatePartiallyFilled
	StateFilled
	StateCancelled
	StateRejected
)

func (s OrderState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateLive:
		return "live"
	case StatePartiallyFilled:
		return "partially_filled"
	case StateFilled:
		return "filled"
	case StateCancelled:
		return "cancelled"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state admits no further transitions.
func (s OrderState) Terminal() bool {
	return s == StateFilled || s == StateCancelled || s == StateRejected
}

// Order is a resting or incoming order. While resting it is owned by its
// book's side; once terminal it belongs to the order repository.
type Order struct {
	OrderID   string          `json:"order_id"`
	ClOrdID   string          `json:"cl_ord_id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Type      OrderType       `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Qty       decimal.Decimal `json:"qty"`
	Remaining decimal.Decimal `json:"remaining"`
	Username  string          `json:"username"`
	State     OrderState      `json:"state"`
	Timestamp int64           `json:"timestamp"` // Unix nano, arrival time

	// Intrusive linked list pointers (ignored by JSON)
	next *Order
	prev *Order
}

// Trade is an immutable execution record. Created only by the engine, priced
// at the resting order.
type Trade struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	BuyOrderID  string          `json:"buy_order_id"`
	SellOrderID string          `json:"sell_order_id"`
	BuyUser     string          `json:"buy_user"`
	SellUser    string          `json:"sell_user"`
	BuyLeaves   decimal.Decimal `json:"buy_leaves"`
	SellLeaves  decimal.Decimal `json:"sell_leaves"`
	Price       decimal.Decimal `json:"price"`
	Qty         decimal.Decimal `json:"qty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// DepthItem is one aggregated price level of a book snapshot.
type DepthItem struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
	Count int64           `json:"count"`
}

// Depth is a point-in-time view of the book's aggregated levels.
type Depth struct {
	Symbol string       `json:"symbol"`
	Bids   []*DepthItem `json:"bids"`
	Asks   []*DepthItem `json:"asks"`
}
