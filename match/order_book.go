package match

import (
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"
)

// OrderBook holds the resting orders for one symbol. All mutation goes
// through the book's mutex, so different symbols match fully in parallel
// while a single book is serialized.
type OrderBook struct {
	symbol string
	mu     sync.Mutex
	bids   *bookSide
	asks   *bookSide
}

// NewOrderBook creates an empty book for the symbol.
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   newBidSide(),
		asks:   newAskSide(),
	}
}

// Symbol returns the traded symbol this book is responsible for.
func (book *OrderBook) Symbol() string {
	return book.symbol
}

// process matches the incoming order against the opposite side and rests any
// remainder. It returns the generated trades plus every resting order whose
// state changed, so the caller can persist and notify. The incoming order
// must be LIVE; the engine enforces that before calling.
func (book *OrderBook) process(order *Order) ([]*Trade, []*Order) {
	book.mu.Lock()
	defer book.mu.Unlock()

	var mySide, targetSide *bookSide
	if order.Side == Buy {
		mySide = book.bids
		targetSide = book.asks
	} else {
		mySide = book.asks
		targetSide = book.bids
	}

	var trades []*Trade
	var makers []*Order
	now := time.Now().UTC()

	for order.Remaining.IsPositive() {
		resting := targetSide.peekHead()
		if resting == nil {
			break
		}

		// The cross test: bid price must reach the ask price.
		if order.Side == Buy && order.Price.LessThan(resting.Price) ||
			order.Side == Sell && order.Price.GreaterThan(resting.Price) {
			break
		}

		qty := order.Remaining
		if resting.Remaining.LessThan(qty) {
			qty = resting.Remaining
		}

		// Price-time priority: the resting order sets the trade price.
		trade := &Trade{
			ID:        xid.New().String(),
			Symbol:    book.symbol,
			Price:     resting.Price,
			Qty:       qty,
			CreatedAt: now,
		}
		if order.Side == Buy {
			trade.BuyOrderID = order.OrderID
			trade.BuyUser = order.Username
			trade.SellOrderID = resting.OrderID
			trade.SellUser = resting.Username
		} else {
			trade.BuyOrderID = resting.OrderID
			trade.BuyUser = resting.Username
			trade.SellOrderID = order.OrderID
			trade.SellUser = order.Username
		}

		order.Remaining = order.Remaining.Sub(qty)

		if resting.Remaining.Equal(qty) {
			targetSide.popHead()
			resting.Remaining = decimal.Zero
			resting.State = StateFilled
		} else {
			targetSide.reduceOrder(resting.OrderID, resting.Remaining.Sub(qty))
			resting.State = StatePartiallyFilled
		}

		if order.Side == Buy {
			trade.BuyLeaves = order.Remaining
			trade.SellLeaves = resting.Remaining
		} else {
			trade.BuyLeaves = resting.Remaining
			trade.SellLeaves = order.Remaining
		}

		trades = append(trades, trade)
		makers = append(makers, resting)
	}

	if order.Remaining.IsPositive() {
		if len(trades) > 0 {
			order.State = StatePartiallyFilled
		}
		mySide.insertOrder(order, false)
	} else {
		order.State = StateFilled
	}

	return trades, makers
}

// cancel removes a resting order from either side.
func (book *OrderBook) cancel(orderID string) (*Order, bool) {
	book.mu.Lock()
	defer book.mu.Unlock()

	for _, side := range []*bookSide{book.asks, book.bids} {
		if order := side.order(orderID); order != nil {
			side.removeOrder(order.Price, orderID)
			order.State = StateCancelled
			return order, true
		}
	}
	return nil, false
}

// Depth returns the aggregated levels of both sides up to limit per side.
func (book *OrderBook) Depth(limit uint32) *Depth {
	book.mu.Lock()
	defer book.mu.Unlock()

	return &Depth{
		Symbol: book.symbol,
		Bids:   book.bids.depth(limit),
		Asks:   book.asks.depth(limit),
	}
}

// Size reports the number of resting orders on both sides.
func (book *OrderBook) Size() int64 {
	book.mu.Lock()
	defer book.mu.Unlock()
	return book.bids.orderCount() + book.asks.orderCount()
}

// BestBid returns the highest resting bid price, if any.
func (book *OrderBook) BestBid() (decimal.Decimal, bool) {
	book.mu.Lock()
	defer book.mu.Unlock()
	if ord := book.bids.peekHead(); ord != nil {
		return ord.Price, true
	}
	return decimal.Zero, false
}

// BestAsk returns the lowest resting ask price, if any.
func (book *OrderBook) BestAsk() (decimal.Decimal, bool) {
	book.mu.Lock()
	defer book.mu.Unlock()
	if ord := book.asks.peekHead(); ord != nil {
		return ord.Price, true
	}
	return decimal.Zero, false
}
