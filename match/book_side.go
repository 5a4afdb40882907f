package match

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// priceLevel groups the resting orders at one price in strict arrival order.
type priceLevel struct {
	totalSize decimal.Decimal
	head      *Order
	tail      *Order
	count     int64
}

// bookSide holds one side of a book: a skiplist of price levels keyed by
// price (best price first) plus index maps for O(1) lookup by price and by
// order ID. Not safe for concurrent use; the owning OrderBook serializes
// access.
type bookSide struct {
	side        Side
	totalOrders int64
	depths      int64
	levelList   *skiplist.SkipList
	levels      map[string]*skiplist.Element // price.String() -> element
	orders      map[string]*Order
}

// newBidSide creates the buy side, sorted by price descending.
func newBidSide() *bookSide {
	return &bookSide{
		side: Buy,
		levelList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d2.Cmp(d1)
		})),
		levels: make(map[string]*skiplist.Element),
		orders: make(map[string]*Order),
	}
}

// newAskSide creates the sell side, sorted by price ascending.
func newAskSide() *bookSide {
	return &bookSide{
		side: Sell,
		levelList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d1.Cmp(d2)
		})),
		levels: make(map[string]*skiplist.Element),
		orders: make(map[string]*Order),
	}
}

// order finds a resting order by its exchange ID.
func (s *bookSide) order(id string) *Order {
	return s.orders[id]
}

// insertOrder places an order at its price level. isFront restores a
// partially filled head order without losing its time priority.
func (s *bookSide) insertOrder(order *Order, isFront bool) {
	key := order.Price.String()
	el, ok := s.levels[key]
	if ok {
		level, _ := el.Value.(*priceLevel)
		if isFront {
			order.next = level.head
			order.prev = nil
			if level.head != nil {
				level.head.prev = order
			}
			level.head = order
			if level.tail == nil {
				level.tail = order
			}
		} else {
			order.prev = level.tail
			order.next = nil
			if level.tail != nil {
				level.tail.next = order
			}
			level.tail = order
			if level.head == nil {
				level.head = order
			}
		}

		level.totalSize = level.totalSize.Add(order.Remaining)
		level.count++
		s.orders[order.OrderID] = order
		s.totalOrders++
	} else {
		level := &priceLevel{
			head:      order,
			tail:      order,
			totalSize: order.Remaining,
			count:     1,
		}
		order.next = nil
		order.prev = nil

		s.orders[order.OrderID] = order

		el := s.levelList.Set(order.Price, level)
		s.levels[key] = el

		s.totalOrders++
		s.depths++
	}
}

// removeOrder unlinks an order from its price level and drops the level once
// empty.
func (s *bookSide) removeOrder(price decimal.Decimal, id string) {
	key := price.String()
	el, ok := s.levels[key]
	if !ok {
		return
	}
	level, _ := el.Value.(*priceLevel)

	order, ok := s.orders[id]
	if !ok {
		return
	}

	if order.prev != nil {
		order.prev.next = order.next
	} else {
		level.head = order.next
	}

	if order.next != nil {
		order.next.prev = order.prev
	} else {
		level.tail = order.prev
	}

	order.next = nil
	order.prev = nil

	level.totalSize = level.totalSize.Sub(order.Remaining)
	level.count--
	delete(s.orders, id)
	s.totalOrders--

	if level.count == 0 {
		s.levelList.RemoveElement(el)
		delete(s.levels, key)
		s.depths--
	}
}

// reduceOrder shrinks a resting order's remaining size in place, keeping its
// time priority.
func (s *bookSide) reduceOrder(id string, newRemaining decimal.Decimal) {
	order, ok := s.orders[id]
	if !ok {
		return
	}

	el, ok := s.levels[order.Price.String()]
	if ok {
		level, _ := el.Value.(*priceLevel)
		diff := order.Remaining.Sub(newRemaining)
		level.totalSize = level.totalSize.Sub(diff)
		order.Remaining = newRemaining
	}
}

// peekHead returns the order with the best price and earliest arrival without
// removing it.
func (s *bookSide) peekHead() *Order {
	el := s.levelList.Front()
	if el == nil {
		return nil
	}

	level, _ := el.Value.(*priceLevel)
	return level.head
}

// popHead removes and returns the order at the front of the side.
func (s *bookSide) popHead() *Order {
	ord := s.peekHead()
	if ord != nil {
		s.removeOrder(ord.Price, ord.OrderID)
	}
	return ord
}

func (s *bookSide) orderCount() int64 {
	return s.totalOrders
}

func (s *bookSide) depthCount() int64 {
	return s.depths
}

// depth returns the aggregated levels up to limit, best price first.
func (s *bookSide) depth(limit uint32) []*DepthItem {
	result := make([]*DepthItem, 0, limit)

	el := s.levelList.Front()
	var i uint32
	for i < limit && el != nil {
		level, _ := el.Value.(*priceLevel)
		result = append(result, &DepthItem{
			Price: level.head.Price,
			Size:  level.totalSize,
			Count: level.count,
		})
		el = el.Next()
		i++
	}

	return result
}
