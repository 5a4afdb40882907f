package match

import "sync"

// OrderRepository persists resting and terminal orders. The engine calls it
// synchronously, so implementations either write before returning or copy.
type OrderRepository interface {
	SaveOrder(*Order) error
}

// TradeRepository persists executions. Every generated trade is saved before
// ProcessOrder returns it.
type TradeRepository interface {
	SaveTrade(*Trade) error
}

// MemoryOrderRepository stores orders in memory, useful for testing.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	Orders []*Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{Orders: make([]*Order, 0)}
}

func (m *MemoryOrderRepository) SaveOrder(order *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := *order
	cpy.next, cpy.prev = nil, nil
	m.Orders = append(m.Orders, &cpy)
	return nil
}

func (m *MemoryOrderRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Orders)
}

// MemoryTradeRepository stores trades in memory, useful for testing.
type MemoryTradeRepository struct {
	mu     sync.RWMutex
	Trades []*Trade
}

func NewMemoryTradeRepository() *MemoryTradeRepository {
	return &MemoryTradeRepository{Trades: make([]*Trade, 0)}
}

func (m *MemoryTradeRepository) SaveTrade(trade *Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Trades = append(m.Trades, trade)
	return nil
}

func (m *MemoryTradeRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Trades)
}

func (m *MemoryTradeRepository) Get(index int) *Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Trades[index]
}

// DiscardRepository drops everything, useful for benchmarking.
type DiscardRepository struct{}

func NewDiscardRepository() *DiscardRepository { return &DiscardRepository{} }

func (DiscardRepository) SaveOrder(*Order) error { return nil }
func (DiscardRepository) SaveTrade(*Trade) error { return nil }
