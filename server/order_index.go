package server

import "sync"

// orderRef maps an exchange order ID back to what a cancel request needs:
// the symbol that owns the book, the client's own ID and the owner.
type orderRef struct {
	symbol   string
	clOrdID  string
	username string
}

// orderIndex tracks open orders across all connections so cancels can be
// routed by exchange order ID alone. Entries are dropped when an order
// reaches a terminal state.
type orderIndex struct {
	mu   sync.RWMutex
	refs map[string]orderRef
}

func newOrderIndex() *orderIndex {
	return &orderIndex{refs: make(map[string]orderRef)}
}

func (idx *orderIndex) add(orderID string, ref orderRef) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.refs[orderID] = ref
}

func (idx *orderIndex) remove(orderID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.refs, orderID)
}

func (idx *orderIndex) lookup(orderID string) (orderRef, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ref, ok := idx.refs[orderID]
	return ref, ok
}
