package server

import "sync"

// registry tracks authenticated connections by username so executions can be
// routed to the resting order's owner.
type registry struct {
	mu    sync.RWMutex
	conns map[string]*conn
}

func newRegistry() *registry {
	return &registry{conns: make(map[string]*conn)}
}

func (r *registry) add(username string, c *conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[username] = c
}

// remove drops the username's entry only if it still points at c, so a
// replacement session is never evicted by the old connection's teardown.
func (r *registry) remove(username string, c *conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[username] == c {
		delete(r.conns, username)
	}
}

func (r *registry) lookup(username string) (*conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[username]
	return c, ok
}
