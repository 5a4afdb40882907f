package server

import "sync"

// ErrorClassifier accumulates per-connection error severity and advises the
// connection handler on continue-vs-terminate.
type ErrorClassifier interface {
	HandleError(connID, context string, err error)
	ShouldTerminateConnection(connID string) bool
	Remove(connID string)
}

// ThresholdClassifier counts errors per connection and recommends
// termination once the count crosses the threshold.
type ThresholdClassifier struct {
	mu        sync.Mutex
	counts    map[string]int
	threshold int
}

// NewThresholdClassifier creates a classifier that tolerates up to
// threshold-1 errors per connection.
func NewThresholdClassifier(threshold int) *ThresholdClassifier {
	return &ThresholdClassifier{
		counts:    make(map[string]int),
		threshold: threshold,
	}
}

func (c *ThresholdClassifier) HandleError(connID, context string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[connID]++

	logger.Warn("connection error",
		"conn_id", connID,
		"context", context,
		"count", c.counts[connID],
		"error", err)
}

func (c *ThresholdClassifier) ShouldTerminateConnection(connID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[connID] >= c.threshold
}

func (c *ThresholdClassifier) Remove(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, connID)
}
