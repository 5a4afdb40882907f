package session

import "boexchange/boe"

// EventListener receives session lifecycle callbacks. Embed NopListener and
// override only what you need.
type EventListener interface {
	OnConnected(connID string)
	OnDisconnected(connID string)
	OnLoginSuccess(username string)
	OnLoginFailed(reason string)
	OnLogoutCompleted()
	OnStateChanged(oldState, newState State)
	OnError(err error)
	OnReconnecting(attempt int)
}

// NopListener implements EventListener with empty methods.
type NopListener struct{}

func (NopListener) OnConnected(string)           {}
func (NopListener) OnDisconnected(string)        {}
func (NopListener) OnLoginSuccess(string)        {}
func (NopListener) OnLoginFailed(string)         {}
func (NopListener) OnLogoutCompleted()           {}
func (NopListener) OnStateChanged(State, State)  {}
func (NopListener) OnError(error)                {}
func (NopListener) OnReconnecting(int)           {}

// TradingListener receives order lifecycle messages on the client side.
type TradingListener interface {
	OnOrderAck(*boe.OrderAck)
	OnOrderExecuted(*boe.OrderExecuted)
	OnOrderRejected(*boe.OrderRejected)
	OnOrderCancelled(*boe.OrderCancelled)
}

// NopTradingListener implements TradingListener with empty methods.
type NopTradingListener struct{}

func (NopTradingListener) OnOrderAck(*boe.OrderAck)             {}
func (NopTradingListener) OnOrderExecuted(*boe.OrderExecuted)   {}
func (NopTradingListener) OnOrderRejected(*boe.OrderRejected)   {}
func (NopTradingListener) OnOrderCancelled(*boe.OrderCancelled) {}

// TimeoutListener is notified exactly once when a heartbeat timeout fires.
type TimeoutListener interface {
	OnHeartbeatTimeout(connID string)
}

// TimeoutFunc adapts a function to the TimeoutListener interface.
type TimeoutFunc func(connID string)

func (f TimeoutFunc) OnHeartbeatTimeout(connID string) { f(connID) }
