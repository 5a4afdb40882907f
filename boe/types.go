package boe

// MessageType identifies the payload carried by a frame. It is always the
// first payload byte.
type MessageType uint8

const (
	MsgUnknown         MessageType = 0x00
	MsgLogin           MessageType = 0x01
	MsgLoginResponse   MessageType = 0x02
	MsgLogout          MessageType = 0x03
	MsgClientHeartbeat MessageType = 0x04
	MsgServerHeartbeat MessageType = 0x05
	MsgNewOrder        MessageType = 0x06
	MsgOrderAck        MessageType = 0x07
	MsgOrderExecuted   MessageType = 0x08
	MsgOrderRejected   MessageType = 0x09
	MsgOrderCancelled  MessageType = 0x0A
	MsgCancelOrder     MessageType = 0x0B
)

func (t MessageType) String() string {
	switch t {
	case MsgLogin:
		return "login"
	case MsgLoginResponse:
		return "login_response"
	case MsgLogout:
		return "logout"
	case MsgClientHeartbeat:
		return "client_heartbeat"
	case MsgServerHeartbeat:
		return "server_heartbeat"
	case MsgNewOrder:
		return "new_order"
	case MsgOrderAck:
		return "order_ack"
	case MsgOrderExecuted:
		return "order_executed"
	case MsgOrderRejected:
		return "order_rejected"
	case MsgOrderCancelled:
		return "order_cancelled"
	case MsgCancelOrder:
		return "cancel_order"
	default:
		return "unknown"
	}
}

// Side represents the order side (Buy/Sell).
type Side uint8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

// OrderType represents the type of order. Only limit orders are part of the
// catalogue in scope.
type OrderType uint8

const (
	OrderTypeLimit OrderType = 1
)

// LoginStatus is the single status byte carried by a LoginResponse.
type LoginStatus byte

const (
	LoginAccepted     LoginStatus = 'A'
	LoginRejected     LoginStatus = 'R'
	LoginSessionInUse LoginStatus = 'S'
)

// CancelReason is the reason byte carried by an OrderCancelled message.
type CancelReason byte

const (
	CancelRequested   CancelReason = 'U' // user requested
	CancelNotFound    CancelReason = 'N' // order unknown to the book
	CancelUnsolicited CancelReason = 'X' // exchange initiated
)
