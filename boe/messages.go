package boe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Fixed field widths. Text fields are ASCII, NUL-padded on the right.
const (
	usernameLen = 16
	passwordLen = 16
	clOrdIDLen  = 20
	orderIDLen  = 20
	symbolLen   = 8
	reasonLen   = 48
)

// priceScale is the number of implied decimal places in a wire price.
const priceScale = 4

var (
	ErrShortMessage   = errors.New("message body is too short")
	ErrUnknownMessage = errors.New("unknown message type")
	ErrFieldOverflow  = errors.New("field value does not fit its wire width")
)

// Message is a typed BOE payload. Implementations round-trip exactly through
// MarshalBinary/UnmarshalBinary.
type Message interface {
	Type() MessageType
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// PriceToRaw converts a decimal price to its wire representation with
// priceScale implied decimal places.
func PriceToRaw(p decimal.Decimal) int64 {
	return p.Shift(priceScale).IntPart()
}

// PriceFromRaw converts a wire price back to a decimal.
func PriceFromRaw(raw int64) decimal.Decimal {
	return decimal.New(raw, -priceScale)
}

func putPadded(dst []byte, s string) error {
	if len(s) > len(dst) {
		return fmt.Errorf("%w: %q in %d bytes", ErrFieldOverflow, s, len(dst))
	}
	copy(dst, s)
	for i := len(s); i < len(dst); i++ {
		dst[i] = 0
	}
	return nil
}

func trimPadded(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		return string(src[:i])
	}
	return string(src)
}

// Decode parses a payload into its typed message. The first byte selects the
// concrete type.
func Decode(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return nil, ErrShortMessage
	}

	var msg Message
	switch MessageType(payload[0]) {
	case MsgLogin:
		msg = &Login{}
	case MsgLoginResponse:
		msg = &LoginResponse{}
	case MsgLogout:
		msg = &Logout{}
	case MsgClientHeartbeat:
		msg = &ClientHeartbeat{}
	case MsgServerHeartbeat:
		msg = &ServerHeartbeat{}
	case MsgNewOrder:
		msg = &NewOrder{}
	case MsgOrderAck:
		msg = &OrderAck{}
	case MsgOrderExecuted:
		msg = &OrderExecuted{}
	case MsgOrderRejected:
		msg = &OrderRejected{}
	case MsgOrderCancelled:
		msg = &OrderCancelled{}
	case MsgCancelOrder:
		msg = &CancelOrder{}
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownMessage, payload[0])
	}

	if err := msg.UnmarshalBinary(payload); err != nil {
		return nil, err
	}
	return msg, nil
}

func checkBody(payload []byte, t MessageType, size int) error {
	if len(payload) != size {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortMessage, t, size, len(payload))
	}
	if MessageType(payload[0]) != t {
		return fmt.Errorf("%w: expected %s, got 0x%02X", ErrUnknownMessage, t, payload[0])
	}
	return nil
}

// Login starts a session. MatchingUnit names the book group the client wants
// to trade on.
type Login struct {
	Username     string
	Password     string
	MatchingUnit uint8
}

func (m *Login) Type() MessageType { return MsgLogin }

func (m *Login) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 1+usernameLen+passwordLen+1)
	buf[0] = byte(MsgLogin)
	if err := putPadded(buf[1:1+usernameLen], m.Username); err != nil {
		return nil, err
	}
	if err := putPadded(buf[1+usernameLen:1+usernameLen+passwordLen], m.Password); err != nil {
		return nil, err
	}
	buf[1+usernameLen+passwordLen] = m.MatchingUnit
	return buf, nil
}

func (m *Login) UnmarshalBinary(data []byte) error {
	if err := checkBody(data, MsgLogin, 1+usernameLen+passwordLen+1); err != nil {
		return err
	}
	m.Username = trimPadded(data[1 : 1+usernameLen])
	m.Password = trimPadded(data[1+usernameLen : 1+usernameLen+passwordLen])
	m.MatchingUnit = data[1+usernameLen+passwordLen]
	return nil
}

// LoginResponse reports the outcome of a Login. Status is exactly one of
// LoginAccepted, LoginRejected, LoginSessionInUse.
type LoginResponse struct {
	Status LoginStatus
	Reason string
}

func (m *LoginResponse) Type() MessageType { return MsgLoginResponse }

func (m *LoginResponse) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 1+1+reasonLen)
	buf[0] = byte(MsgLoginResponse)
	buf[1] = byte(m.Status)
	if err := putPadded(buf[2:], m.Reason); err != nil {
		return nil, err
	}
	return buf, nil
}

func (m *LoginResponse) UnmarshalBinary(data []byte) error {
	if err := checkBody(data, MsgLoginResponse, 1+1+reasonLen); err != nil {
		return err
	}
	m.Status = LoginStatus(data[1])
	m.Reason = trimPadded(data[2:])
	return nil
}

// Logout requests an orderly session end. The body is empty.
type Logout struct{}

func (m *Logout) Type() MessageType { return MsgLogout }

func (m *Logout) MarshalBinary() ([]byte, error) {
	return []byte{byte(MsgLogout)}, nil
}

func (m *Logout) UnmarshalBinary(data []byte) error {
	return checkBody(data, MsgLogout, 1)
}

// ClientHeartbeat is the client-side liveness probe.
type ClientHeartbeat struct {
	Seq uint32
}

func (m *ClientHeartbeat) Type() MessageType { return MsgClientHeartbeat }

func (m *ClientHeartbeat) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 5)
	buf[0] = byte(MsgClientHeartbeat)
	binary.LittleEndian.PutUint32(buf[1:], m.Seq)
	return buf, nil
}

func (m *ClientHeartbeat) UnmarshalBinary(data []byte) error {
	if err := checkBody(data, MsgClientHeartbeat, 5); err != nil {
		return err
	}
	m.Seq = binary.LittleEndian.Uint32(data[1:])
	return nil
}

// ServerHeartbeat is the server-side liveness probe.
type ServerHeartbeat struct {
	Seq uint32
}

func (m *ServerHeartbeat) Type() MessageType { return MsgServerHeartbeat }

func (m *ServerHeartbeat) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 5)
	buf[0] = byte(MsgServerHeartbeat)
	binary.LittleEndian.PutUint32(buf[1:], m.Seq)
	return buf, nil
}

func (m *ServerHeartbeat) UnmarshalBinary(data []byte) error {
	if err := checkBody(data, MsgServerHeartbeat, 5); err != nil {
		return err
	}
	m.Seq = binary.LittleEndian.Uint32(data[1:])
	return nil
}

// NewOrder submits a limit order. Price carries priceScale implied decimals.
type NewOrder struct {
	Seq       uint32
	ClOrdID   string
	Symbol    string
	Side      Side
	OrderType OrderType
	Price     int64
	Qty       uint32
}

func (m *NewOrder) Type() MessageType { return MsgNewOrder }

func (m *NewOrder) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 1+4+clOrdIDLen+symbolLen+1+1+8+4)
	buf[0] = byte(MsgNewOrder)
	binary.LittleEndian.PutUint32(buf[1:5], m.Seq)
	if err := putPadded(buf[5:5+clOrdIDLen], m.ClOrdID); err != nil {
		return nil, err
	}
	if err := putPadded(buf[25:25+symbolLen], m.Symbol); err != nil {
		return nil, err
	}
	buf[33] = byte(m.Side)
	buf[34] = byte(m.OrderType)
	binary.LittleEndian.PutUint64(buf[35:43], uint64(m.Price))
	binary.LittleEndian.PutUint32(buf[43:47], m.Qty)
	return buf, nil
}

func (m *NewOrder) UnmarshalBinary(data []byte) error {
	if err := checkBody(data, MsgNewOrder, 47); err != nil {
		return err
	}
	m.Seq = binary.LittleEndian.Uint32(data[1:5])
	m.ClOrdID = trimPadded(data[5:25])
	m.Symbol = trimPadded(data[25:33])
	m.Side = Side(data[33])
	m.OrderType = OrderType(data[34])
	m.Price = int64(binary.LittleEndian.Uint64(data[35:43]))
	m.Qty = binary.LittleEndian.Uint32(data[43:47])
	return nil
}

// OrderAck confirms acceptance of a NewOrder and assigns the exchange order
// identifier.
type OrderAck struct {
	Seq     uint32
	ClOrdID string
	OrderID string
}

func (m *OrderAck) Type() MessageType { return MsgOrderAck }

func (m *OrderAck) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 1+4+clOrdIDLen+orderIDLen)
	buf[0] = byte(MsgOrderAck)
	binary.LittleEndian.PutUint32(buf[1:5], m.Seq)
	if err := putPadded(buf[5:25], m.ClOrdID); err != nil {
		return nil, err
	}
	if err := putPadded(buf[25:45], m.OrderID); err != nil {
		return nil, err
	}
	return buf, nil
}

func (m *OrderAck) UnmarshalBinary(data []byte) error {
	if err := checkBody(data, MsgOrderAck, 45); err != nil {
		return err
	}
	m.Seq = binary.LittleEndian.Uint32(data[1:5])
	m.ClOrdID = trimPadded(data[5:25])
	m.OrderID = trimPadded(data[25:45])
	return nil
}

// OrderExecuted reports a fill. LeavesQty is the remaining open quantity
// after the fill.
type OrderExecuted struct {
	Seq       uint32
	OrderID   string
	LastPrice int64
	LastQty   uint32
	LeavesQty uint32
}

func (m *OrderExecuted) Type() MessageType { return MsgOrderExecuted }

func (m *OrderExecuted) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 1+4+orderIDLen+8+4+4)
	buf[0] = byte(MsgOrderExecuted)
	binary.LittleEndian.PutUint32(buf[1:5], m.Seq)
	if err := putPadded(buf[5:25], m.OrderID); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint64(buf[25:33], uint64(m.LastPrice))
	binary.LittleEndian.PutUint32(buf[33:37], m.LastQty)
	binary.LittleEndian.PutUint32(buf[37:41], m.LeavesQty)
	return buf, nil
}

func (m *OrderExecuted) UnmarshalBinary(data []byte) error {
	if err := checkBody(data, MsgOrderExecuted, 41); err != nil {
		return err
	}
	m.Seq = binary.LittleEndian.Uint32(data[1:5])
	m.OrderID = trimPadded(data[5:25])
	m.LastPrice = int64(binary.LittleEndian.Uint64(data[25:33]))
	m.LastQty = binary.LittleEndian.Uint32(data[33:37])
	m.LeavesQty = binary.LittleEndian.Uint32(data[37:41])
	return nil
}

// OrderRejected reports that a NewOrder was not accepted.
type OrderRejected struct {
	Seq     uint32
	ClOrdID string
	Reason  string
}

func (m *OrderRejected) Type() MessageType { return MsgOrderRejected }

func (m *OrderRejected) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 1+4+clOrdIDLen+reasonLen)
	buf[0] = byte(MsgOrderRejected)
	binary.LittleEndian.PutUint32(buf[1:5], m.Seq)
	if err := putPadded(buf[5:25], m.ClOrdID); err != nil {
		return nil, err
	}
	if err := putPadded(buf[25:], m.Reason); err != nil {
		return nil, err
	}
	return buf, nil
}

func (m *OrderRejected) UnmarshalBinary(data []byte) error {
	if err := checkBody(data, MsgOrderRejected, 73); err != nil {
		return err
	}
	m.Seq = binary.LittleEndian.Uint32(data[1:5])
	m.ClOrdID = trimPadded(data[5:25])
	m.Reason = trimPadded(data[25:])
	return nil
}

// OrderCancelled confirms removal of an order from the book.
type OrderCancelled struct {
	Seq     uint32
	ClOrdID string
	OrderID string
	Reason  CancelReason
}

func (m *OrderCancelled) Type() MessageType { return MsgOrderCancelled }

func (m *OrderCancelled) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 1+4+clOrdIDLen+orderIDLen+1)
	buf[0] = byte(MsgOrderCancelled)
	binary.LittleEndian.PutUint32(buf[1:5], m.Seq)
	if err := putPadded(buf[5:25], m.ClOrdID); err != nil {
		return nil, err
	}
	if err := putPadded(buf[25:45], m.OrderID); err != nil {
		return nil, err
	}
	buf[45] = byte(m.Reason)
	return buf, nil
}

func (m *OrderCancelled) UnmarshalBinary(data []byte) error {
	if err := checkBody(data, MsgOrderCancelled, 46); err != nil {
		return err
	}
	m.Seq = binary.LittleEndian.Uint32(data[1:5])
	m.ClOrdID = trimPadded(data[5:25])
	m.OrderID = trimPadded(data[25:45])
	m.Reason = CancelReason(data[45])
	return nil
}

// CancelOrder requests removal of a resting order by exchange order ID.
type CancelOrder struct {
	Seq     uint32
	OrderID string
}

func (m *CancelOrder) Type() MessageType { return MsgCancelOrder }

func (m *CancelOrder) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 1+4+orderIDLen)
	buf[0] = byte(MsgCancelOrder)
	binary.LittleEndian.PutUint32(buf[1:5], m.Seq)
	if err := putPadded(buf[5:25], m.OrderID); err != nil {
		return nil, err
	}
	return buf, nil
}

func (m *CancelOrder) UnmarshalBinary(data []byte) error {
	if err := checkBody(data, MsgCancelOrder, 25); err != nil {
		return err
	}
	m.Seq = binary.LittleEndian.Uint32(data[1:5])
	m.OrderID = trimPadded(data[5:25])
	return nil
}
