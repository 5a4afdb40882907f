package server

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	"boexchange/auth"
	"boexchange/boe"
	"boexchange/match"
	"boexchange/session"
)

// errConnDone signals an orderly end of the read loop (logout, rejected
// login).
var errConnDone = errors.New("connection done")

// conn owns one client connection: the blocking read loop, the session state
// machine and the per-connection heartbeat monitor. No other goroutine reads
// from the socket; writes are serialized by writeMu because the heartbeat
// task and the dispatch path both send.
type conn struct {
	id      string
	netConn net.Conn
	srv     *Server
	sess    *session.Session
	monitor *session.HeartbeatMonitor

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newConn(srv *Server, netConn net.Conn) *conn {
	id := xid.New().String()
	return &conn{
		id:      id,
		netConn: netConn,
		srv:     srv,
		sess:    session.New(id, session.Connected, nil),
	}
}

func (c *conn) run() {
	defer c.close("read loop finished")

	logger.Info("connection accepted", "conn_id", c.id, "remote", c.netConn.RemoteAddr().String())

	for {
		if c.srv.closed.Load() || !c.sess.State().IsConnected() {
			return
		}

		_ = c.netConn.SetReadDeadline(time.Now().Add(c.srv.cfg.ReadTimeout))

		frame, err := c.srv.codec.DecodeFrame(c.netConn)
		if err != nil {
			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
				// Idle socket; loop so liveness teardown is noticed.
				continue
			case errors.Is(err, io.EOF):
				// Clean disconnect, nothing to report.
				return
			case errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrUnexpectedEOF):
				return
			default:
				if c.fault("decode frame", err) {
					return
				}
				continue
			}
		}

		if err := boe.ValidateFrame(frame); err != nil {
			if c.fault("validate frame", err) {
				return
			}
			continue
		}

		if !c.srv.limiter.AllowMessage(c.id) {
			logger.Warn("rate limit exceeded, dropping message", "conn_id", c.id)
			continue
		}

		msg, err := boe.Decode(boe.Payload(frame))
		if err != nil {
			if c.fault("decode message", err) {
				return
			}
			continue
		}

		if err := c.dispatch(msg); err != nil {
			return
		}
	}
}

// fault reports a protocol error to the classifier and returns true when the
// connection should be terminated.
func (c *conn) fault(context string, err error) bool {
	c.srv.classifier.HandleError(c.id, context, err)
	return c.srv.classifier.ShouldTerminateConnection(c.id)
}

func (c *conn) dispatch(msg boe.Message) error {
	switch m := msg.(type) {
	case *boe.Login:
		return c.handleLogin(m)
	case *boe.Logout:
		return c.handleLogout()
	case *boe.ClientHeartbeat:
		// Only the client's heartbeat resets the server's timeout clock.
		if c.monitor != nil {
			c.monitor.NotifyHeartbeatReceived()
		}
		return nil
	case *boe.NewOrder:
		c.handleNewOrder(m)
		return nil
	case *boe.CancelOrder:
		c.handleCancel(m)
		return nil
	default:
		if c.fault("dispatch", errors.New("unexpected inbound message type "+msg.Type().String())) {
			return errConnDone
		}
		return nil
	}
}

func (c *conn) handleLogin(m *boe.Login) error {
	if c.sess.State() != session.Connected {
		if c.fault("login", errors.New("login in state "+c.sess.State().String())) {
			return errConnDone
		}
		return nil
	}

	c.sess.SetState(session.Authenticating)
	res := c.srv.auth.Authenticate(m.Username, m.Password, c.id)

	resp := &boe.LoginResponse{
		Status: boe.LoginStatus(res.Status.StatusByte()),
		Reason: res.Message,
	}
	if err := c.send(resp); err != nil {
		return errConnDone
	}

	if res.Status != auth.Accepted {
		logger.Info("login rejected", "conn_id", c.id, "username", m.Username, "status", res.Status.String())
		c.sess.SetState(session.Errored)
		return errConnDone
	}

	c.sess.SetUsername(m.Username)
	c.sess.SetMatchingUnit(m.MatchingUnit)
	c.srv.registry.add(m.Username, c)
	c.sess.SetState(session.Authenticated)

	c.monitor = session.NewHeartbeatMonitor(
		c.sess,
		c.srv.cfg.HeartbeatInterval,
		c.srv.cfg.HeartbeatTimeout,
		c.sendHeartbeat,
		session.TimeoutFunc(c.onHeartbeatTimeout),
	)
	c.monitor.Start()
	c.sess.SetState(session.Active)

	logger.Info("login accepted", "conn_id", c.id, "username", m.Username, "matching_unit", m.MatchingUnit)
	return nil
}

func (c *conn) handleLogout() error {
	logger.Info("logout requested", "conn_id", c.id, "username", c.sess.Username())
	return errConnDone
}

func (c *conn) handleNewOrder(m *boe.NewOrder) {
	if !c.sess.State().IsAuthenticated() {
		c.reject(m.ClOrdID, "not authenticated")
		return
	}
	if m.Side != boe.SideBuy && m.Side != boe.SideSell {
		c.reject(m.ClOrdID, "invalid side")
		return
	}
	if m.OrderType != boe.OrderTypeLimit {
		c.reject(m.ClOrdID, "unsupported order type")
		return
	}
	if m.Qty == 0 || m.Price <= 0 {
		c.reject(m.ClOrdID, "invalid price or quantity")
		return
	}

	qty := decimal.NewFromInt(int64(m.Qty))
	order := &match.Order{
		OrderID:   xid.New().String(),
		ClOrdID:   m.ClOrdID,
		Symbol:    m.Symbol,
		Side:      match.Side(m.Side),
		Type:      match.Limit,
		Price:     boe.PriceFromRaw(m.Price),
		Qty:       qty,
		Remaining: qty,
		Username:  c.sess.Username(),
		State:     match.StateNew,
		Timestamp: time.Now().UnixNano(),
	}

	// Acknowledge first: NEW -> LIVE, then the engine takes over.
	order.State = match.StateLive
	ack := &boe.OrderAck{
		Seq:     c.sess.NextSeq(),
		ClOrdID: order.ClOrdID,
		OrderID: order.OrderID,
	}
	if err := c.send(ack); err != nil {
		return
	}

	c.srv.orders.add(order.OrderID, orderRef{
		symbol:   order.Symbol,
		clOrdID:  order.ClOrdID,
		username: order.Username,
	})
	c.sess.Subscribe(order.Symbol)

	trades, err := c.srv.engine.ProcessOrder(order)
	if err != nil {
		c.srv.orders.remove(order.OrderID)
		c.reject(m.ClOrdID, "order rejected by matching engine")
		logger.Error("process order failed", "conn_id", c.id, "order_id", order.OrderID, "error", err)
		return
	}

	for _, trade := range trades {
		c.srv.publishTrade(trade)
		c.deliverExecutions(order, trade)
	}

	if order.State == match.StateFilled {
		c.srv.orders.remove(order.OrderID)
	}
}

// deliverExecutions sends OrderExecuted to the aggressor and, when the
// maker's owner is still connected, to the maker as well.
func (c *conn) deliverExecutions(aggressor *match.Order, trade *match.Trade) {
	rawPrice := boe.PriceToRaw(trade.Price)
	lastQty := uint32(trade.Qty.IntPart())

	aggrOrderID, aggrLeaves := trade.BuyOrderID, trade.BuyLeaves
	makerOrderID, makerLeaves := trade.SellOrderID, trade.SellLeaves
	makerUser := trade.SellUser
	if aggressor.Side == match.Sell {
		aggrOrderID, aggrLeaves = trade.SellOrderID, trade.SellLeaves
		makerOrderID, makerLeaves = trade.BuyOrderID, trade.BuyLeaves
		makerUser = trade.BuyUser
	}

	_ = c.send(&boe.OrderExecuted{
		Seq:       c.sess.NextSeq(),
		OrderID:   aggrOrderID,
		LastPrice: rawPrice,
		LastQty:   lastQty,
		LeavesQty: uint32(aggrLeaves.IntPart()),
	})

	if makerLeaves.IsZero() {
		c.srv.orders.remove(makerOrderID)
	}

	if maker, ok := c.srv.registry.lookup(makerUser); ok {
		_ = maker.send(&boe.OrderExecuted{
			Seq:       maker.sess.NextSeq(),
			OrderID:   makerOrderID,
			LastPrice: rawPrice,
			LastQty:   lastQty,
			LeavesQty: uint32(makerLeaves.IntPart()),
		})
	}
}

func (c *conn) handleCancel(m *boe.CancelOrder) {
	if !c.sess.State().IsAuthenticated() {
		return
	}

	ref, ok := c.srv.orders.lookup(m.OrderID)
	if !ok || ref.username != c.sess.Username() {
		_ = c.send(&boe.OrderCancelled{
			Seq:     c.sess.NextSeq(),
			OrderID: m.OrderID,
			Reason:  boe.CancelNotFound,
		})
		return
	}

	if _, err := c.srv.engine.CancelOrder(ref.symbol, m.OrderID); err != nil {
		_ = c.send(&boe.OrderCancelled{
			Seq:     c.sess.NextSeq(),
			ClOrdID: ref.clOrdID,
			OrderID: m.OrderID,
			Reason:  boe.CancelNotFound,
		})
		return
	}

	c.srv.orders.remove(m.OrderID)
	_ = c.send(&boe.OrderCancelled{
		Seq:     c.sess.NextSeq(),
		ClOrdID: ref.clOrdID,
		OrderID: m.OrderID,
		Reason:  boe.CancelRequested,
	})
}

func (c *conn) reject(clOrdID, reason string) {
	_ = c.send(&boe.OrderRejected{
		Seq:     c.sess.NextSeq(),
		ClOrdID: clOrdID,
		Reason:  reason,
	})
}

func (c *conn) sendHeartbeat() error {
	return c.send(&boe.ServerHeartbeat{Seq: c.sess.NextSeq()})
}

func (c *conn) onHeartbeatTimeout(connID string) {
	logger.Warn("heartbeat timeout, terminating connection", "conn_id", connID, "username", c.sess.Username())
	// Runs on the monitor's check task; close waits for that task, so it
	// must happen elsewhere.
	go c.close("heartbeat timeout")
}

func (c *conn) send(msg boe.Message) error {
	payload, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	frame, err := c.srv.codec.EncodeFrame(payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.netConn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err = c.netConn.Write(frame)
	return err
}

// close tears the connection down exactly once: timers, auth session,
// per-connection collaborator state, socket.
func (c *conn) close(reason string) {
	c.closeOnce.Do(func() {
		c.sess.SetState(session.Disconnecting)

		if c.monitor != nil {
			c.monitor.Shutdown(c.srv.cfg.ShutdownGrace)
		}

		if username := c.sess.Username(); username != "" {
			c.srv.auth.EndSession(username)
			c.srv.registry.remove(username, c)
		}

		c.srv.limiter.Remove(c.id)
		c.srv.classifier.Remove(c.id)

		_ = c.netConn.Close()
		c.sess.SetState(session.Disconnected)
		c.srv.removeConn(c)

		logger.Info("connection closed", "conn_id", c.id, "reason", reason)
	})
}
