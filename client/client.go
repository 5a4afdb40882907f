package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	"boexchange/boe"
	"boexchange/session"
)

var (
	ErrNotActive     = errors.New("session is not active")
	ErrLoginRejected = errors.New("login rejected")
	ErrLoginTimeout  = errors.New("timed out waiting for login response")
	ErrClosed        = errors.New("client is closed")
)

// Config holds the client's connection and retry parameters.
type Config struct {
	Addr         string
	Username     string
	Password     string
	MatchingUnit uint8

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	DialTimeout       time.Duration
	LoginTimeout      time.Duration
	ReadTimeout       time.Duration
	ShutdownGrace     time.Duration

	// Reconnect enables automatic redial after an unexpected disconnect.
	Reconnect            bool
	MaxReconnectAttempts int // 0 means unlimited
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 1 * time.Second
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 10 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 500 * time.Millisecond
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 3 * time.Second
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = 250 * time.Millisecond
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = 10 * time.Second
	}
	return c
}

// Client is the client half of the session state machine. It drives
// CONNECTING through ACTIVE, keeps its own heartbeat monitor and redials
// with capped exponential backoff when configured to.
type Client struct {
	cfg      Config
	codec    *boe.Codec
	listener session.EventListener
	trading  session.TradingListener

	mu      sync.Mutex
	sess    *session.Session
	netConn net.Conn
	monitor *session.HeartbeatMonitor
	loginCh chan *boe.LoginResponse

	closed atomic.Bool
	wg     sync.WaitGroup
}

// New creates a client. Nil listeners default to no-ops.
func New(cfg Config, listener session.EventListener, trading session.TradingListener) *Client {
	if listener == nil {
		listener = session.NopListener{}
	}
	if trading == nil {
		trading = session.NopTradingListener{}
	}
	return &Client{
		cfg:      cfg.withDefaults(),
		codec:    boe.NewCodec(),
		listener: listener,
		trading:  trading,
	}
}

// Connect dials, logs in and brings the session to ACTIVE. It blocks until
// login completes or fails.
func (c *Client) Connect() error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.connectAndLogin()
}

func (c *Client) connectAndLogin() error {
	// A fresh session per connection: sequence numbers reset only here.
	sess := session.New(xid.New().String(), session.Connecting, c.listener)

	netConn, err := net.DialTimeout("tcp", c.cfg.Addr, c.cfg.DialTimeout)
	if err != nil {
		sess.SetState(session.Disconnected)
		return fmt.Errorf("dial %s: %w", c.cfg.Addr, err)
	}

	loginCh := make(chan *boe.LoginResponse, 1)

	c.mu.Lock()
	c.sess = sess
	c.netConn = netConn
	c.loginCh = loginCh
	c.mu.Unlock()

	sess.SetState(session.Connected)
	c.listener.OnConnected(sess.ID())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.readLoop(sess, netConn)
	}()

	sess.SetState(session.Authenticating)
	login := &boe.Login{
		Username:     c.cfg.Username,
		Password:     c.cfg.Password,
		MatchingUnit: c.cfg.MatchingUnit,
	}
	if err := c.send(login); err != nil {
		c.dropConn(session.Errored)
		return err
	}

	var resp *boe.LoginResponse
	select {
	case resp = <-loginCh:
	case <-time.After(c.cfg.LoginTimeout):
		c.dropConn(session.Errored)
		return ErrLoginTimeout
	}

	if resp.Status != boe.LoginAccepted {
		c.listener.OnLoginFailed(resp.Reason)
		c.dropConn(session.Errored)
		return fmt.Errorf("%w: %s", ErrLoginRejected, resp.Reason)
	}

	sess.SetUsername(c.cfg.Username)
	sess.SetState(session.Authenticated)
	c.listener.OnLoginSuccess(c.cfg.Username)

	monitor := session.NewHeartbeatMonitor(
		sess,
		c.cfg.HeartbeatInterval,
		c.cfg.HeartbeatTimeout,
		func() error {
			return c.send(&boe.ClientHeartbeat{Seq: sess.NextSeq()})
		},
		session.TimeoutFunc(func(connID string) {
			logger.Warn("server went silent, dropping connection", "conn_id", connID)
			// Close only the socket; the read loop notices and decides
			// whether to reconnect.
			c.mu.Lock()
			conn := c.netConn
			c.mu.Unlock()
			if conn != nil {
				_ = conn.Close()
			}
		}),
	)

	c.mu.Lock()
	c.monitor = monitor
	c.mu.Unlock()

	monitor.Start()
	sess.SetState(session.Active)
	return nil
}

func (c *Client) readLoop(sess *session.Session, netConn net.Conn) {
	for {
		if c.closed.Load() {
			return
		}

		_ = netConn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		frame, err := c.codec.DecodeFrame(netConn)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
				c.handleDisconnect(sess)
				return
			}
			c.listener.OnError(err)
			c.handleDisconnect(sess)
			return
		}

		if err := boe.ValidateFrame(frame); err != nil {
			c.listener.OnError(err)
			continue
		}

		msg, err := boe.Decode(boe.Payload(frame))
		if err != nil {
			c.listener.OnError(err)
			continue
		}

		// Any inbound traffic proves the server is alive.
		sess.MarkHeartbeatReceived()

		switch m := msg.(type) {
		case *boe.LoginResponse:
			c.mu.Lock()
			ch := c.loginCh
			c.mu.Unlock()
			select {
			case ch <- m:
			default:
			}
		case *boe.ServerHeartbeat:
			// Already counted above.
		case *boe.OrderAck:
			c.trading.OnOrderAck(m)
		case *boe.OrderExecuted:
			c.trading.OnOrderExecuted(m)
		case *boe.OrderRejected:
			c.trading.OnOrderRejected(m)
		case *boe.OrderCancelled:
			c.trading.OnOrderCancelled(m)
		default:
			c.listener.OnError(fmt.Errorf("unexpected message type %s", msg.Type()))
		}
	}
}

// handleDisconnect reacts to a lost transport: either a permanent goodbye or
// the reconnect path.
func (c *Client) handleDisconnect(sess *session.Session) {
	if c.closed.Load() || !sess.State().IsConnected() {
		return
	}

	c.dropConn(session.Disconnected)
	c.listener.OnDisconnected(sess.ID())

	if !c.cfg.Reconnect {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.reconnectLoop(sess)
	}()
}

func (c *Client) reconnectLoop(sess *session.Session) {
	delay := c.cfg.ReconnectBaseDelay

	for attempt := 1; ; attempt++ {
		if c.closed.Load() {
			return
		}
		if c.cfg.MaxReconnectAttempts > 0 && attempt > c.cfg.MaxReconnectAttempts {
			logger.Warn("reconnect attempts exhausted", "attempts", attempt-1)
			sess.SetState(session.Disconnected)
			return
		}

		sess.SetState(session.Reconnecting)
		c.listener.OnReconnecting(attempt)
		time.Sleep(delay)

		if err := c.connectAndLogin(); err == nil {
			return
		} else if errors.Is(err, ErrLoginRejected) {
			// Credentials will not improve by retrying.
			c.listener.OnError(err)
			return
		}

		delay *= 2
		if delay > c.cfg.ReconnectMaxDelay {
			delay = c.cfg.ReconnectMaxDelay
		}
	}
}

// SubmitOrder sends a limit order. The session must be ACTIVE.
func (c *Client) SubmitOrder(clOrdID, symbol string, side boe.Side, price decimal.Decimal, qty uint32) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess == nil || sess.State() != session.Active {
		return ErrNotActive
	}

	return c.send(&boe.NewOrder{
		Seq:       sess.NextSeq(),
		ClOrdID:   clOrdID,
		Symbol:    symbol,
		Side:      side,
		OrderType: boe.OrderTypeLimit,
		Price:     boe.PriceToRaw(price),
		Qty:       qty,
	})
}

// CancelOrder requests cancellation of a resting order by exchange ID.
func (c *Client) CancelOrder(orderID string) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess == nil || sess.State() != session.Active {
		return ErrNotActive
	}

	return c.send(&boe.CancelOrder{
		Seq:     sess.NextSeq(),
		OrderID: orderID,
	})
}

// Logout sends an orderly goodbye and closes the connection.
func (c *Client) Logout() error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess == nil || !sess.State().IsConnected() {
		return ErrNotActive
	}

	sess.SetState(session.Disconnecting)
	err := c.send(&boe.Logout{})
	c.dropConn(session.Disconnected)
	c.listener.OnLogoutCompleted()
	return err
}

// Close shuts the client down for good. Idempotent.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.dropConn(session.Disconnected)
	c.wg.Wait()
}

// State returns the current session state, Disconnected before any Connect.
func (c *Client) State() session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return session.Disconnected
	}
	return c.sess.State()
}

// dropConn stops the monitor and closes the socket exactly once per
// connection; final reports the state the session lands in.
func (c *Client) dropConn(final session.State) {
	c.mu.Lock()
	monitor := c.monitor
	netConn := c.netConn
	sess := c.sess
	c.monitor = nil
	c.netConn = nil
	c.mu.Unlock()

	// State goes final before the socket closes so the read loop sees a
	// settled session when its read fails.
	if sess != nil {
		sess.SetState(final)
	}
	if monitor != nil {
		monitor.Shutdown(c.cfg.ShutdownGrace)
	}
	if netConn != nil {
		_ = netConn.Close()
	}
}

func (c *Client) send(msg boe.Message) error {
	payload, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	frame, err := c.codec.EncodeFrame(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	netConn := c.netConn
	c.mu.Unlock()
	if netConn == nil {
		return ErrNotActive
	}

	_ = netConn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err = netConn.Write(frame)
	return err
}
