package client

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"boexchange/boe"
	"boexchange/session"
)

// scriptedServer accepts connections and hands each to the supplied handler,
// letting tests play the exchange side of the conversation.
type scriptedServer struct {
	ln    net.Listener
	codec *boe.Codec
	wg    sync.WaitGroup
}

func newScriptedServer(t *testing.T, handler func(conn net.Conn, s *scriptedServer)) *scriptedServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &scriptedServer{ln: ln, codec: boe.NewCodec()}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer conn.Close()
				handler(conn, s)
			}()
		}
	}()

	t.Cleanup(func() {
		_ = ln.Close()
		s.wg.Wait()
	})
	return s
}

func (s *scriptedServer) addr() string {
	return s.ln.Addr().String()
}

func (s *scriptedServer) readMessage(t *testing.T, conn net.Conn) boe.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	frame, err := s.codec.DecodeFrame(conn)
	if err != nil {
		return nil
	}
	msg, err := boe.Decode(boe.Payload(frame))
	require.NoError(t, err)
	return msg
}

func (s *scriptedServer) writeMessage(t *testing.T, conn net.Conn, msg boe.Message) {
	t.Helper()
	payload, err := msg.MarshalBinary()
	require.NoError(t, err)
	frame, err := s.codec.EncodeFrame(payload)
	require.NoError(t, err)
	_, err = conn.Write(frame)
	require.NoError(t, err)
}

// answerLogin consumes the Login message and replies with the given status.
func (s *scriptedServer) answerLogin(t *testing.T, conn net.Conn, status boe.LoginStatus) {
	t.Helper()
	msg := s.readMessage(t, conn)
	require.IsType(t, &boe.Login{}, msg)
	s.writeMessage(t, conn, &boe.LoginResponse{Status: status, Reason: "test"})
}

// stateWatcher records OnReconnecting and disconnect callbacks.
type stateWatcher struct {
	session.NopListener

	mu           sync.Mutex
	reconnects   []int
	disconnected int
}

func (w *stateWatcher) OnReconnecting(attempt int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reconnects = append(w.reconnects, attempt)
}

func (w *stateWatcher) OnDisconnected(string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disconnected++
}

func (w *stateWatcher) reconnectCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.reconnects)
}

func waitState(t *testing.T, c *Client, want session.State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client never reached %s, stuck at %s", want, c.State())
}

func TestConnectReachesActive(t *testing.T) {
	srv := newScriptedServer(t, func(conn net.Conn, s *scriptedServer) {
		s.answerLogin(t, conn, boe.LoginAccepted)
		// Drain whatever the client sends until it hangs up.
		for s.readMessage(t, conn) != nil {
		}
	})

	c := New(Config{
		Addr:     srv.addr(),
		Username: "alice",
		Password: "s3cret",
	}, nil, nil)
	defer c.Close()

	require.NoError(t, c.Connect())
	require.Equal(t, session.Active, c.State())
}

func TestConnectRejectedLogin(t *testing.T) {
	srv := newScriptedServer(t, func(conn net.Conn, s *scriptedServer) {
		s.answerLogin(t, conn, boe.LoginRejected)
	})

	c := New(Config{
		Addr:     srv.addr(),
		Username: "alice",
		Password: "wrong",
	}, nil, nil)
	defer c.Close()

	err := c.Connect()
	require.ErrorIs(t, err, ErrLoginRejected)
	require.Equal(t, session.Errored, c.State())
}

func TestSubmitOrderBeforeConnect(t *testing.T) {
	c := New(Config{Addr: "127.0.0.1:1"}, nil, nil)
	defer c.Close()

	err := c.SubmitOrder("cl-1", "AAPL", boe.SideBuy, decimal.NewFromInt(100), 10)
	require.ErrorIs(t, err, ErrNotActive)
}

func TestSubmitOrderSendsNewOrder(t *testing.T) {
	received := make(chan *boe.NewOrder, 1)
	srv := newScriptedServer(t, func(conn net.Conn, s *scriptedServer) {
		s.answerLogin(t, conn, boe.LoginAccepted)
		for {
			msg := s.readMessage(t, conn)
			if msg == nil {
				return
			}
			if order, ok := msg.(*boe.NewOrder); ok {
				received <- order
				return
			}
		}
	})

	c := New(Config{
		Addr:     srv.addr(),
		Username: "alice",
		Password: "s3cret",
	}, nil, nil)
	defer c.Close()
	require.NoError(t, c.Connect())

	price := decimal.RequireFromString("100.5")
	require.NoError(t, c.SubmitOrder("cl-1", "AAPL", boe.SideBuy, price, 10))

	select {
	case order := <-received:
		require.Equal(t, "cl-1", order.ClOrdID)
		require.Equal(t, "AAPL", order.Symbol)
		require.Equal(t, boe.SideBuy, order.Side)
		require.Equal(t, boe.PriceToRaw(price), order.Price)
		require.Equal(t, uint32(10), order.Qty)
	case <-time.After(3 * time.Second):
		t.Fatal("order never arrived")
	}
}

func TestClientSendsHeartbeats(t *testing.T) {
	beats := make(chan struct{}, 8)
	srv := newScriptedServer(t, func(conn net.Conn, s *scriptedServer) {
		s.answerLogin(t, conn, boe.LoginAccepted)
		for {
			msg := s.readMessage(t, conn)
			if msg == nil {
				return
			}
			if _, ok := msg.(*boe.ClientHeartbeat); ok {
				select {
				case beats <- struct{}{}:
				default:
				}
			}
		}
	})

	c := New(Config{
		Addr:              srv.addr(),
		Username:          "alice",
		Password:          "s3cret",
		HeartbeatInterval: 20 * time.Millisecond,
	}, nil, nil)
	defer c.Close()
	require.NoError(t, c.Connect())

	for i := 0; i < 2; i++ {
		select {
		case <-beats:
		case <-time.After(2 * time.Second):
			t.Fatal("no heartbeat observed")
		}
	}
}

func TestReconnectAfterServerDrop(t *testing.T) {
	var mu sync.Mutex
	accepts := 0

	srv := newScriptedServer(t, func(conn net.Conn, s *scriptedServer) {
		mu.Lock()
		accepts++
		n := accepts
		mu.Unlock()

		s.answerLogin(t, conn, boe.LoginAccepted)
		if n == 1 {
			return // hang up right after login, forcing a redial
		}
		for s.readMessage(t, conn) != nil {
		}
	})

	watcher := &stateWatcher{}
	c := New(Config{
		Addr:               srv.addr(),
		Username:           "alice",
		Password:           "s3cret",
		Reconnect:          true,
		ReconnectBaseDelay: 10 * time.Millisecond,
	}, watcher, nil)
	defer c.Close()

	require.NoError(t, c.Connect())
	waitState(t, c, session.Active)

	require.Eventually(t, func() bool {
		return watcher.reconnectCount() >= 1
	}, 3*time.Second, 10*time.Millisecond, "reconnect never attempted")

	waitState(t, c, session.Active)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, accepts, 2)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	require.NotZero(t, cfg.HeartbeatInterval)
	require.NotZero(t, cfg.HeartbeatTimeout)
	require.NotZero(t, cfg.DialTimeout)
	require.NotZero(t, cfg.LoginTimeout)
	require.NotZero(t, cfg.ReconnectBaseDelay)
	require.NotZero(t, cfg.ReconnectMaxDelay)
}
