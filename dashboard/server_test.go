package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"boexchange/match"
)

func TestHubBroadcastReachesAllSubscribers(t *testing.T) {
	h := newHub[int]()
	a := h.Subscribe(4)
	b := h.Subscribe(4)
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.Broadcast(42)

	require.Equal(t, 42, <-a.ch)
	require.Equal(t, 42, <-b.ch)
}

func TestHubSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := newHub[int]()
	sub := h.Subscribe(1)
	defer h.Unsubscribe(sub)

	h.Broadcast(1)
	h.Broadcast(2) // dropped, buffer full

	require.Equal(t, 1, <-sub.ch)
	select {
	case v := <-sub.ch:
		t.Fatalf("unexpected extra value %d", v)
	default:
	}
}

func newTestEngine(t *testing.T) *match.Engine {
	t.Helper()
	engine := match.NewEngine(match.NewDiscardRepository(), match.NewDiscardRepository())

	order := &match.Order{
		OrderID:   "dash-1",
		Symbol:    "AAPL",
		Side:      match.Buy,
		Type:      match.Limit,
		Price:     decimal.RequireFromString("100.5"),
		Qty:       decimal.NewFromInt(10),
		Remaining: decimal.NewFromInt(10),
		State:     match.StateLive,
		Timestamp: time.Now().UnixNano(),
	}
	_, err := engine.ProcessOrder(order)
	require.NoError(t, err)
	return engine
}

func TestSnapshotEndpoint(t *testing.T) {
	srv := NewServer(newTestEngine(t))
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/book?symbol=AAPL")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var depth match.Depth
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&depth))
	require.Equal(t, "AAPL", depth.Symbol)
	require.Len(t, depth.Bids, 1)
	require.Empty(t, depth.Asks)
}

func TestSnapshotUnknownSymbol(t *testing.T) {
	srv := NewServer(newTestEngine(t))
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/book?symbol=NOPE")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTradeStream(t *testing.T) {
	srv := NewServer(newTestEngine(t))
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	tradeCh := make(chan *match.Trade, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.ConsumeTrades(ctx, tradeCh)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/trades"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Let the subscription register before broadcasting.
	time.Sleep(50 * time.Millisecond)

	tradeCh <- &match.Trade{
		ID:     "t-ws-1",
		Symbol: "AAPL",
		Price:  decimal.RequireFromString("100.5"),
		Qty:    decimal.NewFromInt(10),
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg outboundMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "trade", msg.Type)

	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "AAPL", data["symbol"])
}
