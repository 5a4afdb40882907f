// Package dashboard exposes read-only market data over HTTP and websockets:
// executed trades as they happen and periodic order book snapshots.
package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"boexchange/match"
)

var logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	logger = l
}

const (
	defaultDepthLimit   = 20
	defaultBookInterval = 500 * time.Millisecond
	subscriberBuffer    = 32
)

type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Server streams trades and book snapshots. It never accepts orders; the
// binary session port is the only write path.
type Server struct {
	engine   *match.Engine
	tradeHub *hub[*match.Trade]
	upgrader websocket.Upgrader

	bookInterval time.Duration
}

func NewServer(engine *match.Engine) *Server {
	return &Server{
		engine:       engine,
		tradeHub:     newHub[*match.Trade](),
		upgrader:     websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		bookInterval: defaultBookInterval,
	}
}

// Broadcast pushes one trade to all websocket subscribers.
func (s *Server) Broadcast(trade *match.Trade) {
	s.tradeHub.Broadcast(trade)
}

// ConsumeTrades broadcasts trades from ch to websocket subscribers until ch
// closes or ctx is cancelled. Run it in its own goroutine.
func (s *Server) ConsumeTrades(ctx context.Context, ch <-chan *match.Trade) {
	for {
		select {
		case <-ctx.Done():
			return
		case trade, ok := <-ch:
			if !ok {
				return
			}
			s.tradeHub.Broadcast(trade)
		}
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/book", s.handleSnapshot)
	mux.HandleFunc("/symbols", s.handleSymbols)
	mux.HandleFunc("/ws/trades", s.handleTradeStream)
	mux.HandleFunc("/ws/book", s.handleBookStream)
	return mux
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	book, ok := s.engine.OrderBook(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol")
		return
	}

	writeJSON(w, http.StatusOK, book.Depth(defaultDepthLimit))
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Symbols())
}

func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.tradeHub.Subscribe(subscriberBuffer)
	defer s.tradeHub.Unsubscribe(sub)

	for trade := range sub.ch {
		if err := conn.WriteJSON(outboundMessage{Type: "trade", Data: trade}); err != nil {
			return
		}
	}
}

// handleBookStream pushes a depth snapshot for one symbol at a fixed cadence.
func (s *Server) handleBookStream(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(s.bookInterval)
	defer ticker.Stop()

	for range ticker.C {
		book, ok := s.engine.OrderBook(symbol)
		if !ok {
			continue
		}
		if err := conn.WriteJSON(outboundMessage{Type: "book", Data: book.Depth(defaultDepthLimit)}); err != nil {
			return
		}
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("encode response", "error", err)
	}
}
