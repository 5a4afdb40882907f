package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"boexchange/auth"
	"boexchange/boe"
	"boexchange/match"
)

// Config holds the server's timing and listen parameters.
type Config struct {
	Addr              string
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	ReadTimeout       time.Duration
	ShutdownGrace     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8040"
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 1 * time.Second
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 500 * time.Millisecond
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 3 * time.Second
	}
	return c
}

// Server accepts BOE connections, authenticates them and routes accepted
// orders into the matching engine.
type Server struct {
	cfg        Config
	codec      *boe.Codec
	auth       *auth.Service
	engine     *match.Engine
	limiter    RateLimiter
	classifier ErrorClassifier
	registry   *registry
	orders     *orderIndex

	mu       sync.Mutex
	listener net.Listener
	conns    map[string]*conn
	closed   atomic.Bool
	wg       sync.WaitGroup

	tradeCh chan *match.Trade
}

// NewServer wires the server with its collaborators. A nil limiter or
// classifier falls back to permissive defaults.
func NewServer(cfg Config, codec *boe.Codec, authSvc *auth.Service, engine *match.Engine, limiter RateLimiter, classifier ErrorClassifier) *Server {
	if limiter == nil {
		limiter = UnlimitedRateLimiter{}
	}
	if classifier == nil {
		classifier = NewThresholdClassifier(5)
	}
	return &Server{
		cfg:        cfg.withDefaults(),
		codec:      codec,
		auth:       authSvc,
		engine:     engine,
		limiter:    limiter,
		classifier: classifier,
		registry:   newRegistry(),
		orders:     newOrderIndex(),
		conns:      make(map[string]*conn),
		tradeCh:    make(chan *match.Trade, 1024),
	}
}

// Trades exposes the stream of executions for downstream fan-out (dashboard,
// kafka feed). Slow consumers drop trades rather than stalling matching.
func (s *Server) Trades() <-chan *match.Trade {
	return s.tradeCh
}

// ListenAndServe listens on the configured address and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve runs the accept loop on l. It returns nil after Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	logger.Info("server listening", "addr", l.Addr().String())

	for {
		netConn, err := l.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		c := newConn(s, netConn)
		s.mu.Lock()
		s.conns[c.id] = c
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.run()
		}()
	}
}

// Addr returns the bound listen address, once serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting, tears down every connection and waits for the
// handlers to wind down or the context to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.close("server shutdown")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) removeConn(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c.id)
}

// publishTrade hands an execution to the fan-out channel without ever
// blocking the matching path.
func (s *Server) publishTrade(trade *match.Trade) {
	select {
	case s.tradeCh <- trade:
	default:
		logger.Warn("trade fan-out channel full, dropping", "trade_id", trade.ID)
	}
}
