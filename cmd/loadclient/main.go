// loadclient connects to a running exchange and submits a stream of random
// limit orders around a midpoint, useful for smoke testing and load runs.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"boexchange/boe"
	"boexchange/client"
	"boexchange/session"
)

type stats struct {
	acks       atomic.Uint64
	executions atomic.Uint64
	rejections atomic.Uint64
	cancels    atomic.Uint64
}

func (s *stats) OnOrderAck(*boe.OrderAck)             { s.acks.Add(1) }
func (s *stats) OnOrderExecuted(*boe.OrderExecuted)   { s.executions.Add(1) }
func (s *stats) OnOrderRejected(*boe.OrderRejected)   { s.rejections.Add(1) }
func (s *stats) OnOrderCancelled(*boe.OrderCancelled) { s.cancels.Add(1) }

func main() {
	addr := flag.String("addr", "127.0.0.1:9100", "exchange address")
	username := flag.String("user", "loadgen", "username")
	password := flag.String("pass", "loadgen", "password")
	symbol := flag.String("symbol", "AAPL", "symbol to trade")
	mid := flag.String("mid", "100.0", "midpoint price")
	rate := flag.Int("rate", 100, "orders per second")
	duration := flag.Duration("duration", 30*time.Second, "how long to run, 0 for unlimited")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	client.SetLogger(logger)

	midPrice, err := decimal.NewFromString(*mid)
	if err != nil {
		logger.Error("bad midpoint", "mid", *mid, "error", err)
		os.Exit(1)
	}

	st := &stats{}
	c := client.New(client.Config{
		Addr:      *addr,
		Username:  *username,
		Password:  *password,
		Reconnect: true,
	}, session.NopListener{}, st)
	defer c.Close()

	if err := c.Connect(); err != nil {
		logger.Error("connect", "addr", *addr, "error", err)
		os.Exit(1)
	}
	logger.Info("connected", "addr", *addr, "user", *username)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	report := time.NewTicker(5 * time.Second)
	defer report.Stop()

	var sent uint64
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

loop:
	for {
		select {
		case <-sigCh:
			break loop
		case <-deadline:
			break loop
		case <-report.C:
			logger.Info("progress",
				"sent", sent,
				"acks", st.acks.Load(),
				"executions", st.executions.Load(),
				"rejections", st.rejections.Load())
		case <-ticker.C:
			side := boe.SideBuy
			if rng.Intn(2) == 1 {
				side = boe.SideSell
			}
			// Jitter up to 50 ticks either side of the midpoint.
			offset := decimal.New(int64(rng.Intn(101)-50), -2)
			price := midPrice.Add(offset)
			qty := uint32(rng.Intn(100) + 1)

			sent++
			clOrdID := fmt.Sprintf("load-%d", sent)
			if err := c.SubmitOrder(clOrdID, *symbol, side, price, qty); err != nil {
				logger.Warn("submit failed", "cl_ord_id", clOrdID, "error", err)
			}
		}
	}

	_ = c.Logout()
	logger.Info("done",
		"sent", sent,
		"acks", st.acks.Load(),
		"executions", st.executions.Load(),
		"rejections", st.rejections.Load(),
		"cancels", st.cancels.Load())
}
