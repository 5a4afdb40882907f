// Package feed publishes executed trades to Kafka for downstream consumers
// (surveillance, market data, settlement).
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/segmentio/kafka-go"

	"boexchange/match"
)

var logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	logger = l
}

// TradePublisher writes trades to a Kafka topic keyed by symbol, so a
// partition preserves per-symbol ordering.
type TradePublisher struct {
	writer *kafka.Writer
}

func NewTradePublisher(brokers []string, topic string) *TradePublisher {
	return &TradePublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish sends one trade. The value is the trade's JSON encoding.
func (p *TradePublisher) Publish(ctx context.Context, trade *match.Trade) error {
	value, err := json.Marshal(trade)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(trade.Symbol),
		Value: value,
	})
}

// Run consumes trades from ch until it closes or ctx is cancelled. Publish
// failures are logged and do not stop the loop.
func (p *TradePublisher) Run(ctx context.Context, ch <-chan *match.Trade) {
	for {
		select {
		case <-ctx.Done():
			return
		case trade, ok := <-ch:
			if !ok {
				return
			}
			if err := p.Publish(ctx, trade); err != nil {
				logger.Error("publish trade",
					"trade_id", trade.ID,
					"symbol", trade.Symbol,
					"error", err)
			}
		}
	}
}

func (p *TradePublisher) Close() error {
	return p.writer.Close()
}
