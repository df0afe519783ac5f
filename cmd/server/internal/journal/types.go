package journal

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter abstracts the output stream for deterministic testing.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TradeRecord is the journal's wire format for one settled trade.
type TradeRecord struct {
	Username  string  `json:"username"`
	Side      string  `json:"side"`
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix micro
}
