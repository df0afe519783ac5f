package ledger

import (
	"context"
	"errors"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

var (
	// ErrInvalidOrder rejects malformed quantity/price or an unknown side
	ErrInvalidOrder = errors.New("invalid order")
	// ErrInsufficientFunds rejects a buy the account cannot afford
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientHoldings rejects a sell exceeding the held quantity
	ErrInsufficientHoldings = errors.New("insufficient holdings")
)

// Order is the ephemeral input to one settlement. It is never persisted.
type Order struct {
	Side     Side
	Quantity int64
	Price    float64
}

// Validate rejects an order before any state is touched.
func (o Order) Validate() error {
	if o.Side != SideBuy && o.Side != SideSell {
		return ErrInvalidOrder
	}
	if o.Quantity <= 0 || o.Price <= 0 {
		return ErrInvalidOrder
	}
	return nil
}

// Holdings is the typed result of a holdings query. Evaluation, Profit and
// TotalAsset are derived from the current price, never stored.
type Holdings struct {
	Cash       float64 `json:"cash"`
	Holdings   int64   `json:"holdings"`
	Evaluation float64 `json:"evaluation"`
	Profit     float64 `json:"profit"`
	TotalAsset float64 `json:"total_asset"`
}

// Broadcaster is the notification side of the hub.
type Broadcaster interface {
	Broadcast(v interface{})
}

// Journal records settled trades, best-effort.
type Journal interface {
	Record(ctx context.Context, username string, side Side, quantity int64, price float64)
}
