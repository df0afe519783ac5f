package models

// Notification type discriminators shared by every payload sent to observers.
const (
	TypePriceUpdate = "price_update"
	TypeTradeEvent  = "trade_event"
)

// Tick represents a single market price update for the instrument
type Tick struct {
	Type  string `json:"type"`
	Price int64  `json:"price"`
	Time  string `json:"time"`   // wall clock, HH:MM:SS
	SeqID int64  `json:"seq_id"` // monotonic counter
}

// TradeEvent announces a settled trade to all connected observers
type TradeEvent struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}
