package domain

import "time"

// Bus channels for market events. The WebSocket hub mirrors all of them.
const (
	ChannelTrades     = "ch:trades"
	ChannelQuotes     = "ch:quotes"
	ChannelConditions = "ch:conditions"
)

// TradeEvent is published on ChannelTrades for every executed match.
type TradeEvent struct {
	Type      string      `json:"type"` // "trade"
	TradeID   string      `json:"trade_id"`
	Condition ConditionID `json:"condition_id"`
	Buyer     PlayerID    `json:"buyer"`
	Seller    PlayerID    `json:"seller"`
	Price     float64     `json:"price"`
	Time      time.Time   `json:"time"`
}

// QuoteEvent is published on ChannelQuotes when the top of a book changes.
type QuoteEvent struct {
	Type      string      `json:"type"` // "quote"
	Condition ConditionID `json:"condition_id"`
	BestBid   *float64    `json:"best_bid,omitempty"`
	BestAsk   *float64    `json:"best_ask,omitempty"`
	Time      time.Time   `json:"time"`
}

// ConditionEvent is published on ChannelConditions for lifecycle
// transitions: "registered", "resolved", "expired".
type ConditionEvent struct {
	Type      string         `json:"type"`
	Condition ConditionID    `json:"condition_id"`
	State     ConditionState `json:"state"`
	Time      time.Time      `json:"time"`
}
