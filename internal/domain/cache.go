package domain

import (
	"context"
	"time"
)

// PriceCache exposes the last clearing price per condition.
type PriceCache interface {
	SetPrice(ctx context.Context, cond ConditionID, price Price, ts time.Time) error
	GetPrice(ctx context.Context, cond ConditionID) (Price, time.Time, error)
	GetPrices(ctx context.Context, conds []ConditionID) (map[ConditionID]Price, error)
}

// RateLimiter provides distributed rate limiting for the API surface.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub fan-out and durable, ordered streams for
// market events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
