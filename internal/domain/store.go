package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// The stores below journal core activity for observability and reporting.
// They are write-behind: the in-memory market stays authoritative and never
// reads its own state back from a store.

// ConditionStore journals condition lifecycle transitions.
type ConditionStore interface {
	Insert(ctx context.Context, c Condition) error
	MarkResolved(ctx context.Context, id ConditionID, state ConditionState, at time.Time) error
	GetByID(ctx context.Context, id ConditionID) (Condition, error)
	ListOpen(ctx context.Context, opts ListOpts) ([]Condition, error)
}

// IOUStore journals IOU records as they are created and retired.
type IOUStore interface {
	Insert(ctx context.Context, iou IOU) error
	UpdateState(ctx context.Context, id IOUID, state IOUState) error
	UpdateHolder(ctx context.Context, id IOUID, holder PlayerID, amount Dollars) error
	ListByPlayer(ctx context.Context, player PlayerID, opts ListOpts) ([]IOU, error)
	ListByCondition(ctx context.Context, cond ConditionID) ([]IOU, error)
}

// TradeStore journals executed trades.
type TradeStore interface {
	Insert(ctx context.Context, t Trade) error
	ListByCondition(ctx context.Context, cond ConditionID, opts ListOpts) ([]Trade, error)
	ListRecent(ctx context.Context, limit int) ([]Trade, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// PlayerStore journals the player registry.
type PlayerStore interface {
	Insert(ctx context.Context, p Player) error
	SetLocked(ctx context.Context, id PlayerID, locked bool) error
	GetByID(ctx context.Context, id PlayerID) (Player, error)
	List(ctx context.Context, opts ListOpts) ([]Player, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
