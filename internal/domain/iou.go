package domain

import "time"

// IOUID identifies a single debt record.
type IOUID string

// IOUState is the lifecycle state of an IOU.
type IOUState string

const (
	// IOUActive is a live debt, conditional or not.
	IOUActive IOUState = "active"
	// IOUSettled is a debt whose condition resolved in the holder's favor:
	// the condition is cleared and the amount is payable in full. Settled
	// IOUs behave like ordinary unconditional debt: they still count toward
	// balances and remain transferable.
	IOUSettled IOUState = "settled"
	// IOUVoid is an extinguished debt: transferred to its own issuer, or its
	// condition resolved against the holder (or expired).
	IOUVoid IOUState = "void"
)

// IOU is a transferable, splittable debt record. Issuer and holder are
// opaque player ids, never back-pointers, so debt cycles between players
// need no cyclic object graph. Invariants: Issuer != Holder and Amount > 0
// for every live IOU.
type IOU struct {
	ID        IOUID
	Issuer    PlayerID
	Holder    PlayerID
	Amount    Dollars
	Condition *CondRef // nil for unconditional debt
	State     IOUState
	CreatedAt time.Time
}

// Live reports whether the IOU still represents an obligation.
func (i *IOU) Live() bool {
	return i.State == IOUActive || i.State == IOUSettled
}

// Conditional reports whether the IOU is gated on an unresolved condition.
func (i *IOU) Conditional() bool {
	return i.State == IOUActive && i.Condition != nil
}
