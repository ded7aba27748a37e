package domain

import "time"

// ConditionID identifies a registered condition.
type ConditionID string

// ConditionState is the lifecycle state of a condition. Once a condition
// leaves Pending it never transitions again.
type ConditionState string

const (
	ConditionPending ConditionState = "pending"
	ConditionTrue    ConditionState = "true"
	ConditionFalse   ConditionState = "false"
	ConditionExpired ConditionState = "expired"
)

// Terminal reports whether the state is one of the three terminal states.
func (s ConditionState) Terminal() bool {
	return s == ConditionTrue || s == ConditionFalse || s == ConditionExpired
}

// Condition is a proposition players trade on. Expiry is optional; a
// condition without one can only leave Pending through an explicit resolve.
type Condition struct {
	ID          ConditionID
	Description string
	Expiry      *time.Time
	State       ConditionState
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// CondRef references a condition from an IOU, possibly in negated form.
// The negation is a derived view: a claim on ¬C pays off exactly when C
// resolves false. No separate condition record exists for the negation.
type CondRef struct {
	ID      ConditionID
	Negated bool
}

// Negate returns the complementary reference.
func (r CondRef) Negate() CondRef {
	return CondRef{ID: r.ID, Negated: !r.Negated}
}

// PaysUnder reports whether a claim on this reference pays out given the
// resolved outcome of the underlying condition.
func (r CondRef) PaysUnder(outcome bool) bool {
	return r.Negated != outcome
}
