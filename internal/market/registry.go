// Package market implements the prediction-market trading core: the
// condition registry, the conditional-IOU ledger, per-condition offer books,
// the continuous double-auction matching engine, and settlement. Everything
// here is in-memory and synchronous; persistence, transport, and scheduling
// are collaborator concerns wired in by the service and app layers.
package market

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openpredict/marketd/internal/domain"
)

// Registry tracks the lifecycle of every condition. It is the leaf
// dependency of the ledger and the matching engine: both consult it to
// validate condition references.
type Registry struct {
	mu       sync.RWMutex
	byID     map[domain.ConditionID]*domain.Condition
	openDesc map[string]domain.ConditionID // pending conditions keyed by description
	clock    func() time.Time
}

// NewRegistry creates an empty registry using the given clock.
func NewRegistry(clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		byID:     make(map[domain.ConditionID]*domain.Condition),
		openDesc: make(map[string]domain.ConditionID),
		clock:    clock,
	}
}

func newConditionID() domain.ConditionID {
	return domain.ConditionID(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Register creates a new Pending condition. Descriptions are free-form keys;
// registering a description identical to an existing open condition fails
// with ErrDuplicateCondition.
func (r *Registry) Register(description string, expiry *time.Time) (domain.Condition, error) {
	desc := strings.TrimSpace(description)
	if desc == "" {
		return domain.Condition{}, domain.ErrDuplicateCondition
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.openDesc[desc]; exists {
		return domain.Condition{}, domain.ErrDuplicateCondition
	}

	c := &domain.Condition{
		ID:          newConditionID(),
		Description: desc,
		Expiry:      expiry,
		State:       domain.ConditionPending,
		CreatedAt:   r.clock(),
	}
	r.byID[c.ID] = c
	r.openDesc[desc] = c.ID
	return *c, nil
}

// Get returns a copy of the condition.
func (r *Registry) Get(id domain.ConditionID) (domain.Condition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return domain.Condition{}, false
	}
	return *c, true
}

// IsPending reports whether the condition exists and has not resolved.
func (r *Registry) IsPending(id domain.ConditionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return ok && c.State == domain.ConditionPending
}

// markResolved transitions a Pending condition to the given terminal state.
// The caller (the market facade) is responsible for holding the condition's
// critical section and running settlement afterwards.
func (r *Registry) markResolved(id domain.ConditionID, state domain.ConditionState) (domain.Condition, error) {
	if !state.Terminal() {
		return domain.Condition{}, domain.ErrUnknownCondition
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return domain.Condition{}, domain.ErrUnknownCondition
	}
	if c.State != domain.ConditionPending {
		return domain.Condition{}, domain.ErrAlreadyResolved
	}

	now := r.clock()
	c.State = state
	c.ResolvedAt = &now
	delete(r.openDesc, c.Description)
	return *c, nil
}

// expiryCandidates returns every Pending condition whose expiry has passed
// at the supplied time. The transition itself happens through markResolved
// under the per-condition critical section.
func (r *Registry) expiryCandidates(now time.Time) []domain.ConditionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []domain.ConditionID
	for id, c := range r.byID {
		if c.State == domain.ConditionPending && c.Expiry != nil && !c.Expiry.After(now) {
			due = append(due, id)
		}
	}
	return due
}

// List returns copies of all conditions in no particular order; callers
// sort as needed.
func (r *Registry) List() []domain.Condition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Condition, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, *c)
	}
	return out
}
