package market

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openpredict/marketd/internal/domain"
)

// conditionChecker is the slice of the registry the ledger needs to
// validate condition references on issuance.
type conditionChecker interface {
	IsPending(id domain.ConditionID) bool
}

// Ledger owns every IOU record. Mutations to a single IOU are serialized by
// the ledger lock; a bulk resolution pass holds the write lock for its whole
// duration so no reader ever observes a partially-resolved condition.
//
// Issuance is deliberately unconstrained: the ledger never checks an
// issuer's existing obligations. Over-issuance is a market signal for other
// players' offers to reprice, not a ledger error.
type Ledger struct {
	mu     sync.RWMutex
	ious   map[domain.IOUID]*domain.IOU
	byCond map[domain.ConditionID]map[domain.IOUID]struct{}
	conds  conditionChecker
	clock  func() time.Time
}

// NewLedger creates an empty ledger validating condition references against
// the given checker.
func NewLedger(conds conditionChecker, clock func() time.Time) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{
		ious:   make(map[domain.IOUID]*domain.IOU),
		byCond: make(map[domain.ConditionID]map[domain.IOUID]struct{}),
		conds:  conds,
		clock:  clock,
	}
}

func newIOUID() domain.IOUID {
	return domain.IOUID(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Issue mints a new debt record from issuer to holder. A nil ref creates an
// unconditional IOU; otherwise the condition must exist and still be
// Pending.
func (l *Ledger) Issue(issuer, holder domain.PlayerID, amount domain.Dollars, ref *domain.CondRef) (domain.IOU, error) {
	if amount <= 0 || amount > domain.MaxIOUAmount {
		return domain.IOU{}, domain.ErrInvalidAmount
	}
	if issuer == holder {
		return domain.IOU{}, domain.ErrSelfDebt
	}
	if ref != nil && !l.conds.IsPending(ref.ID) {
		return domain.IOU{}, domain.ErrUnknownCondition
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	iou := &domain.IOU{
		ID:        newIOUID(),
		Issuer:    issuer,
		Holder:    holder,
		Amount:    amount,
		State:     domain.IOUActive,
		CreatedAt: l.clock(),
	}
	if ref != nil {
		r := *ref
		iou.Condition = &r
	}

	l.ious[iou.ID] = iou
	l.index(iou)
	return *iou, nil
}

// Transfer moves amount of the IOU from its current holder to another
// player. A full transfer changes the holder in place; a partial transfer
// retires the parent and replaces it with two children that inherit issuer
// and condition. Any portion transferred to the IOU's own issuer is voided
// rather than held; debt cannot be held by its own issuer.
//
// The returned slice holds the resulting pieces, voided pieces included.
func (l *Ledger) Transfer(id domain.IOUID, from, to domain.PlayerID, amount domain.Dollars) ([]domain.IOU, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	iou, ok := l.ious[id]
	if !ok || !iou.Live() {
		return nil, domain.ErrNotFound
	}
	if iou.Holder != from {
		return nil, domain.ErrNotHolder
	}
	if amount > iou.Amount {
		return nil, domain.ErrInsufficientAmount
	}

	if amount == iou.Amount {
		if to == iou.Issuer {
			l.void(iou)
			return []domain.IOU{*iou}, nil
		}
		iou.Holder = to
		return []domain.IOU{*iou}, nil
	}

	// Partial transfer: split. The parent is replaced, not voided.
	remainder := l.child(iou, iou.Amount-amount, from)
	piece := l.child(iou, amount, to)
	if to == iou.Issuer {
		piece.State = domain.IOUVoid
	}

	l.unindex(iou)
	delete(l.ious, iou.ID)

	l.ious[remainder.ID] = remainder
	l.index(remainder)
	l.ious[piece.ID] = piece
	if piece.State != domain.IOUVoid {
		l.index(piece)
	}

	return []domain.IOU{*piece, *remainder}, nil
}

// child builds a split piece inheriting issuer, condition, and state.
func (l *Ledger) child(parent *domain.IOU, amount domain.Dollars, holder domain.PlayerID) *domain.IOU {
	c := &domain.IOU{
		ID:        newIOUID(),
		Issuer:    parent.Issuer,
		Holder:    holder,
		Amount:    amount,
		State:     parent.State,
		CreatedAt: l.clock(),
	}
	if parent.Condition != nil {
		r := *parent.Condition
		c.Condition = &r
	}
	return c
}

// ResolveForCondition applies a terminal condition state to every active
// IOU referencing it, directly or negated. Winning claims become Settled
// unconditional debt; losing claims are voided. An Expired condition voids
// every claim on either side. The entire pass runs under one write lock.
func (l *Ledger) ResolveForCondition(cond domain.ConditionID, state domain.ConditionState) (settled, voided []domain.IOU) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids, ok := l.byCond[cond]
	if !ok {
		return nil, nil
	}

	for id := range ids {
		iou := l.ious[id]
		if iou == nil || !iou.Conditional() || iou.Condition.ID != cond {
			continue
		}

		pays := state != domain.ConditionExpired &&
			iou.Condition.PaysUnder(state == domain.ConditionTrue)

		snapshot := *iou
		if pays {
			snapshot.State = domain.IOUSettled
			settled = append(settled, snapshot)
			iou.State = domain.IOUSettled
			iou.Condition = nil
		} else {
			snapshot.State = domain.IOUVoid
			voided = append(voided, snapshot)
			iou.State = domain.IOUVoid
		}
	}
	delete(l.byCond, cond)

	return settled, voided
}

// Get returns a copy of the IOU record, voided records included.
func (l *Ledger) Get(id domain.IOUID) (domain.IOU, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	iou, ok := l.ious[id]
	if !ok {
		return domain.IOU{}, false
	}
	return *iou, true
}

// Balance aggregates live debt for one player: Owed sums IOUs they hold,
// Owing sums IOUs they issued. Informational only; nothing in the core
// reads it back.
func (l *Ledger) Balance(player domain.PlayerID) domain.Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var b domain.Balance
	for _, iou := range l.ious {
		if !iou.Live() {
			continue
		}
		if iou.Holder == player {
			b.Owed += iou.Amount
		}
		if iou.Issuer == player {
			b.Owing += iou.Amount
		}
	}
	return b
}

// ListByPlayer returns copies of every live IOU the player holds or issued.
func (l *Ledger) ListByPlayer(player domain.PlayerID) []domain.IOU {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.IOU
	for _, iou := range l.ious {
		if iou.Live() && (iou.Holder == player || iou.Issuer == player) {
			out = append(out, *iou)
		}
	}
	return out
}

// index/unindex maintain the condition -> active IOU set used by the bulk
// resolution pass. Callers hold the write lock.

func (l *Ledger) index(iou *domain.IOU) {
	if !iou.Conditional() {
		return
	}
	set, ok := l.byCond[iou.Condition.ID]
	if !ok {
		set = make(map[domain.IOUID]struct{})
		l.byCond[iou.Condition.ID] = set
	}
	set[iou.ID] = struct{}{}
}

func (l *Ledger) unindex(iou *domain.IOU) {
	if iou.Condition == nil {
		return
	}
	if set, ok := l.byCond[iou.Condition.ID]; ok {
		delete(set, iou.ID)
		if len(set) == 0 {
			delete(l.byCond, iou.Condition.ID)
		}
	}
}

func (l *Ledger) void(iou *domain.IOU) {
	l.unindex(iou)
	iou.State = domain.IOUVoid
}
