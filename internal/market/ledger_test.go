package market

import (
	"errors"
	"testing"
	"time"

	"github.com/openpredict/marketd/internal/domain"
)

type pendingAll struct{}

func (pendingAll) IsPending(domain.ConditionID) bool { return true }

func testClock() func() time.Time {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func newTestLedger() *Ledger {
	return NewLedger(pendingAll{}, testClock())
}

func TestIssueRejectsSelfDebt(t *testing.T) {
	l := newTestLedger()
	if _, err := l.Issue("alice", "alice", 100, nil); !errors.Is(err, domain.ErrSelfDebt) {
		t.Fatalf("expected ErrSelfDebt, got %v", err)
	}
}

func TestIssueRejectsNonPositiveAmount(t *testing.T) {
	l := newTestLedger()
	for _, amount := range []domain.Dollars{0, -5} {
		if _, err := l.Issue("alice", "bob", amount, nil); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestFullTransferChangesHolderInPlace(t *testing.T) {
	l := newTestLedger()
	iou, err := l.Issue("alice", "bob", 500, nil)
	if err != nil {
		t.Fatal(err)
	}

	pieces, err := l.Transfer(iou.ID, "bob", "carol", 500)
	if err != nil {
		t.Fatal(err)
	}
	if len(pieces) != 1 || pieces[0].ID != iou.ID {
		t.Fatalf("full transfer should keep the same id, got %+v", pieces)
	}
	if pieces[0].Holder != "carol" {
		t.Errorf("holder = %q, want carol", pieces[0].Holder)
	}
}

func TestPartialTransferSplitsAndConserves(t *testing.T) {
	l := newTestLedger()
	iou, _ := l.Issue("alice", "bob", 500, nil)

	pieces, err := l.Transfer(iou.ID, "bob", "carol", 120)
	if err != nil {
		t.Fatal(err)
	}
	if len(pieces) != 2 {
		t.Fatalf("expected 2 pieces, got %d", len(pieces))
	}

	var total domain.Dollars
	for _, p := range pieces {
		total += p.Amount
		if p.Issuer != "alice" {
			t.Errorf("piece issuer = %q, want alice", p.Issuer)
		}
		if p.ID == iou.ID {
			t.Error("split pieces must have fresh ids")
		}
	}
	if total != 500 {
		t.Errorf("split amounts sum to %d, want 500", total)
	}

	if _, ok := l.Get(iou.ID); ok {
		t.Error("parent iou should be retired after split")
	}
	if b := l.Balance("carol"); b.Owed != 120 {
		t.Errorf("carol owed %d, want 120", b.Owed)
	}
	if b := l.Balance("bob"); b.Owed != 380 {
		t.Errorf("bob owed %d, want 380", b.Owed)
	}
}

func TestTransferToIssuerVoidsDebt(t *testing.T) {
	l := newTestLedger()
	iou, _ := l.Issue("alice", "bob", 500, nil)

	pieces, err := l.Transfer(iou.ID, "bob", "alice", 500)
	if err != nil {
		t.Fatal(err)
	}
	if pieces[0].State != domain.IOUVoid {
		t.Fatalf("transfer to issuer should void, got state %q", pieces[0].State)
	}
	if b := l.Balance("alice"); b.Owing != 0 {
		t.Errorf("alice still owing %d after cancellation", b.Owing)
	}
	if b := l.Balance("bob"); b.Owed != 0 {
		t.Errorf("bob still owed %d after cancellation", b.Owed)
	}
}

func TestPartialTransferToIssuerVoidsOnlyThePiece(t *testing.T) {
	l := newTestLedger()
	iou, _ := l.Issue("alice", "bob", 500, nil)

	pieces, err := l.Transfer(iou.ID, "bob", "alice", 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(pieces) != 2 {
		t.Fatalf("expected 2 pieces, got %d", len(pieces))
	}
	if b := l.Balance("alice"); b.Owing != 300 {
		t.Errorf("alice owing %d, want 300", b.Owing)
	}
	if b := l.Balance("bob"); b.Owed != 300 {
		t.Errorf("bob owed %d, want 300", b.Owed)
	}
}

func TestNoSelfHeldDebtAfterAnyTransfer(t *testing.T) {
	l := newTestLedger()
	iou, _ := l.Issue("alice", "bob", 400, nil)
	pieces, _ := l.Transfer(iou.ID, "bob", "carol", 150)

	for _, p := range pieces {
		got, ok := l.Get(p.ID)
		if !ok {
			continue
		}
		if got.Live() && got.Issuer == got.Holder {
			t.Fatalf("live iou %s has issuer == holder", got.ID)
		}
	}
}

func TestTransferValidation(t *testing.T) {
	l := newTestLedger()
	iou, _ := l.Issue("alice", "bob", 100, nil)

	if _, err := l.Transfer(iou.ID, "mallory", "carol", 50); !errors.Is(err, domain.ErrNotHolder) {
		t.Errorf("expected ErrNotHolder, got %v", err)
	}
	if _, err := l.Transfer(iou.ID, "bob", "carol", 101); !errors.Is(err, domain.ErrInsufficientAmount) {
		t.Errorf("expected ErrInsufficientAmount, got %v", err)
	}
	if _, err := l.Transfer(iou.ID, "bob", "carol", 0); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := l.Transfer("missing", "bob", "carol", 10); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBalanceAggregatesLiveDebtOnly(t *testing.T) {
	l := newTestLedger()
	a, _ := l.Issue("alice", "bob", 300, nil)
	l.Issue("bob", "alice", 120, nil)
	l.Transfer(a.ID, "bob", "alice", 100) // cancels $0.100 of alice's debt

	b := l.Balance("alice")
	if b.Owing != 200 {
		t.Errorf("alice owing %d, want 200", b.Owing)
	}
	if b.Owed != 120 {
		t.Errorf("alice owed %d, want 120", b.Owed)
	}
}

func TestConservationAcrossRepeatedSplits(t *testing.T) {
	l := newTestLedger()
	iou, _ := l.Issue("alice", "bob", 1000, nil)

	// Bob scatters the debt across three holders.
	pieces, _ := l.Transfer(iou.ID, "bob", "carol", 250)
	var bobPiece domain.IOUID
	for _, p := range pieces {
		if p.Holder == "bob" {
			bobPiece = p.ID
		}
	}
	l.Transfer(bobPiece, "bob", "dave", 250)

	if b := l.Balance("alice"); b.Owing != 1000 {
		t.Fatalf("alice owing %d after splits, want 1000", b.Owing)
	}
	total := l.Balance("bob").Owed + l.Balance("carol").Owed + l.Balance("dave").Owed
	if total != 1000 {
		t.Fatalf("holders' owed sums to %d, want 1000", total)
	}
}
