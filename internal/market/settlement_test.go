package market

import (
	"sync"
	"testing"
	"time"

	"github.com/openpredict/marketd/internal/domain"
)

// Resolution correctness: claims on C settle when C comes true, claims on
// ¬C are voided, and vice versa.
func TestResolveTrueSettlesAndVoids(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "settles true")

	onC, _ := m.IssueIOU("alice", "bob", 300, &domain.CondRef{ID: cond})
	onNotC, _ := m.IssueIOU("bob", "alice", 200, &domain.CondRef{ID: cond, Negated: true})

	report, err := m.ResolveCondition(cond, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Settled) != 1 || len(report.Voided) != 1 {
		t.Fatalf("report settled/voided = %d/%d, want 1/1", len(report.Settled), len(report.Voided))
	}

	winner, _ := m.GetIOU(onC.ID)
	if winner.State != domain.IOUSettled {
		t.Errorf("claim on C state = %q, want settled", winner.State)
	}
	if winner.Condition != nil {
		t.Error("settled iou should have its condition cleared")
	}

	loser, _ := m.GetIOU(onNotC.ID)
	if loser.State != domain.IOUVoid {
		t.Errorf("claim on ¬C state = %q, want void", loser.State)
	}

	// The settled debt is payable in full; the voided one is gone.
	if b := m.QueryBalance("bob"); b.Owed != 300 || b.Owing != 0 {
		t.Errorf("bob balance = %+v, want owed 300, owing 0", b)
	}
}

func TestResolveFalseInvertsOutcome(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "settles false")

	onC, _ := m.IssueIOU("alice", "bob", 300, &domain.CondRef{ID: cond})
	onNotC, _ := m.IssueIOU("bob", "alice", 200, &domain.CondRef{ID: cond, Negated: true})

	if _, err := m.ResolveCondition(cond, false); err != nil {
		t.Fatal(err)
	}

	if got, _ := m.GetIOU(onC.ID); got.State != domain.IOUVoid {
		t.Errorf("claim on C state = %q, want void", got.State)
	}
	if got, _ := m.GetIOU(onNotC.ID); got.State != domain.IOUSettled {
		t.Errorf("claim on ¬C state = %q, want settled", got.State)
	}
}

// Expiry voids both sides: neither belief pays off.
func TestExpiryVoidsEverything(t *testing.T) {
	m := newTestMarket()
	now := testClock()()
	expiry := now.Add(time.Hour)
	c, _ := m.RegisterCondition("expires unresolved", &expiry)

	onC, _ := m.IssueIOU("alice", "bob", 300, &domain.CondRef{ID: c.ID})
	onNotC, _ := m.IssueIOU("bob", "alice", 200, &domain.CondRef{ID: c.ID, Negated: true})

	m.CheckExpiry(now.Add(2 * time.Hour))

	for _, id := range []domain.IOUID{onC.ID, onNotC.ID} {
		if got, _ := m.GetIOU(id); got.State != domain.IOUVoid {
			t.Errorf("iou %s state = %q, want void", id, got.State)
		}
	}
	if b := m.QueryBalance("alice"); b.Owed != 0 || b.Owing != 0 {
		t.Errorf("alice balance after expiry = %+v, want zero", b)
	}
}

// Unconditional debt is untouched by any resolution.
func TestUnconditionalDebtSurvivesResolution(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "bystander")

	plain, _ := m.IssueIOU("alice", "bob", 500, nil)
	m.ResolveCondition(cond, true)

	if got, _ := m.GetIOU(plain.ID); got.State != domain.IOUActive {
		t.Errorf("unconditional iou state = %q, want active", got.State)
	}
}

// A settled IOU behaves as ordinary unconditional debt: transferable,
// splittable, cancellable against the issuer.
func TestSettledIOUBehavesUnconditional(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "settled lives on")

	iou, _ := m.IssueIOU("alice", "bob", 400, &domain.CondRef{ID: cond})
	m.ResolveCondition(cond, true)

	pieces, err := m.TransferIOU(iou.ID, "bob", "carol", 150)
	if err != nil {
		t.Fatal(err)
	}
	if len(pieces) != 2 {
		t.Fatalf("expected a split, got %d pieces", len(pieces))
	}
	if b := m.QueryBalance("carol"); b.Owed != 150 {
		t.Errorf("carol owed %d, want 150", b.Owed)
	}
}

// Resolution drops resting offers on the condition.
func TestResolutionDropsRestingOffers(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "book cleared")

	m.PostOffer("p1", cond, 400, 900)
	m.ResolveCondition(cond, true)

	top := m.Top(cond)
	if top.Bid != nil || top.Ask != nil {
		t.Errorf("book should be empty after resolution, got %+v", top)
	}
}

// Trades executed through the engine settle like any other conditional
// IOUs: the winning side keeps an unconditional claim.
func TestTradeLegsSettleWithCondition(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "trade then resolve")

	m.PostOffer("p1", cond, 500, 600)
	trades, _ := m.PostOffer("p2", cond, 300, 400)
	if len(trades) != 1 {
		t.Fatal("expected a trade")
	}

	m.ResolveCondition(cond, true)

	// p1 bet on C and won: holds $0.550 settled from p2. p2's claim on ¬C
	// is void.
	if b := m.QueryBalance("p1"); b.Owed != 550 || b.Owing != 0 {
		t.Errorf("p1 balance = %+v, want owed 550, owing 0", b)
	}
	if b := m.QueryBalance("p2"); b.Owed != 0 || b.Owing != 550 {
		t.Errorf("p2 balance = %+v, want owed 0, owing 550", b)
	}
}

// No reader may observe a partially-resolved condition: concurrent balance
// reads during a resolution always see either all conditional claims live
// or all finalized.
func TestResolutionIsAtomicUnderConcurrentReads(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "atomic resolution")

	const n = 50
	for i := 0; i < n; i++ {
		m.IssueIOU("alice", "bob", 10, &domain.CondRef{ID: cond})
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			owed := m.QueryBalance("bob").Owed
			if owed != 0 && owed != n*10 {
				t.Errorf("observed partially-resolved balance %d", owed)
				return
			}
		}
	}()

	m.ResolveCondition(cond, false) // every claim on C voids
	close(stop)
	wg.Wait()

	if owed := m.QueryBalance("bob").Owed; owed != 0 {
		t.Errorf("final owed = %d, want 0", owed)
	}
}
