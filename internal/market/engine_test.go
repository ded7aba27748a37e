package market

import (
	"errors"
	"testing"

	"github.com/openpredict/marketd/internal/domain"
)

func newTestMarket() *Market {
	return New(Config{Clock: testClock()})
}

func mustCondition(t *testing.T, m *Market, desc string) domain.ConditionID {
	t.Helper()
	c, err := m.RegisterCondition(desc, nil)
	if err != nil {
		t.Fatalf("register condition: %v", err)
	}
	return c.ID
}

// The worked example: Player1 {buy:0.50, sell:0.60}, Player2 {buy:0.30,
// sell:0.40}. Player1's bid crosses Player2's ask at price (500+400)/2 = 450.
func TestWorkedExample(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "it rains tomorrow")

	trades, err := m.PostOffer("p1", cond, 500, 600)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 0 {
		t.Fatalf("first offer should rest, got %d trades", len(trades))
	}

	trades, err = m.PostOffer("p2", cond, 300, 400)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}

	tr := trades[0]
	if tr.Price != 450 {
		t.Errorf("clearing price = %d, want 450", tr.Price)
	}
	if tr.Buyer != "p1" || tr.Seller != "p2" {
		t.Errorf("buyer/seller = %s/%s, want p1/p2", tr.Buyer, tr.Seller)
	}

	// Player1 holds $0.550 from Player2 conditional on C.
	buyerIOU, ok := m.GetIOU(tr.BuyerIOU)
	if !ok {
		t.Fatal("buyer leg missing")
	}
	if buyerIOU.Amount != 550 || buyerIOU.Issuer != "p2" || buyerIOU.Holder != "p1" {
		t.Errorf("buyer leg = %+v, want $0.550 p2->p1", buyerIOU)
	}
	if buyerIOU.Condition == nil || buyerIOU.Condition.ID != cond || buyerIOU.Condition.Negated {
		t.Errorf("buyer leg condition = %+v, want C", buyerIOU.Condition)
	}

	// Player2 holds $0.450 from Player1 conditional on ¬C.
	sellerIOU, ok := m.GetIOU(tr.SellerIOU)
	if !ok {
		t.Fatal("seller leg missing")
	}
	if sellerIOU.Amount != 450 || sellerIOU.Issuer != "p1" || sellerIOU.Holder != "p2" {
		t.Errorf("seller leg = %+v, want $0.450 p1->p2", sellerIOU)
	}
	if sellerIOU.Condition == nil || !sellerIOU.Condition.Negated {
		t.Errorf("seller leg condition = %+v, want ¬C", sellerIOU.Condition)
	}
}

func TestClearingPriceWithinCross(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "clearing price bounds")

	m.PostOffer("buyer", cond, 700, 1000)
	trades, _ := m.PostOffer("seller", cond, 0, 300)
	if len(trades) != 1 {
		t.Fatal("expected a trade")
	}
	p := trades[0].Price
	if p < 300 || p > 700 {
		t.Errorf("price %d outside [sell, buy] = [300, 700]", p)
	}
	if !domain.ValidPrice(p) {
		t.Errorf("price %d outside [0, 1000]", p)
	}
}

// Higher-priced bids win over earlier lower-priced ones.
func TestPricePriorityBeatsTime(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "price priority")

	m.PostOffer("early", cond, 500, 1000) // t1, bid 0.50
	m.PostOffer("late", cond, 600, 1000)  // t2, bid 0.60

	trades, _ := m.PostOffer("seller", cond, 0, 400) // ask 0.40 crosses both
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Buyer != "late" {
		t.Errorf("ask matched %s, want the higher 0.60 bid from late", trades[0].Buyer)
	}
}

// Equal-priced bids are served in posting order.
func TestEqualPriceTieBreaksByTime(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "time tie break")

	m.PostOffer("first", cond, 600, 1000)
	m.PostOffer("second", cond, 600, 1000)

	trades, _ := m.PostOffer("seller", cond, 0, 400)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Buyer != "first" {
		t.Errorf("ask matched %s, want the earlier equal-priced bid", trades[0].Buyer)
	}
}

// A player's own buy and sell never cross each other.
func TestNoSelfMatch(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "self cross")

	trades, err := m.PostOffer("solo", cond, 600, 400) // buy > sell, same player
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 0 {
		t.Fatalf("self-crossing offer produced %d trades", len(trades))
	}
}

// One post can trigger a cascade of matches.
func TestMatchingLoopsWhileCrossesRemain(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "cascade")

	m.PostOffer("b1", cond, 600, 1000)
	m.PostOffer("b2", cond, 550, 1000)
	m.PostOffer("s1", cond, 0, 500)

	// s1's ask crosses b1 first (widest spread); b2 remains resting because
	// s1's offer was fully consumed.
	trades, _ := m.PostOffer("s2", cond, 0, 500)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade from s2's post, got %d", len(trades))
	}
	if trades[0].Buyer != "b2" || trades[0].Seller != "s2" {
		t.Errorf("got %s/%s, want b2/s2", trades[0].Buyer, trades[0].Seller)
	}
}

// Offers are all-or-nothing: a matched offer leaves the book entirely and
// trading again requires a re-post.
func TestOfferFullyConsumedByOneMatch(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "all or nothing")

	m.PostOffer("buyer", cond, 600, 1000)
	m.PostOffer("seller", cond, 0, 400)

	top := m.Top(cond)
	if top.Bid != nil || top.Ask != nil {
		t.Fatalf("book should be empty after the match, got %+v", top)
	}

	// Re-posting trades again.
	m.PostOffer("buyer", cond, 600, 1000)
	trades, _ := m.PostOffer("seller", cond, 0, 400)
	if len(trades) != 1 {
		t.Fatalf("re-posted offers should trade, got %d trades", len(trades))
	}
}

func TestRepostSupersedesPriorOffer(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "supersede")

	m.PostOffer("quoter", cond, 300, 900)
	m.PostOffer("quoter", cond, 200, 800) // replaces the first

	top := m.Top(cond)
	if top.Bid == nil || top.Bid.Buy != 200 {
		t.Fatalf("expected replacement bid 200, got %+v", top.Bid)
	}

	// The stale 0.30 bid must not cross a 0.25 ask.
	trades, _ := m.PostOffer("seller", cond, 0, 250)
	if len(trades) != 0 {
		t.Fatalf("superseded offer still traded: %d trades", len(trades))
	}
}

func TestPostOfferValidation(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "validation")

	if _, err := m.PostOffer("p", cond, -1, 500); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Errorf("negative buy: expected ErrInvalidPrice, got %v", err)
	}
	if _, err := m.PostOffer("p", cond, 0, 1001); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Errorf("sell > $1: expected ErrInvalidPrice, got %v", err)
	}
	if _, err := m.PostOffer("p", "missing", 400, 600); !errors.Is(err, domain.ErrUnknownCondition) {
		t.Errorf("unknown condition: expected ErrUnknownCondition, got %v", err)
	}

	m.ResolveCondition(cond, true)
	if _, err := m.PostOffer("p", cond, 400, 600); !errors.Is(err, domain.ErrUnknownCondition) {
		t.Errorf("resolved condition: expected ErrUnknownCondition, got %v", err)
	}
}

func TestCancelOfferIsIdempotent(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "cancel")

	m.PostOffer("p", cond, 400, 600)
	m.CancelOffer("p", cond)
	if top := m.Top(cond); top.Bid != nil {
		t.Fatal("offer should be gone after cancel")
	}

	// Cancelling again, or cancelling on an unknown condition, is a no-op.
	m.CancelOffer("p", cond)
	m.CancelOffer("p", "missing")
}

// An extreme cross at the $1 boundary mints only one leg: a zero IOU never
// exists.
func TestZeroLegNotMinted(t *testing.T) {
	m := newTestMarket()
	cond := mustCondition(t, m, "zero leg")

	m.PostOffer("buyer", cond, 1000, 1000)
	trades, _ := m.PostOffer("seller", cond, 0, 1000)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Price != 1000 {
		t.Fatalf("price = %d, want 1000", tr.Price)
	}
	if tr.BuyerIOU != "" {
		t.Error("buyer leg should not be minted at p = $1")
	}
	if tr.SellerIOU == "" {
		t.Error("seller leg should be minted at p = $1")
	}
}
