package market

import (
	"sort"

	"github.com/openpredict/marketd/internal/domain"
)

// book holds the resting offers for one condition. A player has at most one
// live offer per condition; posting a new one supersedes the old, so only
// distinct players' offers ever compete by time. The book is not
// goroutine-safe; the market facade serializes access through the
// per-condition critical section.
type book struct {
	cond   domain.ConditionID
	offers map[domain.PlayerID]*domain.Offer
}

func newBook(cond domain.ConditionID) *book {
	return &book{
		cond:   cond,
		offers: make(map[domain.PlayerID]*domain.Offer),
	}
}

// post inserts the offer, replacing any prior offer from the same player.
func (b *book) post(o domain.Offer) {
	copy := o
	b.offers[o.Player] = &copy
}

// cancel removes the player's offer. Idempotent: cancelling an absent offer
// is a no-op, not an error.
func (b *book) cancel(player domain.PlayerID) bool {
	if _, ok := b.offers[player]; !ok {
		return false
	}
	delete(b.offers, player)
	return true
}

// remove drops a fully consumed offer, but only if it is still the same
// posting (a later re-post must not be swept away by an older match).
func (b *book) remove(o *domain.Offer) {
	if cur, ok := b.offers[o.Player]; ok && cur.Seq == o.Seq {
		delete(b.offers, o.Player)
	}
}

// bids returns the offers viewed as buy interest: highest buy price first,
// earliest sequence first within a price level.
func (b *book) bids() []*domain.Offer {
	out := b.all()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Buy != out[j].Buy {
			return out[i].Buy > out[j].Buy
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// asks returns the offers viewed as sell interest: lowest sell price first,
// earliest sequence first within a price level.
func (b *book) asks() []*domain.Offer {
	out := b.all()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sell != out[j].Sell {
			return out[i].Sell < out[j].Sell
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// top returns the best bid and ask without removing them.
func (b *book) top() domain.BookTop {
	t := domain.BookTop{Condition: b.cond}
	if bids := b.bids(); len(bids) > 0 {
		o := *bids[0]
		t.Bid = &o
	}
	if asks := b.asks(); len(asks) > 0 {
		o := *asks[0]
		t.Ask = &o
	}
	return t
}

func (b *book) empty() bool {
	return len(b.offers) == 0
}

func (b *book) all() []*domain.Offer {
	out := make([]*domain.Offer, 0, len(b.offers))
	for _, o := range b.offers {
		out = append(out, o)
	}
	return out
}
