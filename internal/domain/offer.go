package domain

import "time"

// Offer is a player's standing two-sided quote on one condition: the price
// at which they would buy a $1 claim on the condition and the price at which
// they would sell one. The absent offer is implicitly {buy: $0, sell: $1}
// and is never materialized. Seq is a monotonic sequence number assigned at
// post time; distinct players' offers at equal prices are served in Seq
// order.
type Offer struct {
	Player    PlayerID
	Condition ConditionID
	Buy       Price
	Sell      Price
	Seq       uint64
	PostedAt  time.Time
}

// Crosses reports whether o's bid meets counter's ask. Matching additionally
// requires distinct players; an offer never trades against itself or against
// another offer from the same player.
func (o Offer) Crosses(counter Offer) bool {
	return o.Player != counter.Player && o.Buy >= counter.Sell
}

// BookTop is the read-only best-of-book view used by the matching engine
// and the quote API.
type BookTop struct {
	Condition ConditionID
	Bid       *Offer // highest buy, nil when the book side is empty
	Ask       *Offer // lowest sell, nil when the book side is empty
}
