package domain

import "time"

// Trade is the output of one successful match: two new conditional IOUs
// with complementary conditions and complementary prices. The buyer holds a
// claim for $1-p from the seller on C; the seller holds a claim for $p from
// the buyer on ¬C. A leg id is empty when its amount would have been zero
// (clearing price exactly $0 or $1), since a zero IOU never exists.
type Trade struct {
	ID         string
	Condition  ConditionID
	Buyer      PlayerID
	Seller     PlayerID
	Price      Price   // clearing price p, midpoint of the crossed quotes
	BuyerIOU   IOUID   // seller owes buyer $1-p on C
	SellerIOU  IOUID   // buyer owes seller $p on ¬C
	BidSeq     uint64  // sequence of the bid side consumed
	AskSeq     uint64  // sequence of the ask side consumed
	ExecutedAt time.Time
}
