package market

import (
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/openpredict/marketd/internal/domain"
)

// Engine runs the continuous double auction for one book at a time. It is
// invoked under the owning condition's critical section whenever an offer is
// posted, and directs the ledger to mint the complementary IOU pair for each
// match. Offers are all-or-nothing: one match fully consumes both sides, and
// a player wanting to trade again re-posts.
type Engine struct {
	ledger *Ledger
	clock  func() time.Time
	logger *slog.Logger
}

// NewEngine creates a matching engine minting through the given ledger.
func NewEngine(ledger *Ledger, clock func() time.Time, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		ledger: ledger,
		clock:  clock,
		logger: logger.With(slog.String("component", "engine")),
	}
}

// matchAll repeatedly finds and executes the best crossing pair until no
// cross remains. The caller holds the condition's critical section.
func (e *Engine) matchAll(b *book) []domain.Trade {
	var trades []domain.Trade
	for {
		bid, ask, ok := bestCross(b)
		if !ok {
			return trades
		}

		trade, err := e.execute(b.cond, bid, ask)
		if err != nil {
			// Cannot happen for a well-formed book (distinct players,
			// pending condition); treated as a matching halt, not a panic.
			e.logger.Error("trade execution failed",
				slog.String("condition_id", string(b.cond)),
				slog.String("error", err.Error()),
			)
			return trades
		}

		b.remove(bid)
		b.remove(ask)
		trades = append(trades, trade)
	}
}

// bestCross selects, among all crossing pairs of offers from distinct
// players, the pair with the widest spread; ties break to the earliest
// combined sequence. In the common two-offer case this degenerates to
// matching the best bid against the best ask.
func bestCross(b *book) (bid, ask *domain.Offer, ok bool) {
	bids := b.bids()
	asks := b.asks()
	if len(bids) == 0 || len(asks) == 0 {
		return nil, nil, false
	}

	bestSpread := domain.Price(-1)
	bestCombined := uint64(math.MaxUint64)

	for _, candBid := range bids {
		if candBid.Buy < asks[0].Sell {
			break // lower-priced bids cannot cross any ask
		}
		for _, candAsk := range asks {
			if candBid.Buy < candAsk.Sell {
				break
			}
			if candBid.Player == candAsk.Player {
				continue
			}
			spread := candBid.Buy - candAsk.Sell
			combined := candBid.Seq + candAsk.Seq
			better := spread > bestSpread ||
				(spread == bestSpread && combined < bestCombined) ||
				(spread == bestSpread && combined == bestCombined && candBid.Seq < bid.Seq)
			if better {
				bid, ask = candBid, candAsk
				bestSpread = spread
				bestCombined = combined
			}
		}
	}

	return bid, ask, bid != nil
}

// execute clears one crossed pair at the midpoint price and mints the two
// conditional IOUs: the seller owes the buyer $1-p should the condition come
// true, the buyer owes the seller $p should it come false. A leg whose
// amount would be zero is simply not minted.
func (e *Engine) execute(cond domain.ConditionID, bid, ask *domain.Offer) (domain.Trade, error) {
	p := domain.Midpoint(bid.Buy, ask.Sell)

	trade := domain.Trade{
		ID:         uuid.NewString(),
		Condition:  cond,
		Buyer:      bid.Player,
		Seller:     ask.Player,
		Price:      p,
		BidSeq:     bid.Seq,
		AskSeq:     ask.Seq,
		ExecutedAt: e.clock(),
	}

	if payout := domain.Buck - p; payout > 0 {
		iou, err := e.ledger.Issue(ask.Player, bid.Player, payout, &domain.CondRef{ID: cond})
		if err != nil {
			return domain.Trade{}, err
		}
		trade.BuyerIOU = iou.ID
	}
	if p > 0 {
		iou, err := e.ledger.Issue(bid.Player, ask.Player, p, &domain.CondRef{ID: cond, Negated: true})
		if err != nil {
			return domain.Trade{}, err
		}
		trade.SellerIOU = iou.ID
	}

	e.logger.Debug("trade executed",
		slog.String("condition_id", string(cond)),
		slog.String("buyer", string(bid.Player)),
		slog.String("seller", string(ask.Player)),
		slog.String("price", p.String()),
	)

	return trade, nil
}
