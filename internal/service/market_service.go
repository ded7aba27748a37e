// Package service coordinates the in-memory trading core with the
// write-behind journal, the price cache, the signal bus, cold storage, and
// operator notifications. The core stays authoritative; everything here is
// observation and fan-out.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openpredict/marketd/internal/domain"
	"github.com/openpredict/marketd/internal/market"
	"github.com/openpredict/marketd/internal/notify"
)

// Stores bundles the journal store implementations. Any field may be nil;
// nil stores are skipped, which is how memory mode runs without Postgres.
type Stores struct {
	Conditions domain.ConditionStore
	IOUs       domain.IOUStore
	Trades     domain.TradeStore
	Players    domain.PlayerStore
	Audit      domain.AuditStore
}

// Deps carries the external collaborators of the MarketService. Everything
// except Logger may be nil.
type Deps struct {
	Stores   Stores
	Prices   domain.PriceCache
	Bus      domain.SignalBus
	Archiver domain.Archiver
	Reader   domain.BlobReader
	Notifier *notify.Notifier
	Logger   *slog.Logger

	// QueueSize is the write-behind job queue depth. Defaults to 1024.
	QueueSize int
}

// MarketService fronts the trading core. Core mutations run synchronously;
// journaling, cache updates, publishing, archiving, and notifications are
// enqueued as jobs and executed by the Run loop so a slow backend never
// stalls matching.
type MarketService struct {
	core   *market.Market
	stores Stores

	prices   domain.PriceCache
	bus      domain.SignalBus
	archiver domain.Archiver
	reader   domain.BlobReader
	notifier *notify.Notifier
	logger   *slog.Logger

	jobs chan job
}

type job struct {
	name string
	run  func(ctx context.Context) error
}

// New creates a MarketService and the core it fronts. The service installs
// itself as the core's event sink.
func New(clock func() time.Time, deps Deps) *MarketService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queueSize := deps.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}

	s := &MarketService{
		stores:   deps.Stores,
		prices:   deps.Prices,
		bus:      deps.Bus,
		archiver: deps.Archiver,
		reader:   deps.Reader,
		notifier: deps.Notifier,
		logger:   logger.With(slog.String("component", "market_service")),
		jobs:     make(chan job, queueSize),
	}
	s.core = market.New(market.Config{
		Clock:  clock,
		Sink:   s,
		Logger: logger,
	})
	return s
}

// Core exposes the underlying market for direct reads.
func (s *MarketService) Core() *market.Market {
	return s.core
}

// Run drains the write-behind queue until ctx is cancelled. Jobs that fail
// are logged and dropped; the journal is an observability surface, not the
// source of truth.
func (s *MarketService) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-s.jobs:
			if err := j.run(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "journal job failed",
					slog.String("job", j.name),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// enqueue hands a job to the Run loop. Called from inside core locks, so it
// must never block: when the queue is full the job is dropped and counted
// against the log.
func (s *MarketService) enqueue(name string, run func(ctx context.Context) error) {
	select {
	case s.jobs <- job{name: name, run: run}:
	default:
		s.logger.Warn("journal queue full, dropping job", slog.String("job", name))
	}
}

// ---------------------------------------------------------------------------
// market.EventSink
// ---------------------------------------------------------------------------

// TradeExecuted journals the trade, refreshes the price cache, and fans the
// event out over the bus and the durable trade stream.
func (s *MarketService) TradeExecuted(t domain.Trade) {
	s.enqueue("trade_executed", func(ctx context.Context) error {
		if s.stores.Trades != nil {
			if err := s.stores.Trades.Insert(ctx, t); err != nil {
				return err
			}
		}
		if s.prices != nil {
			if err := s.prices.SetPrice(ctx, t.Condition, t.Price, t.ExecutedAt); err != nil {
				s.logger.WarnContext(ctx, "price cache update failed",
					slog.String("condition", string(t.Condition)),
					slog.String("error", err.Error()),
				)
			}
		}
		if s.bus != nil {
			evt, _ := json.Marshal(domain.TradeEvent{
				Type:      "trade",
				TradeID:   t.ID,
				Condition: t.Condition,
				Buyer:     t.Buyer,
				Seller:    t.Seller,
				Price:     t.Price.Float(),
				Time:      t.ExecutedAt,
			})
			if err := s.bus.Publish(ctx, domain.ChannelTrades, evt); err != nil {
				return err
			}
			if err := s.bus.StreamAppend(ctx, domain.ChannelTrades, evt); err != nil {
				return err
			}
		}
		return nil
	})
}

// QuoteChanged publishes the new top of book.
func (s *MarketService) QuoteChanged(top domain.BookTop) {
	if s.bus == nil {
		return
	}
	s.enqueue("quote_changed", func(ctx context.Context) error {
		evt := domain.QuoteEvent{
			Type:      "quote",
			Condition: top.Condition,
			Time:      time.Now().UTC(),
		}
		if top.Bid != nil {
			bid := top.Bid.Buy.Float()
			evt.BestBid = &bid
		}
		if top.Ask != nil {
			ask := top.Ask.Sell.Float()
			evt.BestAsk = &ask
		}
		payload, _ := json.Marshal(evt)
		return s.bus.Publish(ctx, domain.ChannelQuotes, payload)
	})
}

// ConditionChanged journals the lifecycle transition and publishes it.
func (s *MarketService) ConditionChanged(c domain.Condition) {
	s.enqueue("condition_changed", func(ctx context.Context) error {
		if s.stores.Conditions != nil {
			var err error
			if c.State == domain.ConditionPending {
				err = s.stores.Conditions.Insert(ctx, c)
			} else {
				err = s.stores.Conditions.MarkResolved(ctx, c.ID, c.State, derefTime(c.ResolvedAt))
			}
			if err != nil {
				return err
			}
		}
		if s.bus != nil {
			typ := "registered"
			if c.State.Terminal() {
				typ = "resolved"
				if c.State == domain.ConditionExpired {
					typ = "expired"
				}
			}
			evt, _ := json.Marshal(domain.ConditionEvent{
				Type:      typ,
				Condition: c.ID,
				State:     c.State,
				Time:      time.Now().UTC(),
			})
			if err := s.bus.Publish(ctx, domain.ChannelConditions, evt); err != nil {
				return err
			}
		}
		return nil
	})
}

// SettlementApplied journals the finalized IOUs, ships the report to cold
// storage, and alerts operators.
func (s *MarketService) SettlementApplied(r domain.SettlementReport) {
	s.enqueue("settlement_applied", func(ctx context.Context) error {
		if s.stores.IOUs != nil {
			for _, iou := range r.Settled {
				if err := s.stores.IOUs.UpdateState(ctx, iou.ID, domain.IOUSettled); err != nil {
					return err
				}
			}
			for _, iou := range r.Voided {
				if err := s.stores.IOUs.UpdateState(ctx, iou.ID, domain.IOUVoid); err != nil {
					return err
				}
			}
		}
		if s.stores.Audit != nil {
			if err := s.stores.Audit.Log(ctx, "condition.settled", map[string]any{
				"condition": string(r.Condition.ID),
				"outcome":   string(r.Outcome),
				"settled":   len(r.Settled),
				"voided":    len(r.Voided),
			}); err != nil {
				return err
			}
		}
		if s.archiver != nil {
			path, err := s.archiver.ArchiveSettlement(ctx, r)
			if err != nil {
				return err
			}
			s.logger.InfoContext(ctx, "settlement archived",
				slog.String("condition", string(r.Condition.ID)),
				slog.String("path", path),
			)
		}
		if s.notifier != nil {
			event := "condition_resolved"
			if r.Outcome == domain.ConditionExpired {
				event = "condition_expired"
			}
			title := fmt.Sprintf("Condition %s: %s", r.Outcome, r.Condition.Description)
			body := fmt.Sprintf("%d IOUs settled, %d voided", len(r.Settled), len(r.Voided))
			if err := s.notifier.Notify(ctx, event, title, body); err != nil {
				s.logger.WarnContext(ctx, "settlement notification failed",
					slog.String("error", err.Error()),
				)
			}
		}
		return nil
	})
}

var _ market.EventSink = (*MarketService)(nil)

// ---------------------------------------------------------------------------
// Facade operations
// ---------------------------------------------------------------------------

// RegisterCondition creates a new tradable condition.
func (s *MarketService) RegisterCondition(ctx context.Context, description string, expiry *time.Time) (domain.Condition, error) {
	return s.core.RegisterCondition(description, expiry)
}

// ResolveCondition settles a condition to the given outcome.
func (s *MarketService) ResolveCondition(ctx context.Context, id domain.ConditionID, outcome bool) (domain.SettlementReport, error) {
	return s.core.ResolveCondition(id, outcome)
}

// GetCondition returns a condition by id.
func (s *MarketService) GetCondition(ctx context.Context, id domain.ConditionID) (domain.Condition, bool) {
	return s.core.GetCondition(id)
}

// ListConditions returns all known conditions.
func (s *MarketService) ListConditions(ctx context.Context) []domain.Condition {
	return s.core.ListConditions()
}

// RegisterPlayer adds a player to the registry and journals it.
func (s *MarketService) RegisterPlayer(ctx context.Context, name string) (domain.Player, error) {
	p, err := s.core.Players().Register(name)
	if err != nil {
		return domain.Player{}, err
	}
	if s.stores.Players != nil {
		s.enqueue("player_registered", func(ctx context.Context) error {
			return s.stores.Players.Insert(ctx, p)
		})
	}
	return p, nil
}

// SetPlayerLocked flips a player's lock flag and journals it.
func (s *MarketService) SetPlayerLocked(ctx context.Context, id domain.PlayerID, locked bool) error {
	if err := s.core.Players().SetLocked(id, locked); err != nil {
		return err
	}
	if s.stores.Players != nil {
		s.enqueue("player_locked", func(ctx context.Context) error {
			return s.stores.Players.SetLocked(ctx, id, locked)
		})
	}
	if s.stores.Audit != nil {
		s.enqueue("audit_player_locked", func(ctx context.Context) error {
			return s.stores.Audit.Log(ctx, "player.locked", map[string]any{
				"player": string(id),
				"locked": locked,
			})
		})
	}
	return nil
}

// GetPlayer returns a registered player by id.
func (s *MarketService) GetPlayer(ctx context.Context, id domain.PlayerID) (domain.Player, bool) {
	return s.core.Players().Get(id)
}

// ListPlayers returns all registered players.
func (s *MarketService) ListPlayers(ctx context.Context) []domain.Player {
	return s.core.Players().List()
}

// IssueIOU mints a debt record and journals it.
func (s *MarketService) IssueIOU(ctx context.Context, issuer, holder domain.PlayerID, amount domain.Dollars, ref *domain.CondRef) (domain.IOU, error) {
	iou, err := s.core.IssueIOU(issuer, holder, amount, ref)
	if err != nil {
		return domain.IOU{}, err
	}
	if s.stores.IOUs != nil {
		s.enqueue("iou_issued", func(ctx context.Context) error {
			return s.stores.IOUs.Insert(ctx, iou)
		})
	}
	return iou, nil
}

// TransferIOU moves debt between players and journals the resulting pieces.
// A full transfer keeps the original id; a partial transfer retires the
// parent and journals the fresh split pieces.
func (s *MarketService) TransferIOU(ctx context.Context, id domain.IOUID, from, to domain.PlayerID, amount domain.Dollars) ([]domain.IOU, error) {
	pieces, err := s.core.TransferIOU(id, from, to, amount)
	if err != nil {
		return nil, err
	}
	if s.stores.IOUs != nil {
		journal := make([]domain.IOU, len(pieces))
		copy(journal, pieces)
		s.enqueue("iou_transferred", func(ctx context.Context) error {
			parentSeen := false
			for _, p := range journal {
				if p.ID == id {
					parentSeen = true
					if p.State == domain.IOUVoid {
						if err := s.stores.IOUs.UpdateState(ctx, p.ID, p.State); err != nil {
							return err
						}
						continue
					}
					if err := s.stores.IOUs.UpdateHolder(ctx, p.ID, p.Holder, p.Amount); err != nil {
						return err
					}
					continue
				}
				if err := s.stores.IOUs.Insert(ctx, p); err != nil {
					return err
				}
			}
			// A split retires the parent record in favor of the fresh pieces.
			if !parentSeen {
				if err := s.stores.IOUs.UpdateState(ctx, id, domain.IOUVoid); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return pieces, nil
}

// GetIOU returns an IOU by id, terminal states included.
func (s *MarketService) GetIOU(ctx context.Context, id domain.IOUID) (domain.IOU, bool) {
	return s.core.GetIOU(id)
}

// ListIOUs returns the live IOUs a player holds or issued.
func (s *MarketService) ListIOUs(ctx context.Context, player domain.PlayerID) []domain.IOU {
	return s.core.ListIOUs(player)
}

// QueryBalance aggregates a player's live debt.
func (s *MarketService) QueryBalance(ctx context.Context, player domain.PlayerID) domain.Balance {
	return s.core.QueryBalance(player)
}

// PostOffer places a two-sided quote and returns the trades it produced.
func (s *MarketService) PostOffer(ctx context.Context, player domain.PlayerID, cond domain.ConditionID, buy, sell domain.Price) ([]domain.Trade, error) {
	return s.core.PostOffer(player, cond, buy, sell)
}

// CancelOffer withdraws a player's resting offer.
func (s *MarketService) CancelOffer(ctx context.Context, player domain.PlayerID, cond domain.ConditionID) {
	s.core.CancelOffer(player, cond)
}

// Top returns the best bid and ask for a condition.
func (s *MarketService) Top(ctx context.Context, cond domain.ConditionID) domain.BookTop {
	return s.core.Top(cond)
}

// LastPrice returns the last cached clearing price for a condition.
func (s *MarketService) LastPrice(ctx context.Context, cond domain.ConditionID) (domain.Price, time.Time, error) {
	if s.prices == nil {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return s.prices.GetPrice(ctx, cond)
}

// RecentTrades returns the most recent journaled trades.
func (s *MarketService) RecentTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	if s.stores.Trades == nil {
		return nil, nil
	}
	return s.stores.Trades.ListRecent(ctx, limit)
}

// TradesByCondition returns journaled trades for one condition.
func (s *MarketService) TradesByCondition(ctx context.Context, cond domain.ConditionID, opts domain.ListOpts) ([]domain.Trade, error) {
	if s.stores.Trades == nil {
		return nil, nil
	}
	return s.stores.Trades.ListByCondition(ctx, cond, opts)
}

// ListSettlementArchives lists cold-storage settlement reports.
func (s *MarketService) ListSettlementArchives(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	if s.reader == nil {
		return nil, nil
	}
	return s.reader.List(ctx, prefix)
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
