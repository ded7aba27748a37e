package market

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openpredict/marketd/internal/domain"
)

// EventSink observes committed market activity. The service layer uses it
// to journal, publish, and notify; the core never blocks on it and passes
// only copies. A nil sink disables observation.
type EventSink interface {
	TradeExecuted(t domain.Trade)
	QuoteChanged(top domain.BookTop)
	ConditionChanged(c domain.Condition)
	SettlementApplied(r domain.SettlementReport)
}

// Config carries the injected collaborators of a Market. Zero values get
// sensible defaults (wall clock, no sink, default logger).
type Config struct {
	Clock  func() time.Time
	Sink   EventSink
	Logger *slog.Logger
}

// Market is the trading core facade. Work is partitioned by condition id:
// operations on different conditions run fully in parallel, while posting,
// matching, and resolving on one condition serialize through that
// condition's shard lock. The ledger is shared across conditions and does
// its own locking.
type Market struct {
	registry *Registry
	ledger   *Ledger
	players  *Players
	engine   *Engine
	settle   *Settlement

	clock  func() time.Time
	sink   EventSink
	logger *slog.Logger

	seq atomic.Uint64

	mu     sync.Mutex
	shards map[domain.ConditionID]*shard
}

// shard is the per-condition critical section plus the condition's book.
type shard struct {
	mu   sync.Mutex
	book *book
}

// New creates an empty market.
func New(cfg Config) *Market {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := NewRegistry(clock)
	ledger := NewLedger(registry, clock)

	return &Market{
		registry: registry,
		ledger:   ledger,
		players:  NewPlayers(clock),
		engine:   NewEngine(ledger, clock, logger),
		settle:   NewSettlement(ledger, clock, logger),
		clock:    clock,
		sink:     cfg.Sink,
		logger:   logger.With(slog.String("component", "market")),
		shards:   make(map[domain.ConditionID]*shard),
	}
}

// Players exposes the participant registry.
func (m *Market) Players() *Players {
	return m.players
}

func (m *Market) shard(cond domain.ConditionID) *shard {
	m.mu.Lock()
	defer m.mu.Unlock()
	sh, ok := m.shards[cond]
	if !ok {
		sh = &shard{book: newBook(cond)}
		m.shards[cond] = sh
	}
	return sh
}

// RegisterCondition creates a new Pending condition.
func (m *Market) RegisterCondition(description string, expiry *time.Time) (domain.Condition, error) {
	c, err := m.registry.Register(description, expiry)
	if err != nil {
		return domain.Condition{}, err
	}
	m.emitCondition(c)
	return c, nil
}

// GetCondition returns the condition record.
func (m *Market) GetCondition(id domain.ConditionID) (domain.Condition, bool) {
	return m.registry.Get(id)
}

// ListConditions returns all known conditions.
func (m *Market) ListConditions() []domain.Condition {
	return m.registry.List()
}

// ResolveCondition settles a Pending condition to True or False. Settlement
// runs synchronously inside the condition's critical section: when this
// returns, every IOU referencing the condition has been finalized and the
// book is gone.
func (m *Market) ResolveCondition(id domain.ConditionID, outcome bool) (domain.SettlementReport, error) {
	state := domain.ConditionFalse
	if outcome {
		state = domain.ConditionTrue
	}
	return m.resolve(id, state)
}

// CheckExpiry transitions every Pending condition whose expiry has passed
// at now, settling each. The time source is supplied by the caller; the
// core runs no clock of its own. Returns the newly-expired condition ids.
func (m *Market) CheckExpiry(now time.Time) []domain.ConditionID {
	var expired []domain.ConditionID
	for _, id := range m.registry.expiryCandidates(now) {
		if _, err := m.resolve(id, domain.ConditionExpired); err == nil {
			expired = append(expired, id)
		}
	}
	return expired
}

func (m *Market) resolve(id domain.ConditionID, state domain.ConditionState) (domain.SettlementReport, error) {
	sh := m.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, err := m.registry.markResolved(id, state)
	if err != nil {
		return domain.SettlementReport{}, err
	}

	// Resting offers on a resolved condition are dropped, not errored.
	sh.book = newBook(id)

	report := m.settle.apply(c)
	m.emitCondition(c)
	if m.sink != nil {
		m.sink.SettlementApplied(report)
	}
	return report, nil
}

// IssueIOU mints a new debt record. Issuance never checks the issuer's
// outstanding obligations; only SelfDebt, amount validity, and the
// condition reference are enforced.
func (m *Market) IssueIOU(issuer, holder domain.PlayerID, amount domain.Dollars, ref *domain.CondRef) (domain.IOU, error) {
	if m.players.locked(issuer) {
		return domain.IOU{}, domain.ErrPlayerLocked
	}
	if ref == nil {
		return m.ledger.Issue(issuer, holder, amount, nil)
	}

	// Serialize against resolution of the referenced condition so a freshly
	// issued IOU can never slip past an in-flight settlement pass.
	sh := m.shard(ref.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return m.ledger.Issue(issuer, holder, amount, ref)
}

// TransferIOU moves amount of an IOU to another player, splitting it when
// the transfer is partial. Returns the resulting pieces.
func (m *Market) TransferIOU(id domain.IOUID, from, to domain.PlayerID, amount domain.Dollars) ([]domain.IOU, error) {
	return m.ledger.Transfer(id, from, to, amount)
}

// GetIOU returns the IOU record, terminal states included.
func (m *Market) GetIOU(id domain.IOUID) (domain.IOU, bool) {
	return m.ledger.Get(id)
}

// ListIOUs returns every live IOU the player holds or issued.
func (m *Market) ListIOUs(player domain.PlayerID) []domain.IOU {
	return m.ledger.ListByPlayer(player)
}

// QueryBalance aggregates live debt held and owed by the player.
func (m *Market) QueryBalance(player domain.PlayerID) domain.Balance {
	return m.ledger.Balance(player)
}

// PostOffer places a two-sided quote and immediately attempts matching,
// returning every trade executed before the call returns. A new offer
// supersedes the player's previous offer on the same condition. Offers on
// resolved conditions are rejected, not queued.
func (m *Market) PostOffer(player domain.PlayerID, cond domain.ConditionID, buy, sell domain.Price) ([]domain.Trade, error) {
	if !domain.ValidPrice(buy) || !domain.ValidPrice(sell) {
		return nil, domain.ErrInvalidPrice
	}
	if m.players.locked(player) {
		return nil, domain.ErrPlayerLocked
	}
	if !m.registry.IsPending(cond) {
		return nil, domain.ErrUnknownCondition
	}

	sh := m.shard(cond)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	// Re-check under the shard lock: a resolve may have won the race.
	if !m.registry.IsPending(cond) {
		return nil, domain.ErrUnknownCondition
	}

	sh.book.post(domain.Offer{
		Player:    player,
		Condition: cond,
		Buy:       buy,
		Sell:      sell,
		Seq:       m.seq.Add(1),
		PostedAt:  m.clock(),
	})

	trades := m.engine.matchAll(sh.book)

	if m.sink != nil {
		for _, t := range trades {
			m.sink.TradeExecuted(t)
		}
		m.sink.QuoteChanged(sh.book.top())
	}
	return trades, nil
}

// CancelOffer removes the player's resting offer for the condition.
// Cancelling an absent offer is a no-op; cancellation is idempotent and
// always completes.
func (m *Market) CancelOffer(player domain.PlayerID, cond domain.ConditionID) {
	m.mu.Lock()
	sh, ok := m.shards[cond]
	m.mu.Unlock()
	if !ok {
		return
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.book.cancel(player) && m.sink != nil {
		m.sink.QuoteChanged(sh.book.top())
	}
}

// Top returns the best bid and ask for the condition.
func (m *Market) Top(cond domain.ConditionID) domain.BookTop {
	m.mu.Lock()
	sh, ok := m.shards[cond]
	m.mu.Unlock()
	if !ok {
		return domain.BookTop{Condition: cond}
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.book.top()
}

func (m *Market) emitCondition(c domain.Condition) {
	if m.sink != nil {
		m.sink.ConditionChanged(c)
	}
}
