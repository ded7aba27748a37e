package market

import (
	"log/slog"
	"time"

	"github.com/openpredict/marketd/internal/domain"
)

// Settlement finalizes the ledger when a condition leaves Pending. It is
// invoked synchronously by the market facade inside the condition's critical
// section, so callers of resolve observe a fully-settled ledger on return.
type Settlement struct {
	ledger *Ledger
	clock  func() time.Time
	logger *slog.Logger
}

// NewSettlement creates the settlement pass over the given ledger.
func NewSettlement(ledger *Ledger, clock func() time.Time, logger *slog.Logger) *Settlement {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Settlement{
		ledger: ledger,
		clock:  clock,
		logger: logger.With(slog.String("component", "settlement")),
	}
}

// apply rewrites every outstanding IOU referencing the resolved condition
// and returns the report of what was settled and voided.
func (s *Settlement) apply(cond domain.Condition) domain.SettlementReport {
	settled, voided := s.ledger.ResolveForCondition(cond.ID, cond.State)

	s.logger.Info("condition settled",
		slog.String("condition_id", string(cond.ID)),
		slog.String("outcome", string(cond.State)),
		slog.Int("settled", len(settled)),
		slog.Int("voided", len(voided)),
	)

	return domain.SettlementReport{
		Condition:  cond,
		Outcome:    cond.State,
		Settled:    settled,
		Voided:     voided,
		ReportedAt: s.clock(),
	}
}
