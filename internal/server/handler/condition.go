package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/openpredict/marketd/internal/domain"
)

// ConditionService defines the methods the condition handler requires from
// the service layer.
type ConditionService interface {
	RegisterCondition(ctx context.Context, description string, expiry *time.Time) (domain.Condition, error)
	ResolveCondition(ctx context.Context, id domain.ConditionID, outcome bool) (domain.SettlementReport, error)
	GetCondition(ctx context.Context, id domain.ConditionID) (domain.Condition, bool)
	ListConditions(ctx context.Context) []domain.Condition
	Top(ctx context.Context, cond domain.ConditionID) domain.BookTop
	LastPrice(ctx context.Context, cond domain.ConditionID) (domain.Price, time.Time, error)
	TradesByCondition(ctx context.Context, cond domain.ConditionID, opts domain.ListOpts) ([]domain.Trade, error)
}

// ConditionHandler serves condition lifecycle endpoints.
type ConditionHandler struct {
	svc    ConditionService
	logger *slog.Logger
}

// NewConditionHandler creates a ConditionHandler.
func NewConditionHandler(svc ConditionService, logger *slog.Logger) *ConditionHandler {
	return &ConditionHandler{
		svc:    svc,
		logger: logHandler(logger, "condition"),
	}
}

type registerConditionRequest struct {
	Description string     `json:"description"`
	Expiry      *time.Time `json:"expiry,omitempty"`
}

// Register creates a new tradable condition.
// POST /api/conditions
func (h *ConditionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerConditionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}

	c, err := h.svc.RegisterCondition(r.Context(), req.Description, req.Expiry)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toConditionJSON(c))
}

// List returns all known conditions.
// GET /api/conditions
func (h *ConditionHandler) List(w http.ResponseWriter, r *http.Request) {
	conds := h.svc.ListConditions(r.Context())
	out := make([]conditionJSON, 0, len(conds))
	for _, c := range conds {
		out = append(out, toConditionJSON(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"conditions": out})
}

// Get returns one condition with its current book top and last price.
// GET /api/conditions/{id}
func (h *ConditionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := domain.ConditionID(pathParam(r, "id"))

	c, ok := h.svc.GetCondition(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "condition not found")
		return
	}

	resp := map[string]any{
		"condition": toConditionJSON(c),
		"book":      toBookTopJSON(h.svc.Top(r.Context(), id)),
	}
	if price, ts, err := h.svc.LastPrice(r.Context(), id); err == nil {
		resp["last_price"] = price.Millibucks()
		resp["last_trade_at"] = ts
	}
	writeJSON(w, http.StatusOK, resp)
}

type resolveConditionRequest struct {
	Outcome *bool `json:"outcome"`
}

// Resolve settles a condition to true or false.
// POST /api/conditions/{id}/resolve
func (h *ConditionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := domain.ConditionID(pathParam(r, "id"))

	var req resolveConditionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Outcome == nil {
		writeError(w, http.StatusBadRequest, "outcome is required")
		return
	}

	report, err := h.svc.ResolveCondition(r.Context(), id, *req.Outcome)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "condition resolved",
		slog.String("condition", string(id)),
		slog.Bool("outcome", *req.Outcome),
		slog.Int("settled", len(report.Settled)),
		slog.Int("voided", len(report.Voided)),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"condition": toConditionJSON(report.Condition),
		"outcome":   string(report.Outcome),
		"settled":   toIOUsJSON(report.Settled),
		"voided":    toIOUsJSON(report.Voided),
	})
}

// Trades returns the journaled trade history for a condition.
// GET /api/conditions/{id}/trades?limit=50&offset=0
func (h *ConditionHandler) Trades(w http.ResponseWriter, r *http.Request) {
	id := domain.ConditionID(pathParam(r, "id"))

	trades, err := h.svc.TradesByCondition(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list trades failed",
			slog.String("condition", string(id)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": toTradesJSON(trades)})
}
