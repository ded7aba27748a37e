package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openpredict/marketd/internal/domain"
)

// OfferService defines the methods the offer handler requires from the
// service layer.
type OfferService interface {
	PostOffer(ctx context.Context, player domain.PlayerID, cond domain.ConditionID, buy, sell domain.Price) ([]domain.Trade, error)
	CancelOffer(ctx context.Context, player domain.PlayerID, cond domain.ConditionID)
	Top(ctx context.Context, cond domain.ConditionID) domain.BookTop
	RecentTrades(ctx context.Context, limit int) ([]domain.Trade, error)
}

// OfferHandler serves offer and book endpoints.
type OfferHandler struct {
	svc    OfferService
	logger *slog.Logger
}

// NewOfferHandler creates an OfferHandler.
func NewOfferHandler(svc OfferService, logger *slog.Logger) *OfferHandler {
	return &OfferHandler{
		svc:    svc,
		logger: logHandler(logger, "offer"),
	}
}

type postOfferRequest struct {
	Player    string `json:"player"`
	Condition string `json:"condition_id"`
	Buy       int64  `json:"buy"`  // millibucks
	Sell      int64  `json:"sell"` // millibucks
}

// Post places a two-sided quote; any trades it triggers are returned in the
// response.
// POST /api/offers
func (h *OfferHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req postOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Player == "" || req.Condition == "" {
		writeError(w, http.StatusBadRequest, "player and condition_id are required")
		return
	}

	trades, err := h.svc.PostOffer(r.Context(),
		domain.PlayerID(req.Player), domain.ConditionID(req.Condition),
		domain.FromMillibucks(req.Buy), domain.FromMillibucks(req.Sell),
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if len(trades) > 0 {
		h.logger.InfoContext(r.Context(), "offer matched",
			slog.String("player", req.Player),
			slog.String("condition", req.Condition),
			slog.Int("trades", len(trades)),
		)
	}

	writeJSON(w, http.StatusCreated, map[string]any{"trades": toTradesJSON(trades)})
}

// Cancel withdraws a player's resting offer. Always succeeds.
// DELETE /api/offers?player=<id>&condition_id=<id>
func (h *OfferHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	player := q.Get("player")
	cond := q.Get("condition_id")
	if player == "" || cond == "" {
		writeError(w, http.StatusBadRequest, "player and condition_id query parameters required")
		return
	}

	h.svc.CancelOffer(r.Context(), domain.PlayerID(player), domain.ConditionID(cond))
	w.WriteHeader(http.StatusNoContent)
}

// Book returns the best bid and ask for a condition.
// GET /api/conditions/{id}/book
func (h *OfferHandler) Book(w http.ResponseWriter, r *http.Request) {
	id := domain.ConditionID(pathParam(r, "id"))
	writeJSON(w, http.StatusOK, toBookTopJSON(h.svc.Top(r.Context(), id)))
}

// RecentTrades returns the most recent trades across all conditions.
// GET /api/trades?limit=50
func (h *OfferHandler) RecentTrades(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	trades, err := h.svc.RecentTrades(r.Context(), opts.Limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list recent trades failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": toTradesJSON(trades)})
}
