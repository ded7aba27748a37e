package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openpredict/marketd/internal/domain"
)

// IOUService defines the methods the IOU handler requires from the service
// layer.
type IOUService interface {
	IssueIOU(ctx context.Context, issuer, holder domain.PlayerID, amount domain.Dollars, ref *domain.CondRef) (domain.IOU, error)
	TransferIOU(ctx context.Context, id domain.IOUID, from, to domain.PlayerID, amount domain.Dollars) ([]domain.IOU, error)
	GetIOU(ctx context.Context, id domain.IOUID) (domain.IOU, bool)
	ListIOUs(ctx context.Context, player domain.PlayerID) []domain.IOU
}

// IOUHandler serves IOU endpoints.
type IOUHandler struct {
	svc    IOUService
	logger *slog.Logger
}

// NewIOUHandler creates an IOUHandler.
func NewIOUHandler(svc IOUService, logger *slog.Logger) *IOUHandler {
	return &IOUHandler{
		svc:    svc,
		logger: logHandler(logger, "iou"),
	}
}

type issueIOURequest struct {
	Issuer    string  `json:"issuer"`
	Holder    string  `json:"holder"`
	Amount    int64   `json:"amount"` // millibucks
	Condition *string `json:"condition_id,omitempty"`
	Negated   bool    `json:"negated,omitempty"`
}

// Issue mints a new IOU.
// POST /api/ious
func (h *IOUHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueIOURequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Issuer == "" || req.Holder == "" {
		writeError(w, http.StatusBadRequest, "issuer and holder are required")
		return
	}

	var ref *domain.CondRef
	if req.Condition != nil {
		ref = &domain.CondRef{ID: domain.ConditionID(*req.Condition), Negated: req.Negated}
	}

	iou, err := h.svc.IssueIOU(r.Context(),
		domain.PlayerID(req.Issuer), domain.PlayerID(req.Holder),
		domain.FromMillibucks(req.Amount), ref,
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIOUJSON(iou))
}

type transferIOURequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"` // millibucks
}

// Transfer moves all or part of an IOU to another player.
// POST /api/ious/{id}/transfer
func (h *IOUHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	id := domain.IOUID(pathParam(r, "id"))

	var req transferIOURequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.From == "" || req.To == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	pieces, err := h.svc.TransferIOU(r.Context(), id,
		domain.PlayerID(req.From), domain.PlayerID(req.To),
		domain.FromMillibucks(req.Amount),
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.DebugContext(r.Context(), "iou transferred",
		slog.String("iou", string(id)),
		slog.String("from", req.From),
		slog.String("to", req.To),
		slog.Int64("amount", req.Amount),
	)

	writeJSON(w, http.StatusOK, map[string]any{"pieces": toIOUsJSON(pieces)})
}

// Get returns a single IOU, terminal states included.
// GET /api/ious/{id}
func (h *IOUHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := domain.IOUID(pathParam(r, "id"))

	iou, ok := h.svc.GetIOU(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "iou not found")
		return
	}
	writeJSON(w, http.StatusOK, toIOUJSON(iou))
}

// List returns the live IOUs a player holds or issued.
// GET /api/ious?player=<id>
func (h *IOUHandler) List(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")
	if player == "" {
		writeError(w, http.StatusBadRequest, "player query parameter required")
		return
	}

	ious := h.svc.ListIOUs(r.Context(), domain.PlayerID(player))
	writeJSON(w, http.StatusOK, map[string]any{"ious": toIOUsJSON(ious)})
}
