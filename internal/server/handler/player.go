package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/openpredict/marketd/internal/domain"
)

// PlayerService defines the methods the player handler requires from the
// service layer.
type PlayerService interface {
	RegisterPlayer(ctx context.Context, name string) (domain.Player, error)
	SetPlayerLocked(ctx context.Context, id domain.PlayerID, locked bool) error
	GetPlayer(ctx context.Context, id domain.PlayerID) (domain.Player, bool)
	ListPlayers(ctx context.Context) []domain.Player
	QueryBalance(ctx context.Context, player domain.PlayerID) domain.Balance
}

// PlayerHandler serves player registry endpoints.
type PlayerHandler struct {
	svc    PlayerService
	logger *slog.Logger
}

// NewPlayerHandler creates a PlayerHandler.
func NewPlayerHandler(svc PlayerService, logger *slog.Logger) *PlayerHandler {
	return &PlayerHandler{
		svc:    svc,
		logger: logHandler(logger, "player"),
	}
}

type playerJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Locked    bool      `json:"locked"`
	CreatedAt time.Time `json:"created_at"`
}

func toPlayerJSON(p domain.Player) playerJSON {
	return playerJSON{
		ID:        string(p.ID),
		Name:      p.Name,
		Locked:    p.Locked,
		CreatedAt: p.CreatedAt,
	}
}

type registerPlayerRequest struct {
	Name string `json:"name"`
}

// Register adds a player to the registry.
// POST /api/players
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p, err := h.svc.RegisterPlayer(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlayerJSON(p))
}

// List returns all registered players.
// GET /api/players
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	players := h.svc.ListPlayers(r.Context())
	out := make([]playerJSON, 0, len(players))
	for _, p := range players {
		out = append(out, toPlayerJSON(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": out})
}

// Get returns one registered player.
// GET /api/players/{id}
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := domain.PlayerID(pathParam(r, "id"))
	p, ok := h.svc.GetPlayer(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "player not found")
		return
	}
	writeJSON(w, http.StatusOK, toPlayerJSON(p))
}

type setLockedRequest struct {
	Locked *bool `json:"locked"`
}

// SetLocked flips a player's lock flag. Locked players keep their holdings
// but may not issue IOUs or post offers.
// PUT /api/players/{id}/locked
func (h *PlayerHandler) SetLocked(w http.ResponseWriter, r *http.Request) {
	id := domain.PlayerID(pathParam(r, "id"))

	var req setLockedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Locked == nil {
		writeError(w, http.StatusBadRequest, "locked is required")
		return
	}

	if err := h.svc.SetPlayerLocked(r.Context(), id, *req.Locked); err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "player lock changed",
		slog.String("player", string(id)),
		slog.Bool("locked", *req.Locked),
	)
	w.WriteHeader(http.StatusNoContent)
}

// Balance returns the player's live debt aggregate.
// GET /api/players/{id}/balance
func (h *PlayerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id := domain.PlayerID(pathParam(r, "id"))
	b := h.svc.QueryBalance(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]any{
		"player": string(id),
		"owed":   b.Owed.Millibucks(),
		"owing":  b.Owing.Millibucks(),
	})
}
