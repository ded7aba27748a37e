package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/openpredict/marketd/internal/domain"
)

// SettlementService defines the methods the settlement handler requires
// from the service layer.
type SettlementService interface {
	ListSettlementArchives(ctx context.Context, prefix string) ([]domain.BlobInfo, error)
}

// SettlementHandler serves cold-storage settlement report listings.
type SettlementHandler struct {
	svc    SettlementService
	prefix string
	logger *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler listing archives under
// the given key prefix.
func NewSettlementHandler(svc SettlementService, prefix string, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		svc:    svc,
		prefix: prefix,
		logger: logHandler(logger, "settlement"),
	}
}

// List returns the archived settlement reports.
// GET /api/settlements
func (h *SettlementHandler) List(w http.ResponseWriter, r *http.Request) {
	infos, err := h.svc.ListSettlementArchives(r.Context(), h.prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list settlement archives failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list settlement archives")
		return
	}

	type archiveJSON struct {
		Path         string `json:"path"`
		Size         int64  `json:"size"`
		LastModified string `json:"last_modified,omitempty"`
	}
	out := make([]archiveJSON, 0, len(infos))
	for _, info := range infos {
		a := archiveJSON{Path: info.Path, Size: info.Size}
		if !info.LastModified.IsZero() {
			a.LastModified = info.LastModified.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		out = append(out, a)
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": out})
}
