// Package handler implements the HTTP API handlers. Each handler depends on
// a narrow service interface covering only the methods it calls.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/openpredict/marketd/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a domain error to an HTTP status and sends it.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, errStatus(err), err.Error())
}

// errStatus maps domain sentinel errors onto HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnknownCondition):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateCondition),
		errors.Is(err, domain.ErrDuplicatePlayer),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrAlreadyResolved):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInsufficientAmount),
		errors.Is(err, domain.ErrSelfDebt),
		errors.Is(err, domain.ErrInvalidPlayerName):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotHolder),
		errors.Is(err, domain.ErrPlayerLocked),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// ---------------------------------------------------------------------------
// Wire representations. Amounts and prices travel as integer millibucks
// ($1 = 1000) so the API is as exact as the ledger.
// ---------------------------------------------------------------------------

type conditionJSON struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Expiry      *time.Time `json:"expiry,omitempty"`
	State       string     `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

func toConditionJSON(c domain.Condition) conditionJSON {
	return conditionJSON{
		ID:          string(c.ID),
		Description: c.Description,
		Expiry:      c.Expiry,
		State:       string(c.State),
		CreatedAt:   c.CreatedAt,
		ResolvedAt:  c.ResolvedAt,
	}
}

type iouJSON struct {
	ID        string    `json:"id"`
	Issuer    string    `json:"issuer"`
	Holder    string    `json:"holder"`
	Amount    int64     `json:"amount"`
	Condition *string   `json:"condition_id,omitempty"`
	Negated   bool      `json:"negated,omitempty"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

func toIOUJSON(iou domain.IOU) iouJSON {
	out := iouJSON{
		ID:        string(iou.ID),
		Issuer:    string(iou.Issuer),
		Holder:    string(iou.Holder),
		Amount:    iou.Amount.Millibucks(),
		State:     string(iou.State),
		CreatedAt: iou.CreatedAt,
	}
	if iou.Condition != nil {
		id := string(iou.Condition.ID)
		out.Condition = &id
		out.Negated = iou.Condition.Negated
	}
	return out
}

func toIOUsJSON(ious []domain.IOU) []iouJSON {
	out := make([]iouJSON, 0, len(ious))
	for _, iou := range ious {
		out = append(out, toIOUJSON(iou))
	}
	return out
}

type tradeJSON struct {
	ID         string    `json:"id"`
	Condition  string    `json:"condition_id"`
	Buyer      string    `json:"buyer"`
	Seller     string    `json:"seller"`
	Price      int64     `json:"price"`
	BuyerIOU   string    `json:"buyer_iou,omitempty"`
	SellerIOU  string    `json:"seller_iou,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
}

func toTradeJSON(t domain.Trade) tradeJSON {
	return tradeJSON{
		ID:         t.ID,
		Condition:  string(t.Condition),
		Buyer:      string(t.Buyer),
		Seller:     string(t.Seller),
		Price:      t.Price.Millibucks(),
		BuyerIOU:   string(t.BuyerIOU),
		SellerIOU:  string(t.SellerIOU),
		ExecutedAt: t.ExecutedAt,
	}
}

func toTradesJSON(trades []domain.Trade) []tradeJSON {
	out := make([]tradeJSON, 0, len(trades))
	for _, t := range trades {
		out = append(out, toTradeJSON(t))
	}
	return out
}

type offerJSON struct {
	Player   string    `json:"player"`
	Buy      int64     `json:"buy"`
	Sell     int64     `json:"sell"`
	PostedAt time.Time `json:"posted_at"`
}

type bookTopJSON struct {
	Condition string     `json:"condition_id"`
	Bid       *offerJSON `json:"bid,omitempty"`
	Ask       *offerJSON `json:"ask,omitempty"`
}

func toBookTopJSON(top domain.BookTop) bookTopJSON {
	out := bookTopJSON{Condition: string(top.Condition)}
	if top.Bid != nil {
		out.Bid = &offerJSON{
			Player:   string(top.Bid.Player),
			Buy:      top.Bid.Buy.Millibucks(),
			Sell:     top.Bid.Sell.Millibucks(),
			PostedAt: top.Bid.PostedAt,
		}
	}
	if top.Ask != nil {
		out.Ask = &offerJSON{
			Player:   string(top.Ask.Player),
			Buy:      top.Ask.Buy.Millibucks(),
			Sell:     top.Ask.Sell.Millibucks(),
			PostedAt: top.Ask.PostedAt,
		}
	}
	return out
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
