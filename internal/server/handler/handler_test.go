package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openpredict/marketd/internal/service"
)

// newTestAPI spins up the REST surface backed by a core with no journal,
// cache, or bus, the same shape memory mode runs in production.
func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(func() time.Time { return time.Now().UTC() }, service.Deps{
		Logger: logger,
	})

	mux := http.NewServeMux()

	ch := NewConditionHandler(svc, logger)
	mux.HandleFunc("GET /api/conditions", ch.List)
	mux.HandleFunc("POST /api/conditions", ch.Register)
	mux.HandleFunc("GET /api/conditions/{id}", ch.Get)
	mux.HandleFunc("POST /api/conditions/{id}/resolve", ch.Resolve)

	ih := NewIOUHandler(svc, logger)
	mux.HandleFunc("POST /api/ious", ih.Issue)
	mux.HandleFunc("GET /api/ious", ih.List)
	mux.HandleFunc("GET /api/ious/{id}", ih.Get)
	mux.HandleFunc("POST /api/ious/{id}/transfer", ih.Transfer)

	oh := NewOfferHandler(svc, logger)
	mux.HandleFunc("POST /api/offers", oh.Post)
	mux.HandleFunc("DELETE /api/offers", oh.Cancel)
	mux.HandleFunc("GET /api/conditions/{id}/book", oh.Book)

	ph := NewPlayerHandler(svc, logger)
	mux.HandleFunc("POST /api/players", ph.Register)
	mux.HandleFunc("PUT /api/players/{id}/locked", ph.SetLocked)
	mux.HandleFunc("GET /api/players/{id}/balance", ph.Balance)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("invalid JSON response %q: %v", data, err)
		}
	}
	return resp, out
}

func registerCondition(t *testing.T, ts *httptest.Server, desc string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/conditions", map[string]any{
		"description": desc,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register condition: status %d, body %v", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("register condition: no id in %v", body)
	}
	return id
}

func TestConditionLifecycle(t *testing.T) {
	ts := newTestAPI(t)

	id := registerCondition(t, ts, "rain tomorrow")

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/conditions/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get condition: status %d", resp.StatusCode)
	}
	cond, _ := body["condition"].(map[string]any)
	if cond["state"] != "pending" {
		t.Errorf("state = %v, want pending", cond["state"])
	}

	// Resolving without an outcome is rejected.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/conditions/"+id+"/resolve", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("resolve without outcome: status %d, want 400", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/conditions/"+id+"/resolve", map[string]any{
		"outcome": true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve: status %d, body %v", resp.StatusCode, body)
	}
	if body["outcome"] != "true" {
		t.Errorf("outcome = %v, want true", body["outcome"])
	}

	// A second resolution conflicts.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/conditions/"+id+"/resolve", map[string]any{
		"outcome": false,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double resolve: status %d, want 409", resp.StatusCode)
	}
}

func TestConditionNotFound(t *testing.T) {
	ts := newTestAPI(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/conditions/deadbeef", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestIssueTransferAndBalance(t *testing.T) {
	ts := newTestAPI(t)

	resp, iou := doJSON(t, http.MethodPost, ts.URL+"/api/ious", map[string]any{
		"issuer": "alice",
		"holder": "bob",
		"amount": 1000,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("issue: status %d, body %v", resp.StatusCode, iou)
	}
	id, _ := iou["id"].(string)
	if id == "" {
		t.Fatal("issue: no id")
	}
	if iou["amount"] != float64(1000) {
		t.Errorf("amount = %v, want 1000", iou["amount"])
	}

	// Partial transfer splits the IOU.
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/ious/"+id+"/transfer", map[string]any{
		"from":   "bob",
		"to":     "carol",
		"amount": 400,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transfer: status %d, body %v", resp.StatusCode, body)
	}
	pieces, _ := body["pieces"].([]any)
	if len(pieces) != 2 {
		t.Fatalf("pieces = %d, want 2", len(pieces))
	}

	// Alice now owes 1000 split across bob and carol.
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/players/alice/balance", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balance: status %d", resp.StatusCode)
	}
	if body["owing"] != float64(1000) {
		t.Errorf("alice owing = %v, want 1000", body["owing"])
	}
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/players/carol/balance", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balance: status %d", resp.StatusCode)
	}
	if body["owed"] != float64(400) {
		t.Errorf("carol owed = %v, want 400", body["owed"])
	}

	// A non-holder cannot move the debt.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/ious/"+id+"/transfer", map[string]any{
		"from":   "mallory",
		"to":     "carol",
		"amount": 100,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("non-holder transfer: status %d, want 403", resp.StatusCode)
	}
}

func TestIssueValidation(t *testing.T) {
	ts := newTestAPI(t)

	cases := []struct {
		name string
		req  map[string]any
		want int
	}{
		{"missing holder", map[string]any{"issuer": "alice", "amount": 100}, http.StatusBadRequest},
		{"self debt", map[string]any{"issuer": "alice", "holder": "alice", "amount": 100}, http.StatusBadRequest},
		{"zero amount", map[string]any{"issuer": "alice", "holder": "bob", "amount": 0}, http.StatusBadRequest},
		{"unknown condition", map[string]any{"issuer": "alice", "holder": "bob", "amount": 100, "condition_id": "nope"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/ious", tc.req)
		if resp.StatusCode != tc.want {
			t.Errorf("%s: status %d, want %d", tc.name, resp.StatusCode, tc.want)
		}
	}
}

func TestOffersCrossAtMidpoint(t *testing.T) {
	ts := newTestAPI(t)
	id := registerCondition(t, ts, "snow on friday")

	// A resting quote that will not trade against itself.
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/offers", map[string]any{
		"player":       "buyer",
		"condition_id": id,
		"buy":          600,
		"sell":         1000,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post bid: status %d, body %v", resp.StatusCode, body)
	}
	if trades, _ := body["trades"].([]any); len(trades) != 0 {
		t.Fatalf("bid alone produced %d trades", len(trades))
	}

	// The crossing quote executes at the midpoint of 600 and 400.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/offers", map[string]any{
		"player":       "seller",
		"condition_id": id,
		"buy":          0,
		"sell":         400,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post ask: status %d, body %v", resp.StatusCode, body)
	}
	trades, _ := body["trades"].([]any)
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	trade, _ := trades[0].(map[string]any)
	if trade["price"] != float64(500) {
		t.Errorf("price = %v, want 500", trade["price"])
	}
	if trade["buyer"] != "buyer" || trade["seller"] != "seller" {
		t.Errorf("parties = %v/%v", trade["buyer"], trade["seller"])
	}

	// Both offers are consumed.
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/conditions/"+id+"/book", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("book: status %d", resp.StatusCode)
	}
	if body["bid"] != nil || body["ask"] != nil {
		t.Errorf("book not empty after match: %v", body)
	}
}

func TestOfferOnUnknownCondition(t *testing.T) {
	ts := newTestAPI(t)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/offers", map[string]any{
		"player":       "buyer",
		"condition_id": "nope",
		"buy":          600,
		"sell":         1000,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestLockedPlayerRejected(t *testing.T) {
	ts := newTestAPI(t)

	resp, player := doJSON(t, http.MethodPost, ts.URL+"/api/players", map[string]any{
		"name": "eve",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register player: status %d, body %v", resp.StatusCode, player)
	}
	pid, _ := player["id"].(string)

	resp, _ = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/players/%s/locked", ts.URL, pid), map[string]any{
		"locked": true,
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("lock: status %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/ious", map[string]any{
		"issuer": pid,
		"holder": "bob",
		"amount": 100,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("locked issuer: status %d, want 403", resp.StatusCode)
	}
}
