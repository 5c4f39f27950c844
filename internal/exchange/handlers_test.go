package exchange_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/git-masi/memestock-backend/internal/exchange"
	"github.com/git-masi/memestock-backend/internal/ledger"
	"github.com/git-masi/memestock-backend/internal/model"
)

func newTestRouter(t *testing.T) (chi.Router, *exchange.Service, *ledger.Ledger) {
	t.Helper()
	svc, lg := newTestEnv(t)
	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)
	return r, svc, lg
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeOrder(t *testing.T, w *httptest.ResponseRecorder) model.Order {
	t.Helper()
	var o model.Order
	if err := json.NewDecoder(w.Body).Decode(&o); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	return o
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	router, _, lg := newTestRouter(t)
	seedCompany(t, lg, "MEME", 500)
	a := seedParticipant(t, lg, "alice", 10000, nil)
	b := seedParticipant(t, lg, "bob", 1000, map[string]model.Holding{
		"MEME": {QuantityHeld: 20, QuantityOnHand: 20},
	})

	w := doJSON(t, router, "POST", "/api/v1/orders", exchange.CreateOrderRequest{
		Participant: a.ID, Type: model.OrderTypeBuy, Symbol: "MEME", Quantity: 10, Total: 5000,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create order status = %d: %s", w.Code, w.Body)
	}
	o := decodeOrder(t, w)

	w = doJSON(t, router, "PUT", "/api/v1/orders/fulfill", map[string]string{
		"orderId": o.ID, "participant": b.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("fulfill status = %d: %s", w.Code, w.Body)
	}
	if got := decodeOrder(t, w); got.Status != model.OrderStatusFulfilled || got.Seller != b.ID {
		t.Errorf("fulfilled order = %+v", got)
	}

	// Fulfilled orders cannot be cancelled.
	w = doJSON(t, router, "PUT", "/api/v1/orders/cancel", map[string]string{"orderId": o.ID})
	if w.Code != http.StatusConflict {
		t.Errorf("cancel fulfilled status = %d, want 409", w.Code)
	}

	// The participant's cash survived the round trip. IDs contain '#', so
	// they ride in a query parameter.
	w = doJSON(t, router, "GET", "/api/v1/participants?id="+url.QueryEscape(a.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get participant status = %d: %s", w.Code, w.Body)
	}
	var p model.Participant
	json.NewDecoder(w.Body).Decode(&p)
	if p.TotalCash != 5000 {
		t.Errorf("participant totalCash = %d, want 5000", p.TotalCash)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, "POST", "/api/v1/orders", map[string]any{
		"participant": "x", "orderType": "steal", "tickerSymbol": "MEME", "quantity": 1, "total": 1,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad orderType status = %d, want 400", w.Code)
	}

	req := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewBufferString("{not json"))
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	if w2.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", w2.Code)
	}
}

func TestListOrdersFiltering(t *testing.T) {
	router, svc, lg := newTestRouter(t)
	seedCompany(t, lg, "MEME", 500)
	a := seedParticipant(t, lg, "alice", 100000, map[string]model.Holding{
		"MEME": {QuantityHeld: 20, QuantityOnHand: 20},
	})

	for _, typ := range []model.OrderType{model.OrderTypeBuy, model.OrderTypeBuy, model.OrderTypeSell} {
		req := exchange.CreateOrderRequest{Participant: a.ID, Type: typ, Symbol: "MEME", Quantity: 1, Total: 500}
		if _, err := svc.CreateOrder(context.Background(), req); err != nil {
			t.Fatalf("seed order: %v", err)
		}
	}

	w := doJSON(t, router, "GET", "/api/v1/orders?status=open&type=buy", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", w.Code, w.Body)
	}
	var resp struct {
		Orders []model.Order `json:"orders"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Orders) != 2 {
		t.Errorf("open buy orders = %d, want 2", len(resp.Orders))
	}
	for _, o := range resp.Orders {
		if o.Type != model.OrderTypeBuy || o.Status != model.OrderStatusOpen {
			t.Errorf("filter leaked order %+v", o)
		}
	}

	w = doJSON(t, router, "GET", "/api/v1/orders?limit=bogus", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus limit status = %d, want 400", w.Code)
	}
}

func TestParticipantEndpoints(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, "POST", "/api/v1/participants", exchange.CreateParticipantRequest{
		DisplayName: "alice", Email: "alice@example.com",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d: %s", w.Code, w.Body)
	}
	var p model.Participant
	json.NewDecoder(w.Body).Decode(&p)

	w = doJSON(t, router, "POST", "/api/v1/participants", exchange.CreateParticipantRequest{
		DisplayName: "alice", Email: "alice2@example.com",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate signup status = %d, want 409", w.Code)
	}

	w = doJSON(t, router, "DELETE", "/api/v1/participants?id="+url.QueryEscape(p.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", w.Code)
	}

	w = doJSON(t, router, "GET", "/api/v1/participants?id="+url.QueryEscape(p.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get removed status = %d, want 404", w.Code)
	}
}
