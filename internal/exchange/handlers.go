package exchange

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/git-masi/memestock-backend/internal/ledger"
	"github.com/git-masi/memestock-backend/internal/model"
)

// Routes mounts the exchange endpoints. IDs contain '#' separators, so
// they travel in query parameters and request bodies rather than URL
// path segments.
func (s *Service) Routes(r chi.Router) {
	r.Route("/participants", func(r chi.Router) {
		r.Post("/", s.handleCreateParticipant)
		r.Get("/", s.handleGetParticipant)
		r.Delete("/", s.handleRemoveParticipant)
	})
	r.Route("/companies", func(r chi.Router) {
		r.Post("/", s.handleCreateCompany)
		r.Get("/", s.handleListCompanies)
	})
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", s.handleCreateOrder)
		r.Get("/", s.handleListOrders)
		r.Get("/history", s.handleOrderHistory)
		r.Put("/fulfill", s.handleFulfillOrder)
		r.Put("/cancel", s.handleCancelOrder)
	})
}

func (s *Service) handleCreateParticipant(w http.ResponseWriter, r *http.Request) {
	var req CreateParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	p, err := s.CreateParticipant(r.Context(), req)
	if err != nil {
		writeError(w, err.Error(), StatusCode(err))
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Service) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, "missing id query parameter", http.StatusBadRequest)
		return
	}
	p, err := s.GetParticipant(r.Context(), id)
	if err != nil {
		writeError(w, err.Error(), StatusCode(err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Service) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, "missing id query parameter", http.StatusBadRequest)
		return
	}
	if err := s.RemoveParticipant(r.Context(), id); err != nil {
		writeError(w, err.Error(), StatusCode(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var req CreateCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	c, err := s.CreateCompany(r.Context(), req)
	if err != nil {
		writeError(w, err.Error(), StatusCode(err))
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Service) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.ListCompanies(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": companies})
}

func (s *Service) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	o, err := s.CreateOrder(r.Context(), req)
	if err != nil {
		writeError(w, err.Error(), StatusCode(err))
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Service) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := ledger.OrdersQuery{
		Status:     model.OrderStatus(r.URL.Query().Get("status")),
		Type:       model.OrderType(r.URL.Query().Get("type")),
		Descending: r.URL.Query().Get("order") != "asc",
		StartAfter: r.URL.Query().Get("cursor"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		q.Limit = n
	}
	orders, err := s.Orders(r.Context(), q)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := map[string]any{"orders": orders}
	if len(orders) > 0 {
		resp["cursor"] = orders[len(orders)-1].ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	participant := r.URL.Query().Get("participant")
	if participant == "" {
		writeError(w, "missing participant query parameter", http.StatusBadRequest)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	orders, err := s.OrderHistory(r.Context(), participant, limit)
	if err != nil {
		writeError(w, err.Error(), StatusCode(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

type fulfillOrderRequest struct {
	OrderID     string `json:"orderId"`
	Participant string `json:"participant"`
}

func (s *Service) handleFulfillOrder(w http.ResponseWriter, r *http.Request) {
	var req fulfillOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.OrderID == "" || req.Participant == "" {
		writeError(w, "orderId and participant are required", http.StatusBadRequest)
		return
	}
	o, err := s.FulfillOrder(r.Context(), req.OrderID, req.Participant)
	if err != nil {
		writeError(w, err.Error(), StatusCode(err))
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type cancelOrderRequest struct {
	OrderID string `json:"orderId"`
}

func (s *Service) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.OrderID == "" {
		writeError(w, "orderId is required", http.StatusBadRequest)
		return
	}
	o, err := s.CancelOrder(r.Context(), req.OrderID)
	if err != nil {
		writeError(w, err.Error(), StatusCode(err))
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
