package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/model"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/infra/logging"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/usecase"
)

type createIntentRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Gateway     string `json:"gateway"`
	OrderID     string `json:"order_id,omitempty"`
	Description string `json:"description,omitempty"`
	Recurring   bool   `json:"recurring,omitempty"`
	Tier        string `json:"tier,omitempty"`
}

type createIntentResponse struct {
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
	Gateway      string `json:"gateway"`
	ApprovalURL  string `json:"approval_url,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type paymentResponse struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id,omitempty"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Gateway   string `json:"gateway"`
	Status    string `json:"status"`
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 || req.Currency == "" || req.Gateway == "" {
		http.Error(w, "amount, currency and gateway are required", http.StatusBadRequest)
		return
	}

	ctx := logging.WithOrgID(r.Context(), session.OrganizationID)
	p, res, err := s.payUC.CreateIntent(ctx, usecase.CreateIntentInput{
		OrderID:        req.OrderID,
		OrganizationID: session.OrganizationID,
		UserID:         session.Subject,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Gateway:        model.Gateway(req.Gateway),
		Description:    req.Description,
		Recurring:      req.Recurring,
		Tier:           req.Tier,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnsupportedGateway), errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrConfiguration):
			s.log.Error().Err(err).Msg("gateway misconfigured")
			http.Error(w, "payment gateway unavailable", http.StatusInternalServerError)
		case errors.Is(err, domain.ErrUpstream):
			s.log.Error().Err(err).Msg("gateway rejected intent")
			http.Error(w, "payment provider rejected the request, please retry", http.StatusBadGateway)
		default:
			s.log.Error().Err(err).Msg("create intent failed")
			http.Error(w, "Failed to create payment", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createIntentResponse{
		PaymentID:    p.ID,
		Status:       string(p.Status),
		Gateway:      string(p.Gateway),
		ApprovalURL:  res.RedirectURL,
		ClientSecret: res.ClientSecret,
	})
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	p, err := s.payUC.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		s.log.Error().Err(err).Msg("get payment failed")
		http.Error(w, "Failed to get payment", http.StatusInternalServerError)
		return
	}
	// tenant scoping: rows from another organization do not exist
	if p.OrganizationID != session.OrganizationID {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(paymentResponse{
		PaymentID: p.ID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Gateway:   string(p.Gateway),
		Status:    string(p.Status),
	})
}
