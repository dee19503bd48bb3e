package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// BillingHandler handles credit purchase endpoints. The webhook route is
// unauthenticated; Stripe signs its payloads instead.
type BillingHandler struct {
	billingService *service.BillingService
	validate       *validator.Validate
	logger         zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billingService *service.BillingService, v *validator.Validate, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{billingService: billingService, validate: v, logger: logger}
}

// RegisterRoutes mounts v1 billing routes.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/billing/packs", http.HandlerFunc(h.listPacks))
	mux.Handle("/billing/payment-intent", authMw(http.HandlerFunc(h.createPaymentIntent)))
	mux.Handle("/billing/webhook", http.HandlerFunc(h.billingService.HandleWebhook))
}

func (h *BillingHandler) listPacks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	packs := service.Packs()
	resp := make([]dto.CreditPackDTO, 0, len(packs))
	for _, p := range packs {
		resp = append(resp, dto.CreditPackDTO{
			ID:          p.ID,
			Credits:     p.Credits,
			AmountCents: p.AmountCents,
			Currency:    p.Currency,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *BillingHandler) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.PaymentIntentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	clientSecret, err := h.billingService.CreatePaymentIntent(r.Context(), userID, req.PackID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPack):
			writeError(w, http.StatusBadRequest, "UNKNOWN_PACK", "")
		case errors.Is(err, service.ErrAccountNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "")
		default:
			h.logger.Error().Err(err).Msg("Failed to create payment intent")
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dto.PaymentIntentResponseDTO{ClientSecret: clientSecret})
}
