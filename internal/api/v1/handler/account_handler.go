package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/rs/zerolog"
)

const defaultUsageLimit = 50

// AccountHandler exposes the caller's own profile and audit trail.
type AccountHandler struct {
	accountService service.AccountService
	logger         zerolog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService service.AccountService, logger zerolog.Logger) *AccountHandler {
	return &AccountHandler{accountService: accountService, logger: logger}
}

// RegisterRoutes mounts v1 account routes.
func (h *AccountHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/accounts/me", authMw(http.HandlerFunc(h.getMe)))
	mux.Handle("/accounts/me/usage", authMw(http.HandlerFunc(h.getUsage)))
	mux.Handle("/accounts/me/purchases", authMw(http.HandlerFunc(h.getPurchases)))
}

func (h *AccountHandler) getMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	account, err := h.accountService.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "")
			return
		}
		h.logger.Error().Err(err).Msg("Failed to load account")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dto.AccountResponseDTO{
		ID:        account.ID,
		FullName:  account.FullName,
		Email:     account.Email,
		Role:      account.Role,
		Credits:   account.Credits,
		CreatedAt: account.CreatedAt,
	})
}

func (h *AccountHandler) getUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	limit := defaultUsageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := h.accountService.Usage(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list usage log")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "")
		return
	}

	resp := make([]dto.UsageLogEntryDTO, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, dto.UsageLogEntryDTO{
			ID:          e.ID,
			Action:      e.Action,
			CreditsUsed: e.CreditsUsed,
			Details:     e.Details,
			CreatedAt:   e.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *AccountHandler) getPurchases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	purchases, err := h.accountService.Purchases(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list purchases")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "")
		return
	}

	resp := make([]dto.CreditPurchaseDTO, 0, len(purchases))
	for _, p := range purchases {
		resp = append(resp, dto.CreditPurchaseDTO{
			ID:          p.ID,
			PackID:      p.PackID,
			Credits:     p.Credits,
			AmountCents: p.AmountCents,
			CreatedAt:   p.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
