package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/generator"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// GenerationHandler handles generation endpoints.
type GenerationHandler struct {
	genService service.GenerationService
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(genService service.GenerationService, v *validator.Validate, logger zerolog.Logger) *GenerationHandler {
	return &GenerationHandler{genService: genService, validate: v, logger: logger}
}

// RegisterRoutes mounts v1 generation routes.
func (h *GenerationHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/generations", authMw(http.HandlerFunc(h.handleGenerations)))
	mux.Handle("/generations/", authMw(http.HandlerFunc(h.handleGenerationByID)))
}

func (h *GenerationHandler) handleGenerations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// create runs a credit-metered generation: the caller is debited, the
// backend is called and the artifact persisted. Failures after the debit
// refund automatically.
func (h *GenerationHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.GenerationCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	var attrs *generator.Attributes
	if req.Attributes != nil {
		attrs = &generator.Attributes{
			Gender:       req.Attributes.Gender,
			Ethnicity:    req.Attributes.Ethnicity,
			Age:          req.Attributes.Age,
			BodyType:     req.Attributes.BodyType,
			HairStyle:    req.Attributes.HairStyle,
			HairColor:    req.Attributes.HairColor,
			EyeColor:     req.Attributes.EyeColor,
			FashionStyle: req.Attributes.FashionStyle,
		}
	}

	result, err := h.genService.Generate(r.Context(), service.GenerateRequest{
		UserID:           userID,
		AvatarID:         req.AvatarID,
		Kind:             model.GenerationKind(req.Kind),
		Prompt:           req.Prompt,
		Attributes:       attrs,
		SceneDescription: req.SceneDescription,
		Style:            req.Style,
		ExtraParams:      req.ExtraParams,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPromptSpec), errors.Is(err, service.ErrUnsupportedKind):
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		case errors.Is(err, service.ErrInsufficientCredits):
			writeError(w, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", "")
		case errors.Is(err, service.ErrAvatarNotFound):
			writeError(w, http.StatusNotFound, "AVATAR_NOT_FOUND", "")
		case errors.Is(err, service.ErrGenerationFailed):
			writeError(w, http.StatusBadGateway, "GENERATION_FAILED", err.Error())
		default:
			h.logger.Error().Err(err).Msg("Generation request failed")
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "")
		}
		return
	}

	resp := dto.GenerationCreateResponseDTO{
		Generation:       toGenerationDTO(result.Generation),
		CreditsRemaining: result.CreditsRemaining,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *GenerationHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	var avatarID *string
	if v := r.URL.Query().Get("avatar_id"); v != "" {
		avatarID = &v
	}
	var kind *model.GenerationKind
	if v := r.URL.Query().Get("kind"); v != "" {
		k := model.GenerationKind(v)
		if !k.Valid() {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "unknown kind: "+v)
			return
		}
		kind = &k
	}

	generations, err := h.genService.List(r.Context(), userID, avatarID, kind)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list generations")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "")
		return
	}

	resp := make([]dto.GenerationResponseDTO, 0, len(generations))
	for i := range generations {
		resp = append(resp, toGenerationDTO(&generations[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *GenerationHandler) handleGenerationByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/generations/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	err := h.genService.Delete(r.Context(), userID, id)
	switch {
	case errors.Is(err, service.ErrGenerationNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "")
	case errors.Is(err, service.ErrNotOwner):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "")
	case err != nil:
		h.logger.Error().Err(err).Str("generation_id", id).Msg("Failed to delete generation")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func toGenerationDTO(g *model.Generation) dto.GenerationResponseDTO {
	return dto.GenerationResponseDTO{
		ID:               g.ID,
		AvatarID:         g.AvatarID,
		Kind:             string(g.Kind),
		URL:              g.URL,
		Prompt:           g.Prompt,
		SceneDescription: g.SceneDescription,
		Style:            g.Style,
		ExtraParams:      g.ExtraParams,
		CreatedAt:        g.CreatedAt,
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponseDTO{Error: code, Detail: detail})
}
