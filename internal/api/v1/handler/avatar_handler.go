package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// AvatarHandler handles avatar endpoints.
type AvatarHandler struct {
	avatarService service.AvatarService
	validate      *validator.Validate
	logger        zerolog.Logger
}

// NewAvatarHandler creates a new AvatarHandler.
func NewAvatarHandler(avatarService service.AvatarService, v *validator.Validate, logger zerolog.Logger) *AvatarHandler {
	return &AvatarHandler{avatarService: avatarService, validate: v, logger: logger}
}

// RegisterRoutes mounts v1 avatar routes.
func (h *AvatarHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/avatars", authMw(http.HandlerFunc(h.handleAvatars)))
	mux.Handle("/avatars/", authMw(http.HandlerFunc(h.handleAvatarByID)))
}

func (h *AvatarHandler) handleAvatars(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AvatarHandler) handleAvatarByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/avatars/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPatch:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AvatarHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.AvatarCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	avatar, err := h.avatarService.Create(r.Context(), &model.Avatar{
		UserID:          userID,
		Name:            req.Name,
		Description:     req.Description,
		Style:           req.Style,
		Gender:          req.Gender,
		Ethnicity:       req.Ethnicity,
		Age:             req.Age,
		BodyType:        req.BodyType,
		HairStyle:       req.HairStyle,
		HairColor:       req.HairColor,
		EyeColor:        req.EyeColor,
		FashionStyle:    req.FashionStyle,
		RoleDescription: req.RoleDescription,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create avatar")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toAvatarDTO(avatar))
}

func (h *AvatarHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	avatars, err := h.avatarService.List(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list avatars")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "")
		return
	}

	resp := make([]dto.AvatarResponseDTO, 0, len(avatars))
	for i := range avatars {
		resp = append(resp, toAvatarDTO(&avatars[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *AvatarHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	avatar, err := h.avatarService.Get(r.Context(), userID, id)
	if err != nil {
		h.writeAvatarError(w, err, id)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAvatarDTO(avatar))
}

func (h *AvatarHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.AvatarUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	current, err := h.avatarService.Get(r.Context(), userID, id)
	if err != nil {
		h.writeAvatarError(w, err, id)
		return
	}
	applyAvatarUpdate(current, &req)

	avatar, err := h.avatarService.Update(r.Context(), userID, current)
	if err != nil {
		h.writeAvatarError(w, err, id)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAvatarDTO(avatar))
}

func (h *AvatarHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	if err := h.avatarService.Delete(r.Context(), userID, id); err != nil {
		h.writeAvatarError(w, err, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AvatarHandler) writeAvatarError(w http.ResponseWriter, err error, id string) {
	if errors.Is(err, service.ErrAvatarNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "")
		return
	}
	h.logger.Error().Err(err).Str("avatar_id", id).Msg("Avatar operation failed")
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "")
}

func applyAvatarUpdate(a *model.Avatar, req *dto.AvatarUpdateDTO) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&a.Name, req.Name)
	set(&a.Description, req.Description)
	set(&a.Style, req.Style)
	set(&a.Gender, req.Gender)
	set(&a.Ethnicity, req.Ethnicity)
	set(&a.Age, req.Age)
	set(&a.BodyType, req.BodyType)
	set(&a.HairStyle, req.HairStyle)
	set(&a.HairColor, req.HairColor)
	set(&a.EyeColor, req.EyeColor)
	set(&a.FashionStyle, req.FashionStyle)
	set(&a.RoleDescription, req.RoleDescription)
}

func toAvatarDTO(a *model.Avatar) dto.AvatarResponseDTO {
	return dto.AvatarResponseDTO{
		ID:              a.ID,
		Name:            a.Name,
		Description:     a.Description,
		Style:           a.Style,
		Gender:          a.Gender,
		Ethnicity:       a.Ethnicity,
		Age:             a.Age,
		BodyType:        a.BodyType,
		HairStyle:       a.HairStyle,
		HairColor:       a.HairColor,
		EyeColor:        a.EyeColor,
		FashionStyle:    a.FashionStyle,
		RoleDescription: a.RoleDescription,
		PrimaryImageURL: a.PrimaryImageURL,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}
