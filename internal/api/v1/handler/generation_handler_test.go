package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type stubGenerationService struct {
	result  *service.GenerateResult
	err     error
	lastReq service.GenerateRequest
}

func (s *stubGenerationService) Generate(ctx context.Context, req service.GenerateRequest) (*service.GenerateResult, error) {
	s.lastReq = req
	return s.result, s.err
}

func (s *stubGenerationService) List(ctx context.Context, userID string, avatarID *string, kind *model.GenerationKind) ([]model.Generation, error) {
	return []model.Generation{}, nil
}

func (s *stubGenerationService) Delete(ctx context.Context, userID, generationID string) error {
	return s.err
}

// identityAuth injects a fixed user id the way the JWT middleware would.
func identityAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.UserContextKey, "user-1")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTestMux(stub *stubGenerationService) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewGenerationHandler(stub, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	h.RegisterRoutes(mux, identityAuth)
	return mux
}

func postGeneration(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/generations", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCreateGenerationSuccess(t *testing.T) {
	stub := &stubGenerationService{
		result: &service.GenerateResult{
			Generation: &model.Generation{
				ID:     "gen-1",
				UserID: "user-1",
				Kind:   model.KindImage,
				URL:    "https://cdn.example.com/out.png",
				Prompt: "a lighthouse at dusk",
			},
			CreditsRemaining: 4,
		},
	}
	rec := postGeneration(t, newTestMux(stub), `{"kind":"image","prompt":"a lighthouse at dusk"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var resp dto.GenerationCreateResponseDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.CreditsRemaining != 4 || resp.Generation.ID != "gen-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if stub.lastReq.UserID != "user-1" {
		t.Fatalf("user id not taken from auth context: %q", stub.lastReq.UserID)
	}
}

func TestCreateGenerationInsufficientCredits(t *testing.T) {
	stub := &stubGenerationService{err: service.ErrInsufficientCredits}
	rec := postGeneration(t, newTestMux(stub), `{"kind":"video","prompt":"x"}`)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	var resp dto.ErrorResponseDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Error != "INSUFFICIENT_FUNDS" {
		t.Fatalf("error code = %q, want INSUFFICIENT_FUNDS", resp.Error)
	}
}

func TestCreateGenerationBackendFailure(t *testing.T) {
	stub := &stubGenerationService{err: service.ErrGenerationFailed}
	rec := postGeneration(t, newTestMux(stub), `{"kind":"image","prompt":"x"}`)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var resp dto.ErrorResponseDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Error != "GENERATION_FAILED" {
		t.Fatalf("error code = %q, want GENERATION_FAILED", resp.Error)
	}
	if resp.Detail == "" {
		t.Fatal("502 responses must carry failure detail")
	}
}

func TestCreateGenerationInvalidKind(t *testing.T) {
	stub := &stubGenerationService{}
	rec := postGeneration(t, newTestMux(stub), `{"kind":"hologram","prompt":"x"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateGenerationMalformedJSON(t *testing.T) {
	stub := &stubGenerationService{}
	rec := postGeneration(t, newTestMux(stub), `{"kind":`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateGenerationPromptSpecConflict(t *testing.T) {
	stub := &stubGenerationService{err: service.ErrInvalidPromptSpec}
	rec := postGeneration(t, newTestMux(stub), `{"kind":"image","prompt":"x","attributes":{"gender":"feminine"}}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteGeneration(t *testing.T) {
	stub := &stubGenerationService{}
	mux := newTestMux(stub)

	req := httptest.NewRequest(http.MethodDelete, "/generations/gen-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestDeleteGenerationNotFound(t *testing.T) {
	stub := &stubGenerationService{err: service.ErrGenerationNotFound}
	mux := newTestMux(stub)

	req := httptest.NewRequest(http.MethodDelete, "/generations/missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListGenerationsRejectsUnknownKindFilter(t *testing.T) {
	stub := &stubGenerationService{}
	mux := newTestMux(stub)

	req := httptest.NewRequest(http.MethodGet, "/generations?kind=hologram", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
