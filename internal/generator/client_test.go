package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, 5*time.Second, 5*time.Second, zerolog.Nop())
}

func TestGenerateSuccess(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/generate" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example.com/out.png"})
	}))
	defer srv.Close()

	url, err := testClient(srv.URL).Generate(context.Background(), model.KindImage, "Portrait of a person")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if url != "https://cdn.example.com/out.png" {
		t.Fatalf("unexpected artifact URL: %q", url)
	}
	if gotReq.Kind != "image" || gotReq.Prompt != "Portrait of a person" {
		t.Fatalf("unexpected backend request: %+v", gotReq)
	}
}

func TestGenerateBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Generate(context.Background(), model.KindImage, "x")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestGenerateEmptyURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"url": ""})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Generate(context.Background(), model.KindImage, "x")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestGenerateUnreachableBackend(t *testing.T) {
	_, err := testClient("http://127.0.0.1:1").Generate(context.Background(), model.KindVideo, "x")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestGenerateTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(srv.URL, 50*time.Millisecond, 50*time.Millisecond, zerolog.Nop())
	start := time.Now()
	_, err := c.Generate(context.Background(), model.KindImage, "x")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout did not bound the backend call")
	}
}
