package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ilyasfares/sakina/backend/internal/middleware"
	"github.com/ilyasfares/sakina/backend/internal/profile"
	"github.com/ilyasfares/sakina/backend/internal/service/provider"
	"github.com/ilyasfares/sakina/backend/internal/service/ratelimit"
	suggestservice "github.com/ilyasfares/sakina/backend/internal/service/suggest"
	"github.com/ilyasfares/sakina/backend/internal/telemetry"
)

func setupRouter(maxCalls int) (*chi.Mux, *telemetry.MemoryStore) {
	sink := telemetry.NewMemoryStore()
	gateway := provider.NewGateway(nil, 0)
	limiter := ratelimit.New(sink, maxCalls, 60, false)
	svc := suggestservice.NewService(gateway, limiter, sink, profile.NewMemoryStore(profile.Seed()), nil)

	r := chi.NewRouter()
	r.Use(middleware.Auth)
	New(svc).RegisterRoutes(r)
	return r, sink
}

func TestStreamRequiresMessage(t *testing.T) {
	r, _ := setupRouter(20)

	req := httptest.NewRequest(http.MethodGet, "/suggestions/stream", nil)
	req.Header.Set("X-User-ID", "amina")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStreamServesLocalFallback(t *testing.T) {
	r, _ := setupRouter(20)

	req := httptest.NewRequest(http.MethodGet, "/suggestions/stream?message=long+day+at+work&language=en", nil)
	req.Header.Set("X-User-ID", "amina")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %s", ct)
	}

	body := resp.Body.String()
	for _, event := range []string{"event: start", "event: delta", "event: message", "event: end"} {
		if !strings.Contains(body, event) {
			t.Fatalf("expected %q in stream, got:\n%s", event, body)
		}
	}
	if !strings.Contains(body, provider.LocalName) {
		t.Fatalf("expected local provider in start event, got:\n%s", body)
	}
}

func TestStreamRateLimitedBeforeEventsFlow(t *testing.T) {
	r, sink := setupRouter(1)

	if err := sink.AppendUsage(context.Background(), telemetry.UsageRecord{
		UserID:    "amina",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed usage: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/suggestions/stream?message=hello", nil)
	req.Header.Set("X-User-ID", "amina")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json error before stream, got %s", ct)
	}
}
