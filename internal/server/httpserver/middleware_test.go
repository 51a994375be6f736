package httpserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/core/service"
	"github.com/mtaadao/mtaa-realtime/internal/server/httpserver/handler"
	"github.com/mtaadao/mtaa-realtime/internal/telemetry/logger"
	"github.com/mtaadao/mtaa-realtime/pkg/token"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(ok(), mark("a"), mark("b"), mark("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "a,b,c" {
		t.Errorf("expected a,b,c, got %v", order)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	}), RequestID())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.HasPrefix(seen, "req-") {
		t.Errorf("expected generated req- id, got %q", seen)
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Error("response header should echo the context id")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "upstream-1" {
		t.Errorf("expected upstream id to be kept, got %q", seen)
	}
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), Recover(discard))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var resp handler.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != domain.ErrInternalServer.Code {
		t.Errorf("expected %s, got %s", domain.ErrInternalServer.Code, resp.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	hash, err := token.Hash("admin-secret")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		hash   string
		header string
		want   int
	}{
		{"valid", hash, "Bearer admin-secret", http.StatusOK},
		{"missing", hash, "", http.StatusUnauthorized},
		{"wrong scheme", hash, "Basic admin-secret", http.StatusUnauthorized},
		{"wrong key", hash, "Bearer nope", http.StatusUnauthorized},
		{"disabled", "", "Bearer admin-secret", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Chain(ok(), AdminAuth(service.NewAdminAuthenticator(tt.hash)))
			req := httptest.NewRequest(http.MethodGet, "/admin/v1/status/summary", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	h := Chain(ok(), CORS([]string{"https://app.mtaa.example"}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.mtaa.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.mtaa.example" {
		t.Error("allowed origin should be echoed")
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("credentials should be allowed")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("foreign origin must not be allowed")
	}

	req = httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	req.Header.Set("Origin", "https://app.mtaa.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", rec.Code)
	}
}

type recordedRequest struct {
	method, route, status string
}

type fakeRequestMetrics struct {
	requests []recordedRequest
}

func (m *fakeRequestMetrics) RecordRequest(method, route, status string) {
	m.requests = append(m.requests, recordedRequest{method, route, status})
}

func (m *fakeRequestMetrics) ObserveRequestDuration(string, string, float64) {}

func TestAudit_RecordsRoutePattern(t *testing.T) {
	metrics := &fakeRequestMetrics{}
	mux := http.NewServeMux()
	mux.Handle("GET /users/{user_id}/sessions", Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), Audit(discard, metrics)))

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/u42/sessions", nil))

	if len(metrics.requests) != 1 {
		t.Fatalf("expected 1 request recorded, got %d", len(metrics.requests))
	}
	got := metrics.requests[0]
	if got.route != "GET /users/{user_id}/sessions" || got.status != "404" {
		t.Errorf("unexpected record %+v", got)
	}
}

func TestResponseWriter_PassesFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	w.WriteHeader(http.StatusAccepted)
	w.WriteHeader(http.StatusTeapot)
	w.Flush()

	if w.statusCode != http.StatusAccepted {
		t.Errorf("first status should win, got %d", w.statusCode)
	}
	if !rec.Flushed {
		t.Error("Flush should reach the underlying writer")
	}
	if _, _, err := w.Hijack(); err == nil {
		t.Error("recorder cannot be hijacked")
	}
}
