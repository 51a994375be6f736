package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/core/service"
	"github.com/mtaadao/mtaa-realtime/internal/realtime"
	"github.com/mtaadao/mtaa-realtime/internal/storage"
	"github.com/mtaadao/mtaa-realtime/internal/storage/inbox"
	"github.com/mtaadao/mtaa-realtime/internal/storage/memory"
	"github.com/mtaadao/mtaa-realtime/pkg/clock"
)

type testEnv struct {
	handler *Handler
	clock   *clock.Fake
	hub     *realtime.Hub
	kv      storage.KVEngine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := clock.NewFake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	kv, err := storage.NewBadgerEngine(storage.InMemoryKVConfig(), slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kv.Close() })

	hub := realtime.NewHub()
	store := memory.New(memory.WithClock(fake))

	h := New(Deps{
		Sessions:      service.NewSessionService(store, service.WithClock(fake)),
		Notifications: service.NewNotificationService(inbox.New(kv), hub, service.WithClock(fake)),
		Limiter:       service.NewRateLimiter(service.DefaultPolicies(), service.WithClock(fake)),
		Hub:           hub,
		Inbox:         kv,
		Clock:         fake,
	})
	return &testEnv{handler: h, clock: fake, hub: hub, kv: kv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, *Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec, &resp
}

// decodeData re-decodes the envelope's data into v.
func decodeData(t *testing.T, resp *Response, v any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) login(t *testing.T, userID, sessionID string) SessionResponse {
	t.Helper()
	rec, resp := e.do(t, http.MethodPost, "/sessions",
		CreateSessionRequest{UserID: userID, SessionID: sessionID},
		"User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	if rec.Code != http.StatusCreated {
		t.Fatalf("login: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var s SessionResponse
	decodeData(t, resp, &s)
	return s
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/ready"} {
		rec, resp := env.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
		if resp.Code != "OK" {
			t.Errorf("%s: expected OK envelope, got %q", path, resp.Code)
		}
	}
}

func TestReady_NotReady(t *testing.T) {
	env := newTestEnv(t)
	env.handler.deps.Ready = func(context.Context) error { return context.DeadlineExceeded }

	rec, _ := env.do(t, http.MethodGet, "/ready", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)

	s := env.login(t, "u1", "")
	if !strings.HasPrefix(s.ID, domain.SessionIDPrefix) {
		t.Errorf("expected generated id, got %q", s.ID)
	}
	if s.UserID != "u1" {
		t.Errorf("expected u1, got %q", s.UserID)
	}
	if !s.ExpiresAt.Equal(s.LastActivity.Add(30 * time.Minute)) {
		t.Errorf("expires_at should be last_activity + 30m, got %v", s.ExpiresAt)
	}
	if !strings.Contains(s.Device, "Chrome") || !strings.Contains(s.Device, "Windows") {
		t.Errorf("unexpected device label %q", s.Device)
	}
}

func TestCreateSession_Validation(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/sessions", CreateSessionRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp.Code != domain.ErrSessionValidation.Code {
		t.Errorf("expected %s, got %s", domain.ErrSessionValidation.Code, resp.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader("{broken"))
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	s := env.login(t, "u1", "mts_fixed")

	env.clock.Advance(29 * time.Minute)
	rec, _ := env.do(t, http.MethodGet, "/sessions/mts_fixed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get at 29m: expected 200, got %d", rec.Code)
	}

	// Sliding expiry: 29 minutes after the read, still alive.
	env.clock.Advance(29 * time.Minute)
	rec, resp := env.do(t, http.MethodPost, "/sessions/mts_fixed/touch", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("touch: expected 200, got %d", rec.Code)
	}
	var touched SessionResponse
	decodeData(t, resp, &touched)
	if !touched.LastActivity.Equal(env.clock.Now()) {
		t.Errorf("touch should set last_activity to now, got %v", touched.LastActivity)
	}
	if !touched.LoginTime.Equal(s.LoginTime) {
		t.Error("login_time must not change")
	}

	env.clock.Advance(31 * time.Minute)
	rec, resp = env.do(t, http.MethodGet, "/sessions/mts_fixed", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expired: expected 404, got %d", rec.Code)
	}
	if resp.Code != domain.ErrSessionNotFound.Code {
		t.Errorf("expected %s, got %s", domain.ErrSessionNotFound.Code, resp.Code)
	}
}

func TestRevokeSession(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "u1", "mts_a")

	_, resp := env.do(t, http.MethodPost, "/sessions/mts_a/revoke", nil)
	var out RevokeSessionResponse
	decodeData(t, resp, &out)
	if !out.Revoked {
		t.Error("expected revoked=true")
	}

	rec, resp := env.do(t, http.MethodPost, "/sessions/mts_a/revoke", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second revoke: expected 200, got %d", rec.Code)
	}
	decodeData(t, resp, &out)
	if out.Revoked {
		t.Error("second revoke should report revoked=false")
	}
}

func TestUserSessions_CapAndRevokeAll(t *testing.T) {
	env := newTestEnv(t)

	ids := []string{"mts_1", "mts_2", "mts_3", "mts_4", "mts_5", "mts_6"}
	for _, id := range ids {
		env.login(t, "u1", id)
		env.clock.Advance(time.Second)
	}

	_, resp := env.do(t, http.MethodGet, "/users/u1/sessions", nil)
	var list ListSessionsResponse
	decodeData(t, resp, &list)
	if list.Total != 5 {
		t.Fatalf("expected 5 sessions, got %d", list.Total)
	}
	if list.Items[0].ID != "mts_2" || list.Items[4].ID != "mts_6" {
		t.Errorf("expected mts_2..mts_6 in login order, got %s..%s", list.Items[0].ID, list.Items[4].ID)
	}

	conn, _ := env.hub.Register(realtime.ChannelSSE)
	_ = env.hub.Authenticate(conn.ID(), "u1")

	_, resp = env.do(t, http.MethodPost, "/users/u1/sessions/revoke", nil)
	var revoked RevokeUserSessionsResponse
	decodeData(t, resp, &revoked)
	if revoked.RevokedCount != 5 || revoked.DisconnectedCount != 1 {
		t.Errorf("unexpected revoke result %+v", revoked)
	}

	_, resp = env.do(t, http.MethodGet, "/users/u1/sessions", nil)
	decodeData(t, resp, &list)
	if list.Total != 0 || list.Items == nil {
		t.Errorf("expected empty non-nil list, got %+v", list)
	}
}

func TestNotifications(t *testing.T) {
	env := newTestEnv(t)

	conn, _ := env.hub.Register(realtime.ChannelWebSocket)
	_ = env.hub.Authenticate(conn.ID(), "u1")

	rec, resp := env.do(t, http.MethodPost, "/notifications", service.PublishRequest{
		UserID:   "u1",
		Type:     "proposal",
		Title:    "New proposal",
		Message:  "Vote on the treasury budget",
		Priority: domain.PriorityHigh,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("publish: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var published PublishResponse
	decodeData(t, resp, &published)
	if published.Delivered != 1 || !published.Persisted {
		t.Errorf("unexpected publish result %+v", published)
	}
	select {
	case n := <-conn.Messages():
		if n.ID != published.Notification.ID {
			t.Errorf("pushed %s, published %s", n.ID, published.Notification.ID)
		}
	default:
		t.Error("connection received nothing")
	}

	env.clock.Advance(time.Second)
	env.do(t, http.MethodPost, "/notifications", service.PublishRequest{
		UserID: "u1", Type: "system", Title: "Maintenance", Message: "Tonight",
	})

	_, resp = env.do(t, http.MethodGet, "/users/u1/notifications?filter=high", nil)
	var page service.InboxPage
	decodeData(t, resp, &page)
	if len(page.Items) != 1 || page.UnreadCount != 2 {
		t.Fatalf("high filter: got %d items, %d unread", len(page.Items), page.UnreadCount)
	}

	rec, _ = env.do(t, http.MethodPost, "/users/u1/notifications/"+published.Notification.ID+"/read", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read: expected 200, got %d", rec.Code)
	}

	_, resp = env.do(t, http.MethodGet, "/users/u1/notifications?filter=unread&limit=10", nil)
	decodeData(t, resp, &page)
	if len(page.Items) != 1 || page.Items[0].Title != "Maintenance" {
		t.Errorf("unread filter: unexpected %+v", page.Items)
	}

	_, resp = env.do(t, http.MethodPost, "/users/u1/notifications/read-all", nil)
	var all MarkAllReadResponse
	decodeData(t, resp, &all)
	if all.Updated != 1 {
		t.Errorf("expected 1 updated, got %d", all.Updated)
	}

	rec, resp = env.do(t, http.MethodPost, "/users/u1/notifications/ntf_missing/read", nil)
	if rec.Code != http.StatusNotFound || resp.Code != domain.ErrNotificationNotFound.Code {
		t.Errorf("unknown id: got %d %s", rec.Code, resp.Code)
	}
}

func TestDeleteNotification(t *testing.T) {
	env := newTestEnv(t)

	var ids []string
	for _, title := range []string{"First", "Second"} {
		rec, resp := env.do(t, http.MethodPost, "/notifications", service.PublishRequest{
			UserID: "u1", Type: "system", Title: title, Message: "m",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("publish: expected 201, got %d", rec.Code)
		}
		var published PublishResponse
		decodeData(t, resp, &published)
		ids = append(ids, published.Notification.ID)
		env.clock.Advance(time.Second)
	}

	rec, resp := env.do(t, http.MethodDelete, "/users/u1/notifications/"+ids[0], nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var counts map[string]int
	decodeData(t, resp, &counts)
	if counts["unread_count"] != 1 {
		t.Errorf("expected 1 unread after delete, got %v", counts)
	}

	_, resp = env.do(t, http.MethodGet, "/users/u1/notifications", nil)
	var page service.InboxPage
	decodeData(t, resp, &page)
	if len(page.Items) != 1 || page.Items[0].ID != ids[1] {
		t.Errorf("inbox after delete: %+v", page.Items)
	}

	rec, resp = env.do(t, http.MethodDelete, "/users/u1/notifications/"+ids[0], nil)
	if rec.Code != http.StatusNotFound || resp.Code != domain.ErrNotificationNotFound.Code {
		t.Errorf("repeat delete: got %d %s", rec.Code, resp.Code)
	}
	rec, _ = env.do(t, http.MethodDelete, "/users/u2/notifications/"+ids[1], nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign delete: expected 404, got %d", rec.Code)
	}
}

func TestNotifications_BadInput(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/notifications", service.PublishRequest{UserID: "u1"})
	if rec.Code != http.StatusBadRequest || resp.Code != domain.ErrNotificationValidation.Code {
		t.Errorf("missing fields: got %d %s", rec.Code, resp.Code)
	}

	rec, _ = env.do(t, http.MethodGet, "/users/u1/notifications?filter=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad filter: expected 400, got %d", rec.Code)
	}

	rec, _ = env.do(t, http.MethodGet, "/users/u1/notifications?limit=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: expected 400, got %d", rec.Code)
	}
}

func TestRateLimitCheck(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 10; i++ {
		rec, _ := env.do(t, http.MethodPost, "/ratelimit/payment/check", RateLimitCheckRequest{Key: "u1"})
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec, _ := env.do(t, http.MethodPost, "/ratelimit/payment/check", RateLimitCheckRequest{Key: "u1"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("11th call: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	var body RateLimitBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error == "" || body.RetryAfter != 60 {
		t.Errorf("unexpected 429 body %+v, want retryAfter at the window reset", body)
	}

	// Other users are unaffected.
	rec, _ = env.do(t, http.MethodPost, "/ratelimit/payment/check", RateLimitCheckRequest{Key: "u2"})
	if rec.Code != http.StatusOK {
		t.Errorf("u2: expected 200, got %d", rec.Code)
	}

	rec, _ = env.do(t, http.MethodPost, "/ratelimit/unknown/check", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown policy: expected 400, got %d", rec.Code)
	}
}

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "u1", "mts_old")
	env.clock.Advance(31 * time.Minute)
	env.login(t, "u2", "mts_new")

	conn, _ := env.hub.Register(realtime.ChannelSSE)
	_ = env.hub.Authenticate(conn.ID(), "u2")
	defer env.hub.Unregister(conn)

	_, resp := env.do(t, http.MethodGet, "/admin/v1/status/summary", nil)
	var summary StatusSummary
	decodeData(t, resp, &summary)
	if summary.Sessions.Sessions != 2 {
		t.Errorf("expected 2 indexed sessions before sweep, got %d", summary.Sessions.Sessions)
	}
	if summary.Connections.Total != 1 || summary.Connections.Users != 1 {
		t.Errorf("unexpected connection stats %+v", summary.Connections)
	}
	if len(summary.Connections.Online) != 1 || summary.Connections.Online[0] != "u2" {
		t.Errorf("online users = %v, want [u2]", summary.Connections.Online)
	}
	if summary.Inbox == nil || !summary.Inbox.InMemory {
		t.Error("expected in-memory inbox stats")
	}
	if len(summary.RateLimiter.Policies) != 5 {
		t.Errorf("expected 5 policies, got %d", len(summary.RateLimiter.Policies))
	}

	_, resp = env.do(t, http.MethodPost, "/admin/v1/gc/trigger", nil)
	var gc GCResponse
	decodeData(t, resp, &gc)
	if gc.SessionsReclaimed != 1 {
		t.Errorf("expected 1 session reclaimed, got %d", gc.SessionsReclaimed)
	}
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"MT-SESS-4040", http.StatusNotFound},
		{"MT-NTFY-4001", http.StatusBadRequest},
		{"MT-SYS-4000", http.StatusBadRequest},
		{"MT-AUTH-4010", http.StatusUnauthorized},
		{"MT-AUTH-4011", http.StatusUnauthorized},
		{"MT-AUTH-4012", http.StatusUnauthorized},
		{"MT-AUTH-4030", http.StatusForbidden},
		{"MT-AUTH-4031", http.StatusForbidden},
		{"MT-SYS-4290", http.StatusTooManyRequests},
		{"MT-ARG-1001", http.StatusBadRequest},
		{"MT-SYS-5001", http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := ErrorCodeToHTTPStatus(tt.code); got != tt.want {
			t.Errorf("%q: expected %d, got %d", tt.code, tt.want, got)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:8080"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := ClientIP(req); got != "::1" {
		t.Errorf("unresolved request should use the peer, got %s", got)
	}

	req = req.WithContext(WithClientIP(req.Context(), "198.51.100.7"))
	if got := ClientIP(req); got != "198.51.100.7" {
		t.Errorf("expected resolved ip, got %s", got)
	}
}

func TestTrustedProxies_Resolve(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.1"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		trusted TrustedProxies
		remote  string
		xff     string
		realIP  string
		want    string
	}{
		{"no proxies configured", nil, "198.51.100.1:4000", "203.0.113.9", "", "198.51.100.1"},
		{"untrusted peer spoofs header", trusted, "198.51.100.1:4000", "203.0.113.9", "203.0.113.10", "198.51.100.1"},
		{"trusted peer", trusted, "10.1.2.3:4000", "203.0.113.9", "", "203.0.113.9"},
		{"trusted chain", trusted, "10.1.2.3:4000", "1.2.3.4, 203.0.113.9, 10.9.9.9", "", "203.0.113.9"},
		{"single trusted host", trusted, "192.0.2.1:4000", "203.0.113.9", "", "203.0.113.9"},
		{"real ip", trusted, "10.1.2.3:4000", "", "203.0.113.10", "203.0.113.10"},
		{"garbage header", trusted, "10.1.2.3:4000", "not-an-ip", "", "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := tt.trusted.Resolve(req); got != tt.want {
				t.Errorf("Resolve = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := ParseTrustedProxies([]string{"10.0.0.0/33"}); err == nil {
		t.Error("invalid prefix should fail")
	}
	if _, err := ParseTrustedProxies([]string{"proxy.local"}); err == nil {
		t.Error("hostname should fail")
	}
}

func TestDeviceLabel(t *testing.T) {
	if deviceLabel("") != "" {
		t.Error("empty agent should give empty label")
	}
	label := deviceLabel("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	if !strings.Contains(label, "mobile") {
		t.Errorf("expected mobile label, got %q", label)
	}
}
