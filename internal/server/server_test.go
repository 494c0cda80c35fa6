package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"shopmunim-backend/internal/config"
	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/server/authctx"
	"shopmunim-backend/internal/service"
)

const testSecret = "test-secret"

type stubUsers struct {
	users   map[string]domain.User
	touched []string
}

func (s *stubUsers) Me(_ context.Context, id string) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	return &u, nil
}

func (s *stubUsers) TouchSession(_ context.Context, sid string) {
	s.touched = append(s.touched, sid)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bearer(t *testing.T, userID, sessionID string) string {
	t.Helper()
	tok, err := service.IssueAccessToken(testSecret, userID, sessionID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + tok
}

func TestAuthMiddleware(t *testing.T) {
	users := &stubUsers{users: map[string]domain.User{
		"u1": {ID: "u1", Name: "Asha", Phone: "9876543210", ActiveRole: domain.RoleShopOwner},
	}}
	var seen *authctx.CurrentUser
	h := AuthMiddleware(testSecret, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = authctx.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", bearer(t, "u1", "s1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if seen == nil || seen.Role != domain.RoleShopOwner || seen.SessionID != "s1" || seen.Phone != "9876543210" {
		t.Fatalf("unexpected user in context: %+v", seen)
	}
	if len(users.touched) != 1 || users.touched[0] != "s1" {
		t.Fatalf("session not touched: %v", users.touched)
	}

	cases := map[string]string{
		"missing header": "",
		"garbage token":  "Bearer nope",
		"deleted user":   bearer(t, "gone", "s2"),
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d", name, rec.Code)
		}
		var body map[string]any
		_ = json.NewDecoder(rec.Body).Decode(&body)
		if body["detail"] == nil || body["status"] != "error" {
			t.Errorf("%s: unexpected body %v", name, body)
		}
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(domain.RoleShopOwner, domain.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for role, want := range map[domain.UserRole]int{
		domain.RoleShopOwner: http.StatusOK,
		domain.RoleAdmin:     http.StatusOK,
		domain.RoleCustomer:  http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/shops", nil)
		req = req.WithContext(authctx.WithCurrentUser(req.Context(), authctx.CurrentUser{ID: "u1", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: status = %d want %d", role, rec.Code, want)
		}
	}
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestIdempotencyReplaysResponse(t *testing.T) {
	client, _ := newRedis(t)
	var calls atomic.Int32
	h := Idempotency(client, time.Minute, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"tx-` + string(rune('0'+n)) + `"}`))
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/shops/s1/transactions", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	second := send()
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("status = %d, %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replayed body differs: %q vs %q", first.Body.String(), second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("missing replay header")
	}
	if calls.Load() != 1 {
		t.Fatalf("handler ran %d times", calls.Load())
	}
}

func TestIdempotencyPassThrough(t *testing.T) {
	client, _ := newRedis(t)
	var calls atomic.Int32
	h := Idempotency(client, time.Minute, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/shops", nil))
		req := httptest.NewRequest(http.MethodGet, "/shops", nil)
		req.Header.Set("Idempotency-Key", "k")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls.Load() != 4 {
		t.Fatalf("handler ran %d times, want 4", calls.Load())
	}
}

func TestIdempotencyInProgressConflict(t *testing.T) {
	client, mr := newRedis(t)
	h := Idempotency(client, time.Minute, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run while the key is reserved")
	}))
	req := httptest.NewRequest(http.MethodPost, "/shops", nil)
	req = req.WithContext(authctx.WithCurrentUser(req.Context(), authctx.CurrentUser{ID: "u1"}))
	req.Header.Set("Idempotency-Key", "busy")
	if err := mr.Set(idempotencyPrefix+"u1:POST:/shops:busy", inProgressMarker); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIdempotencySkipsServerErrors(t *testing.T) {
	client, mr := newRedis(t)
	h := Idempotency(client, time.Minute, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	req := httptest.NewRequest(http.MethodPost, "/shops", nil)
	req.Header.Set("Idempotency-Key", "retry-me")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if mr.Exists(idempotencyPrefix + "anon:POST:/shops:retry-me") {
		t.Fatal("failed response should not be stored")
	}
}

func TestStartStopsJobsOnShutdown(t *testing.T) {
	cfg := config.Config{HTTPPort: "0", ShutdownTimeout: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	job := func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- Start(ctx, cfg, http.NotFoundHandler(), discardLogger(), job) }()
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
	select {
	case <-stopped:
	default:
		t.Fatal("job still running after Start returned")
	}
}

func TestIdempotencyReleasesKeyOnPanic(t *testing.T) {
	client, mr := newRedis(t)
	var calls atomic.Int32
	h := middleware.Recoverer(Idempotency(client, time.Minute, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		w.WriteHeader(http.StatusCreated)
	})))
	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/shops", nil)
		req.Header.Set("Idempotency-Key", "crash")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(); code != http.StatusInternalServerError {
		t.Fatalf("first status = %d", code)
	}
	if mr.Exists(idempotencyPrefix + "anon:POST:/shops:crash") {
		t.Fatal("reservation should be released after a panic")
	}
	if code := send(); code != http.StatusCreated {
		t.Fatalf("retry status = %d, want %d", code, http.StatusCreated)
	}
	if calls.Load() != 2 {
		t.Fatalf("handler ran %d times, want 2", calls.Load())
	}
}
