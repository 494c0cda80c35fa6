package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"shopmunim-backend/internal/ledger"
	"shopmunim-backend/internal/ports"
	"shopmunim-backend/internal/service"
)

func TestParseLedgerQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?from=2024-01-01&to=2024-01-31&type=payment&page=2&per_page=25", nil)
	q, paged, err := parseLedgerQuery(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !paged {
		t.Fatal("expected paged request")
	}
	if q.Criteria.Type != ledger.TypePayment || q.Page != 2 || q.PerPage != 25 {
		t.Fatalf("unexpected query %+v", q)
	}
	if q.Criteria.From.Format(dateLayout) != "2024-01-01" || q.Criteria.To.Format(dateLayout) != "2024-01-31" {
		t.Fatalf("unexpected bounds %v %v", q.Criteria.From, q.Criteria.To)
	}

	r = httptest.NewRequest(http.MethodGet, "/x", nil)
	if _, paged, err := parseLedgerQuery(r); err != nil || paged {
		t.Fatalf("bare request should not be paged: %v %v", paged, err)
	}

	for _, bad := range []string{"from=01-02-2024", "type=refund", "page=two"} {
		r = httptest.NewRequest(http.MethodGet, "/x?"+bad, nil)
		_, _, err := parseLedgerQuery(r)
		if err == nil || statusFor(err) != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 error, got %v", bad, err)
		}
	}
}

func TestFlexDate(t *testing.T) {
	var v struct {
		A *flexDate `json:"a"`
		B *flexDate `json:"b"`
		C *flexDate `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":"2024-03-05","b":"2024-03-05T10:30:00Z","c":null}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A.ptr().Format(dateLayout) != "2024-03-05" || v.B.ptr().Hour() != 10 || v.C.ptr() != nil {
		t.Fatalf("unexpected dates %+v", v)
	}
	if err := json.Unmarshal([]byte(`{"a":"yesterday"}`), &v); err == nil {
		t.Fatal("expected error for free-form date")
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, fmt.Errorf("wrap: %w", service.ErrRoleNotAllowed))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "error" || body.Detail != body.Message || body.Error.Code != 403 {
		t.Fatalf("unexpected envelope %+v", body)
	}

	rec = httptest.NewRecorder()
	writeServiceError(rec, errors.New("pq: connection refused"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body.Detail == "pq: connection refused" {
		t.Fatal("internal errors must not leak")
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		service.ErrInvalidOTP:      http.StatusBadRequest,
		service.ErrUserNotFound:    http.StatusNotFound,
		service.ErrUserExists:      http.StatusConflict,
		service.ErrTooManyRequests: http.StatusTooManyRequests,
		service.ErrForbidden:       http.StatusForbidden,
		ledger.ErrInvalidPerPage:   http.StatusBadRequest,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Errorf("%v: got %d want %d", err, got, want)
		}
	}
}

func TestHealth(t *testing.T) {
	ok := ports.HealthFunc(func(context.Context) error { return nil })
	down := ports.HealthFunc(func(context.Context) error { return errors.New("down") })

	h := HealthHandler{Checks: map[string]ports.HealthChecker{"postgres": ok, "redis": ok}}
	rec := httptest.NewRecorder()
	h.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	h.Checks["redis"] = down
	rec = httptest.NewRecorder()
	h.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body map[string]any
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if rec.Code != http.StatusServiceUnavailable || body["status"] != "degraded" {
		t.Fatalf("expected degraded, got %d %v", rec.Code, body)
	}
}

func TestDeviceInfo(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/auth/verify-otp", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 14; Pixel 8)")
	r.Header.Set("X-Device-Name", "Pixel 8")
	device, os := deviceInfo(r)
	if device != "Pixel 8" || os != "Android" {
		t.Fatalf("got %q %q", device, os)
	}
}

func TestNormalizeDevice(t *testing.T) {
	tok, platform, msg := normalizeDevice("  abc ", "")
	if tok != "abc" || platform != "android" || msg != "" {
		t.Fatalf("got %q %q %q", tok, platform, msg)
	}
	if _, p, _ := normalizeDevice("abc", "iOS"); p != "ios" {
		t.Fatalf("platform = %q", p)
	}
	if _, _, msg := normalizeDevice(" ", "android"); msg == "" {
		t.Fatal("expected missing token error")
	}
	if _, _, msg := normalizeDevice("abc", "symbian"); msg == "" {
		t.Fatal("expected platform error")
	}
}
