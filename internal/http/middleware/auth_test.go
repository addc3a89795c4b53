package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payment-idempotency-service/internal/security"
)

func newAuthHandlerForTest(t *testing.T) (http.Handler, *security.JWTManager, *string) {
	t.Helper()
	mgr := security.NewJWTManager("payments-api", "payments-clients", "0123456789abcdef0123456789abcdef")
	var seenCaller string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenCaller = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return BearerAuth(mgr)(inner), mgr, &seenCaller
}

func TestBearerAuthAcceptsValidToken(t *testing.T) {
	handler, mgr, seenCaller := newAuthHandlerForTest(t)
	token, err := mgr.SignServiceToken("checkout-service", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/v1/payments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if *seenCaller != "checkout-service" {
		t.Fatalf("expected caller in context, got %q", *seenCaller)
	}
}

func TestBearerAuthRejectsMissingAndMalformedHeaders(t *testing.T) {
	handler, _, _ := newAuthHandlerForTest(t)
	cases := map[string]string{
		"missing":       "",
		"not bearer":    "Basic dXNlcjpwYXNz",
		"empty token":   "Bearer ",
		"garbage token": "Bearer not.a.jwt",
	}
	for name, header := range cases {
		req := httptest.NewRequest("POST", "/api/v1/payments", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}

func TestBearerAuthRejectsExpiredToken(t *testing.T) {
	handler, mgr, _ := newAuthHandlerForTest(t)
	token, err := mgr.SignServiceToken("checkout-service", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest("POST", "/api/v1/payments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
