package response

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestJSONWrapsDataInEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/payments/p-1", nil)
	req.Header.Set("X-Request-Id", "req-42")

	JSON(rec, req, 200, map[string]string{"id": "p-1"})

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %s", ct)
	}
	var body struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
		Meta    struct {
			RequestID string `json:"request_id"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Data["id"] != "p-1" {
		t.Fatalf("unexpected envelope: %+v", body)
	}
	if body.Meta.RequestID != "req-42" {
		t.Fatalf("expected request id passthrough, got %s", body.Meta.RequestID)
	}
}

func TestErrorWritesEnvelopeByDefault(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/payments", nil)

	Error(rec, req, 409, "CONFLICT", "idempotency key reused with a different payload", nil)

	if rec.Code != 409 {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %s", ct)
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error.Code != "CONFLICT" {
		t.Fatalf("unexpected error envelope: %+v", body)
	}
}

func TestErrorNegotiatesProblemJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/payments", nil)
	req.Header.Set("Accept", "application/problem+json")

	Error(rec, req, 409, "CONFLICT", "key bound to a different payload", nil)

	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("unexpected content type %s", ct)
	}
	var problem struct {
		Type     string `json:"type"`
		Title    string `json:"title"`
		Status   int    `json:"status"`
		Instance string `json:"instance"`
		Code     string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if problem.Type != "urn:problem:payment-idempotency:conflict" {
		t.Fatalf("unexpected type %s", problem.Type)
	}
	if problem.Title != "Conflict" || problem.Status != 409 {
		t.Fatalf("unexpected problem: %+v", problem)
	}
	if problem.Instance != "/api/v1/payments" {
		t.Fatalf("unexpected instance %s", problem.Instance)
	}
}

func TestErrorIgnoresZeroQualityProblemJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/payments", nil)
	req.Header.Set("Accept", "application/problem+json;q=0, application/json")

	Error(rec, req, 400, "BAD_REQUEST", "bad body", nil)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected plain envelope for q=0, got %s", ct)
	}
}

func TestRawWritesBodyVerbatim(t *testing.T) {
	rec := httptest.NewRecorder()
	body := []byte(`{"id":"p-1","amount":99.99}`)

	Raw(rec, 201, "application/json", body)

	if rec.Code != 201 {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if rec.Body.String() != string(body) {
		t.Fatalf("expected verbatim body, got %s", rec.Body.String())
	}
}

func TestRawDefaultsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	Raw(rec, 200, "", []byte(`{}`))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected default content type %s", ct)
	}
}
