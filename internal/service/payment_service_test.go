package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"payment-idempotency-service/internal/domain"
)

func newPaymentServiceForTest() (*PaymentService, *memoryPaymentRepository) {
	repo := newMemoryPaymentRepository()
	svc := NewPaymentService(repo, nil, nil)
	return svc, repo
}

func TestPaymentServiceApplyCreatesPayment(t *testing.T) {
	svc, repo := newPaymentServiceForTest()
	payload := []byte(`{"amount":99.99,"currency":"eur","recipient":" alice@x.com "}`)

	outcome, err := svc.Apply(context.Background(), "key-123", payload)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.StatusCode != 201 || outcome.ContentType != "application/json" {
		t.Fatalf("unexpected outcome meta: %+v", outcome)
	}

	var created domain.Payment
	if err := json.Unmarshal(outcome.Body, &created); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated payment id")
	}
	if created.Amount != 99.99 || created.Currency != "EUR" || created.Recipient != "alice@x.com" {
		t.Fatalf("expected normalized fields, got %+v", created)
	}
	if created.Status != domain.PaymentStatusCreated {
		t.Fatalf("expected status created, got %s", created.Status)
	}

	stored, err := repo.FindByIdempotencyKey(context.Background(), "key-123")
	if err != nil {
		t.Fatalf("find stored: %v", err)
	}
	if stored.ID != created.ID {
		t.Fatalf("expected stored id %s, got %s", created.ID, stored.ID)
	}
}

func TestPaymentServiceApplyValidation(t *testing.T) {
	svc, _ := newPaymentServiceForTest()
	cases := map[string]string{
		"malformed":         `{"amount":`,
		"missing amount":    `{"currency":"EUR","recipient":"a@x.com"}`,
		"negative amount":   `{"amount":-1,"currency":"EUR","recipient":"a@x.com"}`,
		"zero amount":       `{"amount":0,"currency":"EUR","recipient":"a@x.com"}`,
		"bad currency":      `{"amount":1,"currency":"EURO","recipient":"a@x.com"}`,
		"numeric currency":  `{"amount":1,"currency":"E1R","recipient":"a@x.com"}`,
		"missing recipient": `{"amount":1,"currency":"EUR","recipient":"  "}`,
	}
	for name, payload := range cases {
		if _, err := svc.Apply(context.Background(), "k-"+name, []byte(payload)); !errors.Is(err, ErrInvalidPaymentRequest) {
			t.Fatalf("%s: expected ErrInvalidPaymentRequest, got %v", name, err)
		}
	}
}

func TestPaymentServiceApplyDuplicateKeySignalsAlreadyApplied(t *testing.T) {
	svc, _ := newPaymentServiceForTest()
	payload := []byte(`{"amount":10,"currency":"USD","recipient":"a@x.com"}`)

	if _, err := svc.Apply(context.Background(), "dup", payload); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if _, err := svc.Apply(context.Background(), "dup", payload); !errors.Is(err, ErrOperationAlreadyApplied) {
		t.Fatalf("expected ErrOperationAlreadyApplied, got %v", err)
	}
}

func TestPaymentServiceRecoverReproducesApplyBody(t *testing.T) {
	svc, _ := newPaymentServiceForTest()
	payload := []byte(`{"amount":42.5,"currency":"CHF","recipient":"r@x.com"}`)

	applied, err := svc.Apply(context.Background(), "rec-key", payload)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	recovered, err := svc.Recover(context.Background(), "rec-key")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if !bytes.Equal(applied.Body, recovered.Body) {
		t.Fatalf("expected byte-identical bodies\napply:   %s\nrecover: %s", applied.Body, recovered.Body)
	}
	if recovered.StatusCode != applied.StatusCode {
		t.Fatalf("expected status %d, got %d", applied.StatusCode, recovered.StatusCode)
	}
}

func TestPaymentServiceRecoverUnknownKey(t *testing.T) {
	svc, _ := newPaymentServiceForTest()
	if _, err := svc.Recover(context.Background(), "never-seen"); err == nil {
		t.Fatal("expected error recovering unknown key")
	}
}

func TestPaymentServiceCaptureIsIdempotent(t *testing.T) {
	svc, _ := newPaymentServiceForTest()
	payload := []byte(`{"amount":10,"currency":"USD","recipient":"a@x.com"}`)

	outcome, err := svc.Apply(context.Background(), "cap", payload)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	var created domain.Payment
	if err := json.Unmarshal(outcome.Body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	first, err := svc.Capture(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if first.Status != domain.PaymentStatusCaptured || first.CapturedAt == nil {
		t.Fatalf("expected captured payment, got %+v", first)
	}

	second, err := svc.Capture(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("capture again: %v", err)
	}
	if !second.CapturedAt.Equal(*first.CapturedAt) {
		t.Fatal("expected repeated capture to be a no-op")
	}
}
