package service

import (
	"context"
	"sync"
	"time"

	"payment-idempotency-service/internal/domain"
	"payment-idempotency-service/internal/repository"
)

// memoryPaymentRepository enforces the same unique-insert semantics on the
// idempotency key column that the real payment table provides.
type memoryPaymentRepository struct {
	mu     sync.Mutex
	byID   map[string]domain.Payment
	byKey  map[string]string
	writes int
}

func newMemoryPaymentRepository() *memoryPaymentRepository {
	return &memoryPaymentRepository{byID: map[string]domain.Payment{}, byKey: map[string]string{}}
}

func (r *memoryPaymentRepository) Create(_ context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[payment.IdempotencyKey]; exists {
		return repository.ErrPaymentKeyExists
	}
	r.byID[payment.ID] = *payment
	r.byKey[payment.IdempotencyKey] = payment.ID
	r.writes++
	return nil
}

func (r *memoryPaymentRepository) FindByID(_ context.Context, id string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	copied := payment
	return &copied, nil
}

func (r *memoryPaymentRepository) FindByIdempotencyKey(_ context.Context, key string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	payment := r.byID[id]
	copied := payment
	return &copied, nil
}

func (r *memoryPaymentRepository) MarkCaptured(_ context.Context, id string, at time.Time) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	if payment.Status != domain.PaymentStatusCaptured {
		payment.Status = domain.PaymentStatusCaptured
		captured := at
		payment.CapturedAt = &captured
		r.byID[id] = payment
	}
	copied := payment
	return &copied, nil
}

func (r *memoryPaymentRepository) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}
