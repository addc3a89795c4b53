package repository

import (
	"context"
	"sync"
	"time"

	"payment-idempotency-service/internal/domain"
)

// MemoryIdempotencyRepository is a non-durable record store: a mutex-guarded
// map whose single-writer insert gives the same atomic unique-insert semantics
// the contract requires. Used by tests and embedded deployments.
type MemoryIdempotencyRepository struct {
	mu      sync.Mutex
	records map[string]domain.IdempotencyRecord
	nextID  uint
}

func NewMemoryIdempotencyRepository() *MemoryIdempotencyRepository {
	return &MemoryIdempotencyRepository{records: map[string]domain.IdempotencyRecord{}}
}

func (r *MemoryIdempotencyRepository) Lookup(_ context.Context, key string, now time.Time) (*domain.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[key]
	if !ok || record.Expired(now) {
		return nil, ErrRecordNotFound
	}
	copied := record
	copied.ResponseBody = append([]byte(nil), record.ResponseBody...)
	return &copied, nil
}

func (r *MemoryIdempotencyRepository) LookupFingerprint(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[key]
	if !ok {
		return "", ErrRecordNotFound
	}
	return record.FingerprintHash, nil
}

func (r *MemoryIdempotencyRepository) Save(_ context.Context, record *domain.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[record.IdempotencyKey]; exists {
		return ErrDuplicateRecord
	}
	r.nextID++
	record.ID = r.nextID
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	stored := *record
	stored.ResponseBody = append([]byte(nil), record.ResponseBody...)
	r.records[record.IdempotencyKey] = stored
	return nil
}

func (r *MemoryIdempotencyRepository) CleanupExpired(_ context.Context, now time.Time, batch int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for key, record := range r.records {
		if deleted >= int64(batch) {
			break
		}
		if record.Expired(now) {
			delete(r.records, key)
			deleted++
		}
	}
	return deleted, nil
}
