package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"payment-idempotency-service/internal/domain"
	"payment-idempotency-service/internal/observability"
)

var (
	// ErrRecordNotFound is returned when no usable record exists for a key.
	// A lookup cannot distinguish "never seen" from "expired".
	ErrRecordNotFound = errors.New("idempotency record not found")
	// ErrDuplicateRecord signals that another writer created the record first.
	// Callers must treat this as a lost race, not a failure.
	ErrDuplicateRecord = errors.New("idempotency record already exists")
)

// IdempotencyRepository is the durable record store for captured outcomes.
// Rows are insert-only; the unique index on the key column is the true
// serialization point under concurrent duplicate submissions.
type IdempotencyRepository interface {
	// Lookup returns the record for key if one exists and has not expired at
	// the given instant. Expired records are reported as ErrRecordNotFound.
	Lookup(ctx context.Context, key string, now time.Time) (*domain.IdempotencyRecord, error)
	// LookupFingerprint returns the fingerprint bound to key, independent of
	// TTL: reusing a key with a different payload is a client error even when
	// the cached outcome is long gone.
	LookupFingerprint(ctx context.Context, key string) (string, error)
	// Save creates exactly one record. ErrDuplicateRecord when the key is taken.
	Save(ctx context.Context, record *domain.IdempotencyRecord) error
	// CleanupExpired physically purges up to batch expired rows. Only the
	// background janitor calls this; the hot path treats expiry lazily.
	CleanupExpired(ctx context.Context, now time.Time, batch int) (int64, error)
}

type GormIdempotencyRepository struct{ db *gorm.DB }

func NewIdempotencyRepository(db *gorm.DB) *GormIdempotencyRepository {
	return &GormIdempotencyRepository{db: db}
}

func (r *GormIdempotencyRepository) Lookup(ctx context.Context, key string, now time.Time) (*domain.IdempotencyRecord, error) {
	var record domain.IdempotencyRecord
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation("idempotency_record", "lookup", "not_found")
			return nil, ErrRecordNotFound
		}
		observability.RecordRepositoryOperation("idempotency_record", "lookup", "error")
		return nil, err
	}
	if record.Expired(now) {
		observability.RecordRepositoryOperation("idempotency_record", "lookup", "expired")
		return nil, ErrRecordNotFound
	}
	observability.RecordRepositoryOperation("idempotency_record", "lookup", "success")
	return &record, nil
}

func (r *GormIdempotencyRepository) LookupFingerprint(ctx context.Context, key string) (string, error) {
	var record domain.IdempotencyRecord
	err := r.db.WithContext(ctx).
		Select("fingerprint_hash").
		Where("idempotency_key = ?", key).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation("idempotency_record", "lookup_fingerprint", "not_found")
			return "", ErrRecordNotFound
		}
		observability.RecordRepositoryOperation("idempotency_record", "lookup_fingerprint", "error")
		return "", err
	}
	observability.RecordRepositoryOperation("idempotency_record", "lookup_fingerprint", "success")
	return record.FingerprintHash, nil
}

func (r *GormIdempotencyRepository) Save(ctx context.Context, record *domain.IdempotencyRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if isDuplicateKeyError(err) {
			observability.RecordRepositoryOperation("idempotency_record", "save", "duplicate")
			return ErrDuplicateRecord
		}
		observability.RecordRepositoryOperation("idempotency_record", "save", "error")
		return err
	}
	observability.RecordRepositoryOperation("idempotency_record", "save", "success")
	return nil
}

func (r *GormIdempotencyRepository) CleanupExpired(ctx context.Context, now time.Time, batch int) (int64, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&domain.IdempotencyRecord{}).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Order("id ASC").
		Limit(batch).
		Pluck("id", &ids).Error
	if err != nil {
		observability.RecordRepositoryOperation("idempotency_record", "cleanup", "error")
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Delete(&domain.IdempotencyRecord{}, ids)
	if res.Error != nil {
		observability.RecordRepositoryOperation("idempotency_record", "cleanup", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation("idempotency_record", "cleanup", "success")
	return res.RowsAffected, nil
}

// isDuplicateKeyError recognizes unique-constraint violations across the
// dialects we run against (Postgres in production, sqlite in tests).
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
