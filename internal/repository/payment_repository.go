package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"payment-idempotency-service/internal/domain"
	"payment-idempotency-service/internal/observability"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentKeyExists means a payment already carries this idempotency key.
	// The payment table's unique index fired: some other request committed the
	// side effect first.
	ErrPaymentKeyExists = errors.New("payment already exists for idempotency key")
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	FindByID(ctx context.Context, id string) (*domain.Payment, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)
	// MarkCaptured moves the payment to its absolute captured state. Repeating
	// the call after the first application is a no-op.
	MarkCaptured(ctx context.Context, id string, at time.Time) (*domain.Payment, error)
}

type GormPaymentRepository struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		if isDuplicateKeyError(err) {
			observability.RecordRepositoryOperation("payment", "create", "duplicate")
			return ErrPaymentKeyExists
		}
		observability.RecordRepositoryOperation("payment", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation("payment", "create", "success")
	return nil
}

func (r *GormPaymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation("payment", "find_by_id", "not_found")
			return nil, ErrPaymentNotFound
		}
		observability.RecordRepositoryOperation("payment", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation("payment", "find_by_id", "success")
	return &payment, nil
}

func (r *GormPaymentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation("payment", "find_by_key", "not_found")
			return nil, ErrPaymentNotFound
		}
		observability.RecordRepositoryOperation("payment", "find_by_key", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation("payment", "find_by_key", "success")
	return &payment, nil
}

func (r *GormPaymentRepository) MarkCaptured(ctx context.Context, id string, at time.Time) (*domain.Payment, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ? AND status <> ?", id, domain.PaymentStatusCaptured).
		Updates(map[string]any{
			"status":      domain.PaymentStatusCaptured,
			"captured_at": at,
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation("payment", "mark_captured", "error")
		return nil, res.Error
	}
	// RowsAffected == 0 covers both "already captured" and "missing"; the
	// follow-up read tells them apart.
	payment, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	observability.RecordRepositoryOperation("payment", "mark_captured", "success")
	return payment, nil
}
