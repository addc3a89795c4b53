package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"payment-idempotency-service/internal/domain"
	"payment-idempotency-service/internal/repository"
)

// ErrInvalidPaymentRequest marks client errors in the payment payload.
// The coordinator writes no record for these, so a corrected retry under the
// same key is allowed.
var ErrInvalidPaymentRequest = errors.New("invalid payment request")

type createPaymentRequest struct {
	Amount    *float64 `json:"amount"`
	Currency  string   `json:"currency"`
	Recipient string   `json:"recipient"`
}

// PaymentService is the protected operation: creating a payment is the side
// effect being deduplicated. The payment table's unique index on the
// idempotency key is the second safety net behind the coordinator.
type PaymentService struct {
	payments repository.PaymentRepository
	archiver ReceiptArchiver
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func NewPaymentService(payments repository.PaymentRepository, archiver ReceiptArchiver, logger *slog.Logger) *PaymentService {
	if archiver == nil {
		archiver = NewNoopReceiptArchiver()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentService{
		payments: payments,
		archiver: archiver,
		logger:   logger,
		// Sub-second precision is truncated so the response body can be
		// reproduced byte-for-byte from the stored row by Recover.
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Second) },
		newID: uuid.NewString,
	}
}

func (s *PaymentService) Apply(ctx context.Context, key string, payload []byte) (Outcome, error) {
	var req createPaymentRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return Outcome{}, fmt.Errorf("%w: malformed JSON payload", ErrInvalidPaymentRequest)
	}
	if err := validateCreatePayment(&req); err != nil {
		return Outcome{}, err
	}

	payment := &domain.Payment{
		ID:             s.newID(),
		IdempotencyKey: key,
		Amount:         *req.Amount,
		Currency:       strings.ToUpper(strings.TrimSpace(req.Currency)),
		Recipient:      strings.TrimSpace(req.Recipient),
		Status:         domain.PaymentStatusCreated,
		CreatedAt:      s.now(),
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrPaymentKeyExists) {
			return Outcome{}, fmt.Errorf("%w: %s", ErrOperationAlreadyApplied, key)
		}
		return Outcome{}, err
	}

	outcome, err := paymentOutcome(payment)
	if err != nil {
		return Outcome{}, err
	}
	s.archiveAsync(ctx, payment.ID, outcome.Body)
	return outcome, nil
}

// Recover loads the payment an earlier Apply created under key and rebuilds
// the identical creation outcome.
func (s *PaymentService) Recover(ctx context.Context, key string) (Outcome, error) {
	payment, err := s.payments.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return Outcome{}, fmt.Errorf("recover payment for key %q: %w", key, err)
	}
	return paymentOutcome(payment)
}

func (s *PaymentService) Get(ctx context.Context, id string) (*domain.Payment, error) {
	return s.payments.FindByID(ctx, id)
}

// Capture sets the payment to its absolute captured state. Repeating the call
// is a no-op, which is why this endpoint needs no idempotency key.
func (s *PaymentService) Capture(ctx context.Context, id string) (*domain.Payment, error) {
	return s.payments.MarkCaptured(ctx, id, s.now())
}

func (s *PaymentService) archiveAsync(ctx context.Context, paymentID string, body []byte) {
	archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	go func() {
		defer cancel()
		if err := s.archiver.ArchiveReceipt(archiveCtx, paymentID, body); err != nil {
			s.logger.Warn("archive receipt", "payment_id", paymentID, "error", err)
		}
	}()
}

func validateCreatePayment(req *createPaymentRequest) error {
	if req.Amount == nil || *req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be a positive number", ErrInvalidPaymentRequest)
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidPaymentRequest)
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidPaymentRequest)
		}
	}
	if strings.TrimSpace(req.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidPaymentRequest)
	}
	return nil
}

// paymentOutcome renders the creation response. It depends only on persisted
// payment columns so replay and race-recovery paths produce identical bytes.
func paymentOutcome(payment *domain.Payment) (Outcome, error) {
	body, err := json.Marshal(payment)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode payment response: %w", err)
	}
	return Outcome{
		StatusCode:  http.StatusCreated,
		ContentType: "application/json",
		Body:        body,
	}, nil
}
