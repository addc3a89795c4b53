package domain

import "time"

const (
	PaymentStatusCreated  = "created"
	PaymentStatusCaptured = "captured"
)

// Payment is the resource produced by the protected operation. It has its own
// identity, but also carries the idempotency key under a second unique index:
// the coordinator's check-then-act sequence is not atomic, so this constraint is
// the last-resort guard against a duplicate side effect.
type Payment struct {
	ID             string     `gorm:"size:36;primaryKey" json:"id"`
	IdempotencyKey string     `gorm:"size:128;not null;uniqueIndex:idx_payment_idempotency_key" json:"-"`
	Amount         float64    `gorm:"not null" json:"amount"`
	Currency       string     `gorm:"size:3;not null" json:"currency"`
	Recipient      string     `gorm:"size:256;not null" json:"recipient"`
	Status         string     `gorm:"size:32;not null;index" json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	CapturedAt     *time.Time `json:"captured_at,omitempty"`
}
