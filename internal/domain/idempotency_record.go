package domain

import "time"

// IdempotencyRecord captures the outcome of the first successful processing of a
// client-supplied idempotency key. Rows are created once and never updated; a nil
// ExpiresAt means the record never expires. The unique index on IdempotencyKey is
// the serialization point for concurrent duplicate submissions.
type IdempotencyRecord struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	IdempotencyKey  string     `gorm:"size:128;not null;uniqueIndex:idx_idempotency_key" json:"-"`
	FingerprintHash string     `gorm:"size:128;not null" json:"-"`
	StatusCode      int        `json:"-"`
	ResponseBody    []byte     `json:"-"`
	ContentType     string     `gorm:"size:128" json:"-"`
	ExpiresAt       *time.Time `gorm:"index" json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Expired reports whether the stored outcome is past its TTL at the given instant.
// Records without an expiry never expire.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}
