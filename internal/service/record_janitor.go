package service

import (
	"context"
	"log/slog"
	"time"

	"payment-idempotency-service/internal/repository"
)

// RecordJanitor physically purges expired idempotency records in the
// background. The hot path only treats expired rows as absent; without the
// janitor the table would grow without bound. Once a row is purged its key is
// genuinely reusable, fingerprint binding included.
type RecordJanitor struct {
	records  repository.IdempotencyRepository
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

func NewRecordJanitor(records repository.IdempotencyRepository, interval time.Duration, batch int, logger *slog.Logger) *RecordJanitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordJanitor{records: records, interval: interval, batch: batch, logger: logger}
}

// Run loops until ctx is cancelled.
func (j *RecordJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *RecordJanitor) sweep(ctx context.Context) {
	deleted, err := j.records.CleanupExpired(ctx, time.Now().UTC(), j.batch)
	if err != nil {
		j.logger.Warn("cleanup expired idempotency records", "error", err)
		return
	}
	if deleted > 0 {
		j.logger.Info("purged expired idempotency records", "count", deleted)
	}
}
