package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"payment-idempotency-service/internal/domain"
	"payment-idempotency-service/internal/observability"
	"payment-idempotency-service/internal/repository"
)

var (
	// ErrMissingIdempotencyKey rejects requests without a deduplication token.
	ErrMissingIdempotencyKey = errors.New("missing idempotency key")
	// ErrKeyConflict means the key is already bound to a different payload.
	// Permanent for that (key, payload) pair; the client must mint a new key.
	ErrKeyConflict = errors.New("idempotency key reused with a different payload")
	// ErrOperationAlreadyApplied is returned by a ProtectedOperation when its
	// own unique index on the key column fired: the side effect exists.
	ErrOperationAlreadyApplied = errors.New("operation already applied for idempotency key")
)

// ProtectedOperation is the side-effecting unit of work the coordinator
// deduplicates. Apply must report its own key-uniqueness failure as
// ErrOperationAlreadyApplied so the coordinator can recover via Recover.
type ProtectedOperation interface {
	Apply(ctx context.Context, key string, payload []byte) (Outcome, error)
	// Recover loads the entity an earlier Apply created under key and
	// synthesizes the equivalent outcome.
	Recover(ctx context.Context, key string) (Outcome, error)
}

// ExecutionResult carries the outcome plus whether it was served as a replay
// of a previously captured response.
type ExecutionResult struct {
	Outcome  Outcome
	Replayed bool
}

// IdempotencyCoordinator orchestrates fingerprinting, record lookup, conflict
// adjudication and race recovery around a protected operation. It takes no
// in-process lock across the lookup-then-act sequence: the record store's and
// the operation's unique indexes are the serialization points.
type IdempotencyCoordinator struct {
	records   repository.IdempotencyRepository
	cache     OutcomeCache
	operation ProtectedOperation
	recordTTL time.Duration
	cacheTTL  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewIdempotencyCoordinator(
	records repository.IdempotencyRepository,
	cache OutcomeCache,
	operation ProtectedOperation,
	recordTTL, cacheTTL time.Duration,
	logger *slog.Logger,
) *IdempotencyCoordinator {
	if cache == nil {
		cache = NewNoopOutcomeCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCoordinator{
		records:   records,
		cache:     cache,
		operation: operation,
		recordTTL: recordTTL,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Execute runs the idempotency protocol for one request.
func (c *IdempotencyCoordinator) Execute(ctx context.Context, key string, payload []byte) (ExecutionResult, error) {
	start := time.Now()
	defer func() {
		observability.ObserveCoordinatorDuration(time.Since(start).Seconds())
	}()

	if strings.TrimSpace(key) == "" {
		observability.RecordIdempotencyDecision(observability.OutcomeMissingKey)
		return ExecutionResult{}, ErrMissingIdempotencyKey
	}

	fingerprint := Fingerprint(payload)

	bound, err := c.records.LookupFingerprint(ctx, key)
	switch {
	case err == nil:
		if bound != fingerprint {
			// The conflict check ignores TTL on purpose: reusing a key for a
			// different logical request is a client error forever.
			observability.RecordIdempotencyDecision(observability.OutcomeConflict)
			return ExecutionResult{}, ErrKeyConflict
		}
		outcome, found, lookupErr := c.lookupOutcome(ctx, key)
		if lookupErr != nil {
			return ExecutionResult{}, lookupErr
		}
		if found {
			observability.RecordIdempotencyDecision(observability.OutcomeReplay)
			return ExecutionResult{Outcome: outcome, Replayed: true}, nil
		}
		// Bare fingerprint binding with an expired outcome. Re-running is safe:
		// the operation's own unique index still prevents a second side effect.
	case errors.Is(err, repository.ErrRecordNotFound):
		// First time this key is seen.
	default:
		return ExecutionResult{}, err
	}

	outcome, err := c.operation.Apply(ctx, key, payload)
	if err != nil {
		if errors.Is(err, ErrOperationAlreadyApplied) {
			return c.recoverApplied(ctx, key, fingerprint)
		}
		observability.RecordIdempotencyDecision(observability.OutcomeFailure)
		return ExecutionResult{}, err
	}

	// The side effect is committed; persistence must not be cancelled with the
	// caller. A lost record would only cost a retry through the operation's
	// unique-index recovery path, but we avoid it when we can.
	persistCtx := context.WithoutCancel(ctx)
	if saveErr := c.saveRecord(persistCtx, key, fingerprint, outcome); saveErr != nil {
		if errors.Is(saveErr, repository.ErrDuplicateRecord) {
			// A concurrent request for the same key won the race between our
			// lookup and our save. Its record is authoritative.
			if winner, found, lookupErr := c.lookupOutcome(persistCtx, key); lookupErr == nil && found {
				c.cachePut(persistCtx, key, winner)
				observability.RecordIdempotencyDecision(observability.OutcomeRaceRecovered)
				return ExecutionResult{Outcome: winner, Replayed: true}, nil
			}
			c.logger.Warn("race lost but winning record unreadable, serving local outcome", "key", key)
		} else {
			c.logger.Error("persist idempotency record", "key", key, "error", saveErr)
		}
	}

	c.cachePut(persistCtx, key, outcome)
	observability.RecordIdempotencyDecision(observability.OutcomeFresh)
	return ExecutionResult{Outcome: outcome, Replayed: false}, nil
}

// recoverApplied handles the second safety net: the protected operation found
// its entity already created under this key.
func (c *IdempotencyCoordinator) recoverApplied(ctx context.Context, key, fingerprint string) (ExecutionResult, error) {
	outcome, err := c.operation.Recover(ctx, key)
	if err != nil {
		observability.RecordIdempotencyDecision(observability.OutcomeFailure)
		return ExecutionResult{}, err
	}
	persistCtx := context.WithoutCancel(ctx)
	if saveErr := c.saveRecord(persistCtx, key, fingerprint, outcome); saveErr != nil && !errors.Is(saveErr, repository.ErrDuplicateRecord) {
		c.logger.Warn("persist synthesized record", "key", key, "error", saveErr)
	}
	c.cachePut(persistCtx, key, outcome)
	observability.RecordIdempotencyDecision(observability.OutcomeRaceRecovered)
	return ExecutionResult{Outcome: outcome, Replayed: true}, nil
}

// lookupOutcome serves the cache-then-store read path, populating the cache on
// a store hit. Cache failures degrade to store reads; the cache is advisory.
func (c *IdempotencyCoordinator) lookupOutcome(ctx context.Context, key string) (Outcome, bool, error) {
	outcome, hit, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("outcome cache get", "key", key, "error", err)
	}
	observability.RecordCacheLookup(hit)
	if hit {
		return outcome, true, nil
	}

	record, err := c.records.Lookup(ctx, key, c.now())
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return Outcome{}, false, nil
		}
		return Outcome{}, false, err
	}
	outcome = Outcome{
		StatusCode:  record.StatusCode,
		ContentType: record.ContentType,
		Body:        record.ResponseBody,
	}
	c.cachePut(ctx, key, outcome)
	return outcome, true, nil
}

func (c *IdempotencyCoordinator) saveRecord(ctx context.Context, key, fingerprint string, outcome Outcome) error {
	record := &domain.IdempotencyRecord{
		IdempotencyKey:  key,
		FingerprintHash: fingerprint,
		StatusCode:      outcome.StatusCode,
		ResponseBody:    outcome.Body,
		ContentType:     outcome.ContentType,
		CreatedAt:       c.now(),
	}
	if c.recordTTL > 0 {
		expires := c.now().Add(c.recordTTL)
		record.ExpiresAt = &expires
	}
	return c.records.Save(ctx, record)
}

func (c *IdempotencyCoordinator) cachePut(ctx context.Context, key string, outcome Outcome) {
	if err := c.cache.Put(ctx, key, outcome, c.cacheTTL); err != nil {
		c.logger.Warn("outcome cache put", "key", key, "error", err)
	}
}
