package storage

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// errSeqTaken marks a provenance insert that lost the race for its sequence
// number. It is always wrapped together with ErrConflict.
var errSeqTaken = errors.New("provenance sequence taken")

// appendPolicy controls how often an append transaction is replayed.
// Each replay reloads the stored head, so a writer holding a stale copy
// still ends in ErrConflict from extend; only a lost race on a head that
// has not actually moved can succeed on a later attempt.
type appendPolicy struct {
	attempts  int
	baseDelay time.Duration
}

var defaultAppendPolicy = appendPolicy{attempts: 4, baseDelay: 20 * time.Millisecond}

// retryableAppend reports whether a failed append attempt may be replayed.
func retryableAppend(err error) bool {
	if errors.Is(err, errSeqTaken) {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001": // serialization_failure
		return true
	case "40P01": // deadlock_detected
		return true
	default:
		return false
	}
}

// run calls attempt until it succeeds, fails with a non-retryable error,
// or the policy is exhausted. The last error is returned unchanged.
func (p appendPolicy) run(ctx context.Context, logger *slog.Logger, id uuid.UUID, attempt func() error) error {
	delay := p.baseDelay
	var err error
	for n := 1; ; n++ {
		err = attempt()
		if err == nil || !retryableAppend(err) || n >= p.attempts {
			return err
		}
		wait := delay
		if delay > 0 {
			wait += time.Duration(rand.Int64N(int64(delay))) //nolint:gosec // jitter doesn't need crypto-strength randomness
		}
		logger.Warn("append conflict, retrying", "record_id", id, "attempt", n, "backoff", wait, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
	}
}
