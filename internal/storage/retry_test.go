package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetryableAppend(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", fmt.Errorf("storage: commit append: %w", &pgconn.PgError{Code: "40001"}), true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"lost sequence race", fmt.Errorf("%w: record %s seq 1: %w", ErrConflict, id, errSeqTaken), true},
		{"stale head", fmt.Errorf("%w: record %s", ErrConflict, id), false},
		{"unique violation elsewhere", &pgconn.PgError{Code: "23505"}, false},
		{"not found", ErrNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryableAppend(tt.err))
		})
	}
}

func TestAppendPolicy_RetriesLostRaceThenSucceeds(t *testing.T) {
	p := appendPolicy{attempts: 4, baseDelay: time.Millisecond}
	calls := 0
	err := p.run(context.Background(), discardLogger(), uuid.New(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: %w", ErrConflict, errSeqTaken)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestAppendPolicy_StaleHeadIsTerminal(t *testing.T) {
	p := appendPolicy{attempts: 4, baseDelay: time.Millisecond}
	calls := 0
	err := p.run(context.Background(), discardLogger(), uuid.New(), func() error {
		calls++
		return fmt.Errorf("%w: record x", ErrConflict)
	})
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, calls)
}

func TestAppendPolicy_GivesUpAfterAttempts(t *testing.T) {
	p := appendPolicy{attempts: 3}
	calls := 0
	err := p.run(context.Background(), discardLogger(), uuid.New(), func() error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "40001", pgErr.Code)
	assert.Equal(t, 3, calls)
}

func TestAppendPolicy_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := appendPolicy{attempts: 5, baseDelay: time.Hour}
	calls := 0
	err := p.run(ctx, discardLogger(), uuid.New(), func() error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
