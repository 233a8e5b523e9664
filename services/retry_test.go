package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsTransientErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"non-transient", errors.New("syntax error"), false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"wrapped pg", fmt.Errorf("save agent: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"sqlite busy", errors.New("SQLITE_BUSY"), true},
		{"database is locked", errors.New("database is locked"), true},
		{"business failure", fail(FailureConflict, MsgAlreadySolved), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransientErr(tt.err))
		})
	}
}

func TestRetryOp(t *testing.T) {
	fast := retryConfig{maxRetries: 3, baseDelay: time.Millisecond, maxDelay: 5 * time.Millisecond}

	t.Run("succeeds immediately", func(t *testing.T) {
		calls := 0
		err := retryOp(fast, func() error { calls++; return nil })
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("permanent error not retried", func(t *testing.T) {
		calls := 0
		permanent := errors.New("boom")
		err := retryOp(fast, func() error { calls++; return permanent })
		assert.Same(t, permanent, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("transient then success", func(t *testing.T) {
		calls := 0
		err := retryOp(fast, func() error {
			calls++
			if calls < 3 {
				return &pgconn.PgError{Code: "40001"}
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts retries", func(t *testing.T) {
		calls := 0
		err := retryOp(fast, func() error { calls++; return errors.New("database is locked") })
		assert.Error(t, err)
		assert.Equal(t, 4, calls)
	})
}

func TestBackoffDelayIsCapped(t *testing.T) {
	cfg := retryConfig{maxRetries: 5, baseDelay: 10 * time.Millisecond, maxDelay: 40 * time.Millisecond}
	for attempt := 0; attempt < 6; attempt++ {
		d := backoffDelay(cfg, attempt)
		assert.GreaterOrEqual(t, d, cfg.baseDelay)
		assert.Less(t, d, cfg.maxDelay+cfg.baseDelay)
	}
}
