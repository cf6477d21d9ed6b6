package dbx

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes after which the whole transaction may be replayed.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// RetryPolicy bounds WithRetryTx.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy replays a conflicting transaction up to three times.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 20 * time.Millisecond}

// IsRetryable reports whether err is a transient transaction conflict.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
	}
	return false
}

// WithRetryTx runs fn in a transaction like WithTx and replays it, with a
// linear backoff, while it fails with a retryable error. fn must therefore be
// safe to run more than once.
func WithRetryTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, policy RetryPolicy, fn func(ctx context.Context, tx DBTX) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		err = WithTx(ctx, db, opts, fn)
		if err == nil || !IsRetryable(err) || i == attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i) * policy.Backoff):
		}
	}
	return err
}
