package dbx

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryable(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.False(t, IsRetryable(nil))
}

func TestWithRetryTx_RetriesSerializationFailure(t *testing.T) {
	db := openVersionsDB(t)
	calls := 0

	err := WithRetryTx(context.Background(), db, nil, RetryPolicy{MaxAttempts: 3}, func(ctx context.Context, tx DBTX) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return insertVersion(ctx, tx, "1.1")
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, versionCount(t, db))
}

func TestWithRetryTx_StopsOnPermanentError(t *testing.T) {
	db := openVersionsDB(t)
	calls := 0

	err := WithRetryTx(context.Background(), db, nil, DefaultRetryPolicy, func(ctx context.Context, tx DBTX) error {
		calls++
		return errors.New("constraint")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryTx_GivesUpAfterMaxAttempts(t *testing.T) {
	db := openVersionsDB(t)
	calls := 0

	err := WithRetryTx(context.Background(), db, nil, RetryPolicy{MaxAttempts: 2}, func(ctx context.Context, tx DBTX) error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 2, calls)
}
