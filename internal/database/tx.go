package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/lib/pq"

	"kartis/internal/apperrors"
	"kartis/internal/metrics"
)

// Allocation-affecting operations run under SERIALIZABLE isolation: two
// concurrent transactions that both read the same capacity counter or table
// row cannot both commit, which is what keeps over-booking impossible.
// A losing transaction aborts with SQLSTATE 40001 (or 40P01 on deadlock)
// and is retried here a bounded number of times before the conflict is
// surfaced to the caller as apperrors.ErrRetryableConflict.
const (
	maxTxAttempts  = 3
	retryBaseDelay = 20 * time.Millisecond
)

// Serializable runs fn inside a SERIALIZABLE transaction, retrying on
// serialization failures with jittered backoff. fn must be safe to re-run
// from scratch: every attempt sees a fresh transaction.
func (db *DB) Serializable(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var lastErr error

	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := db.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsSerializationFailure(err) {
			return err
		}

		lastErr = err
		if attempt < maxTxAttempts {
			delay := time.Duration(attempt)*retryBaseDelay + time.Duration(rand.Intn(20))*time.Millisecond
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	metrics.SerializationConflictsTotal.Inc()
	return fmt.Errorf("%w: %v", apperrors.ErrRetryableConflict, lastErr)
}

func (db *DB) runOnce(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	// A serialization conflict can also surface at commit time.
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IsSerializationFailure reports whether err is a Postgres serialization
// failure (40001) or deadlock (40P01), both of which are safe to retry.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (23505).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
