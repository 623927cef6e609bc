// Package sqlutil holds the transaction plumbing shared by the SQL stores.
package sqlutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/simaogato/budgetpool-backend/internal/domain"
)

// RunInTx begins a transaction, runs fn and commits when fn returns nil.
// Any error from fn rolls the transaction back and is returned unchanged.
func RunInTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return CommitError(err)
	}

	return nil
}

// CommitError classifies a failed Commit.
// database/sql refuses to send COMMIT once the context is done or the transaction was already
// rolled back, so those cases are known to have no effect. Anything else happened while the
// server was handling COMMIT and may or may not have been applied.
func CommitError(err error) error {
	wrapped := fmt.Errorf("failed to commit transaction: %w", err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrTxDone) {
		return wrapped
	}
	return domain.NewOutcomeUnknownError(wrapped)
}
