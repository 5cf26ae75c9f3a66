package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// pgAdvisoryKey scopes the PostgreSQL transaction lock to registry writers.
const pgAdvisoryKey int64 = 0x6d656d62657273

// withWriteTx runs fn in a transaction while holding the writer lock.
// The lock covers only the transaction and is released on every path.
func (c *Connection) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	unlock, err := c.lock.Lock()
	if err != nil {
		return err
	}
	defer func() {
		if unlockErr := unlock(); unlockErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to release lock: %w", unlockErr))
		}
	}()

	tx, err := c.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if c.driver == DriverPgx {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", pgAdvisoryKey); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to acquire advisory lock: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
