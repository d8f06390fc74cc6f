package txmanager

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	dbtx "pingwatch/db/tx"
)

// TransactionManager runs functions inside a sqlx transaction carried by the context
type TransactionManager struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewTransactionManager(db *sqlx.DB, logger *zap.Logger) *TransactionManager {
	return &TransactionManager{db: db, logger: logger.Named("txmanager")}
}

// WithTransaction executes the provided function within a database transaction
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	// Support nested transactions - if already in tx, just execute function
	if _, ok := dbtx.TransactionFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := tm.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			tm.logger.Error("transaction panic detected, rolling back", zap.Any("panic", r))
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				tm.logger.Error("failed to rollback after panic", zap.Error(rollbackErr))
			}
			panic(r)
		}
	}()

	if err := fn(dbtx.WithTransaction(ctx, tx)); err != nil {
		tm.logger.Debug("transaction function returned error, rolling back", zap.Error(err))
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rollbackErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PassthroughTransactionManager is used with the in-memory store, whose
// writes are already atomic per member.
type PassthroughTransactionManager struct{}

func (PassthroughTransactionManager) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
