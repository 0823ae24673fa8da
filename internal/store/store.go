package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store bundles the gorm connection with a logger and provides the
// transaction / savepoint primitives every repository method builds on.
type Store struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// New constructs a Store.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{DB: db, Logger: logger}
}

// WithTx runs fn inside a single transaction scoped to ctx, per the
// analyzer contract (§4.4: "they run inside one transaction").
func (s *Store) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.DB.WithContext(ctx).Transaction(fn)
}

// WithSavepoint runs fn under a named savepoint inside tx, rolling back
// only that savepoint (not the enclosing transaction) on error. This backs
// the per-row fallback path described in §4.1/§4.3/§4.4: one bad row or one
// unique-constraint race cannot poison the rest of the batch.
func (s *Store) WithSavepoint(tx *gorm.DB, name string, fn func(tx *gorm.DB) error) error {
	if err := tx.SavePoint(name).Error; err != nil {
		return fmt.Errorf("create savepoint %s: %w", name, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.RollbackTo(name).Error; rbErr != nil {
			return fmt.Errorf("%w (rollback to savepoint also failed: %v)", err, rbErr)
		}
		return err
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique-constraint violation,
// the signal the analyzer dedup contract and trade dedup rely on
// (store_conflict, §7).
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) || containsUniqueViolationCode(err)
}

// containsUniqueViolationCode inspects the pq/pgx error for SQLSTATE 23505
// (unique_violation) when gorm hasn't already normalized it.
func containsUniqueViolationCode(err error) bool {
	type sqlState interface{ SQLState() string }
	var withState sqlState
	if as(err, &withState) {
		return withState.SQLState() == "23505"
	}
	return false
}

func as(err error, target interface{}) bool {
	return errors.As(err, target)
}
