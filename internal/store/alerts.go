package store

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// CreateAlert inserts a new active alert. Dedup is enforced by the partial
// unique index on (kind, dedup_key) WHERE is_active — this method attempts
// the insert and reports whether it was suppressed as a duplicate rather
// than probing for an existing row first (Design Notes: insert-and-handle-
// conflict, not check-then-insert).
func (s *Store) CreateAlert(ctx context.Context, alert Alert) (created bool, err error) {
	err = s.WithTx(ctx, func(tx *gorm.DB) error {
		txErr := s.WithSavepoint(tx, "sp_alert_create", func(tx *gorm.DB) error {
			return tx.Create(&alert).Error
		})
		if txErr == nil {
			created = true
			return nil
		}
		if IsUniqueViolation(txErr) {
			created = false
			return nil
		}
		return txErr
	})
	return created, err
}

// DismissAlert marks an alert inactive, freeing its dedup key for reuse.
func (s *Store) DismissAlert(ctx context.Context, id string, at time.Time) error {
	return s.DB.WithContext(ctx).Model(&Alert{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "dismissed_at": at}).Error
}

// ActiveAlerts returns currently active alerts, optionally filtered by kind.
func (s *Store) ActiveAlerts(ctx context.Context, kind AlertKind) ([]Alert, error) {
	q := s.DB.WithContext(ctx).Where("is_active")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var alerts []Alert
	err := q.Order("created_at DESC").Find(&alerts).Error
	return alerts, err
}

// ExpireDueAlerts deactivates every active alert whose expires_at has
// passed as of now, outside any transaction. The retention sweep (§4.9)
// applies the same update inside its own transaction instead.
func (s *Store) ExpireDueAlerts(ctx context.Context, now time.Time) (int64, error) {
	tx := s.DB.WithContext(ctx).Model(&Alert{}).
		Where("is_active AND expires_at IS NOT NULL AND expires_at <= ?", now).
		Updates(map[string]interface{}{"is_active": false, "dismissed_at": now})
	return tx.RowsAffected, tx.Error
}

// AllActiveAlerts loads every currently active alert in one query, so the
// safety scorer's batch path can compute signal-alignment counts for an
// arbitrary number of markets by unioning market_id and related_market_ids
// in memory instead of issuing one query per market (§4.7).
func (s *Store) AllActiveAlerts(ctx context.Context) ([]Alert, error) {
	var alerts []Alert
	err := s.DB.WithContext(ctx).Where("is_active").Find(&alerts).Error
	return alerts, err
}
