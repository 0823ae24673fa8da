package store

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate runs AutoMigrate for all store models plus the partial unique
// indexes AutoMigrate cannot express (active-alert dedup).
func Migrate(db *gorm.DB) error {
	models := []interface{}{
		&Market{},
		&OrderBookSnapshot{},
		&OrderBookLatestRaw{},
		&Trade{},
		&Alert{},
		&MarketRelationship{},
		&VolumeStats{},
		&JobRun{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	// One active alert per (kind, dedup_key): the unique-constraint-plus-
	// catch-and-rollback enforcement point (§5 Ordering guarantees).
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_active_dedup
		ON alerts (kind, dedup_key)
		WHERE is_active
	`).Error; err != nil {
		return fmt.Errorf("create active-alert dedup index: %w", err)
	}

	return nil
}
