package store

import (
	"context"

	"gorm.io/gorm/clause"
)

// UpsertVolumeStats writes a recomputed aggregation bucket, replacing any
// prior value for the same (token, period_type, period_start) triple —
// buckets are recomputed wholesale, not incrementally merged (§4.8).
func (s *Store) UpsertVolumeStats(ctx context.Context, stats []VolumeStats) error {
	if len(stats) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "token_id"}, {Name: "period_type"}, {Name: "period_start"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"volume", "trade_count", "avg_size",
			"open_price", "high_price", "low_price", "close_price",
			"buy_volume", "sell_volume",
		}),
	}).Create(&stats).Error
}

// VolumeStatsSince returns aggregation buckets for tokens at or after
// periodStart, oldest first.
func (s *Store) VolumeStatsSince(ctx context.Context, tokens []string, periodType PeriodType, periodStart interface{}) ([]VolumeStats, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	var stats []VolumeStats
	err := s.DB.WithContext(ctx).
		Where("token_id IN ? AND period_type = ? AND period_start >= ?", tokens, periodType, periodStart).
		Order("period_start ASC").
		Find(&stats).Error
	return stats, err
}
