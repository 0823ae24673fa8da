package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TradeInsertResult reports how many trades were newly recorded versus
// already known, so the collector can log dedup effectiveness (§4.3.c).
type TradeInsertResult struct {
	Inserted  int
	Duplicate int
}

// InsertTrades bulk-inserts trades, ignoring rows whose id already exists
// (trade ids are immutable upstream facts, never updated). On bulk failure
// it falls back to a per-row savepoint path.
func (s *Store) InsertTrades(ctx context.Context, trades []Trade) (TradeInsertResult, error) {
	if len(trades) == 0 {
		return TradeInsertResult{}, nil
	}

	ids := make([]string, len(trades))
	for i, t := range trades {
		ids[i] = t.ID
	}

	var result TradeInsertResult
	err := s.WithTx(ctx, func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&Trade{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
			return fmt.Errorf("preload existing trade ids: %w", err)
		}
		existingSet := make(map[string]bool, len(existing))
		for _, id := range existing {
			existingSet[id] = true
		}

		fresh := make([]Trade, 0, len(trades))
		for _, t := range trades {
			if existingSet[t.ID] {
				result.Duplicate++
				continue
			}
			fresh = append(fresh, t)
		}
		if len(fresh) == 0 {
			return nil
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&fresh).Error
		if err == nil {
			result.Inserted += len(fresh)
			return nil
		}

		s.Logger.Warn("bulk trade insert failed, falling back to per-row", zap.Error(err))
		for i, t := range fresh {
			t := t
			spName := fmt.Sprintf("sp_trade_%d", i)
			err := s.WithSavepoint(tx, spName, func(tx *gorm.DB) error {
				return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&t).Error
			})
			if err != nil {
				s.Logger.Error("per-row trade insert failed", zap.String("trade_id", t.ID), zap.Error(err))
				continue
			}
			result.Inserted++
		}
		return nil
	})
	return result, err
}

// TradesSince returns trades for the given tokens at or after since,
// ordered oldest-first, used by the volume/spike analyzers and the volume
// aggregation job (§4.4.a, §4.8).
func (s *Store) TradesSince(ctx context.Context, tokens []string, since interface{}) ([]Trade, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	var trades []Trade
	err := s.DB.WithContext(ctx).
		Where("token_id IN ? AND timestamp >= ?", tokens, since).
		Order("timestamp ASC").
		Find(&trades).Error
	return trades, err
}

// TradesInWindow returns trades for one token strictly between [start, end),
// used to recompute a single aggregation bucket.
func (s *Store) TradesInWindow(ctx context.Context, tokenID string, start, end interface{}) ([]Trade, error) {
	var trades []Trade
	err := s.DB.WithContext(ctx).
		Where("token_id = ? AND timestamp >= ? AND timestamp < ?", tokenID, start, end).
		Order("timestamp ASC").
		Find(&trades).Error
	return trades, err
}
