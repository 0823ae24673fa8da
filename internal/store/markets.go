package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertMarkets resets enable_order_book on every existing market, then
// bulk-upserts the given records so the upsert re-enables only the markets
// that are currently tradeable (§4.3: "reset enable_order_book=false on
// every existing market before upsert"). On bulk failure it falls back to
// a per-row path that preloads existing ids to avoid N+1 existence probes.
func (s *Store) UpsertMarkets(ctx context.Context, markets []Market) error {
	if len(markets) == 0 {
		return nil
	}

	return s.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&Market{}).Where("1 = 1").Update("enable_order_book", false).Error; err != nil {
			return fmt.Errorf("reset enable_order_book: %w", err)
		}

		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"question", "end_date", "active", "enable_order_book",
				"volume", "liquidity", "category", "outcomes", "updated_at",
			}),
		}).Create(&markets).Error
		if err == nil {
			return nil
		}

		s.Logger.Warn("bulk market upsert failed, falling back to per-row", zap.Error(err))
		return s.upsertMarketsPerRow(tx, markets)
	})
}

// upsertMarketsPerRow preloads existing ids in a single query (avoiding an
// N+1 probe) then inserts-or-updates each market under its own savepoint
// so one bad row doesn't abort the batch.
func (s *Store) upsertMarketsPerRow(tx *gorm.DB, markets []Market) error {
	ids := make([]string, len(markets))
	for i, m := range markets {
		ids[i] = m.ID
	}

	var existing []string
	if err := tx.Model(&Market{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
		return fmt.Errorf("preload existing market ids: %w", err)
	}
	existingSet := make(map[string]bool, len(existing))
	for _, id := range existing {
		existingSet[id] = true
	}

	for i := range markets {
		m := markets[i]
		spName := fmt.Sprintf("sp_market_%d", i)
		err := s.WithSavepoint(tx, spName, func(tx *gorm.DB) error {
			if existingSet[m.ID] {
				return tx.Model(&Market{}).Where("id = ?", m.ID).Updates(map[string]interface{}{
					"question":          m.Question,
					"end_date":          m.EndDate,
					"active":            m.Active,
					"enable_order_book": m.EnableOrderBook,
					"volume":            m.Volume,
					"liquidity":         m.Liquidity,
					"category":          m.Category,
					"outcomes":          m.Outcomes,
					"updated_at":        m.UpdatedAt,
				}).Error
			}
			return tx.Create(&m).Error
		})
		if err != nil {
			s.Logger.Error("per-row market upsert failed", zap.String("market_id", m.ID), zap.Error(err))
		}
	}
	return nil
}

// ActiveOrderBookEnabledMarkets returns markets eligible for order-book
// collection (§4.3).
func (s *Store) ActiveOrderBookEnabledMarkets(ctx context.Context) ([]Market, error) {
	var markets []Market
	err := s.DB.WithContext(ctx).
		Where("active AND enable_order_book").
		Find(&markets).Error
	return markets, err
}

// ActiveMarkets returns every market the collector currently considers
// live, used by the trade collector's tracked-token set and the
// relationship heuristic detector.
func (s *Store) ActiveMarkets(ctx context.Context) ([]Market, error) {
	var markets []Market
	err := s.DB.WithContext(ctx).Where("active").Find(&markets).Error
	return markets, err
}

// MarketsByIDs fetches a specific set of markets, used by the safety
// scorer's batch path.
func (s *Store) MarketsByIDs(ctx context.Context, ids []string) ([]Market, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var markets []Market
	err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&markets).Error
	return markets, err
}
