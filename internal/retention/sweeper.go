// Package retention implements the periodic retention sweep: alert
// expiry, TTL deletes, row-cap enforcement, and a post-commit storage
// reclaim pass (§4.9).
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/metrics"
	"github.com/marketlens/marketlens/internal/store"
)

// TableSize is one table's post-sweep row count, for the per-table
// size summary log line.
type TableSize struct {
	Table string
	Rows  int64
}

// Sweeper deletes expired/over-TTL/over-cap rows in one transaction,
// then runs a VACUUM ANALYZE outside any transaction (§4.9).
type Sweeper struct {
	store   *store.Store
	sqlDB   *sqlx.DB
	logger  *zap.Logger
	metrics *metrics.Metrics
	cfg     *config.Config
}

// NewSweeper constructs a Sweeper, wrapping the store's shared *sql.DB
// in an *sqlx.DB for statements gorm's query builder doesn't express
// (here, VACUUM ANALYZE, which cannot run inside gorm's transaction).
func NewSweeper(st *store.Store, logger *zap.Logger, m *metrics.Metrics, cfg *config.Config) (*Sweeper, error) {
	rawDB, err := st.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB for retention sweeper: %w", err)
	}
	return &Sweeper{
		store:   st,
		sqlDB:   sqlx.NewDb(rawDB, "postgres"),
		logger:  logger,
		metrics: m,
		cfg:     cfg,
	}, nil
}

// Run performs one sweep: alert expiry, TTL deletes, row-cap
// enforcement, all in one transaction; then VACUUM ANALYZE outside any
// transaction; then logs a per-table size summary.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (int, error) {
	var totalDeleted int64

	err := s.store.WithTx(ctx, func(tx *gorm.DB) error {
		expired, err := expireAlerts(tx, now)
		if err != nil {
			return fmt.Errorf("expire alerts: %w", err)
		}
		totalDeleted += expired

		deleted, err := s.deleteByTTL(tx, now)
		if err != nil {
			return err
		}
		totalDeleted += deleted

		capped, err := s.enforceRowCaps(tx)
		if err != nil {
			return err
		}
		totalDeleted += capped
		return nil
	})
	if err != nil {
		return 0, err
	}

	if vacErr := s.vacuumAnalyze(ctx); vacErr != nil {
		s.logger.Warn("retention vacuum analyze failed", zap.Error(vacErr))
	}

	sizes, err := s.tableSizes(ctx)
	if err != nil {
		s.logger.Warn("retention table size summary failed", zap.Error(err))
	} else {
		for _, ts := range sizes {
			s.logger.Info("retention table size", zap.String("table", ts.Table), zap.Int64("rows", ts.Rows))
		}
	}

	s.metrics.RetentionRowsDeleted.WithLabelValues("total").Add(float64(totalDeleted))
	return int(totalDeleted), nil
}

// expireAlerts marks every active alert whose expires_at has passed as
// dismissed, applying the same update as Store.ExpireDueAlerts inside the
// sweep transaction.
func expireAlerts(tx *gorm.DB, now time.Time) (int64, error) {
	result := tx.Model(&store.Alert{}).
		Where("is_active AND expires_at IS NOT NULL AND expires_at <= ?", now).
		Updates(map[string]interface{}{"is_active": false, "dismissed_at": now})
	return result.RowsAffected, result.Error
}

// deleteByTTL removes snapshot, trade, and dismissed-alert rows older
// than their configured retention window.
func (s *Sweeper) deleteByTTL(tx *gorm.DB, now time.Time) (int64, error) {
	var total int64

	snapshotCutoff := now.AddDate(0, 0, -s.cfg.Retention.SnapshotDays)
	result := tx.Where("timestamp < ?", snapshotCutoff).Delete(&store.OrderBookSnapshot{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired snapshots: %w", result.Error)
	}
	total += result.RowsAffected

	tradeCutoff := now.AddDate(0, 0, -s.cfg.Retention.TradeDays)
	result = tx.Where("timestamp < ?", tradeCutoff).Delete(&store.Trade{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired trades: %w", result.Error)
	}
	total += result.RowsAffected

	alertCutoff := now.AddDate(0, 0, -s.cfg.Retention.AlertDays)
	result = tx.Where("NOT is_active AND created_at < ?", alertCutoff).Delete(&store.Alert{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired alerts: %w", result.Error)
	}
	total += result.RowsAffected

	return total, nil
}

// enforceRowCaps deletes the oldest rows beyond the configured hard cap
// for snapshots and trades, the two highest-volume append-only tables.
func (s *Sweeper) enforceRowCaps(tx *gorm.DB) (int64, error) {
	var total int64

	deleted, err := deleteOldestBeyondCap(tx, "order_book_snapshots", "timestamp", s.cfg.Retention.MaxSnapshotRows)
	if err != nil {
		return 0, fmt.Errorf("enforce snapshot row cap: %w", err)
	}
	total += deleted

	deleted, err = deleteOldestBeyondCap(tx, "trades", "timestamp", s.cfg.Retention.MaxTradeRows)
	if err != nil {
		return 0, fmt.Errorf("enforce trade row cap: %w", err)
	}
	total += deleted

	return total, nil
}

// deleteOldestBeyondCap removes the oldest rows in table (ordered by
// orderCol) once its count exceeds maxRows.
func deleteOldestBeyondCap(tx *gorm.DB, table, orderCol string, maxRows int) (int64, error) {
	if maxRows <= 0 {
		return 0, nil
	}

	var count int64
	if err := tx.Table(table).Count(&count).Error; err != nil {
		return 0, err
	}
	if count <= int64(maxRows) {
		return 0, nil
	}

	overflow := count - int64(maxRows)
	result := tx.Exec(fmt.Sprintf(
		`DELETE FROM %s WHERE ctid IN (SELECT ctid FROM %s ORDER BY %s ASC LIMIT ?)`,
		table, table, orderCol,
	), overflow)
	return result.RowsAffected, result.Error
}

// vacuumAnalyze reclaims storage and refreshes planner statistics,
// always run outside a transaction since postgres forbids VACUUM inside
// one.
func (s *Sweeper) vacuumAnalyze(ctx context.Context) error {
	_, err := s.sqlDB.ExecContext(ctx, "VACUUM ANALYZE")
	return err
}

// tableSizes returns the current row count of every retention-managed
// table, for the post-sweep size summary log.
func (s *Sweeper) tableSizes(ctx context.Context) ([]TableSize, error) {
	tables := []string{"order_book_snapshots", "trades", "alerts", "job_runs", "markets"}
	sizes := make([]TableSize, 0, len(tables))
	for _, table := range tables {
		var count int64
		row := s.sqlDB.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s", table))
		if err := row.Scan(&count); err != nil {
			return nil, fmt.Errorf("count rows in %s: %w", table, err)
		}
		sizes = append(sizes, TableSize{Table: table, Rows: count})
	}
	return sizes, nil
}
