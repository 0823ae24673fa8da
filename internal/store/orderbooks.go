package store

import (
	"context"

	"gorm.io/gorm/clause"
)

// AppendSnapshots inserts new historical order-book metric rows. Snapshots
// are strictly append-only (§5 Ordering guarantees) — never updated.
func (s *Store) AppendSnapshots(ctx context.Context, snapshots []OrderBookSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Create(&snapshots).Error
}

// UpsertLatestRaw upserts the full ladder per token so row count tracks
// token count (§3 invariant 1, §8).
func (s *Store) UpsertLatestRaw(ctx context.Context, rows []OrderBookLatestRaw) error {
	if len(rows) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"market_id", "bids", "asks", "timestamp"}),
	}).Create(&rows).Error
}

// LatestSnapshotsByToken returns the newest snapshot per token in tokens,
// using one DISTINCT ON query regardless of the token count
// (the "latest per group" query from §4.1).
func (s *Store) LatestSnapshotsByToken(ctx context.Context, tokens []string) (map[string]OrderBookSnapshot, error) {
	if len(tokens) == 0 {
		return map[string]OrderBookSnapshot{}, nil
	}

	var rows []OrderBookSnapshot
	err := s.DB.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (token_id) *
		FROM order_book_snapshots
		WHERE token_id IN ?
		ORDER BY token_id, timestamp DESC
	`, tokens).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]OrderBookSnapshot, len(rows))
	for _, r := range rows {
		out[r.TokenID] = r
	}
	return out, nil
}

// OldestSnapshotsSince returns the oldest snapshot per token that is not
// older than since, used by the mm-pullback analyzer (§4.4.c).
func (s *Store) OldestSnapshotsSince(ctx context.Context, tokens []string, since interface{}) (map[string]OrderBookSnapshot, error) {
	if len(tokens) == 0 {
		return map[string]OrderBookSnapshot{}, nil
	}

	var rows []OrderBookSnapshot
	err := s.DB.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (token_id) *
		FROM order_book_snapshots
		WHERE token_id IN ? AND timestamp >= ?
		ORDER BY token_id, timestamp ASC
	`, tokens, since).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]OrderBookSnapshot, len(rows))
	for _, r := range rows {
		out[r.TokenID] = r
	}
	return out, nil
}

// LatestRawByToken returns OrderBookLatestRaw rows for the given tokens,
// keyed by token id.
func (s *Store) LatestRawByToken(ctx context.Context, tokens []string) (map[string]OrderBookLatestRaw, error) {
	if len(tokens) == 0 {
		return map[string]OrderBookLatestRaw{}, nil
	}
	var rows []OrderBookLatestRaw
	if err := s.DB.WithContext(ctx).Where("token_id IN ?", tokens).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]OrderBookLatestRaw, len(rows))
	for _, r := range rows {
		out[r.TokenID] = r
	}
	return out, nil
}
