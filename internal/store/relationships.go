package store

import (
	"context"

	"gorm.io/gorm/clause"
)

// UpsertRelationship inserts or refreshes the group/confidence/notes of a
// (kind, parent, child) edge, either declared by an operator or a
// heuristic-detector candidate confirmed by an operator (§4.5).
func (s *Store) UpsertRelationship(ctx context.Context, rel MarketRelationship) error {
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "parent_market_id"}, {Name: "child_market_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"group_id", "confidence", "notes"}),
	}).Create(&rel).Error
}

// RelationshipsForMarket returns every edge where marketID is either the
// parent or the child.
func (s *Store) RelationshipsForMarket(ctx context.Context, marketID string) ([]MarketRelationship, error) {
	var rels []MarketRelationship
	err := s.DB.WithContext(ctx).
		Where("parent_market_id = ? OR child_market_id = ?", marketID, marketID).
		Find(&rels).Error
	return rels, err
}

// RelationshipsByKind returns every edge of a given kind, used by the
// heuristic detector to avoid re-proposing an already-confirmed edge.
func (s *Store) RelationshipsByKind(ctx context.Context, kind RelationshipKind) ([]MarketRelationship, error) {
	var rels []MarketRelationship
	err := s.DB.WithContext(ctx).Where("kind = ?", kind).Find(&rels).Error
	return rels, err
}

// RelationshipsByGroup returns the declared mutually-exclusive group
// sharing groupID.
func (s *Store) RelationshipsByGroup(ctx context.Context, groupID string) ([]MarketRelationship, error) {
	var rels []MarketRelationship
	err := s.DB.WithContext(ctx).Where("group_id = ?", groupID).Find(&rels).Error
	return rels, err
}
