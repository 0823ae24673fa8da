package relationships

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/store"
)

// Module provides the heuristic Detector, sized from Config.
var Module = fx.Options(
	fx.Provide(func(st *store.Store, logger *zap.Logger, cfg *config.Config) *Detector {
		return NewDetector(st, logger, cfg.Analysis.RelationshipConfidenceMin)
	}),
)
