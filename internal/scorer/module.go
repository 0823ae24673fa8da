package scorer

import (
	"go.uber.org/fx"
)

// Module provides the Scorer.
var Module = fx.Options(
	fx.Provide(NewScorer),
)
