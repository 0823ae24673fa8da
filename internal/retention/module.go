package retention

import (
	"go.uber.org/fx"
)

// Module provides the retention Sweeper.
var Module = fx.Options(
	fx.Provide(NewSweeper),
)
