package scheduler

import (
	"context"

	"go.uber.org/fx"
)

// Module provides the Scheduler and starts/stops it with the process
// lifecycle (§4.8). Start itself is a no-op when Config.Scheduler.Enabled
// is false.
var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// Job loops outlive fx's short-lived startup context, so they
			// are parented to Background and torn down via Stop instead.
			s.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.Stop()
			return nil
		},
	})
}
