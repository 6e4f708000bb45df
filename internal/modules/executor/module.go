package executor

import "go.uber.org/fx"

func Module() fx.Option {
	return fx.Module("executor",
		fx.Provide(
			New,
		),
	)
}
