package exchange

import (
	"go.uber.org/fx"

	"crypto-warren/internal/modules/config"
)

func Module() fx.Option {
	return fx.Module("exchange",
		fx.Provide(
			func(cfg *config.Config) *Client {
				return NewClient(cfg.Exchange, cfg.Symbols)
			},
			func(c *Client) Exchange { return c },
		),
	)
}
