package network

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/internal/core/addrbook"
	"github.com/dep2p/go-chainnet/internal/core/connmgr"
	"github.com/dep2p/go-chainnet/internal/core/eventbus"
	"github.com/dep2p/go-chainnet/internal/core/metrics"
	"github.com/dep2p/go-chainnet/internal/core/scorer"
)

var (
	_ Book   = (*addrbook.Book)(nil)
	_ Pool   = (*connmgr.Pool)(nil)
	_ Scorer = (*scorer.Scorer)(nil)
)

// Params 编排器依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Book       *addrbook.Book
	Pool       *connmgr.Pool
	Scorer     *scorer.Scorer
	Bus        *eventbus.Bus
	Clock      clock.Clock      `optional:"true"`
	Metrics    *metrics.Metrics `optional:"true"`
	Refresher  AddressRefresher `optional:"true"`
}

// Module 返回网络维护 Fx 模块
//
// 提供:
//   - *Network: 网络维护编排器
//
// 生命周期:
//   - OnStop: 停止自动维护
func Module() fx.Option {
	return fx.Module("network",
		fx.Provide(ProvideNetwork),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideNetwork 创建编排器
func ProvideNetwork(p Params) (*Network, error) {
	return New(ConfigFromUnified(p.UnifiedCfg), Deps{
		Book:      p.Book,
		Pool:      p.Pool,
		Scorer:    p.Scorer,
		Bus:       p.Bus,
		Clock:     p.Clock,
		Metrics:   p.Metrics,
		Refresher: p.Refresher,
	})
}

type lifecycleInput struct {
	fx.In

	LC      fx.Lifecycle
	Network *Network
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			input.Network.Disconnect()
			return nil
		},
	})
}
