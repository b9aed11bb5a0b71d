package connmgr

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/internal/core/addrbook"
	"github.com/dep2p/go-chainnet/internal/core/eventbus"
	"github.com/dep2p/go-chainnet/internal/core/metrics"
)

// Module 返回连接池 Fx 模块
//
// 提供:
//   - *Gater: 连接门控器
//   - *Pool: 连接池
//
// 生命周期:
//   - OnStop: 关闭全部连接
func Module() fx.Option {
	return fx.Module("connmgr",
		fx.Provide(
			ProvideConfig,
			ProvideGater,
			ProvidePool,
		),
		fx.Invoke(registerLifecycle),
	)
}

// ConfigParams 配置依赖
type ConfigParams struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// ProvideConfig 提供连接池配置
func ProvideConfig(p ConfigParams) (Config, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ProvideGater 提供连接门控器
func ProvideGater(cfg Config) *Gater {
	return NewGater(cfg.Gater)
}

// PoolParams 连接池依赖
type PoolParams struct {
	fx.In

	Config    Config
	Gater     *Gater
	Book      *addrbook.Book
	Bus       *eventbus.Bus
	Transport Transport        `optional:"true"`
	Clock     clock.Clock      `optional:"true"`
	Metrics   *metrics.Metrics `optional:"true"`
}

// ProvidePool 提供连接池
func ProvidePool(p PoolParams) (*Pool, error) {
	return NewPool(p.Config, Deps{
		Book:      p.Book,
		Gater:     p.Gater,
		Bus:       p.Bus,
		Transport: p.Transport,
		Clock:     p.Clock,
		Metrics:   p.Metrics,
	})
}

type lifecycleInput struct {
	fx.In

	LC   fx.Lifecycle
	Pool *Pool
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return input.Pool.Shutdown()
		},
	})
}
