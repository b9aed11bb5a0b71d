package ws

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/internal/core/connmgr"
)

// Module 返回 WebSocket 传输 Fx 模块
//
// 提供:
//   - *Transport
//   - connmgr.Transport: 供连接池拨号
//
// 生命周期:
//   - OnStart: 配置了 ListenAddr 时开始监听入站连接
//   - OnStop: 停止监听
func Module() fx.Option {
	return fx.Module("transport/ws",
		fx.Provide(
			ProvideConfig,
			fx.Annotate(
				New,
				fx.As(fx.Self()),
				fx.As(new(connmgr.Transport)),
			),
		),
		fx.Invoke(registerLifecycle),
	)
}

// ConfigParams 配置依赖
type ConfigParams struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// ProvideConfig 提供传输配置
func ProvideConfig(p ConfigParams) (Config, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lifecycleInput struct {
	fx.In

	LC        fx.Lifecycle
	Transport *Transport
	Pool      *connmgr.Pool
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if input.Transport.cfg.ListenAddr == "" {
				return nil
			}
			return input.Transport.Listen(input.Pool)
		},
		OnStop: func(ctx context.Context) error {
			return input.Transport.Close(ctx)
		},
	})
}
