package eventbus

import (
	"context"

	"go.uber.org/fx"
)

// Module 返回 Fx 模块
//
// 提供:
//   - *Bus: 事件总线
//
// 生命周期:
//   - OnStop: 关闭总线及全部订阅
func Module() fx.Option {
	return fx.Module("eventbus",
		fx.Provide(NewBus),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC  fx.Lifecycle
	Bus *Bus
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return input.Bus.Close()
		},
	})
}
