package storage

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
)

// Params Storage 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Result Storage 模块提供的结果
type Result struct {
	fx.Out

	Engine *Engine
	Config Config
}

// Module 返回 Storage Fx 模块
//
// 提供:
//   - *Engine: 存储引擎实例（未启用时为 nil）
//   - Config: 存储配置
//
// 生命周期:
//   - OnStart: 启动引擎后台任务
//   - OnStop: 关闭引擎
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideStorage),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideStorage 提供存储引擎和配置
func ProvideStorage(p Params) (Result, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if !cfg.Enabled {
		logger.Debug("存储未启用，地址簿使用纯内存模式")
		return Result{Config: cfg}, nil
	}

	logger.Debug("创建存储引擎", "path", cfg.Path, "inMemory", cfg.InMemory)
	eng, err := Open(cfg)
	if err != nil {
		logger.Error("创建存储引擎失败", "error", err)
		return Result{}, err
	}
	return Result{Engine: eng, Config: cfg}, nil
}

func registerLifecycle(lc fx.Lifecycle, eng *Engine) {
	if eng == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("正在启动存储引擎")
			return eng.Start()
		},
		OnStop: func(_ context.Context) error {
			logger.Info("正在关闭存储引擎")
			if err := eng.Close(); err != nil {
				logger.Warn("存储引擎关闭失败", "error", err)
				return err
			}
			return nil
		},
	})
}
