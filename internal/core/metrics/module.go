package metrics

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
)

// Config 指标配置
type Config struct {
	// Enabled 是否启动 HTTP 指标服务
	Enabled bool

	// ListenAddr 监听地址
	ListenAddr string

	// Path 指标路径
	Path string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:    false,
		ListenAddr: "127.0.0.1:9464",
		Path:       "/metrics",
	}
}

// ConfigFromUnified 从统一配置创建指标配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		Enabled:    cfg.Metrics.Enabled,
		ListenAddr: cfg.Metrics.ListenAddr,
		Path:       cfg.Metrics.Path,
	}
}

// Params Metrics 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Module 是 metrics 的 Fx 模块
//
// 指标总是被收集；只有启用时才对外提供 HTTP 服务。
var Module = fx.Module("metrics",
	fx.Provide(New),
	fx.Invoke(registerServer),
)

type serverInput struct {
	fx.In

	LC         fx.Lifecycle
	Metrics    *Metrics
	UnifiedCfg *config.Config `optional:"true"`
}

func registerServer(input serverInput) {
	cfg := ConfigFromUnified(input.UnifiedCfg)
	if !cfg.Enabled {
		return
	}
	srv := NewServer(cfg, input.Metrics)
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop(ctx)
		},
	})
}
