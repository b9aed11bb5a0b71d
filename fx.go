package chainnet

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/internal/core/addrbook"
	"github.com/dep2p/go-chainnet/internal/core/connmgr"
	"github.com/dep2p/go-chainnet/internal/core/eventbus"
	"github.com/dep2p/go-chainnet/internal/core/metrics"
	"github.com/dep2p/go-chainnet/internal/core/network"
	"github.com/dep2p/go-chainnet/internal/core/scorer"
	"github.com/dep2p/go-chainnet/internal/core/storage"
	"github.com/dep2p/go-chainnet/internal/core/transport/ws"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 基础: EventBus → Storage → Metrics
//  2. 地址簿（依赖 Storage）
//  3. 传输（默认 WebSocket，可替换）
//  4. 连接池 → 评分器 → 编排器
func buildFxApp(cfg *config.Config, o *options, node *Node) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	modules := []fx.Option{
		fx.Supply(cfg),

		eventbus.Module(),
		storage.Module(),
		metrics.Module,
		addrbook.Module(),
	}

	if o.clock != nil {
		clk := o.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return clk }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 传输层
	// ════════════════════════════════════════════════════════════════════════
	if o.transport != nil {
		t := o.transport
		modules = append(modules, fx.Provide(func() connmgr.Transport { return t }))
	} else {
		modules = append(modules, ws.Module())
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 连接维护
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		connmgr.Module(),
		scorer.Module(),
		network.Module(),
	)
	if o.refresher != nil {
		r := o.refresher
		modules = append(modules, fx.Provide(func() network.AddressRefresher { return r }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 4. 用户扩展与 Node 注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, o.userFxOptions...)
	modules = append(modules, fx.Invoke(injectNodeComponents(node)))

	// Fx 自身事件只在 debug 级别输出
	if cfg.Log.Level == "debug" {
		modules = append(modules, fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Default().Named("fx")}
		}))
	} else {
		modules = append(modules, fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}))
	}

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// nodeInjectParams Node 组件注入参数
type nodeInjectParams struct {
	fx.In

	Bus     *eventbus.Bus
	Book    *addrbook.Book
	Pool    *connmgr.Pool
	Scorer  *scorer.Scorer
	Network *network.Network
	Metrics *metrics.Metrics

	// 使用自定义传输时不存在
	Transport *ws.Transport `optional:"true"`
}

// injectNodeComponents 创建 Node 组件注入函数
func injectNodeComponents(node *Node) interface{} {
	return func(p nodeInjectParams) {
		node.bus = p.Bus
		node.book = p.Book
		node.pool = p.Pool
		node.scorer = p.Scorer
		node.network = p.Network
		node.metrics = p.Metrics
		node.transport = p.Transport
	}
}
