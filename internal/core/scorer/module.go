package scorer

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/internal/core/addrbook"
	"github.com/dep2p/go-chainnet/internal/core/connmgr"
)

// Params 评分器依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Book       *addrbook.Book
	Pool       *connmgr.Pool
	Clock      clock.Clock `optional:"true"`

	AddressScore    AddressScoreFunc    `optional:"true"`
	ConnectionScore ConnectionScoreFunc `optional:"true"`
}

// Module 返回评分器 Fx 模块
//
// 提供:
//   - *Scorer: 节点评分器
func Module() fx.Option {
	return fx.Module("scorer",
		fx.Provide(ProvideScorer),
	)
}

// ProvideScorer 创建评分器
func ProvideScorer(p Params) (*Scorer, error) {
	return New(ConfigFromUnified(p.UnifiedCfg), p.Book, p.Pool, p.Clock,
		WithAddressScoreFunc(p.AddressScore),
		WithConnectionScoreFunc(p.ConnectionScore),
	)
}
