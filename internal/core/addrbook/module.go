package addrbook

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/internal/core/networks"
	"github.com/dep2p/go-chainnet/internal/core/storage"
)

// storePrefix 地址簿在存储中的键前缀
var storePrefix = []byte("a/")

// Params 地址簿模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config  `optional:"true"`
	Clock      clock.Clock     `optional:"true"`
	Engine     *storage.Engine `optional:"true"`
}

// Module 返回地址簿 Fx 模块
//
// 提供:
//   - *Book: 已收录所属网络种子的地址簿
func Module() fx.Option {
	return fx.Module("addrbook",
		fx.Provide(ProvideBook),
	)
}

// ProvideBook 创建地址簿并收录种子
//
// 所属网络未注册是致命配置错误。
func ProvideBook(p Params) (*Book, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)

	var store *storage.Store
	if p.Engine != nil {
		store = storage.NewStore(p.Engine, storePrefix)
	}

	book, err := New(cfg, p.Clock, store)
	if err != nil {
		return nil, err
	}

	unified := p.UnifiedCfg
	if unified == nil {
		unified = config.NewConfig()
	}
	info, ok := networks.Get(unified.Network.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, unified.Network.ID)
	}
	extra, err := unified.Network.ParseSeedPeers()
	if err != nil {
		return nil, err
	}

	seeds := append(info.Seeds(), extra...)
	book.Seed(seeds)
	logger.Info("地址簿已就绪", "network", info.Name, "seeds", len(seeds), "seeded", book.Seeded())
	return book, nil
}
