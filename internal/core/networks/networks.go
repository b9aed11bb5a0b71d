// Package networks 提供内置网络注册表
//
// 注册表在包初始化时构建，之后只读，无需加锁。
package networks

import (
	"encoding/hex"
	"sort"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// seedPort 主网种子统一使用的 wss 端口
const seedPort = 8443

// NetworkInfo 网络静态信息
type NetworkInfo struct {
	// ID 网络标识
	ID types.NetworkID

	// Name 网络名称
	Name string

	// SeedPeers 内置种子节点
	SeedPeers []types.PeerAddress

	// GenesisHash 创世区块哈希
	GenesisHash [32]byte
}

var registry = map[types.NetworkID]*NetworkInfo{
	types.NetworkMain: {
		ID:   types.NetworkMain,
		Name: "main",
		SeedPeers: []types.PeerAddress{
			types.NewSeedAddress("seed-1.nimiq.com", seedPort, "b70d0c3e6cdf95485cac0688b086597a5139bc4237173023c83411331ef90507"),
			types.NewSeedAddress("seed-2.nimiq.com", seedPort, "8580275aef426981a04ee5ea948ca3c95944ef1597ad78db9839f810d6c5b461"),
			types.NewSeedAddress("seed-3.nimiq.com", seedPort, "136bdec59f4d37f25ac8393bef193ff2e31c9c0a024b3edbf77fc1cb84e67a15"),
			types.NewSeedAddress("seed-4.nimiq-network.com", seedPort, "aacf606335cdd92d0dd06f27faa3b66d9bac0b247cd57ade413121196b72cd73"),
			types.NewSeedAddress("seed-5.nimiq-network.com", seedPort, "110a81a033c75976643d4b8f34419f4913b306a6fc9d530b8207ddbd5527eff6"),
			types.NewSeedAddress("seed-6.nimiq-network.com", seedPort, "26c1a4727cda6579639bdcbaecb1f6b97be3ac0e282b43bdd1a2df2858b3c23b"),
			types.NewSeedAddress("seed-7.nimiq.network", seedPort, "82fcebdb4e2a7212186d1976d7f685cc86cdf58beffe1723d5c3ea5be00c73e1"),
			types.NewSeedAddress("seed-8.nimiq.network", seedPort, "b7ac8cc1a820761df4e8a42f4e30c870e81065c4e29f994ebb5bdceb48904e7b"),
			types.NewSeedAddress("seed-9.nimiq.network", seedPort, "4429bf25c8d296c0f1786647d8f7d4bac40a37c67caf028818a65a9cc7865a48"),
			types.NewSeedAddress("seed-10.nimiq.network", seedPort, "e8e99fb8633d660d4f2d48edb6cc294681b57648b6ec6b28af8f85b2d5ec4e68"),
			types.NewSeedAddress("seed-11.nimiq.network", seedPort, "a76f0edabacfe701750036bad473ff92fa0e68ef655ab93135f0572af6e5baf8"),
			types.NewSeedAddress("seed-12.nimiq.network", seedPort, "dca57704191306ac1315e051b6dfef6c174fb2af011a52a3d922fbfaec2be41a"),
			types.NewSeedAddress("seed-13.nimiq-network.com", seedPort, "30993f92f148da125a6f8bc191b3e746fab39e109220daa0966bf6432e909f3f"),
			types.NewSeedAddress("seed-14.nimiq-network.com", seedPort, "6e7f904fabfadb194d6c74b16534bacb69892d80909cf959e47d3c8f5f330ad2"),
			types.NewSeedAddress("seed-15.nimiq-network.com", seedPort, "7cb662a686144c17ae4153fbf7ce359f7e9da39dc072eb11092531f9104fbdf6"),
			types.NewSeedAddress("seed-16.nimiq.com", seedPort, "0dfd11939947101197e3c3768a086e65ef1e893e71bfcf4bd5ed222957825212"),
			types.NewSeedAddress("seed-17.nimiq.com", seedPort, "c7120f4f88b70a38daa9783e30e89c1c55c3d80d0babed44b4e2ddd09052664a"),
			types.NewSeedAddress("seed-18.nimiq.com", seedPort, "c15a2d824a52837fa7165dc232592be35116661e7f28605187ab273dd7233711"),
			types.NewSeedAddress("seed-19.nimiq.com", seedPort, "98a24d4b05158314b36e0bd6ce3b42ac5ac061f4bb9664d783eb930caa9315b6"),
			types.NewSeedAddress("seed-20.nimiq.com", seedPort, "1fc33f93273d94dd2cf7470274c27ecb1261ec983e43bdbb281803c0a09e68d5"),
		},
		GenesisHash: mustHash("264aaf8a4f9828a76c550635da078eb466306a189fcc03710bee9f649c869d12"),
	},
	// 测试网和开发网没有内置种子，需要通过 network.seed_peers 配置
	types.NetworkTest: {
		ID:   types.NetworkTest,
		Name: "test",
	},
	types.NetworkDev: {
		ID:   types.NetworkDev,
		Name: "dev",
	},
}

func mustHash(s string) [32]byte {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		panic("networks: invalid genesis hash " + s)
	}
	var h [32]byte
	copy(h[:], b)
	return h
}

// Get 查询网络信息
//
// 返回的指针指向只读数据，调用方不得修改。
func Get(id types.NetworkID) (*NetworkInfo, bool) {
	info, ok := registry[id]
	return info, ok
}

// All 返回全部已注册网络，按 ID 升序
func All() []*NetworkInfo {
	out := make([]*NetworkInfo, 0, len(registry))
	for _, info := range registry {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Seeds 返回网络内置种子的副本
func (n *NetworkInfo) Seeds() []types.PeerAddress {
	out := make([]types.PeerAddress, len(n.SeedPeers))
	copy(out, n.SeedPeers)
	return out
}
