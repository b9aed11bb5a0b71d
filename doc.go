// Package chainnet 维护区块链节点的对等网络
//
// Node 聚合地址簿、连接池、评分器与网络编排器，负责把节点集合维持在
// 目标规模并保持足够多的优质连接。
//
// # 快速开始
//
//	import "github.com/dep2p/go-chainnet"
//
//	node, err := chainnet.Start(ctx,
//	    chainnet.WithNetwork(types.NetworkTest),
//	    chainnet.WithSeedPeers("wss://seed.example.org:8443/<pubkey-hex>"),
//	    chainnet.WithPeerAddress("wss://me.example.org:8443/<pubkey-hex>"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	fmt.Println(node.PeerCount())
//
// # 组件
//
//	┌──────────────────────────────────────────────────────────┐
//	│  Node          chainnet.New() / chainnet.Start()         │
//	├──────────────────────────────────────────────────────────┤
//	│  Network       自动维护：补足节点、退避、周期清理          │
//	├──────────────────────────────────────────────────────────┤
//	│  Scorer        候选地址与连接评分、回收                    │
//	├──────────────────────────────────────────────────────────┤
//	│  Pool          出站拨号、入站登记、关闭与封禁              │
//	├──────────────────────────────────────────────────────────┤
//	│  AddrBook      地址状态、失败计数、老化与持久化            │
//	├──────────────────────────────────────────────────────────┤
//	│  Transport     WebSocket (ws/wss)                        │
//	└──────────────────────────────────────────────────────────┘
//
// 连接池的连接事件经事件总线送达编排器；编排器只在自身锁内
// 调用下层组件，下层组件不回调编排器。
//
// # 文件组织
//
//	chainnet/
//	├── doc.go       # 包文档
//	├── node.go      # Node 结构、生命周期、对外操作
//	├── fx.go        # Fx 应用组装
//	├── options.go   # WithXxx 配置选项
//	└── errors.go    # 错误定义
package chainnet
