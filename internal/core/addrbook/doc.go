// Package addrbook 实现节点地址簿
//
// 地址簿是已知节点地址及其连接状态的唯一真实来源。
// 连接池通过 Connecting/Established/Close 驱动状态迁移，
// 评分器通过 Candidates 读取快照。
//
// # 地址来源
//
//   - Seed: 网络内置或配置的种子地址，永不过期，不因失败而移除
//   - Exchange: 节点交换获得，跳数加一，超过 MaxDistance 丢弃
//   - Inbound: 入站握手获得
//   - Config: 手动添加
//   - Store: 从持久化存储恢复
//
// # 状态
//
//	New ──Connecting──▶ Connecting ──Established──▶ Connected
//	 │                      │                          │
//	 └────────Close─────────┴───────────Close──────────┴──▶ Closed
//
// 关闭是幂等的：已关闭的地址再次关闭保留第一次的原因。
//
// # 容量
//
// 地址按插入顺序保存在有序 LRU 中。满时淘汰最早插入且空闲的
// 非种子地址；没有可淘汰地址时新地址被丢弃。
package addrbook
