// Package types 定义 chainnet 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 chainnet 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
// 基础类型:
//   - ids.go       - PublicKey, PeerID
//   - services.go  - ServiceFlags 服务能力标志
//   - address.go   - Protocol, PeerAddress
//   - enums.go     - NetworkID, CloseReason, Direction, ConnState
//   - errors.go    - 公共错误定义
//
// 事件类型:
//   - events.go    - 连接池事件（连接建立、连接关闭、拨号失败）
//
// # 标识
//
// PeerID 由公钥派生（BLAKE2b-256 的前 16 字节），与传输地址无关。
// 两个 PeerAddress 具有相同 PeerID 时表示同一个逻辑节点。
package types
