package types

import (
	"fmt"
	"strings"
)

// ============================================================================
//                              NetworkID - 网络标识
// ============================================================================

// NetworkID 逻辑网络标识
type NetworkID uint8

const (
	// NetworkTest 测试网
	NetworkTest NetworkID = 1
	// NetworkDev 开发网
	NetworkDev NetworkID = 2
	// NetworkBounty 漏洞赏金网
	NetworkBounty NetworkID = 3
	// NetworkDummy 占位网络
	NetworkDummy NetworkID = 4
	// NetworkMain 主网
	NetworkMain NetworkID = 42
)

// String 返回网络名称
func (n NetworkID) String() string {
	switch n {
	case NetworkTest:
		return "test"
	case NetworkDev:
		return "dev"
	case NetworkBounty:
		return "bounty"
	case NetworkDummy:
		return "dummy"
	case NetworkMain:
		return "main"
	default:
		return fmt.Sprintf("network(%d)", uint8(n))
	}
}

// ParseNetworkID 解析网络名称
func ParseNetworkID(s string) (NetworkID, error) {
	switch strings.ToLower(s) {
	case "test":
		return NetworkTest, nil
	case "dev":
		return NetworkDev, nil
	case "bounty":
		return NetworkBounty, nil
	case "dummy":
		return NetworkDummy, nil
	case "main":
		return NetworkMain, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownNetwork, s)
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (n NetworkID) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (n *NetworkID) UnmarshalText(text []byte) error {
	id, err := ParseNetworkID(string(text))
	if err != nil {
		return err
	}
	*n = id
	return nil
}

// ============================================================================
//                              CloseReason - 关闭原因
// ============================================================================

// CloseReason 连接关闭原因
//
// 每一次地址簿关闭操作都必须带有原因，评分和封禁都依赖它。
type CloseReason int

const (
	// CloseConnectionFailed 连接尝试失败
	CloseConnectionFailed CloseReason = iota + 1
	// ClosePingTimeout 心跳超时
	ClosePingTimeout
	// CloseConnectionLost 连接意外中断
	CloseConnectionLost
	// ClosePeerConnectionRecycled 连接被回收
	ClosePeerConnectionRecycled
	// CloseDuplicateConnection 重复连接
	CloseDuplicateConnection
	// CloseManualPeerDisconnect 手动断开节点
	CloseManualPeerDisconnect
	// CloseManualNetworkDisconnect 手动断开网络
	CloseManualNetworkDisconnect
	// CloseMaxPeerCountReached 达到最大节点数
	CloseMaxPeerCountReached
	// CloseProtocolViolation 协议违规
	CloseProtocolViolation
	// CloseInvalidHandshake 握手无效
	CloseInvalidHandshake

	closeReasonEnd
)

// AllCloseReasons 返回全部关闭原因
func AllCloseReasons() []CloseReason {
	reasons := make([]CloseReason, 0, int(closeReasonEnd)-1)
	for r := CloseConnectionFailed; r < closeReasonEnd; r++ {
		reasons = append(reasons, r)
	}
	return reasons
}

// String 返回原因名称
func (r CloseReason) String() string {
	switch r {
	case CloseConnectionFailed:
		return "connection-failed"
	case ClosePingTimeout:
		return "ping-timeout"
	case CloseConnectionLost:
		return "connection-lost"
	case ClosePeerConnectionRecycled:
		return "peer-connection-recycled"
	case CloseDuplicateConnection:
		return "duplicate-connection"
	case CloseManualPeerDisconnect:
		return "manual-peer-disconnect"
	case CloseManualNetworkDisconnect:
		return "manual-network-disconnect"
	case CloseMaxPeerCountReached:
		return "max-peer-count-reached"
	case CloseProtocolViolation:
		return "protocol-violation"
	case CloseInvalidHandshake:
		return "invalid-handshake"
	default:
		return "unknown"
	}
}

// IsValid 是否为已定义的原因
func (r CloseReason) IsValid() bool {
	return r >= CloseConnectionFailed && r < closeReasonEnd
}

// IsFailing 是否计入失败次数
func (r CloseReason) IsFailing() bool {
	switch r {
	case CloseConnectionFailed, ClosePingTimeout, CloseConnectionLost:
		return true
	default:
		return false
	}
}

// IsBanning 是否触发临时封禁
func (r CloseReason) IsBanning() bool {
	switch r {
	case CloseProtocolViolation, CloseInvalidHandshake:
		return true
	default:
		return false
	}
}

// ============================================================================
//                              Direction - 连接方向
// ============================================================================

// Direction 连接方向
type Direction int

const (
	// DirUnknown 未知方向
	DirUnknown Direction = iota
	// DirInbound 入站连接
	DirInbound
	// DirOutbound 出站连接
	DirOutbound
)

// String 返回方向的字符串表示
func (d Direction) String() string {
	switch d {
	case DirInbound:
		return "inbound"
	case DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              ConnState - 连接状态
// ============================================================================

// ConnState 连接记录的生命周期状态
type ConnState int

const (
	// ConnPendingOutbound 出站拨号中
	ConnPendingOutbound ConnState = iota
	// ConnPendingInbound 入站握手中
	ConnPendingInbound
	// ConnEstablished 已建立
	ConnEstablished
	// ConnClosed 已关闭
	ConnClosed
)

// String 返回状态的字符串表示
func (s ConnState) String() string {
	switch s {
	case ConnPendingOutbound:
		return "pending-outbound"
	case ConnPendingInbound:
		return "pending-inbound"
	case ConnEstablished:
		return "established"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}
