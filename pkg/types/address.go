package types

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
//                              Protocol - 传输协议
// ============================================================================

// Protocol 传输协议
type Protocol int

const (
	// ProtocolDumb 无法主动拨号的节点（仅入站）
	ProtocolDumb Protocol = iota
	// ProtocolWs WebSocket
	ProtocolWs
	// ProtocolWss 安全 WebSocket
	ProtocolWss
	// ProtocolRtc WebRTC
	ProtocolRtc
)

// String 返回协议名称
func (p Protocol) String() string {
	switch p {
	case ProtocolDumb:
		return "dumb"
	case ProtocolWs:
		return "ws"
	case ProtocolWss:
		return "wss"
	case ProtocolRtc:
		return "rtc"
	default:
		return "unknown"
	}
}

// ParseProtocol 解析协议名称
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(s) {
	case "dumb":
		return ProtocolDumb, nil
	case "ws":
		return ProtocolWs, nil
	case "wss":
		return ProtocolWss, nil
	case "rtc":
		return ProtocolRtc, nil
	default:
		return ProtocolDumb, fmt.Errorf("%w: %q", ErrInvalidProtocol, s)
	}
}

// MaxAge 地址在该协议下的最大有效期
func (p Protocol) MaxAge() time.Duration {
	switch p {
	case ProtocolWs, ProtocolWss:
		return 30 * time.Minute
	case ProtocolRtc:
		return 10 * time.Minute
	default:
		return time.Minute
	}
}

// ============================================================================
//                              PeerAddress - 节点地址
// ============================================================================

// PeerAddress 节点地址记录
//
// 相同 PeerID 的两条记录表示同一个逻辑节点，无论传输细节是否不同。
type PeerAddress struct {
	// Protocol 传输协议
	Protocol Protocol

	// Host 主机名（仅 ws/wss）
	Host string

	// Port 端口（仅 ws/wss）
	Port uint16

	// Services 声明的服务能力
	Services ServiceFlags

	// NetAddress 最近一次观察到的网络地址，零值表示未知
	NetAddress netip.Addr

	// PublicKey 长期公钥
	PublicKey PublicKey

	// PeerID 由公钥派生的节点标识
	PeerID PeerID

	// Signature 地址记录签名（可选，校验在外部完成）
	Signature []byte

	// Distance 跳数距离，0 表示直接获知
	Distance uint8

	// Timestamp 最近更新时间，零值表示种子地址
	Timestamp time.Time
}

// NewPeerAddress 创建节点地址并派生 PeerID
func NewPeerAddress(protocol Protocol, host string, port uint16, services ServiceFlags, pk PublicKey) PeerAddress {
	return PeerAddress{
		Protocol:  protocol,
		Host:      host,
		Port:      port,
		Services:  services,
		PublicKey: pk,
		PeerID:    pk.PeerID(),
	}
}

// NewSeedAddress 创建 wss 种子地址
//
// 种子地址声明全节点能力，距离为 0，时间戳为零值（永不过期）。
func NewSeedAddress(host string, port uint16, pubKeyHex string) PeerAddress {
	return NewPeerAddress(ProtocolWss, host, port, ServiceFull, MustParsePublicKeyHex(pubKeyHex))
}

// ParsePeerAddress 解析 "wss://host:port/<pubkey-hex>" 形式的地址
func ParsePeerAddress(s string) (PeerAddress, error) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return PeerAddress{}, fmt.Errorf("%w: missing scheme in %q", ErrInvalidAddress, s)
	}
	protocol, err := ParseProtocol(scheme)
	if err != nil {
		return PeerAddress{}, err
	}
	hostPort, keyHex, ok := strings.Cut(rest, "/")
	if !ok {
		return PeerAddress{}, fmt.Errorf("%w: missing public key in %q", ErrInvalidAddress, s)
	}
	pk, err := ParsePublicKeyHex(keyHex)
	if err != nil {
		return PeerAddress{}, err
	}

	addr := NewPeerAddress(protocol, "", 0, ServiceFull, pk)
	if protocol == ProtocolWs || protocol == ProtocolWss {
		host, portStr, ok := strings.Cut(hostPort, ":")
		if !ok || host == "" {
			return PeerAddress{}, fmt.Errorf("%w: bad host:port in %q", ErrInvalidAddress, s)
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil || port == 0 {
			return PeerAddress{}, fmt.Errorf("%w: bad port in %q", ErrInvalidAddress, s)
		}
		addr.Host = host
		addr.Port = uint16(port)
	}
	return addr, nil
}

// IsSeed 是否种子地址
func (a PeerAddress) IsSeed() bool {
	return a.Timestamp.IsZero()
}

// ExceedsAge 地址是否已超过协议允许的最大有效期
func (a PeerAddress) ExceedsAge(now time.Time) bool {
	if a.IsSeed() {
		return false
	}
	return now.Sub(a.Timestamp) > a.Protocol.MaxAge()
}

// Locator 返回传输定位键
//
// ws/wss 使用 scheme://host:port；其他协议无固定传输地址，使用 PeerID。
func (a PeerAddress) Locator() string {
	switch a.Protocol {
	case ProtocolWs, ProtocolWss:
		return a.Protocol.String() + "://" + a.Host + ":" + strconv.Itoa(int(a.Port))
	default:
		return a.Protocol.String() + "/" + a.PeerID.String()
	}
}

// URL 返回可拨号的 URL，非 ws/wss 协议返回空字符串
func (a PeerAddress) URL() string {
	switch a.Protocol {
	case ProtocolWs, ProtocolWss:
		return a.Locator()
	default:
		return ""
	}
}

// URI 返回 ParsePeerAddress 可解析的完整地址
//
// 非 ws/wss 协议省略 host:port，形如 "rtc:///<pubkey-hex>"。
func (a PeerAddress) URI() string {
	hostPort := ""
	if a.Protocol == ProtocolWs || a.Protocol == ProtocolWss {
		hostPort = a.Host + ":" + strconv.Itoa(int(a.Port))
	}
	return a.Protocol.String() + "://" + hostPort + "/" + a.PublicKey.Hex()
}

// SamePeer 是否同一个逻辑节点
func (a PeerAddress) SamePeer(other PeerAddress) bool {
	return a.PeerID == other.PeerID
}

// String 实现 fmt.Stringer
func (a PeerAddress) String() string {
	return a.Locator() + "/" + a.PeerID.ShortString()
}

// Validate 校验地址的基本合法性
func (a PeerAddress) Validate() error {
	if a.PublicKey.IsEmpty() {
		return fmt.Errorf("%w: empty public key", ErrInvalidAddress)
	}
	if a.PeerID != a.PublicKey.PeerID() {
		return fmt.Errorf("%w: peer id does not match public key", ErrInvalidAddress)
	}
	if (a.Protocol == ProtocolWs || a.Protocol == ProtocolWss) && (a.Host == "" || a.Port == 0) {
		return fmt.Errorf("%w: missing host or port", ErrInvalidAddress)
	}
	return nil
}
