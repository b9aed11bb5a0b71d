package config

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// ConnManagerConfig 连接管理配置
//
// 配置连接池策略：
//   - 并发拨号与节点总数上限
//   - 可拨号的传输协议
//   - 入站过滤与限速
type ConnManagerConfig struct {
	// ConnectingCountMax 同时进行的出站拨号上限
	ConnectingCountMax int `json:"connecting_count_max"`

	// PeerCountMax 已建立连接上限
	PeerCountMax int `json:"peer_count_max"`

	// DialTimeout 单次拨号超时
	DialTimeout Duration `json:"dial_timeout"`

	// Protocols 本节点可以主动拨号的协议
	Protocols []string `json:"protocols"`

	// Gater 连接过滤配置
	Gater ConnectionGaterConfig `json:"gater"`
}

// ConnectionGaterConfig 连接过滤配置
type ConnectionGaterConfig struct {
	// BlockedIPs 拒绝入站的 IP 列表
	BlockedIPs []string `json:"blocked_ips,omitempty"`

	// BlockedPeerCapacity 封禁节点表容量
	BlockedPeerCapacity int `json:"blocked_peer_capacity"`

	// InboundRate 每秒允许接受的入站连接数，0 表示不限速
	InboundRate float64 `json:"inbound_rate"`

	// InboundBurst 入站突发量
	InboundBurst int `json:"inbound_burst"`
}

// DefaultConnManagerConfig 返回默认连接管理配置
func DefaultConnManagerConfig() ConnManagerConfig {
	return ConnManagerConfig{
		// ════════════════════════════════════════════════════════════════════
		// 连接数限制
		// ════════════════════════════════════════════════════════════════════
		ConnectingCountMax: 2,    // 最多 2 个并发出站拨号
		PeerCountMax:       4000, // 最多 4000 个已建立连接

		DialTimeout: Duration(10 * time.Second),
		Protocols:   []string{"ws", "wss"},

		// ════════════════════════════════════════════════════════════════════
		// 连接过滤配置（Connection Gater）
		// ════════════════════════════════════════════════════════════════════
		Gater: ConnectionGaterConfig{
			BlockedIPs:          []string{},
			BlockedPeerCapacity: 1024,
			InboundRate:         50,
			InboundBurst:        100,
		},
	}
}

// Validate 验证连接管理配置
func (c *ConnManagerConfig) Validate() error {
	if c.ConnectingCountMax <= 0 {
		return errors.New("conn_mgr: connecting_count_max must be positive")
	}
	if c.PeerCountMax <= 0 {
		return errors.New("conn_mgr: peer_count_max must be positive")
	}
	if c.DialTimeout <= 0 {
		return errors.New("conn_mgr: dial_timeout must be positive")
	}
	if _, err := c.ParseProtocols(); err != nil {
		return err
	}
	if _, err := c.Gater.ParseBlockedIPs(); err != nil {
		return err
	}
	if c.Gater.BlockedPeerCapacity <= 0 {
		return errors.New("conn_mgr: gater.blocked_peer_capacity must be positive")
	}
	if c.Gater.InboundRate < 0 || c.Gater.InboundBurst < 0 {
		return errors.New("conn_mgr: gater inbound rate and burst cannot be negative")
	}
	return nil
}

// ParseProtocols 解析可拨号协议
func (c *ConnManagerConfig) ParseProtocols() ([]types.Protocol, error) {
	out := make([]types.Protocol, 0, len(c.Protocols))
	for _, s := range c.Protocols {
		p, err := types.ParseProtocol(s)
		if err != nil {
			return nil, fmt.Errorf("conn_mgr: protocols: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ParseBlockedIPs 解析 IP 黑名单
func (c *ConnectionGaterConfig) ParseBlockedIPs() ([]netip.Addr, error) {
	out := make([]netip.Addr, 0, len(c.BlockedIPs))
	for _, s := range c.BlockedIPs {
		ip, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("conn_mgr: gater.blocked_ips: %w", err)
		}
		out = append(out, ip)
	}
	return out, nil
}
