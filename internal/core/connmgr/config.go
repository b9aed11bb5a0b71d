package connmgr

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/dep2p/go-chainnet/config"
)

// Config 连接池配置
type Config struct {
	// ConnectingCountMax 同时进行的出站拨号上限
	ConnectingCountMax int

	// PeerCountMax 已建立连接上限
	PeerCountMax int

	// DialTimeout 单次拨号超时
	DialTimeout time.Duration

	// Gater 门控配置
	Gater GaterConfig
}

// GaterConfig 门控配置
type GaterConfig struct {
	// BlockedIPs 拒绝入站的 IP
	BlockedIPs []netip.Addr

	// BlockedPeerCapacity 封禁节点表容量
	BlockedPeerCapacity int

	// BanDuration 节点封禁时长
	BanDuration time.Duration

	// InboundRate 每秒允许的入站连接数，0 表示不限速
	InboundRate float64

	// InboundBurst 入站突发量
	InboundBurst int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ConnectingCountMax: 2,
		PeerCountMax:       4000,
		DialTimeout:        10 * time.Second,
		Gater: GaterConfig{
			BlockedPeerCapacity: 1024,
			BanDuration:         10 * time.Minute,
			InboundRate:         50,
			InboundBurst:        100,
		},
	}
}

// ConfigFromUnified 从统一配置创建连接池配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	c.ConnectingCountMax = cfg.ConnMgr.ConnectingCountMax
	c.PeerCountMax = cfg.ConnMgr.PeerCountMax
	c.DialTimeout = cfg.ConnMgr.DialTimeout.Duration()
	c.Gater.BlockedPeerCapacity = cfg.ConnMgr.Gater.BlockedPeerCapacity
	c.Gater.BanDuration = cfg.AddrBook.BanDuration.Duration()
	c.Gater.InboundRate = cfg.ConnMgr.Gater.InboundRate
	c.Gater.InboundBurst = cfg.ConnMgr.Gater.InboundBurst
	if ips, err := cfg.ConnMgr.Gater.ParseBlockedIPs(); err == nil {
		c.Gater.BlockedIPs = ips
	}
	return c
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.ConnectingCountMax <= 0 {
		return fmt.Errorf("%w: connecting count max must be positive", ErrInvalidConfig)
	}
	if c.PeerCountMax <= 0 {
		return fmt.Errorf("%w: peer count max must be positive", ErrInvalidConfig)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("%w: dial timeout must be positive", ErrInvalidConfig)
	}
	if c.Gater.BlockedPeerCapacity <= 0 {
		return fmt.Errorf("%w: blocked peer capacity must be positive", ErrInvalidConfig)
	}
	if c.Gater.InboundRate < 0 || c.Gater.InboundBurst < 0 {
		return fmt.Errorf("%w: inbound rate and burst cannot be negative", ErrInvalidConfig)
	}
	return nil
}
