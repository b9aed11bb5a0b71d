package ws

import (
	"fmt"
	"time"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// Config 传输配置
type Config struct {
	// Network 本机所属网络，写入 hello 并校验对端
	Network types.NetworkID

	// LocalAddress 本机通告地址，nil 时无法拨号
	LocalAddress *types.PeerAddress

	// Protocols 可拨号协议
	Protocols []types.Protocol

	// ListenAddr 入站监听地址，为空时不监听
	ListenAddr string

	// Path WebSocket 路径
	Path string

	// TLSCertFile/TLSKeyFile 入站 TLS
	TLSCertFile string
	TLSKeyFile  string

	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
	ReadLimit        int64
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Network:          types.NetworkMain,
		Protocols:        []types.Protocol{types.ProtocolWs, types.ProtocolWss},
		Path:             "/",
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PongTimeout:      30 * time.Second,
		ReadLimit:        1 << 20,
	}
}

// ConfigFromUnified 从统一配置创建传输配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	c.Network = cfg.Network.ID
	if own, ok := cfg.Network.OwnAddress(); ok {
		c.LocalAddress = &own
	}
	if protocols, err := cfg.ConnMgr.ParseProtocols(); err == nil {
		c.Protocols = protocols
	}
	t := cfg.Transport
	c.ListenAddr = t.ListenAddr
	c.Path = t.Path
	c.TLSCertFile = t.TLSCertFile
	c.TLSKeyFile = t.TLSKeyFile
	c.HandshakeTimeout = t.HandshakeTimeout.Duration()
	c.PingInterval = t.PingInterval.Duration()
	c.PongTimeout = t.PongTimeout.Duration()
	c.ReadLimit = t.ReadLimit
	return c
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.Path == "" || c.Path[0] != '/' {
		return fmt.Errorf("%w: path must start with /", ErrInvalidConfig)
	}
	if c.HandshakeTimeout <= 0 || c.PingInterval <= 0 || c.PongTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if c.ReadLimit <= 0 {
		return fmt.Errorf("%w: read limit must be positive", ErrInvalidConfig)
	}
	return nil
}
