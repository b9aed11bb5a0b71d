package config

import (
	"errors"
	"time"
)

// TransportConfig WebSocket 传输配置
type TransportConfig struct {
	// ListenAddr 入站监听地址，为空时不接受入站连接
	ListenAddr string `json:"listen_addr,omitempty"`

	// Path WebSocket 路径
	Path string `json:"path"`

	// TLSCertFile/TLSKeyFile 同时配置时以 wss 监听
	TLSCertFile string `json:"tls_cert_file,omitempty"`
	TLSKeyFile  string `json:"tls_key_file,omitempty"`

	// HandshakeTimeout 握手超时
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// PingInterval 心跳间隔
	PingInterval Duration `json:"ping_interval"`

	// PongTimeout 心跳应答超时
	PongTimeout Duration `json:"pong_timeout"`

	// ReadLimit 单条消息大小上限（字节）
	ReadLimit int64 `json:"read_limit"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Path:             "/",
		HandshakeTimeout: Duration(10 * time.Second),
		PingInterval:     Duration(30 * time.Second),
		PongTimeout:      Duration(30 * time.Second),
		ReadLimit:        1 << 20,
	}
}

// Validate 验证传输配置
func (c *TransportConfig) Validate() error {
	if c.Path == "" {
		return errors.New("transport: path cannot be empty")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("transport: tls_cert_file and tls_key_file must be set together")
	}
	if c.HandshakeTimeout <= 0 || c.PingInterval <= 0 || c.PongTimeout <= 0 {
		return errors.New("transport: timeouts must be positive")
	}
	if c.ReadLimit <= 0 {
		return errors.New("transport: read_limit must be positive")
	}
	return nil
}
