package ws

import "errors"

var (
	// ErrUnsupportedProtocol 地址协议不可拨号
	ErrUnsupportedProtocol = errors.New("ws: unsupported protocol")

	// ErrNoLocalAddress 未配置本机通告地址，无法发送 hello
	ErrNoLocalAddress = errors.New("ws: no local address")

	// ErrHandshake 握手失败
	ErrHandshake = errors.New("ws: handshake failed")

	// ErrNetworkMismatch 对端属于其他网络
	ErrNetworkMismatch = errors.New("ws: network mismatch")

	// ErrAlreadyListening 已在监听
	ErrAlreadyListening = errors.New("ws: already listening")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("ws: invalid config")
)
