// Package types 定义 chainnet 的基础类型
//
// 本文件定义所有公共错误类型。
package types

import "errors"

var (
	// ErrEmptyPeerID 空节点 ID
	ErrEmptyPeerID = errors.New("empty peer ID")

	// ErrInvalidPeerID 无效的节点 ID
	ErrInvalidPeerID = errors.New("invalid peer ID")

	// ErrInvalidPublicKey 无效的公钥
	ErrInvalidPublicKey = errors.New("invalid public key: must be 32 bytes")

	// ErrInvalidProtocol 无效的传输协议
	ErrInvalidProtocol = errors.New("invalid protocol")

	// ErrInvalidAddress 无效的节点地址
	ErrInvalidAddress = errors.New("invalid peer address")

	// ErrUnknownNetwork 未知网络
	ErrUnknownNetwork = errors.New("unknown network")
)
