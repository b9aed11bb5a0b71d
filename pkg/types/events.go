// Package types 定义 chainnet 公共类型
//
// 本文件定义连接池发布到事件总线的事件类型。
package types

import (
	"time"

	"github.com/google/uuid"
)

// EvtPeerConnected 连接建立事件
type EvtPeerConnected struct {
	ConnID    uuid.UUID
	Address   PeerAddress
	Direction Direction
	Time      time.Time
}

// EvtPeerClosed 已建立（或入站握手中）的连接关闭事件
type EvtPeerClosed struct {
	ConnID  uuid.UUID
	Address PeerAddress
	Reason  CloseReason
	Message string
	Time    time.Time
}

// EvtConnectFailed 出站拨号失败事件
type EvtConnectFailed struct {
	ConnID  uuid.UUID
	Address PeerAddress
	Err     error
	Time    time.Time
}
