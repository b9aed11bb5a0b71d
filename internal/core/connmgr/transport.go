package connmgr

import (
	"context"
	"time"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// Transport 连接池使用的传输层
type Transport interface {
	// Dial 拨号到目标地址，ctx 携带拨号超时
	Dial(ctx context.Context, addr types.PeerAddress) (Conn, error)

	// CanDial 本节点能否主动拨号该协议
	CanDial(protocol types.Protocol) bool
}

// Conn 传输层连接
type Conn interface {
	// Close 以给定原因关闭连接
	Close(reason types.CloseReason, msg string) error
}

// LatencyReporter 可选接口，报告连接往返时延
type LatencyReporter interface {
	Latency() time.Duration
}

// Monitor 可选接口，传输层报告连接意外结束
//
// Done 关闭后 LostReason 返回结束原因，本端主动关闭时返回 0。
type Monitor interface {
	Done() <-chan struct{}
	LostReason() (types.CloseReason, string)
}
