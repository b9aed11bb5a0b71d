package connmgr

import (
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// Record 连接记录快照
type Record struct {
	ID        uuid.UUID
	State     types.ConnState
	Direction types.Direction

	// Address 对端地址，入站握手完成前为零值
	Address types.PeerAddress

	// RemoteIP 入站连接的远端 IP
	RemoteIP netip.Addr

	Score  float64
	Scored bool

	CreatedAt     time.Time
	EstablishedAt time.Time

	conn Conn
}

// Age 连接建立至 now 的时长
func (r Record) Age(now time.Time) time.Duration {
	if r.EstablishedAt.IsZero() {
		return 0
	}
	return now.Sub(r.EstablishedAt)
}

// Latency 返回传输层报告的时延
//
// 连接不支持时返回 false。
func (r Record) Latency() (time.Duration, bool) {
	lr, ok := r.conn.(LatencyReporter)
	if !ok {
		return 0, false
	}
	return lr.Latency(), true
}
