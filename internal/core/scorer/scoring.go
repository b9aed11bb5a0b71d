package scorer

import (
	"time"

	"github.com/dep2p/go-chainnet/internal/core/addrbook"
	"github.com/dep2p/go-chainnet/internal/core/connmgr"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// AddressScoreFunc 候选地址评分函数，返回负数表示排除
type AddressScoreFunc func(e addrbook.Entry, now time.Time) float64

// ConnectionScoreFunc 连接评分函数，返回 [0,1]
type ConnectionScoreFunc func(r connmgr.Record, now time.Time) float64

// ============================================================================
//                              地址评分
// ============================================================================

// 地址评分权重
const (
	addrWeightServices = 0.4
	addrWeightRecency  = 0.3
	addrWeightDistance = 0.3

	// addrHistoryBlend 有历史评分时历史所占比例
	addrHistoryBlend = 0.5
)

// DefaultAddressScore 返回默认地址评分函数
//
// 分数 = 状态因子 × (服务 + 新鲜度 + 距离)，有历史评分时与历史混合。
func DefaultAddressScore(maxDistance int) AddressScoreFunc {
	return func(e addrbook.Entry, now time.Time) float64 {
		state := stateFactor(e, now)
		if state < 0 {
			return -1
		}

		base := addrWeightServices*servicesFactor(e.Address.Services) +
			addrWeightRecency*recencyFactor(e.Address, now) +
			addrWeightDistance*distanceFactor(e.Address.Distance, maxDistance)
		if e.HasScore {
			base = (1-addrHistoryBlend)*base + addrHistoryBlend*clamp01(e.Score)
		}
		return state * base
	}
}

// stateFactor 连接状态因子
//
// 连接中、已连接和封禁中的地址被排除；每次失败折半。
func stateFactor(e addrbook.Entry, now time.Time) float64 {
	if e.State.Active() || e.Banned(now) {
		return -1
	}
	if e.State != addrbook.StateClosed {
		return 1
	}
	f := 1.0
	for i := 0; i < e.FailedAttempts; i++ {
		f /= 2
	}
	if e.Reason == types.CloseMaxPeerCountReached || e.Reason == types.ClosePeerConnectionRecycled {
		f *= 0.8
	}
	return f
}

func servicesFactor(s types.ServiceFlags) float64 {
	switch {
	case s.IsFullNode():
		return 1
	case s.IsLightNode():
		return 0.5
	case s.IsNanoNode():
		return 0.25
	default:
		return 0
	}
}

// recencyFactor 地址越新分数越高，种子地址恒为 1
func recencyFactor(a types.PeerAddress, now time.Time) float64 {
	if a.IsSeed() {
		return 1
	}
	maxAge := a.Protocol.MaxAge()
	if maxAge <= 0 {
		return 0
	}
	return clamp01(1 - float64(now.Sub(a.Timestamp))/float64(maxAge))
}

func distanceFactor(distance uint8, maxDistance int) float64 {
	if maxDistance <= 0 {
		return 1
	}
	return clamp01(1 - float64(distance)/float64(maxDistance+1))
}

// ============================================================================
//                              连接评分
// ============================================================================

// 连接评分权重
const (
	connWeightAge       = 0.15
	connWeightDirection = 0.25
	connWeightServices  = 0.2
	connWeightProtocol  = 0.2
	connWeightLatency   = 0.2

	// ageSaturation 连接年龄因子达到满分所需时长
	ageSaturation = time.Hour
)

// DefaultConnectionScore 默认连接评分
//
// 年龄、出站方向、服务能力、协议和时延加权求和。
func DefaultConnectionScore(r connmgr.Record, now time.Time) float64 {
	direction := 0.0
	if r.Direction == types.DirOutbound {
		direction = 1
	}

	score := connWeightAge*clamp01(float64(r.Age(now))/float64(ageSaturation)) +
		connWeightDirection*direction +
		connWeightServices*servicesFactor(r.Address.Services) +
		connWeightProtocol*protocolFactor(r.Address.Protocol) +
		connWeightLatency*latencyFactor(r)
	return clamp01(score)
}

func protocolFactor(p types.Protocol) float64 {
	switch p {
	case types.ProtocolWss:
		return 1
	case types.ProtocolWs:
		return 0.8
	case types.ProtocolRtc:
		return 0.5
	default:
		return 0
	}
}

// latencyFactor 时延分档，未知时延取中间值
func latencyFactor(r connmgr.Record) float64 {
	latency, ok := r.Latency()
	if !ok {
		return 0.5
	}
	switch {
	case latency < 50*time.Millisecond:
		return 1
	case latency < 100*time.Millisecond:
		return 0.75
	case latency < 200*time.Millisecond:
		return 0.5
	default:
		return 0.25
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
