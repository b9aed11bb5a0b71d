package addrbook

import (
	"time"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// Source 地址来源
type Source int

const (
	// SourceSeed 种子
	SourceSeed Source = iota
	// SourceExchange 节点交换
	SourceExchange
	// SourceInbound 入站握手
	SourceInbound
	// SourceConfig 手动配置
	SourceConfig
	// SourceStore 持久化恢复
	SourceStore
)

// String 返回来源名称
func (s Source) String() string {
	switch s {
	case SourceSeed:
		return "seed"
	case SourceExchange:
		return "exchange"
	case SourceInbound:
		return "inbound"
	case SourceConfig:
		return "config"
	case SourceStore:
		return "store"
	default:
		return "unknown"
	}
}

// State 地址连接状态
type State int

const (
	// StateNew 尚未尝试连接
	StateNew State = iota
	// StateConnecting 拨号中
	StateConnecting
	// StateConnected 已连接
	StateConnected
	// StateClosed 已关闭，原因见 Entry.Reason
	StateClosed
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Active 是否处于连接中或已连接
func (s State) Active() bool {
	return s == StateConnecting || s == StateConnected
}

// Entry 地址簿条目快照
type Entry struct {
	Address        types.PeerAddress
	Source         Source
	State          State
	Reason         types.CloseReason
	FailedAttempts int
	BannedUntil    time.Time
	LastConnected  time.Time

	// Score 该节点最近一次的连接评分，HasScore 为 false 时无历史
	Score    float64
	HasScore bool
}

// IsSeed 是否种子条目
func (e Entry) IsSeed() bool {
	return e.Source == SourceSeed
}

// Banned 在 now 时刻是否处于封禁期
func (e Entry) Banned(now time.Time) bool {
	return now.Before(e.BannedUntil)
}

// entry 内部可变条目
type entry struct {
	Entry
}

func (e *entry) snapshot() Entry {
	return e.Entry
}
