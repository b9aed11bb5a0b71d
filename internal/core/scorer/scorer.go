package scorer

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/dep2p/go-chainnet/internal/core/addrbook"
	"github.com/dep2p/go-chainnet/internal/core/connmgr"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
	"github.com/dep2p/go-chainnet/pkg/types"
)

var logger = log.Logger("core/scorer")

// Book 评分器读取的地址簿
type Book interface {
	Candidates() []addrbook.Entry
	RecordScore(id types.PeerID, score float64)
}

// Pool 评分器读取和操作的连接池
type Pool interface {
	PeerCount() int
	HasPeer(id types.PeerID) bool
	CanDial(protocol types.Protocol) bool
	Established() []connmgr.Record
	SetScore(id uuid.UUID, score float64) bool
	Close(id uuid.UUID, reason types.CloseReason, msg string) bool
}

// Option 评分器选项
type Option func(*Scorer)

// WithAddressScoreFunc 替换地址评分函数
func WithAddressScoreFunc(f AddressScoreFunc) Option {
	return func(s *Scorer) {
		if f != nil {
			s.addrScore = f
		}
	}
}

// WithConnectionScoreFunc 替换连接评分函数
func WithConnectionScoreFunc(f ConnectionScoreFunc) Option {
	return func(s *Scorer) {
		if f != nil {
			s.connScore = f
		}
	}
}

// Scorer 节点评分器
type Scorer struct {
	cfg   Config
	clock clock.Clock
	book  Book
	pool  Pool

	addrScore AddressScoreFunc
	connScore ConnectionScoreFunc

	mu        sync.RWMutex
	lastRun   time.Time
	lastCount int
}

// New 创建评分器
func New(cfg Config, book Book, pool Pool, clk clock.Clock, opts ...Option) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if book == nil || pool == nil {
		return nil, ErrNilDependency
	}
	if clk == nil {
		clk = clock.New()
	}
	s := &Scorer{
		cfg:       cfg,
		clock:     clk,
		book:      book,
		pool:      pool,
		addrScore: DefaultAddressScore(cfg.MaxDistance),
		connScore: DefaultConnectionScore,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ============================================================================
//                              候选地址
// ============================================================================

// PickAddress 返回评分最高、未连接且可拨号的候选地址
//
// 同分时取最早收录的地址。传输层无法拨号的协议不参与挑选。
func (s *Scorer) PickAddress() (types.PeerAddress, bool) {
	now := s.clock.Now()

	var (
		best      types.PeerAddress
		bestScore = -1.0
		found     bool
	)
	for _, e := range s.book.Candidates() {
		if !dialable(e, now) || !s.pool.CanDial(e.Address.Protocol) || s.pool.HasPeer(e.Address.PeerID) {
			continue
		}
		score := s.addrScore(e, now)
		if score < 0 {
			continue
		}
		if !found || score > bestScore {
			best, bestScore, found = e.Address, score, true
		}
	}
	if found {
		logger.Debug("选出候选地址", "addr", best.String(), "score", bestScore)
	}
	return best, found
}

// dialable 协议可主动拨号且地址未过期
func dialable(e addrbook.Entry, now time.Time) bool {
	if e.Address.Protocol == types.ProtocolDumb {
		return false
	}
	return !e.Address.ExceedsAge(now)
}

// ============================================================================
//                              节点集合
// ============================================================================

// IsGoodPeer 是否优质节点：可经 ws/wss 访问的全节点
func IsGoodPeer(addr types.PeerAddress) bool {
	if !addr.Services.IsFullNode() {
		return false
	}
	return addr.Protocol == types.ProtocolWs || addr.Protocol == types.ProtocolWss
}

// IsGoodPeer 是否优质节点
func (s *Scorer) IsGoodPeer(addr types.PeerAddress) bool {
	return IsGoodPeer(addr)
}

// IsGoodPeerSet 节点集合是否既足够多又足够好
func (s *Scorer) IsGoodPeerSet() bool {
	return !s.NeedsGoodPeers() && !s.NeedsMorePeers()
}

// NeedsMorePeers 连接数是否低于目标
func (s *Scorer) NeedsMorePeers() bool {
	return s.pool.PeerCount() < s.cfg.PeerCountTarget
}

// NeedsGoodPeers 优质节点是否不足
//
// 优质节点少于 GoodPeerCountMin，或已评分连接平均分低于 AcceptableScore。
func (s *Scorer) NeedsGoodPeers() bool {
	var good, scored int
	var sum float64
	for _, r := range s.pool.Established() {
		if IsGoodPeer(r.Address) {
			good++
		}
		if r.Scored {
			scored++
			sum += r.Score
		}
	}
	if good < s.cfg.GoodPeerCountMin {
		return true
	}
	return scored > 0 && sum/float64(scored) < s.cfg.AcceptableScore
}

// ============================================================================
//                              连接评分与回收
// ============================================================================

// ScoreConnections 为超过保护期的已建立连接评分
//
// 分数写入连接池记录，并作为历史写入地址簿。返回评分的连接数。
func (s *Scorer) ScoreConnections() int {
	now := s.clock.Now()
	n := 0
	for _, r := range s.pool.Established() {
		if r.Age(now) < s.cfg.MinAge {
			continue
		}
		score := clamp01(s.connScore(r, now))
		if !s.pool.SetScore(r.ID, score) {
			continue
		}
		s.book.RecordScore(r.Address.PeerID, score)
		n++
	}

	s.mu.Lock()
	s.lastRun = now
	s.lastCount = n
	s.mu.Unlock()

	logger.Debug("连接评分完成", "scored", n)
	return n
}

// LastRun 返回最近一次评分的时间与评分的连接数
func (s *Scorer) LastRun() (time.Time, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun, s.lastCount
}

// scoredConnections 已评分连接，按分数升序，同分时较新的连接在前
func (s *Scorer) scoredConnections() []connmgr.Record {
	recs := s.pool.Established()
	out := recs[:0]
	for _, r := range recs {
		if r.Scored {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].EstablishedAt.After(out[j].EstablishedAt)
	})
	return out
}

// RecycleConnections 关闭评分最低的至多 count 个连接
//
// 只回收已评分的连接；返回实际关闭的数量。
func (s *Scorer) RecycleConnections(count int, reason types.CloseReason, msg string) int {
	if count <= 0 {
		return 0
	}
	closed := 0
	for _, r := range s.scoredConnections() {
		if closed >= count {
			break
		}
		if s.pool.Close(r.ID, reason, msg) {
			closed++
		}
	}
	if closed > 0 {
		logger.Info("回收连接", "requested", count, "closed", closed, "reason", reason.String())
	}
	return closed
}

// LowestConnectionScore 当前已评分连接中的最低分
//
// 没有已评分连接时返回 false。
func (s *Scorer) LowestConnectionScore() (float64, bool) {
	var lowest float64
	found := false
	for _, r := range s.pool.Established() {
		if !r.Scored {
			continue
		}
		if !found || r.Score < lowest {
			lowest, found = r.Score, true
		}
	}
	return lowest, found
}
