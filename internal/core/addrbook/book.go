package addrbook

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/dep2p/go-chainnet/internal/core/storage"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
	"github.com/dep2p/go-chainnet/pkg/types"
)

var logger = log.Logger("core/addrbook")

// Book 地址簿
type Book struct {
	mu    sync.RWMutex
	cfg   Config
	clock clock.Clock

	// entries 按插入顺序排列，键为 Locator
	entries *simplelru.LRU[string, *entry]

	// byPeer PeerID 到其全部 Locator 的索引
	byPeer map[types.PeerID]map[string]struct{}

	seedCount int
	seeded    bool

	// store 持久化存储，可为 nil
	store *storage.Store
}

// New 创建地址簿
//
// store 为 nil 时地址簿只在内存中工作。
func New(cfg Config, clk clock.Clock, store *storage.Store) (*Book, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}

	// 容量由 evictLocked 控制，LRU 本身不做淘汰
	entries, err := simplelru.NewLRU[string, *entry](math.MaxInt32, nil)
	if err != nil {
		return nil, err
	}

	b := &Book{
		cfg:     cfg,
		clock:   clk,
		entries: entries,
		byPeer:  make(map[types.PeerID]map[string]struct{}),
		store:   store,
	}

	if store != nil {
		n, err := b.load()
		if err != nil {
			return nil, err
		}
		logger.Debug("已从存储恢复地址", "count", n)
	}
	return b, nil
}

// ============================================================================
//                              收录
// ============================================================================

// Seed 收录种子地址
//
// 收录后种子数达到 MinSeeds 即视为已播种。
func (b *Book) Seed(addrs []types.PeerAddress) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	added := 0
	for _, addr := range addrs {
		if b.addLocked(SourceSeed, addr) {
			added++
		}
	}
	if b.seedCount >= b.cfg.MinSeeds {
		b.seeded = true
	}
	logger.Debug("收录种子地址", "added", added, "seeds", b.seedCount, "seeded", b.seeded)
	return added
}

// Seeded 是否已完成播种
func (b *Book) Seeded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seeded
}

// Add 收录地址，返回新增或更新的条数
func (b *Book) Add(source Source, addrs ...types.PeerAddress) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, addr := range addrs {
		if b.addLocked(source, addr) {
			n++
		}
	}
	return n
}

func (b *Book) addLocked(source Source, addr types.PeerAddress) bool {
	if err := addr.Validate(); err != nil {
		logger.Debug("丢弃无效地址", "addr", addr.String(), "error", err)
		return false
	}
	if b.isOwn(addr) {
		return false
	}

	now := b.clock.Now()
	switch source {
	case SourceSeed:
		addr.Timestamp = time.Time{}
		addr.Distance = 0
	case SourceExchange:
		if int(addr.Distance)+1 > b.cfg.MaxDistance {
			return false
		}
		addr.Distance++
		fallthrough
	default:
		if addr.Timestamp.IsZero() {
			addr.Timestamp = now
		}
		if addr.ExceedsAge(now) {
			return false
		}
	}

	key := addr.Locator()
	if e, ok := b.entries.Peek(key); ok {
		if e.IsSeed() || e.State.Active() {
			return false
		}
		if source == SourceSeed {
			// 已知地址被提升为种子
			b.unindex(e.Address.PeerID, key)
			b.index(addr.PeerID, key)
			e.Address = addr
			e.Source = SourceSeed
			b.seedCount++
			b.unpersist(key)
			return true
		}
		if !addr.Timestamp.After(e.Address.Timestamp) {
			return false
		}
		if e.Address.PeerID != addr.PeerID {
			b.unindex(e.Address.PeerID, key)
			b.index(addr.PeerID, key)
		}
		e.Address = addr
		b.persist(key, e)
		return true
	}

	if b.entries.Len() >= b.cfg.MaxSize && !b.evictLocked() {
		logger.Debug("地址簿已满，丢弃地址", "addr", addr.String())
		return false
	}

	e := &entry{Entry: Entry{Address: addr, Source: source, State: StateNew}}
	b.entries.Add(key, e)
	b.index(addr.PeerID, key)
	if source == SourceSeed {
		b.seedCount++
	} else {
		b.persist(key, e)
	}
	return true
}

// evictLocked 淘汰最早插入的空闲非种子地址
func (b *Book) evictLocked() bool {
	for _, key := range b.entries.Keys() {
		e, _ := b.entries.Peek(key)
		if e.IsSeed() || e.State.Active() {
			continue
		}
		b.removeLocked(key, e)
		return true
	}
	return false
}

func (b *Book) isOwn(addr types.PeerAddress) bool {
	own := b.cfg.OwnAddress
	if own == nil {
		return false
	}
	return own.PeerID == addr.PeerID || own.Locator() == addr.Locator()
}

func (b *Book) index(id types.PeerID, key string) {
	set, ok := b.byPeer[id]
	if !ok {
		set = make(map[string]struct{})
		b.byPeer[id] = set
	}
	set[key] = struct{}{}
}

func (b *Book) unindex(id types.PeerID, key string) {
	set := b.byPeer[id]
	delete(set, key)
	if len(set) == 0 {
		delete(b.byPeer, id)
	}
}

func (b *Book) removeLocked(key string, e *entry) {
	b.entries.Remove(key)
	b.unindex(e.Address.PeerID, key)
	if e.IsSeed() {
		b.seedCount--
	}
	b.unpersist(key)
}

// ============================================================================
//                              查询
// ============================================================================

// Len 返回地址数
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entries.Len()
}

// Get 按 Locator 查询条目
func (b *Book) Get(locator string) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries.Peek(locator)
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(), true
}

// Lookup 返回某个节点的全部条目
func (b *Book) Lookup(id types.PeerID) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, 0, len(b.byPeer[id]))
	for key := range b.byPeer[id] {
		if e, ok := b.entries.Peek(key); ok {
			out = append(out, e.snapshot())
		}
	}
	return out
}

// Candidates 返回全部条目快照，按插入顺序（最早在前）
func (b *Book) Candidates() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	values := b.entries.Values()
	out := make([]Entry, 0, len(values))
	for _, e := range values {
		out = append(out, e.snapshot())
	}
	return out
}

// PickCandidateNotConnected 返回最早收录的可拨号地址
//
// 跳过连接中或已连接的节点、封禁中的地址和无法主动拨号的地址。
func (b *Book) PickCandidateNotConnected() (types.PeerAddress, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	now := b.clock.Now()
	for _, key := range b.entries.Keys() {
		e, _ := b.entries.Peek(key)
		if !b.dialableLocked(e, now) {
			continue
		}
		return e.Address, true
	}
	return types.PeerAddress{}, false
}

// Dialable 条目当前是否可以拨号
func (b *Book) Dialable(entry Entry) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries.Peek(entry.Address.Locator())
	if !ok {
		return false
	}
	return b.dialableLocked(e, b.clock.Now())
}

func (b *Book) dialableLocked(e *entry, now time.Time) bool {
	if e.Address.Protocol == types.ProtocolDumb {
		return false
	}
	if e.State.Active() || e.Banned(now) || e.Address.ExceedsAge(now) {
		return false
	}
	return !b.peerActiveLocked(e.Address.PeerID)
}

// peerActiveLocked 该节点是否有任一地址处于连接中或已连接
func (b *Book) peerActiveLocked(id types.PeerID) bool {
	for key := range b.byPeer[id] {
		if e, ok := b.entries.Peek(key); ok && e.State.Active() {
			return true
		}
	}
	return false
}

// ============================================================================
//                              状态迁移
// ============================================================================

// Connecting 标记地址为连接中，未知地址先以 Config 来源收录
func (b *Book) Connecting(addr types.PeerAddress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.ensureLocked(SourceConfig, addr)
	if e == nil {
		return
	}
	e.State = StateConnecting
	e.Reason = 0
}

// Established 标记地址为已连接，未知地址以 Inbound 来源收录
func (b *Book) Established(addr types.PeerAddress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.ensureLocked(SourceInbound, addr)
	if e == nil {
		return
	}
	e.State = StateConnected
	e.Reason = 0
	e.FailedAttempts = 0
	e.LastConnected = b.clock.Now()
	b.persist(addr.Locator(), e)
}

func (b *Book) ensureLocked(source Source, addr types.PeerAddress) *entry {
	key := addr.Locator()
	if e, ok := b.entries.Peek(key); ok {
		return e
	}
	if !b.addLocked(source, addr) {
		logger.Debug("无法收录地址", "addr", addr.String(), "source", source.String())
		return nil
	}
	e, _ := b.entries.Peek(key)
	return e
}

// Close 关闭地址
//
// peerID 非 nil 时，该节点的全部地址一并关闭。
// 已关闭的地址保持第一次关闭的原因。
// 返回是否有地址发生了状态变化。
func (b *Book) Close(peerID *types.PeerID, addr types.PeerAddress, reason types.CloseReason) bool {
	if !reason.IsValid() {
		logger.Warn("忽略无效的关闭原因", "addr", addr.String(), "reason", int(reason))
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	keys := map[string]struct{}{addr.Locator(): {}}
	if peerID != nil {
		for key := range b.byPeer[*peerID] {
			keys[key] = struct{}{}
		}
	}

	now := b.clock.Now()
	changed := false
	for key := range keys {
		e, ok := b.entries.Peek(key)
		if !ok || e.State == StateClosed {
			continue
		}
		changed = true
		e.State = StateClosed
		e.Reason = reason

		if reason.IsBanning() {
			e.BannedUntil = now.Add(b.cfg.BanDuration)
		}
		if reason.IsFailing() {
			e.FailedAttempts++
			if !e.IsSeed() && e.FailedAttempts >= b.cfg.MaxFailedAttempts {
				logger.Debug("移除多次失败的地址", "addr", e.Address.String(), "failed", e.FailedAttempts)
				b.removeLocked(key, e)
				continue
			}
		}
		b.persist(key, e)
	}

	if changed {
		logger.Debug("地址已关闭", "addr", addr.String(), "reason", reason.String())
	}
	return changed
}

// RecordScore 记录节点的连接评分
func (b *Book) RecordScore(id types.PeerID, score float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key := range b.byPeer[id] {
		if e, ok := b.entries.Peek(key); ok {
			e.Score = score
			e.HasScore = true
		}
	}
}

// Housekeeping 清理过期地址，返回移除的条数
//
// 种子地址以及连接中或已连接的地址不会被清理。
func (b *Book) Housekeeping() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	removed := 0
	for _, key := range b.entries.Keys() {
		e, _ := b.entries.Peek(key)
		if e.IsSeed() || e.State.Active() {
			continue
		}
		if e.Address.ExceedsAge(now) {
			b.removeLocked(key, e)
			removed++
		}
	}
	if removed > 0 {
		logger.Debug("清理过期地址", "removed", removed, "remaining", b.entries.Len())
	}
	return removed
}
