package scorer

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-chainnet/internal/core/addrbook"
	"github.com/dep2p/go-chainnet/internal/core/connmgr"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// ============================================================================
//                              测试辅助
// ============================================================================

type fakeBook struct {
	entries []addrbook.Entry
	history map[types.PeerID]float64
}

func (b *fakeBook) Candidates() []addrbook.Entry {
	return append([]addrbook.Entry(nil), b.entries...)
}

func (b *fakeBook) RecordScore(id types.PeerID, score float64) {
	if b.history == nil {
		b.history = make(map[types.PeerID]float64)
	}
	b.history[id] = score
}

type fakePool struct {
	mu         sync.Mutex
	order      []uuid.UUID
	records    map[uuid.UUID]*connmgr.Record
	closed     map[uuid.UUID]types.CloseReason
	undialable map[types.Protocol]bool
}

func newFakePool() *fakePool {
	return &fakePool{
		records: make(map[uuid.UUID]*connmgr.Record),
		closed:  make(map[uuid.UUID]types.CloseReason),
	}
}

func (p *fakePool) add(r connmgr.Record) uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.State = types.ConnEstablished
	p.records[r.ID] = &r
	p.order = append(p.order, r.ID)
	return r.ID
}

func (p *fakePool) PeerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

func (p *fakePool) HasPeer(id types.PeerID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.records {
		if r.Address.PeerID == id {
			return true
		}
	}
	return false
}

func (p *fakePool) CanDial(protocol types.Protocol) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.undialable[protocol]
}

func (p *fakePool) Established() []connmgr.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]connmgr.Record, 0, len(p.records))
	for _, id := range p.order {
		if r, ok := p.records[id]; ok {
			out = append(out, *r)
		}
	}
	return out
}

func (p *fakePool) SetScore(id uuid.UUID, score float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.records[id]
	if !ok {
		return false
	}
	r.Score, r.Scored = score, true
	return true
}

func (p *fakePool) Close(id uuid.UUID, reason types.CloseReason, _ string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.records[id]; !ok {
		return false
	}
	delete(p.records, id)
	p.closed[id] = reason
	return true
}

func testKey(i int) types.PublicKey {
	var pk types.PublicKey
	pk[0] = byte(i)
	pk[1] = byte(i >> 8)
	pk[31] = 0x3E
	return pk
}

func testAddr(now time.Time, i int, services types.ServiceFlags) types.PeerAddress {
	addr := types.NewPeerAddress(types.ProtocolWss, fmt.Sprintf("s%d.example.org", i), 8443, services, testKey(i))
	addr.Timestamp = now
	return addr
}

func newTestScorer(t *testing.T, book Book, pool Pool, mutate func(*Config)) (*Scorer, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Add(24 * time.Hour)
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg, book, pool, clk)
	require.NoError(t, err)
	return s, clk
}

// ============================================================================
//                              候选地址
// ============================================================================

// TestScorer_PickAddress 选出评分最高的候选
func TestScorer_PickAddress(t *testing.T) {
	book := &fakeBook{}
	pool := newFakePool()
	s, clk := newTestScorer(t, book, pool, nil)
	now := clk.Now()

	light := testAddr(now, 1, types.ServiceLight)
	full := testAddr(now, 2, types.ServiceFull)
	failed := testAddr(now, 3, types.ServiceFull)
	book.entries = []addrbook.Entry{
		{Address: light, State: addrbook.StateNew},
		{Address: full, State: addrbook.StateNew},
		{Address: failed, State: addrbook.StateClosed, Reason: types.CloseConnectionFailed, FailedAttempts: 2},
	}

	addr, ok := s.PickAddress()
	require.True(t, ok)
	assert.Equal(t, full.PeerID, addr.PeerID)

	// 已连接的节点不再被选中
	pool.add(connmgr.Record{Address: full, Direction: types.DirOutbound, EstablishedAt: now})
	addr, ok = s.PickAddress()
	require.True(t, ok)
	assert.Equal(t, light.PeerID, addr.PeerID)
	t.Log("✅ 候选选择正确")
}

// TestScorer_PickAddressTieBreak 同分时取最早收录的地址
func TestScorer_PickAddressTieBreak(t *testing.T) {
	book := &fakeBook{}
	s, clk := newTestScorer(t, book, newFakePool(), nil)
	now := clk.Now()

	for i := 1; i <= 3; i++ {
		book.entries = append(book.entries, addrbook.Entry{Address: testAddr(now, i, types.ServiceFull)})
	}

	addr, ok := s.PickAddress()
	require.True(t, ok)
	assert.Equal(t, testKey(1).PeerID(), addr.PeerID)
	t.Log("✅ 同分按收录顺序")
}

// TestScorer_PickAddressExclusions 排除不可拨号的候选
func TestScorer_PickAddressExclusions(t *testing.T) {
	book := &fakeBook{}
	s, clk := newTestScorer(t, book, newFakePool(), nil)
	now := clk.Now()

	dumb := types.NewPeerAddress(types.ProtocolDumb, "", 0, types.ServiceFull, testKey(1))
	dumb.Timestamp = now
	aged := testAddr(now.Add(-time.Hour), 2, types.ServiceFull)
	book.entries = []addrbook.Entry{
		{Address: dumb},
		{Address: aged},
		{Address: testAddr(now, 3, types.ServiceFull), State: addrbook.StateConnecting},
		{Address: testAddr(now, 4, types.ServiceFull), State: addrbook.StateClosed, BannedUntil: now.Add(time.Minute)},
	}

	_, ok := s.PickAddress()
	assert.False(t, ok)

	rejecting, err := New(DefaultConfig(), book, newFakePool(), clk,
		WithAddressScoreFunc(func(addrbook.Entry, time.Time) float64 { return -1 }))
	require.NoError(t, err)
	book.entries = []addrbook.Entry{{Address: testAddr(now, 5, types.ServiceFull)}}
	_, ok = rejecting.PickAddress()
	assert.False(t, ok, "negative score excludes")
	t.Log("✅ 排除规则正确")
}

// TestScorer_PickAddressSkipsUndialable 传输层无法拨号的协议不参与挑选
func TestScorer_PickAddressSkipsUndialable(t *testing.T) {
	book := &fakeBook{}
	pool := newFakePool()
	pool.undialable = map[types.Protocol]bool{types.ProtocolWss: true}
	s, clk := newTestScorer(t, book, pool, nil)
	now := clk.Now()

	ws := types.NewPeerAddress(types.ProtocolWs, "w.example.org", 8080, types.ServiceFull, testKey(2))
	ws.Timestamp = now
	book.entries = []addrbook.Entry{
		{Address: testAddr(now, 1, types.ServiceFull), Source: addrbook.SourceSeed},
		{Address: ws},
	}

	addr, ok := s.PickAddress()
	require.True(t, ok)
	assert.Equal(t, types.ProtocolWs, addr.Protocol)

	// 全部不可拨号时没有候选
	pool.mu.Lock()
	pool.undialable[types.ProtocolWs] = true
	pool.mu.Unlock()
	_, ok = s.PickAddress()
	assert.False(t, ok)
	t.Log("✅ 跳过不可拨号协议")
}

// TestDefaultAddressScore 默认地址评分
func TestDefaultAddressScore(t *testing.T) {
	score := DefaultAddressScore(4)
	now := time.Unix(1_700_000_000, 0)

	seed := types.NewSeedAddress("seed.example.org", 8443, "b70d0c3e6cdf95485cac0688b086597a5139bc4237173023c83411331ef90507")
	assert.InDelta(t, 1.0, score(addrbook.Entry{Address: seed, Source: addrbook.SourceSeed}, now), 1e-9)

	exchanged := testAddr(now.Add(-15*time.Minute), 1, types.ServiceFull)
	exchanged.Distance = 1
	assert.InDelta(t, 0.79, score(addrbook.Entry{Address: exchanged}, now), 1e-9)

	withHistory := addrbook.Entry{Address: exchanged, Score: 0.2, HasScore: true}
	assert.InDelta(t, 0.495, score(withHistory, now), 1e-9)

	failed := addrbook.Entry{Address: seed, State: addrbook.StateClosed, Reason: types.CloseConnectionFailed, FailedAttempts: 1}
	assert.InDelta(t, 0.5, score(failed, now), 1e-9)

	assert.Less(t, score(addrbook.Entry{Address: seed, State: addrbook.StateConnected}, now), 0.0)
	t.Log("✅ 地址评分正确")
}

// ============================================================================
//                              节点集合
// ============================================================================

// TestScorer_PeerSet 节点集合判定
func TestScorer_PeerSet(t *testing.T) {
	pool := newFakePool()
	s, clk := newTestScorer(t, &fakeBook{}, pool, func(c *Config) {
		c.PeerCountTarget = 3
		c.GoodPeerCountMin = 2
	})
	now := clk.Now()

	assert.True(t, s.NeedsMorePeers())
	assert.True(t, s.NeedsGoodPeers())
	assert.False(t, s.IsGoodPeerSet())

	pool.add(connmgr.Record{Address: testAddr(now, 1, types.ServiceFull)})
	pool.add(connmgr.Record{Address: testAddr(now, 2, types.ServiceLight)})
	assert.True(t, s.NeedsGoodPeers(), "only one full node")

	id := pool.add(connmgr.Record{Address: testAddr(now, 3, types.ServiceFull)})
	assert.False(t, s.NeedsMorePeers())
	assert.False(t, s.NeedsGoodPeers())
	assert.True(t, s.IsGoodPeerSet())

	// 平均分过低
	pool.SetScore(id, 0.1)
	assert.True(t, s.NeedsGoodPeers())
	t.Log("✅ 节点集合判定正确")
}

// TestIsGoodPeer 优质节点判定
func TestIsGoodPeer(t *testing.T) {
	now := time.Unix(0, 0)
	assert.True(t, IsGoodPeer(testAddr(now, 1, types.ServiceFull)))
	assert.False(t, IsGoodPeer(testAddr(now, 1, types.ServiceLight)))

	rtc := types.NewPeerAddress(types.ProtocolRtc, "", 0, types.ServiceFull, testKey(1))
	assert.False(t, IsGoodPeer(rtc))
}

// ============================================================================
//                              连接评分与回收
// ============================================================================

// TestScorer_ScoreConnections 保护期内的连接不评分
func TestScorer_ScoreConnections(t *testing.T) {
	book := &fakeBook{}
	pool := newFakePool()
	s, clk := newTestScorer(t, book, pool, nil)
	now := clk.Now()

	oldAddr := testAddr(now, 1, types.ServiceFull)
	oldID := pool.add(connmgr.Record{Address: oldAddr, Direction: types.DirOutbound, EstablishedAt: now.Add(-2 * time.Hour)})
	newID := pool.add(connmgr.Record{Address: testAddr(now, 2, types.ServiceFull), EstablishedAt: now.Add(-time.Minute)})

	assert.Equal(t, 1, s.ScoreConnections())

	recs := pool.Established()
	byID := map[uuid.UUID]connmgr.Record{}
	for _, r := range recs {
		byID[r.ID] = r
	}
	require.True(t, byID[oldID].Scored)
	assert.InDelta(t, 0.9, byID[oldID].Score, 1e-9)
	assert.False(t, byID[newID].Scored)
	assert.InDelta(t, 0.9, book.history[oldAddr.PeerID], 1e-9)

	last, n := s.LastRun()
	assert.Equal(t, now, last)
	assert.Equal(t, 1, n)
	t.Log("✅ 连接评分正确")
}

// TestScorer_RecycleConnections 回收评分最低的连接
func TestScorer_RecycleConnections(t *testing.T) {
	pool := newFakePool()
	s, clk := newTestScorer(t, &fakeBook{}, pool, nil)
	now := clk.Now()

	assert.Equal(t, 0, s.RecycleConnections(5, types.ClosePeerConnectionRecycled, "recycle"))
	_, ok := s.LowestConnectionScore()
	assert.False(t, ok)

	scores := []float64{0.7, 0.2, 0.9, 0.4}
	ids := make([]uuid.UUID, len(scores))
	for i, sc := range scores {
		ids[i] = pool.add(connmgr.Record{Address: testAddr(now, i+1, types.ServiceFull)})
		pool.SetScore(ids[i], sc)
	}
	unscored := pool.add(connmgr.Record{Address: testAddr(now, 9, types.ServiceFull)})

	lowest, ok := s.LowestConnectionScore()
	require.True(t, ok)
	assert.InDelta(t, 0.2, lowest, 1e-9)

	assert.Equal(t, 2, s.RecycleConnections(2, types.ClosePeerConnectionRecycled, "recycle"))
	assert.Equal(t, types.ClosePeerConnectionRecycled, pool.closed[ids[1]])
	assert.Contains(t, pool.closed, ids[3])

	assert.Equal(t, 2, s.RecycleConnections(100, types.ClosePeerConnectionRecycled, "recycle"))
	assert.NotContains(t, pool.closed, unscored)
	assert.Equal(t, 1, pool.PeerCount())

	assert.Equal(t, 0, s.RecycleConnections(0, types.ClosePeerConnectionRecycled, "recycle"))
	t.Log("✅ 连接回收正确")
}

// TestConfig_Validate 测试配置验证
func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.AcceptableScore = 2
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	_, err := New(DefaultConfig(), nil, newFakePool(), nil)
	assert.ErrorIs(t, err, ErrNilDependency)
}
