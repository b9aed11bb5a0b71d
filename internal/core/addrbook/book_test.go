package addrbook

import (
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-chainnet/pkg/types"
)

func testKey(i int) types.PublicKey {
	var pk types.PublicKey
	pk[0] = byte(i)
	pk[1] = byte(i >> 8)
	pk[31] = 0xAA
	return pk
}

func testAddr(clk clock.Clock, i int) types.PeerAddress {
	addr := types.NewPeerAddress(types.ProtocolWss, fmt.Sprintf("n%d.example.org", i), 8443, types.ServiceFull, testKey(i))
	addr.Timestamp = clk.Now()
	return addr
}

func testSeed(i int) types.PeerAddress {
	return types.NewPeerAddress(types.ProtocolWss, fmt.Sprintf("seed%d.example.org", i), 8443, types.ServiceFull, testKey(1000+i))
}

func newTestBook(t *testing.T, mutate func(*Config)) (*Book, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	b, err := New(cfg, clk, nil)
	require.NoError(t, err)
	return b, clk
}

// TestBook_Seeded 收录足够种子后才视为已播种
func TestBook_Seeded(t *testing.T) {
	b, _ := newTestBook(t, func(c *Config) { c.MinSeeds = 2 })
	assert.False(t, b.Seeded())

	assert.Equal(t, 1, b.Seed([]types.PeerAddress{testSeed(1)}))
	assert.False(t, b.Seeded())

	assert.Equal(t, 1, b.Seed([]types.PeerAddress{testSeed(2), testSeed(2)}))
	assert.True(t, b.Seeded())

	e, ok := b.Get(testSeed(1).Locator())
	require.True(t, ok)
	assert.True(t, e.IsSeed())
	assert.True(t, e.Address.IsSeed())
	t.Log("✅ 播种判定正确")
}

// TestBook_AddExchange 交换地址跳数加一并受限
func TestBook_AddExchange(t *testing.T) {
	b, clk := newTestBook(t, nil)

	near := testAddr(clk, 1)
	near.Distance = 3
	far := testAddr(clk, 2)
	far.Distance = 4

	assert.Equal(t, 1, b.Add(SourceExchange, near, far))

	e, ok := b.Get(near.Locator())
	require.True(t, ok)
	assert.Equal(t, uint8(4), e.Address.Distance)
	assert.Equal(t, SourceExchange, e.Source)

	_, ok = b.Get(far.Locator())
	assert.False(t, ok)
}

// TestBook_AddRejects 拒绝本机地址、无效地址和过期地址
func TestBook_AddRejects(t *testing.T) {
	clk := clock.NewMock()
	own := testAddr(clk, 1)
	cfg := DefaultConfig()
	cfg.OwnAddress = &own
	b, err := New(cfg, clk, nil)
	require.NoError(t, err)

	sameID := own
	sameID.Host = "other.example.org"

	invalid := testAddr(clk, 2)
	invalid.PeerID = types.EmptyPeerID

	clk.Add(time.Hour)
	stale := testAddr(clk, 3)
	stale.Timestamp = clk.Now().Add(-31 * time.Minute)

	assert.Equal(t, 0, b.Add(SourceConfig, own, sameID, invalid, stale))
	assert.Equal(t, 0, b.Len())
}

// TestBook_UpdateNewer 较新的时间戳更新已有条目
func TestBook_UpdateNewer(t *testing.T) {
	b, clk := newTestBook(t, nil)
	addr := testAddr(clk, 1)
	require.Equal(t, 1, b.Add(SourceExchange, addr))

	assert.Equal(t, 0, b.Add(SourceExchange, addr), "same timestamp is not an update")

	clk.Add(time.Minute)
	newer := testAddr(clk, 1)
	newer.Services = types.ServiceLight
	assert.Equal(t, 1, b.Add(SourceExchange, newer))

	e, _ := b.Get(addr.Locator())
	assert.Equal(t, types.ServiceLight, e.Address.Services)
	assert.Equal(t, 1, b.Len())

	// 连接中的条目不被覆盖
	b.Connecting(addr)
	clk.Add(time.Minute)
	assert.Equal(t, 0, b.Add(SourceExchange, testAddr(clk, 1)))
}

// TestBook_CloseKeepsFirstReason 重复关闭保留第一次的原因
func TestBook_CloseKeepsFirstReason(t *testing.T) {
	b, clk := newTestBook(t, nil)
	addr := testAddr(clk, 1)
	b.Add(SourceConfig, addr)
	b.Connecting(addr)

	assert.True(t, b.Close(nil, addr, types.ClosePeerConnectionRecycled))
	assert.False(t, b.Close(nil, addr, types.CloseProtocolViolation))

	e, _ := b.Get(addr.Locator())
	assert.Equal(t, StateClosed, e.State)
	assert.Equal(t, types.ClosePeerConnectionRecycled, e.Reason)
	assert.False(t, e.Banned(clk.Now()))

	// 重新连接后可以再次关闭
	b.Connecting(addr)
	assert.True(t, b.Close(nil, addr, types.CloseManualPeerDisconnect))
	e, _ = b.Get(addr.Locator())
	assert.Equal(t, types.CloseManualPeerDisconnect, e.Reason)

	assert.False(t, b.Close(nil, testAddr(clk, 99), types.CloseConnectionLost), "unknown address")
	assert.False(t, b.Close(nil, addr, types.CloseReason(0)), "invalid reason")
	t.Log("✅ 关闭幂等")
}

// TestBook_CloseByPeerID 按节点标识关闭全部地址
func TestBook_CloseByPeerID(t *testing.T) {
	b, clk := newTestBook(t, nil)
	a1 := testAddr(clk, 1)
	a2 := a1
	a2.Host = "alt.example.org"
	b.Add(SourceConfig, a1, a2)
	require.Len(t, b.Lookup(a1.PeerID), 2)

	id := a1.PeerID
	assert.True(t, b.Close(&id, a1, types.CloseManualNetworkDisconnect))

	for _, e := range b.Lookup(id) {
		assert.Equal(t, StateClosed, e.State)
		assert.Equal(t, types.CloseManualNetworkDisconnect, e.Reason)
	}
}

// TestBook_FailedAttempts 失败次数达到上限后移除非种子地址
func TestBook_FailedAttempts(t *testing.T) {
	b, clk := newTestBook(t, nil)
	addr := testAddr(clk, 1)
	seed := testSeed(1)
	b.Seed([]types.PeerAddress{seed})
	b.Add(SourceConfig, addr)

	for i := 0; i < 3; i++ {
		b.Connecting(addr)
		b.Close(nil, addr, types.CloseConnectionFailed)
		b.Connecting(seed)
		b.Close(nil, seed, types.CloseConnectionFailed)
	}

	_, ok := b.Get(addr.Locator())
	assert.False(t, ok, "non-seed removed after max failures")

	e, ok := b.Get(seed.Locator())
	require.True(t, ok, "seed never removed")
	assert.Equal(t, 3, e.FailedAttempts)

	// 成功连接重置失败计数
	b.Connecting(seed)
	b.Established(seed)
	e, _ = b.Get(seed.Locator())
	assert.Equal(t, 0, e.FailedAttempts)
	assert.Equal(t, StateConnected, e.State)
}

// TestBook_Ban 违规关闭后临时封禁
func TestBook_Ban(t *testing.T) {
	b, clk := newTestBook(t, nil)
	addr := testAddr(clk, 1)
	b.Add(SourceConfig, addr)

	b.Close(nil, addr, types.CloseInvalidHandshake)
	_, ok := b.PickCandidateNotConnected()
	assert.False(t, ok)

	clk.Add(11 * time.Minute)
	got, ok := b.PickCandidateNotConnected()
	require.True(t, ok)
	assert.Equal(t, addr.Locator(), got.Locator())
}

// TestBook_PickOrder 按收录顺序挑选可拨号地址
func TestBook_PickOrder(t *testing.T) {
	b, clk := newTestBook(t, nil)
	a, bb, c := testAddr(clk, 1), testAddr(clk, 2), testAddr(clk, 3)
	alias := a
	alias.Host = "alias.example.org"
	dumb := types.NewPeerAddress(types.ProtocolDumb, "", 0, types.ServiceFull, testKey(4))
	dumb.Timestamp = clk.Now()

	b.Add(SourceConfig, dumb, a, bb, c, alias)

	got, ok := b.PickCandidateNotConnected()
	require.True(t, ok)
	assert.Equal(t, a.Locator(), got.Locator())

	// a 连接中，其别名地址也不可选
	b.Connecting(a)
	got, _ = b.PickCandidateNotConnected()
	assert.Equal(t, bb.Locator(), got.Locator())

	b.Connecting(bb)
	b.Established(bb)
	got, _ = b.PickCandidateNotConnected()
	assert.Equal(t, c.Locator(), got.Locator())

	b.Connecting(c)
	_, ok = b.PickCandidateNotConnected()
	assert.False(t, ok)

	cands := b.Candidates()
	require.Len(t, cands, 5)
	assert.Equal(t, dumb.Locator(), cands[0].Address.Locator())
	assert.Equal(t, alias.Locator(), cands[4].Address.Locator())
}

// TestBook_Eviction 满时淘汰最早的空闲非种子地址
func TestBook_Eviction(t *testing.T) {
	b, clk := newTestBook(t, func(c *Config) { c.MaxSize = 3 })
	seed := testSeed(1)
	a, bb, c, d := testAddr(clk, 1), testAddr(clk, 2), testAddr(clk, 3), testAddr(clk, 4)

	b.Seed([]types.PeerAddress{seed})
	b.Add(SourceConfig, a, bb)
	require.Equal(t, 3, b.Len())

	assert.Equal(t, 1, b.Add(SourceConfig, c))
	_, ok := b.Get(a.Locator())
	assert.False(t, ok, "oldest idle evicted")

	b.Connecting(bb)
	assert.Equal(t, 1, b.Add(SourceConfig, d))
	_, ok = b.Get(c.Locator())
	assert.False(t, ok)
	_, ok = b.Get(bb.Locator())
	assert.True(t, ok, "connecting entry kept")

	b.Connecting(d)
	assert.Equal(t, 0, b.Add(SourceConfig, testAddr(clk, 5)), "nothing evictable")
	assert.Equal(t, 3, b.Len())
}

// TestBook_Housekeeping 清理过期的空闲地址
func TestBook_Housekeeping(t *testing.T) {
	b, clk := newTestBook(t, nil)
	seed := testSeed(1)
	idle, live := testAddr(clk, 1), testAddr(clk, 2)
	b.Seed([]types.PeerAddress{seed})
	b.Add(SourceConfig, idle, live)
	b.Connecting(live)
	b.Established(live)

	assert.Equal(t, 0, b.Housekeeping())

	clk.Add(31 * time.Minute)
	assert.Equal(t, 1, b.Housekeeping())
	assert.Equal(t, 2, b.Len())
}

// TestBook_RecordScore 记录历史评分
func TestBook_RecordScore(t *testing.T) {
	b, clk := newTestBook(t, nil)
	addr := testAddr(clk, 1)
	b.Add(SourceConfig, addr)

	b.RecordScore(addr.PeerID, 0.8)
	e, _ := b.Get(addr.Locator())
	assert.True(t, e.HasScore)
	assert.InDelta(t, 0.8, e.Score, 1e-9)
}
