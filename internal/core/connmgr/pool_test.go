package connmgr

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-chainnet/internal/core/addrbook"
	"github.com/dep2p/go-chainnet/internal/core/eventbus"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// ============================================================================
//                              测试辅助
// ============================================================================

type fakeConn struct {
	mu      sync.Mutex
	closed  bool
	reason  types.CloseReason
	latency time.Duration
}

func (c *fakeConn) Close(reason types.CloseReason, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.reason = reason
	}
	return nil
}

func (c *fakeConn) Latency() time.Duration {
	return c.latency
}

func (c *fakeConn) closedWith() (bool, types.CloseReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.reason
}

type fakeTransport struct {
	mu    sync.Mutex
	fail  map[string]error
	gate  chan struct{}
	conns map[string]*fakeConn
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		fail:  make(map[string]error),
		conns: make(map[string]*fakeConn),
	}
}

func (t *fakeTransport) CanDial(p types.Protocol) bool {
	return p == types.ProtocolWs || p == types.ProtocolWss
}

func (t *fakeTransport) Dial(ctx context.Context, addr types.PeerAddress) (Conn, error) {
	t.mu.Lock()
	gate := t.gate
	t.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.fail[addr.Locator()]; err != nil {
		return nil, err
	}
	c := &fakeConn{latency: 20 * time.Millisecond}
	t.conns[addr.Locator()] = c
	return c, nil
}

func (t *fakeTransport) hold() {
	t.mu.Lock()
	t.gate = make(chan struct{})
	t.mu.Unlock()
}

func (t *fakeTransport) release() {
	t.mu.Lock()
	close(t.gate)
	t.gate = nil
	t.mu.Unlock()
}

func (t *fakeTransport) conn(addr types.PeerAddress) *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[addr.Locator()]
}

func testKey(i int) types.PublicKey {
	var pk types.PublicKey
	pk[0] = byte(i)
	pk[1] = byte(i >> 8)
	pk[31] = 0x5C
	return pk
}

func testAddr(clk clock.Clock, i int) types.PeerAddress {
	addr := types.NewPeerAddress(types.ProtocolWss, fmt.Sprintf("p%d.example.org", i), 8443, types.ServiceFull, testKey(i))
	addr.Timestamp = clk.Now()
	return addr
}

type poolFixture struct {
	pool  *Pool
	book  *addrbook.Book
	bus   *eventbus.Bus
	tr    *fakeTransport
	clock *clock.Mock
}

func newPoolFixture(t *testing.T, mutate func(*Config)) *poolFixture {
	t.Helper()

	clk := clock.NewMock()
	book, err := addrbook.New(addrbook.DefaultConfig(), clk, nil)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Gater.InboundRate = 0
	if mutate != nil {
		mutate(&cfg)
	}

	bus := eventbus.NewBus()
	tr := newFakeTransport()
	pool, err := NewPool(cfg, Deps{Book: book, Bus: bus, Transport: tr, Clock: clk})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = pool.Shutdown()
		_ = bus.Close()
	})
	return &poolFixture{pool: pool, book: book, bus: bus, tr: tr, clock: clk}
}

func (f *poolFixture) subscribe(t *testing.T, evt interface{}) *eventbus.Subscription {
	t.Helper()
	sub, err := f.bus.Subscribe(evt)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func recvEvent(t *testing.T, sub *eventbus.Subscription) interface{} {
	t.Helper()
	select {
	case evt := <-sub.Out():
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("等待事件超时")
		return nil
	}
}

func (f *poolFixture) waitPeers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.pool.PeerCount() == n
	}, 2*time.Second, 5*time.Millisecond)
}

// ============================================================================
//                              出站
// ============================================================================

// TestPool_ConnectingCountMax 并发拨号数不超过上限
func TestPool_ConnectingCountMax(t *testing.T) {
	f := newPoolFixture(t, nil)
	f.tr.hold()

	assert.True(t, f.pool.ConnectOutbound(testAddr(f.clock, 1)))
	assert.True(t, f.pool.ConnectOutbound(testAddr(f.clock, 2)))
	assert.False(t, f.pool.ConnectOutbound(testAddr(f.clock, 3)))
	assert.Equal(t, 2, f.pool.ConnectingCount())

	e, ok := f.book.Get(testAddr(f.clock, 1).Locator())
	require.True(t, ok)
	assert.Equal(t, addrbook.StateConnecting, e.State)

	f.tr.release()
	f.waitPeers(t, 2)
	assert.Equal(t, 0, f.pool.ConnectingCount())
	assert.Equal(t, 2, f.pool.OutboundCount())

	e, _ = f.book.Get(testAddr(f.clock, 1).Locator())
	assert.Equal(t, addrbook.StateConnected, e.State)
	t.Log("✅ 并发拨号上限生效")
}

// TestPool_RejectKnownPeer 节点已在拨号中或已连接时拒绝再次拨号
func TestPool_RejectKnownPeer(t *testing.T) {
	f := newPoolFixture(t, nil)
	f.tr.hold()

	addr := testAddr(f.clock, 1)
	require.True(t, f.pool.ConnectOutbound(addr))
	assert.False(t, f.pool.ConnectOutbound(addr))
	assert.True(t, f.pool.HasPeer(addr.PeerID))

	f.tr.release()
	f.waitPeers(t, 1)
	assert.False(t, f.pool.ConnectOutbound(addr))
	t.Log("✅ 重复拨号被拒绝")
}

// TestPool_DialFailure 拨号失败异步报告并关闭地址
func TestPool_DialFailure(t *testing.T) {
	f := newPoolFixture(t, nil)
	sub := f.subscribe(t, new(types.EvtConnectFailed))

	addr := testAddr(f.clock, 1)
	dialErr := errors.New("connection refused")
	f.tr.fail[addr.Locator()] = dialErr

	require.True(t, f.pool.ConnectOutbound(addr))

	evt, ok := recvEvent(t, sub).(types.EvtConnectFailed)
	require.True(t, ok)
	assert.Equal(t, addr.PeerID, evt.Address.PeerID)
	assert.ErrorIs(t, evt.Err, dialErr)

	assert.Equal(t, 0, f.pool.ConnectingCount())
	assert.False(t, f.pool.HasPeer(addr.PeerID))

	e, ok := f.book.Get(addr.Locator())
	require.True(t, ok)
	assert.Equal(t, addrbook.StateClosed, e.State)
	assert.Equal(t, types.CloseConnectionFailed, e.Reason)
	assert.Equal(t, 1, e.FailedAttempts)
	t.Log("✅ 拨号失败处理正确")
}

// TestPool_PeerCountMax 连接数达到上限后拒绝拨号
func TestPool_PeerCountMax(t *testing.T) {
	f := newPoolFixture(t, func(c *Config) { c.PeerCountMax = 1 })

	require.True(t, f.pool.ConnectOutbound(testAddr(f.clock, 1)))
	f.waitPeers(t, 1)
	assert.False(t, f.pool.ConnectOutbound(testAddr(f.clock, 2)))
	t.Log("✅ 连接数上限生效")
}

// TestPool_UndialableProtocol 无法拨号的协议被同步拒绝
func TestPool_UndialableProtocol(t *testing.T) {
	f := newPoolFixture(t, nil)

	addr := types.NewPeerAddress(types.ProtocolRtc, "", 0, types.ServiceFull, testKey(9))
	addr.Timestamp = f.clock.Now()
	assert.False(t, f.pool.ConnectOutbound(addr))
	assert.Equal(t, 0, f.pool.ConnectingCount())
	t.Log("✅ 不支持的协议被拒绝")
}

// ============================================================================
//                              入站
// ============================================================================

// TestPool_Inbound 入站握手完成后登记为已连接
func TestPool_Inbound(t *testing.T) {
	f := newPoolFixture(t, nil)
	sub := f.subscribe(t, new(types.EvtPeerConnected))

	conn := &fakeConn{}
	id, err := f.pool.BeginInbound(conn, netip.MustParseAddr("203.0.113.7"))
	require.NoError(t, err)
	assert.Equal(t, 0, f.pool.PeerCount())

	addr := testAddr(f.clock, 1)
	require.NoError(t, f.pool.CompleteInbound(id, addr))
	assert.Equal(t, 1, f.pool.PeerCount())
	assert.Equal(t, 0, f.pool.OutboundCount())

	evt, ok := recvEvent(t, sub).(types.EvtPeerConnected)
	require.True(t, ok)
	assert.Equal(t, types.DirInbound, evt.Direction)
	assert.Equal(t, id, evt.ConnID)

	e, ok := f.book.Get(addr.Locator())
	require.True(t, ok)
	assert.Equal(t, addrbook.SourceInbound, e.Source)
	assert.Equal(t, addrbook.StateConnected, e.State)

	rec, ok := f.pool.Get(id)
	require.True(t, ok)
	assert.Equal(t, types.ConnEstablished, rec.State)
	t.Log("✅ 入站连接登记正确")
}

// TestPool_InboundDuplicate 已连接节点的入站连接被关闭
func TestPool_InboundDuplicate(t *testing.T) {
	f := newPoolFixture(t, nil)

	addr := testAddr(f.clock, 1)
	require.True(t, f.pool.ConnectOutbound(addr))
	f.waitPeers(t, 1)

	conn := &fakeConn{}
	id, err := f.pool.BeginInbound(conn, netip.MustParseAddr("203.0.113.8"))
	require.NoError(t, err)

	err = f.pool.CompleteInbound(id, addr)
	assert.ErrorIs(t, err, ErrDuplicateConnection)

	closed, reason := conn.closedWith()
	assert.True(t, closed)
	assert.Equal(t, types.CloseDuplicateConnection, reason)
	assert.Equal(t, 1, f.pool.PeerCount())

	e, _ := f.book.Get(addr.Locator())
	assert.Equal(t, addrbook.StateConnected, e.State)
	t.Log("✅ 重复入站连接被拒绝")
}

// TestPool_InboundInvalidHandshake 非法握手关闭连接并封禁 IP
func TestPool_InboundInvalidHandshake(t *testing.T) {
	f := newPoolFixture(t, nil)

	remote := netip.MustParseAddr("198.51.100.1")
	conn := &fakeConn{}
	id, err := f.pool.BeginInbound(conn, remote)
	require.NoError(t, err)

	bad := testAddr(f.clock, 1)
	bad.PeerID = testKey(2).PeerID()
	require.Error(t, f.pool.CompleteInbound(id, bad))

	closed, reason := conn.closedWith()
	assert.True(t, closed)
	assert.Equal(t, types.CloseInvalidHandshake, reason)
	assert.True(t, f.pool.Gater().IsIPBlocked(remote))

	_, err = f.pool.BeginInbound(&fakeConn{}, remote)
	assert.ErrorIs(t, err, ErrPeerBlocked)
	t.Log("✅ 非法握手处理正确")
}

// ============================================================================
//                              关闭
// ============================================================================

// TestPool_CloseIdempotent 关闭幂等并发布事件
func TestPool_CloseIdempotent(t *testing.T) {
	f := newPoolFixture(t, nil)
	sub := f.subscribe(t, new(types.EvtPeerClosed))

	addr := testAddr(f.clock, 1)
	require.True(t, f.pool.ConnectOutbound(addr))
	f.waitPeers(t, 1)

	recs := f.pool.Established()
	require.Len(t, recs, 1)
	id := recs[0].ID

	latency, ok := recs[0].Latency()
	assert.True(t, ok)
	assert.Equal(t, 20*time.Millisecond, latency)

	assert.True(t, f.pool.Close(id, types.ClosePingTimeout, "ping timeout"))
	assert.False(t, f.pool.Close(id, types.CloseConnectionLost, "again"))
	assert.Equal(t, 0, f.pool.PeerCount())
	assert.False(t, f.pool.IsEstablished(id))

	evt, ok := recvEvent(t, sub).(types.EvtPeerClosed)
	require.True(t, ok)
	assert.Equal(t, types.ClosePingTimeout, evt.Reason)

	closed, reason := f.tr.conn(addr).closedWith()
	assert.True(t, closed)
	assert.Equal(t, types.ClosePingTimeout, reason)

	e, _ := f.book.Get(addr.Locator())
	assert.Equal(t, addrbook.StateClosed, e.State)
	assert.Equal(t, types.ClosePingTimeout, e.Reason)
	t.Log("✅ 关闭幂等")
}

// TestPool_BanningClose 封禁类原因封禁节点
func TestPool_BanningClose(t *testing.T) {
	f := newPoolFixture(t, nil)

	addr := testAddr(f.clock, 1)
	require.True(t, f.pool.ConnectOutbound(addr))
	f.waitPeers(t, 1)

	id := f.pool.Established()[0].ID
	require.True(t, f.pool.Close(id, types.CloseProtocolViolation, "bad message"))

	assert.True(t, f.pool.Gater().IsBlocked(addr.PeerID))
	assert.False(t, f.pool.ConnectOutbound(addr))

	e, _ := f.book.Get(addr.Locator())
	assert.True(t, e.Banned(f.clock.Now()))
	t.Log("✅ 违规节点被封禁")
}

// TestPool_ClosePending 拨号中的连接被关闭后结果被丢弃
func TestPool_ClosePending(t *testing.T) {
	f := newPoolFixture(t, nil)
	f.tr.hold()

	addr := testAddr(f.clock, 1)
	require.True(t, f.pool.ConnectOutbound(addr))
	f.pool.mu.RLock()
	id := f.pool.byPeer[addr.PeerID]
	f.pool.mu.RUnlock()
	require.NotEqual(t, uuid.Nil, id)

	require.True(t, f.pool.Close(id, types.CloseManualPeerDisconnect, "cancel"))
	assert.Equal(t, 0, f.pool.ConnectingCount())

	f.tr.release()
	require.Eventually(t, func() bool {
		c := f.tr.conn(addr)
		if c == nil {
			return false
		}
		closed, _ := c.closedWith()
		return closed
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, f.pool.PeerCount())
	t.Log("✅ 取消的拨号不会建立连接")
}

// TestPool_Shutdown 关闭连接池断开全部连接
func TestPool_Shutdown(t *testing.T) {
	f := newPoolFixture(t, nil)

	addr := testAddr(f.clock, 1)
	require.True(t, f.pool.ConnectOutbound(addr))
	f.waitPeers(t, 1)

	f.tr.hold()
	require.True(t, f.pool.ConnectOutbound(testAddr(f.clock, 2)))

	require.NoError(t, f.pool.Shutdown())
	assert.Equal(t, 0, f.pool.PeerCount())
	assert.Equal(t, 0, f.pool.ConnectingCount())

	_, reason := f.tr.conn(addr).closedWith()
	assert.Equal(t, types.CloseManualNetworkDisconnect, reason)

	assert.False(t, f.pool.ConnectOutbound(testAddr(f.clock, 3)))
	require.NoError(t, f.pool.Shutdown())
	t.Log("✅ 连接池关闭")
}

// TestPool_Score 评分只写入已建立的连接
func TestPool_Score(t *testing.T) {
	f := newPoolFixture(t, nil)

	require.True(t, f.pool.ConnectOutbound(testAddr(f.clock, 1)))
	f.waitPeers(t, 1)

	id := f.pool.Established()[0].ID
	assert.True(t, f.pool.SetScore(id, 0.75))
	rec, _ := f.pool.Get(id)
	assert.True(t, rec.Scored)
	assert.InDelta(t, 0.75, rec.Score, 1e-9)

	f.pool.SetAllowInboundExchange(true)
	assert.True(t, f.pool.AllowInboundExchange())
	t.Log("✅ 评分写入正确")
}

// monitorConn 可报告意外断开的连接
type monitorConn struct {
	fakeConn
	done     chan struct{}
	lost     types.CloseReason
	lostOnce sync.Once
}

func newMonitorConn() *monitorConn {
	return &monitorConn{done: make(chan struct{})}
}

func (c *monitorConn) Done() <-chan struct{} {
	return c.done
}

func (c *monitorConn) LostReason() (types.CloseReason, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lost, "lost"
}

func (c *monitorConn) drop(reason types.CloseReason) {
	c.lostOnce.Do(func() {
		c.mu.Lock()
		c.lost = reason
		c.mu.Unlock()
		close(c.done)
	})
}

// TestPool_ConnectionLost 传输层断开后连接池关闭记录
func TestPool_ConnectionLost(t *testing.T) {
	f := newPoolFixture(t, nil)
	sub := f.subscribe(t, new(types.EvtPeerClosed))

	conn := newMonitorConn()
	id, err := f.pool.BeginInbound(conn, netip.MustParseAddr("203.0.113.9"))
	require.NoError(t, err)
	addr := testAddr(f.clock, 1)
	require.NoError(t, f.pool.CompleteInbound(id, addr))

	conn.drop(types.ClosePingTimeout)

	evt, ok := recvEvent(t, sub).(types.EvtPeerClosed)
	require.True(t, ok)
	assert.Equal(t, id, evt.ConnID)
	assert.Equal(t, types.ClosePingTimeout, evt.Reason)
	assert.Equal(t, 0, f.pool.PeerCount())

	e, ok := f.book.Get(addr.Locator())
	require.True(t, ok)
	assert.Equal(t, addrbook.StateClosed, e.State)
	assert.Equal(t, types.ClosePingTimeout, e.Reason)
	assert.Equal(t, 1, e.FailedAttempts)
	t.Log("✅ 意外断开按传输层原因关闭")
}

// TestPool_LocalCloseNotReported 本端关闭不会二次处理
func TestPool_LocalCloseNotReported(t *testing.T) {
	f := newPoolFixture(t, nil)

	conn := newMonitorConn()
	id, err := f.pool.BeginInbound(conn, netip.MustParseAddr("203.0.113.10"))
	require.NoError(t, err)
	require.NoError(t, f.pool.CompleteInbound(id, testAddr(f.clock, 1)))

	require.True(t, f.pool.Close(id, types.ClosePeerConnectionRecycled, "recycled"))
	conn.drop(0)

	closed, reason := conn.closedWith()
	assert.True(t, closed)
	assert.Equal(t, types.ClosePeerConnectionRecycled, reason)
	assert.False(t, f.pool.Close(id, types.CloseConnectionLost, "late"))
	t.Log("✅ 本端关闭后监视协程静默退出")
}
