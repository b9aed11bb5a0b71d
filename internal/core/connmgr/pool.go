package connmgr

import (
	"context"
	"net/netip"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/dep2p/go-chainnet/internal/core/addrbook"
	"github.com/dep2p/go-chainnet/internal/core/eventbus"
	"github.com/dep2p/go-chainnet/internal/core/metrics"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
	"github.com/dep2p/go-chainnet/pkg/types"
)

var logger = log.Logger("core/connmgr")

// record 内部连接记录
type record struct {
	Record
}

// Pool 连接池
type Pool struct {
	cfg       Config
	clock     clock.Clock
	book      *addrbook.Book
	gater     *Gater
	transport Transport
	metrics   *metrics.Metrics

	emConnected *eventbus.Emitter
	emClosed    *eventbus.Emitter
	emFailed    *eventbus.Emitter

	mu      sync.RWMutex
	closed  bool
	records map[uuid.UUID]*record

	// byPeer 节点到其出站拨号中或已建立连接的映射
	byPeer map[types.PeerID]uuid.UUID

	connecting  int
	established int
	outbound    int

	allowInboundExchange bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Deps 连接池依赖
type Deps struct {
	Book      *addrbook.Book
	Gater     *Gater
	Bus       *eventbus.Bus
	Transport Transport
	Clock     clock.Clock
	Metrics   *metrics.Metrics
}

// NewPool 创建连接池
//
// Transport 为 nil 时所有出站拨号被同步拒绝。
func NewPool(cfg Config, deps Deps) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Book == nil || deps.Bus == nil {
		return nil, ErrInvalidConfig
	}
	if deps.Gater == nil {
		deps.Gater = NewGater(cfg.Gater)
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}

	emConnected, err := deps.Bus.Emitter(new(types.EvtPeerConnected))
	if err != nil {
		return nil, err
	}
	emClosed, err := deps.Bus.Emitter(new(types.EvtPeerClosed))
	if err != nil {
		return nil, err
	}
	emFailed, err := deps.Bus.Emitter(new(types.EvtConnectFailed))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:         cfg,
		clock:       deps.Clock,
		book:        deps.Book,
		gater:       deps.Gater,
		transport:   deps.Transport,
		metrics:     deps.Metrics,
		emConnected: emConnected,
		emClosed:    emClosed,
		emFailed:    emFailed,
		records:     make(map[uuid.UUID]*record),
		byPeer:      make(map[types.PeerID]uuid.UUID),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Gater 返回门控器
func (p *Pool) Gater() *Gater {
	return p.gater
}

// ============================================================================
//                              出站
// ============================================================================

// CanDial 本节点能否主动拨号该协议
func (p *Pool) CanDial(protocol types.Protocol) bool {
	return p.transport != nil && p.transport.CanDial(protocol)
}

// ConnectOutbound 发起出站连接
//
// 返回 false 表示被同步拒绝：拨号数已满、节点数已满、节点已连接或连接中、
// 节点被封禁、或本节点无法拨号该协议。
// 返回 true 表示拨号已在进行，结果通过事件异步送达。
func (p *Pool) ConnectOutbound(addr types.PeerAddress) bool {
	if !p.gater.InterceptPeerDial(addr.PeerID) {
		logger.Debug("拒绝拨号封禁节点", "peer", addr.PeerID.ShortString())
		return false
	}
	if !p.CanDial(addr.Protocol) {
		logger.Debug("无法拨号该协议", "addr", addr.String(), "protocol", addr.Protocol.String())
		return false
	}

	now := p.clock.Now()
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return false
	case p.connecting >= p.cfg.ConnectingCountMax:
		p.mu.Unlock()
		logger.Debug("并发拨号已满", "connecting", p.connecting)
		return false
	case p.established >= p.cfg.PeerCountMax:
		p.mu.Unlock()
		return false
	}
	if _, ok := p.byPeer[addr.PeerID]; ok {
		p.mu.Unlock()
		return false
	}

	rec := &record{Record: Record{
		ID:        uuid.New(),
		State:     types.ConnPendingOutbound,
		Direction: types.DirOutbound,
		Address:   addr,
		CreatedAt: now,
	}}
	p.records[rec.ID] = rec
	p.byPeer[addr.PeerID] = rec.ID
	p.connecting++
	connecting := p.connecting
	p.wg.Add(1)
	p.mu.Unlock()

	p.book.Connecting(addr)
	p.metrics.ConnectAttempt()
	p.metrics.SetConnectingCount(connecting)
	logger.Debug("开始拨号", "addr", addr.String(), "connID", rec.ID.String())

	go p.dial(rec.ID, addr)
	return true
}

func (p *Pool) dial(id uuid.UUID, addr types.PeerAddress) {
	defer p.wg.Done()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.DialTimeout)
	conn, err := p.transport.Dial(ctx, addr)
	cancel()

	if err != nil {
		p.failOutbound(id, addr, err)
		return
	}
	p.completeOutbound(id, addr, conn)
}

func (p *Pool) failOutbound(id uuid.UUID, addr types.PeerAddress, err error) {
	p.mu.Lock()
	rec, ok := p.records[id]
	if !ok || rec.State != types.ConnPendingOutbound {
		// 拨号期间已被关闭
		p.mu.Unlock()
		return
	}
	p.removeLocked(rec)
	p.connecting--
	connecting := p.connecting
	p.mu.Unlock()

	logger.Debug("拨号失败", "addr", addr.String(), "error", err)
	p.book.Close(nil, addr, types.CloseConnectionFailed)
	p.metrics.ConnectFailure()
	p.metrics.SetConnectingCount(connecting)
	_ = p.emFailed.Emit(types.EvtConnectFailed{
		ConnID:  id,
		Address: addr,
		Err:     err,
		Time:    p.clock.Now(),
	})
}

func (p *Pool) completeOutbound(id uuid.UUID, addr types.PeerAddress, conn Conn) {
	p.mu.Lock()
	rec, ok := p.records[id]
	if !ok || rec.State != types.ConnPendingOutbound {
		p.mu.Unlock()
		_ = conn.Close(types.CloseManualPeerDisconnect, "connection closed while dialing")
		return
	}
	p.connecting--
	connecting := p.connecting

	var reason types.CloseReason
	switch {
	case p.byPeer[addr.PeerID] != id:
		reason = types.CloseDuplicateConnection
	case p.established >= p.cfg.PeerCountMax:
		reason = types.CloseMaxPeerCountReached
	}
	if reason != 0 {
		p.removeLocked(rec)
		p.mu.Unlock()
		p.reject(conn, addr, reason, connecting)
		return
	}

	rec.State = types.ConnEstablished
	rec.EstablishedAt = p.clock.Now()
	rec.conn = conn
	p.established++
	p.outbound++
	established := p.established
	m := p.monitorLocked(conn)
	p.mu.Unlock()

	if m != nil {
		go p.watch(id, m)
	}

	p.book.Established(addr)
	p.metrics.SetConnectingCount(connecting)
	p.metrics.SetPeerCount(established)
	logger.Info("出站连接已建立", "peer", addr.PeerID.ShortString(), "addr", addr.String())
	_ = p.emConnected.Emit(types.EvtPeerConnected{
		ConnID:    id,
		Address:   addr,
		Direction: types.DirOutbound,
		Time:      rec.EstablishedAt,
	})
}

// reject 关闭未能进入已建立状态的新连接
//
// 重复连接不改变地址簿，已存在的连接仍然有效。
func (p *Pool) reject(conn Conn, addr types.PeerAddress, reason types.CloseReason, connecting int) {
	logger.Debug("拒绝新连接", "addr", addr.String(), "reason", reason.String())
	if err := conn.Close(reason, reason.String()); err != nil {
		logger.Debug("关闭连接失败", "error", err)
	}
	if reason != types.CloseDuplicateConnection {
		p.book.Close(nil, addr, reason)
	}
	p.metrics.ConnectionClosed(reason)
	if connecting >= 0 {
		p.metrics.SetConnectingCount(connecting)
	}
}

// monitorLocked 连接支持 Monitor 时登记一个监视协程，调用方持有锁
func (p *Pool) monitorLocked(conn Conn) Monitor {
	m, ok := conn.(Monitor)
	if !ok || p.closed {
		return nil
	}
	p.wg.Add(1)
	return m
}

// watch 等待传输层报告连接结束，并以其原因关闭记录
func (p *Pool) watch(id uuid.UUID, m Monitor) {
	defer p.wg.Done()
	select {
	case <-m.Done():
	case <-p.ctx.Done():
		return
	}
	reason, msg := m.LostReason()
	if reason == 0 {
		return
	}
	p.Close(id, reason, msg)
}

// ============================================================================
//                              入站
// ============================================================================

// BeginInbound 接入一个尚未完成握手的入站连接
//
// 返回错误时连接未被接管，由调用方关闭。
func (p *Pool) BeginInbound(conn Conn, remote netip.Addr) (uuid.UUID, error) {
	if err := p.gater.InterceptAccept(remote); err != nil {
		logger.Debug("拒绝入站连接", "remote", remote.String(), "error", err)
		return uuid.Nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return uuid.Nil, ErrPoolClosed
	}
	if p.established >= p.cfg.PeerCountMax {
		return uuid.Nil, ErrTooManyConnections
	}

	rec := &record{Record: Record{
		ID:        uuid.New(),
		State:     types.ConnPendingInbound,
		Direction: types.DirInbound,
		RemoteIP:  remote,
		CreatedAt: p.clock.Now(),
		conn:      conn,
	}}
	p.records[rec.ID] = rec
	return rec.ID, nil
}

// CompleteInbound 握手完成后登记对端地址
//
// 失败时连接池已关闭该连接。
func (p *Pool) CompleteInbound(id uuid.UUID, addr types.PeerAddress) error {
	if err := addr.Validate(); err != nil {
		p.Close(id, types.CloseInvalidHandshake, err.Error())
		return err
	}
	if !p.gater.InterceptSecured(addr.PeerID) {
		p.Close(id, types.CloseManualPeerDisconnect, "peer blocked")
		return ErrPeerBlocked
	}

	p.mu.Lock()
	rec, ok := p.records[id]
	if !ok || rec.State != types.ConnPendingInbound {
		p.mu.Unlock()
		return ErrUnknownConnection
	}
	rec.Address = addr

	var reason types.CloseReason
	var err error
	switch {
	case p.hasPeerLocked(addr.PeerID):
		reason, err = types.CloseDuplicateConnection, ErrDuplicateConnection
	case p.established >= p.cfg.PeerCountMax:
		reason, err = types.CloseMaxPeerCountReached, ErrTooManyConnections
	}
	if reason != 0 {
		p.removeLocked(rec)
		conn := rec.conn
		p.mu.Unlock()
		p.reject(conn, addr, reason, -1)
		return err
	}

	rec.State = types.ConnEstablished
	rec.EstablishedAt = p.clock.Now()
	p.byPeer[addr.PeerID] = id
	p.established++
	established := p.established
	m := p.monitorLocked(rec.conn)
	p.mu.Unlock()

	if m != nil {
		go p.watch(id, m)
	}

	p.book.Established(addr)
	p.metrics.SetPeerCount(established)
	logger.Info("入站连接已建立", "peer", addr.PeerID.ShortString(), "remote", rec.RemoteIP.String())
	_ = p.emConnected.Emit(types.EvtPeerConnected{
		ConnID:    id,
		Address:   addr,
		Direction: types.DirInbound,
		Time:      rec.EstablishedAt,
	})
	return nil
}

func (p *Pool) hasPeerLocked(id types.PeerID) bool {
	_, ok := p.byPeer[id]
	return ok
}

// ============================================================================
//                              关闭
// ============================================================================

// Close 关闭连接
//
// 幂等：记录不存在或已关闭时返回 false。
// 关闭传输连接、以同一原因关闭地址簿中该节点的地址、
// 封禁类原因同时封禁节点，并发布 EvtPeerClosed。
func (p *Pool) Close(id uuid.UUID, reason types.CloseReason, msg string) bool {
	p.mu.Lock()
	rec, ok := p.records[id]
	if !ok {
		p.mu.Unlock()
		return false
	}
	prev := rec.State
	switch prev {
	case types.ConnPendingOutbound:
		p.connecting--
	case types.ConnEstablished:
		p.established--
		if rec.Direction == types.DirOutbound {
			p.outbound--
		}
	}
	p.removeLocked(rec)
	rec.State = types.ConnClosed
	snapshot := rec.Record
	connecting, established := p.connecting, p.established
	p.mu.Unlock()

	if snapshot.conn != nil {
		if err := snapshot.conn.Close(reason, msg); err != nil {
			logger.Debug("关闭传输连接失败", "connID", id.String(), "error", err)
		}
	}

	addr := snapshot.Address
	if !addr.PeerID.IsEmpty() {
		peerID := addr.PeerID
		p.book.Close(&peerID, addr, reason)
		if reason.IsBanning() {
			p.gater.BlockPeer(peerID)
		}
	} else if reason.IsBanning() && snapshot.RemoteIP.IsValid() {
		// 握手前违规，只能按 IP 封禁
		p.gater.BlockIP(snapshot.RemoteIP)
	}

	p.metrics.ConnectionClosed(reason)
	p.metrics.SetConnectingCount(connecting)
	p.metrics.SetPeerCount(established)
	logger.Debug("连接已关闭",
		"connID", id.String(),
		"peer", addr.PeerID.ShortString(),
		"state", prev.String(),
		"reason", reason.String(),
		"msg", msg)

	_ = p.emClosed.Emit(types.EvtPeerClosed{
		ConnID:  id,
		Address: addr,
		Reason:  reason,
		Message: msg,
		Time:    p.clock.Now(),
	})
	return true
}

func (p *Pool) removeLocked(rec *record) {
	delete(p.records, rec.ID)
	if !rec.Address.PeerID.IsEmpty() && p.byPeer[rec.Address.PeerID] == rec.ID {
		delete(p.byPeer, rec.Address.PeerID)
	}
}

// Shutdown 关闭连接池
//
// 取消进行中的拨号，以 ManualNetworkDisconnect 关闭全部连接。
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	ids := make([]uuid.UUID, 0, len(p.records))
	for id := range p.records {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	p.cancel()
	for _, id := range ids {
		p.Close(id, types.CloseManualNetworkDisconnect, "shutdown")
	}
	p.wg.Wait()

	_ = p.emConnected.Close()
	_ = p.emClosed.Close()
	_ = p.emFailed.Close()
	return nil
}

// ============================================================================
//                              查询
// ============================================================================

// ConnectingCount 进行中的出站拨号数
func (p *Pool) ConnectingCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connecting
}

// PeerCount 已建立连接数
func (p *Pool) PeerCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.established
}

// OutboundCount 已建立的出站连接数
func (p *Pool) OutboundCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.outbound
}

// PeerConnectionMax 连接数上限
func (p *Pool) PeerConnectionMax() int {
	return p.cfg.PeerCountMax
}

// ConnectingMax 并发拨号上限
func (p *Pool) ConnectingMax() int {
	return p.cfg.ConnectingCountMax
}

// Established 返回全部已建立连接的快照
func (p *Pool) Established() []Record {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Record, 0, p.established)
	for _, rec := range p.records {
		if rec.State == types.ConnEstablished {
			out = append(out, rec.Record)
		}
	}
	return out
}

// Get 查询连接记录
func (p *Pool) Get(id uuid.UUID) (Record, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.Record, true
}

// IsEstablished 连接是否仍处于已建立状态
func (p *Pool) IsEstablished(id uuid.UUID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[id]
	return ok && rec.State == types.ConnEstablished
}

// HasPeer 节点是否有出站拨号中或已建立的连接
func (p *Pool) HasPeer(id types.PeerID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hasPeerLocked(id)
}

// SetScore 写入连接评分
func (p *Pool) SetScore(id uuid.UUID, score float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[id]
	if !ok || rec.State != types.ConnEstablished {
		return false
	}
	rec.Score = score
	rec.Scored = true
	return true
}

// AllowInboundExchange 是否允许入站节点交换
func (p *Pool) AllowInboundExchange() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.allowInboundExchange
}

// SetAllowInboundExchange 设置入站交换许可
func (p *Pool) SetAllowInboundExchange(allow bool) {
	p.mu.Lock()
	p.allowInboundExchange = allow
	p.mu.Unlock()
	p.metrics.SetAllowInboundExchange(allow)
}
