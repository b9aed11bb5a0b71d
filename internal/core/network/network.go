package network

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-chainnet/internal/core/eventbus"
	"github.com/dep2p/go-chainnet/internal/core/metrics"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
	"github.com/dep2p/go-chainnet/pkg/types"
)

var logger = log.Logger("core/network")

// refreshTimeout 单次地址刷新的超时
const refreshTimeout = 30 * time.Second

// eventBufSize 连接池事件订阅缓冲
//
// 回收一批连接时会连续发布大量关闭事件。
const eventBufSize = 1024

// ============================================================================
//                              依赖接口
// ============================================================================

// Book 编排器使用的地址簿
type Book interface {
	Seeded() bool
	Len() int
	Connecting(addr types.PeerAddress)
	Close(peerID *types.PeerID, addr types.PeerAddress, reason types.CloseReason) bool
	Housekeeping() int
}

// Pool 编排器使用的连接池
type Pool interface {
	ConnectingCount() int
	ConnectingMax() int
	PeerCount() int
	PeerConnectionMax() int
	HasPeer(id types.PeerID) bool
	ConnectOutbound(addr types.PeerAddress) bool
	SetAllowInboundExchange(allow bool)
}

// Scorer 编排器使用的评分器
type Scorer interface {
	PickAddress() (types.PeerAddress, bool)
	IsGoodPeerSet() bool
	NeedsGoodPeers() bool
	NeedsMorePeers() bool
	IsGoodPeer(addr types.PeerAddress) bool
	ScoreConnections() int
	RecycleConnections(count int, reason types.CloseReason, msg string) int
	LowestConnectionScore() (float64, bool)
}

// AddressRefresher 刷新本节点地址的协作者
type AddressRefresher interface {
	RefreshAddresses(ctx context.Context) error
}

// unsupportedRefresher 默认刷新器
type unsupportedRefresher struct{}

func (unsupportedRefresher) RefreshAddresses(context.Context) error {
	return ErrNotSupported
}

// ============================================================================
//                              状态
// ============================================================================

// State 编排器状态
type State int

const (
	// StateIdle 未自动维护连接
	StateIdle State = iota
	// StateConnecting 自动维护连接中
	StateConnecting
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              Network
// ============================================================================

// Deps 编排器依赖
type Deps struct {
	Book      Book
	Pool      Pool
	Scorer    Scorer
	Bus       *eventbus.Bus
	Clock     clock.Clock
	Metrics   *metrics.Metrics
	Refresher AddressRefresher
}

// Network 网络维护编排器
type Network struct {
	cfg       Config
	clock     clock.Clock
	book      Book
	pool      Pool
	scorer    Scorer
	bus       *eventbus.Bus
	metrics   *metrics.Metrics
	refresher AddressRefresher

	// mu 最外层锁，检查期间持有
	mu           sync.Mutex
	autoConnect  bool
	backedOff    bool
	backoffDelay time.Duration
	backoffTimer *clock.Timer
	subs         []*eventbus.Subscription
	recheckCh    chan struct{}
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// New 创建编排器
func New(cfg Config, deps Deps) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Book == nil || deps.Pool == nil || deps.Scorer == nil {
		return nil, ErrNilDependency
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Refresher == nil {
		deps.Refresher = unsupportedRefresher{}
	}
	return &Network{
		cfg:       cfg,
		clock:     deps.Clock,
		book:      deps.Book,
		pool:      deps.Pool,
		scorer:    deps.Scorer,
		bus:       deps.Bus,
		metrics:   deps.Metrics,
		refresher: deps.Refresher,
		recheckCh: make(chan struct{}, 1),
	}, nil
}

// State 返回当前状态
func (n *Network) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.autoConnect {
		return StateConnecting
	}
	return StateIdle
}

// PeerCount 已建立连接数
func (n *Network) PeerCount() int {
	return n.pool.PeerCount()
}

// BackedOff 是否处于拨号退避期
func (n *Network) BackedOff() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.backedOff
}

// ============================================================================
//                              启停
// ============================================================================

// Connect 开始自动维护连接
//
// 订阅连接池事件、启动维护定时器，并立即检查一次节点数。
func (n *Network) Connect() error {
	n.mu.Lock()
	if n.autoConnect {
		n.mu.Unlock()
		return nil
	}

	subs, err := n.subscribe()
	if err != nil {
		n.mu.Unlock()
		return err
	}

	n.autoConnect = true
	n.subs = subs
	n.stopCh = make(chan struct{})
	ticker := n.clock.Ticker(n.cfg.HousekeepingInterval)

	n.wg.Add(1)
	go n.loop(ticker, subs, n.stopCh)
	n.mu.Unlock()

	logger.Info("开始自动维护连接", "interval", n.cfg.HousekeepingInterval)
	n.CheckPeerCount()
	return nil
}

func (n *Network) subscribe() ([]*eventbus.Subscription, error) {
	if n.bus == nil {
		return nil, nil
	}
	events := []interface{}{
		new(types.EvtPeerConnected),
		new(types.EvtPeerClosed),
		new(types.EvtConnectFailed),
	}
	subs := make([]*eventbus.Subscription, 0, len(events))
	for _, evt := range events {
		sub, err := n.bus.Subscribe(evt, eventbus.BufSize(eventBufSize))
		if err != nil {
			for _, s := range subs {
				_ = s.Close()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Disconnect 停止自动维护连接
//
// 同步停止定时器、事件循环和退避定时器并重置退避。已建立的连接保持不变。
func (n *Network) Disconnect() {
	n.mu.Lock()
	if !n.autoConnect {
		n.mu.Unlock()
		return
	}
	n.autoConnect = false
	close(n.stopCh)
	n.clearBackoffLocked()
	n.backoffDelay = 0
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()

	n.wg.Wait()
	for _, sub := range subs {
		_ = sub.Close()
	}
	// 丢弃未处理的检查请求
	select {
	case <-n.recheckCh:
	default:
	}
	logger.Info("停止自动维护连接")
}

// loop 事件循环
func (n *Network) loop(ticker *clock.Ticker, subs []*eventbus.Subscription, stopCh chan struct{}) {
	defer n.wg.Done()
	defer ticker.Stop()

	var connected, closed, failed <-chan interface{}
	if len(subs) == 3 {
		connected, closed, failed = subs[0].Out(), subs[1].Out(), subs[2].Out()
	}

	for {
		select {
		case <-stopCh:
			return

		case <-ticker.C:
			n.Housekeeping()
			// 回收后补足节点，不依赖可能被丢弃的关闭事件
			n.CheckPeerCount()

		case <-n.recheckCh:
			n.CheckPeerCount()

		case evt, ok := <-connected:
			if !ok {
				connected = nil
				continue
			}
			logger.Debug("节点已连接", "peer", evt.(types.EvtPeerConnected).Address.PeerID.ShortString())
			n.CheckPeerCount()

		case evt, ok := <-closed:
			if !ok {
				closed = nil
				continue
			}
			e := evt.(types.EvtPeerClosed)
			logger.Debug("节点已断开", "peer", e.Address.PeerID.ShortString(), "reason", e.Reason.String())
			n.CheckPeerCount()

		case evt, ok := <-failed:
			if !ok {
				failed = nil
				continue
			}
			logger.Debug("拨号失败", "addr", evt.(types.EvtConnectFailed).Address.String())
			n.CheckPeerCount()
		}
	}
}

// queueRecheck 请求事件循环再检查一次
func (n *Network) queueRecheck() {
	select {
	case n.recheckCh <- struct{}{}:
	default:
	}
}

// ============================================================================
//                              节点数检查
// ============================================================================

// CheckPeerCount 必要时拨号一个候选节点
//
// 仅在自动维护开启、地址簿已播种、节点集合不够好、
// 并发拨号与连接数均未满且未处于退避期时才会拨号。
func (n *Network) CheckPeerCount() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.autoConnect || n.backedOff {
		return
	}
	if !n.book.Seeded() {
		logger.Debug("地址簿尚未播种，跳过拨号")
		return
	}
	if n.scorer.IsGoodPeerSet() {
		return
	}
	if n.pool.ConnectingCount() >= n.pool.ConnectingMax() {
		return
	}
	if n.pool.PeerCount() >= n.pool.PeerConnectionMax() {
		return
	}

	addr, ok := n.scorer.PickAddress()
	if !ok {
		logger.Debug("没有可用候选")
		n.backoffLocked()
		return
	}
	if n.scorer.NeedsGoodPeers() && !n.scorer.NeedsMorePeers() && !n.scorer.IsGoodPeer(addr) {
		logger.Debug("候选不是优质节点", "addr", addr.String())
		n.backoffLocked()
		return
	}

	if n.pool.ConnectOutbound(addr) {
		n.backoffDelay = 0
		return
	}

	// 同步拒绝计为一次失败拨号，多次失败的地址会被移除
	logger.Debug("拨号被同步拒绝", "addr", addr.String())
	if !n.pool.HasPeer(addr.PeerID) {
		n.book.Connecting(addr)
		n.book.Close(nil, addr, types.CloseConnectionFailed)
	}
	n.backoffLocked()
}

// ============================================================================
//                              退避
// ============================================================================

// backoffLocked 进入退避，定时器到期后清除标志并重新检查
func (n *Network) backoffLocked() {
	delay := n.backoffDelay
	if delay <= 0 {
		delay = n.cfg.BackoffInitial
	}
	next := delay * 2
	if next > n.cfg.BackoffMax {
		next = n.cfg.BackoffMax
	}
	n.backoffDelay = next

	n.clearBackoffLocked()
	n.backedOff = true
	n.backoffTimer = n.clock.AfterFunc(delay, n.onBackoffExpired)
	n.metrics.Backoff()
	logger.Debug("拨号退避", "delay", delay)
}

func (n *Network) onBackoffExpired() {
	n.mu.Lock()
	if !n.autoConnect || !n.backedOff {
		n.mu.Unlock()
		return
	}
	n.backedOff = false
	n.backoffTimer = nil
	n.mu.Unlock()

	n.queueRecheck()
}

func (n *Network) clearBackoffLocked() {
	if n.backoffTimer != nil {
		n.backoffTimer.Stop()
		n.backoffTimer = nil
	}
	n.backedOff = false
}

// ============================================================================
//                              维护
// ============================================================================

// Housekeeping 执行一次维护
func (n *Network) Housekeeping() {
	removed := n.book.Housekeeping()
	scored := n.scorer.ScoreConnections()

	peerCount := n.pool.PeerCount()
	recycled := n.scorer.RecycleConnections(
		RecycleCount(peerCount, n.cfg.Recycling),
		types.ClosePeerConnectionRecycled,
		"peer connection recycled",
	)

	lowest, hasLowest := n.scorer.LowestConnectionScore()
	allow := hasLowest && lowest < n.cfg.InboundExchangeScore
	n.pool.SetAllowInboundExchange(allow)

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	n.logMaintenanceErr("刷新地址", n.refresher.RefreshAddresses(ctx))
	cancel()
	n.logMaintenanceErr("更新时间偏移", n.UpdateTimeOffset())

	n.updateMetrics(recycled, lowest, hasLowest)

	logger.Debug("维护完成",
		"removed", removed,
		"scored", scored,
		"recycled", recycled,
		"peers", n.pool.PeerCount(),
		"allowInboundExchange", allow)
}

// UpdateTimeOffset 根据对端时间校准本地时间偏移
func (n *Network) UpdateTimeOffset() error {
	return ErrNotSupported
}

func (n *Network) logMaintenanceErr(step string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrNotSupported):
		logger.Debug("维护步骤未实现", "step", step)
	default:
		logger.Warn("维护步骤失败", "step", step, "error", err)
	}
}

func (n *Network) updateMetrics(recycled int, lowest float64, hasLowest bool) {
	if n.metrics == nil {
		return
	}
	n.metrics.HousekeepingRun()
	n.metrics.Recycled(recycled)
	n.metrics.SetPeerCount(n.pool.PeerCount())
	n.metrics.SetConnectingCount(n.pool.ConnectingCount())
	n.metrics.SetAddressBookSize(n.book.Len())
	n.metrics.SetAllowInboundExchange(hasLowest && lowest < n.cfg.InboundExchangeScore)
	if hasLowest {
		n.metrics.SetLowestScore(lowest)
	}
}
