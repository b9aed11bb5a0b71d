package chainnet

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/internal/core/addrbook"
	"github.com/dep2p/go-chainnet/internal/core/connmgr"
	"github.com/dep2p/go-chainnet/internal/core/eventbus"
	"github.com/dep2p/go-chainnet/internal/core/metrics"
	"github.com/dep2p/go-chainnet/internal/core/network"
	"github.com/dep2p/go-chainnet/internal/core/scorer"
	"github.com/dep2p/go-chainnet/internal/core/transport/ws"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
	"github.com/dep2p/go-chainnet/pkg/types"
)

var logger = log.Logger("chainnet")

// ════════════════════════════════════════════════════════════════════════════
//                              节点状态
// ════════════════════════════════════════════════════════════════════════════

// NodeState 节点状态
type NodeState int

const (
	// StateIdle 已创建，未启动
	StateIdle NodeState = iota

	// StateStarting 启动中
	StateStarting

	// StateRunning 运行中
	StateRunning

	// StateStopping 停止中
	StateStopping

	// StateStopped 已停止，不可再启动
	StateStopped
)

// String 返回状态的字符串表示
func (s NodeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	// startTimeout Fx 应用启动超时
	startTimeout = 30 * time.Second

	// closeTimeout Close 使用的停止超时
	closeTimeout = 30 * time.Second
)

// Node chainnet 节点
//
// Node 是门面，聚合了地址簿、连接池、评分器和网络编排器。
// 组件由 Fx 组装，Start 启动存储、指标服务和入站监听，
// 并在开启自动维护时调用 Connect。
type Node struct {
	config *config.Config
	opts   *options
	app    *fx.App

	// ────────────────────────────────────────────────────────────────────────
	// 核心组件（由 Fx 注入）
	// ────────────────────────────────────────────────────────────────────────

	bus       *eventbus.Bus
	book      *addrbook.Book
	pool      *connmgr.Pool
	scorer    *scorer.Scorer
	network   *network.Network
	metrics   *metrics.Metrics
	transport *ws.Transport

	mu    sync.RWMutex
	state NodeState
}

// ════════════════════════════════════════════════════════════════════════════
//                              构造函数
// ════════════════════════════════════════════════════════════════════════════

// New 创建新节点
//
// 创建节点但不启动，需要调用 Start()。
// 配置无效、所属网络未注册等启动期错误在此返回。
func New(opts ...Option) (*Node, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	cfg := o.toConfig()
	node := &Node{config: cfg, opts: o}

	var err error
	node.app, err = buildFxApp(cfg, o, node)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return node, nil
}

// Start 创建节点并立即启动
func Start(ctx context.Context, opts ...Option) (*Node, error) {
	node, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := node.Start(ctx); err != nil {
		return nil, fmt.Errorf("start node: %w", err)
	}
	return node, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Start 启动节点
//
// 启动全部组件；开启自动维护时随后调用 Connect。
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateIdle:
	case StateStopping, StateStopped:
		return ErrNodeClosed
	default:
		return ErrAlreadyStarted
	}

	n.state = StateStarting
	logger.Info("正在启动节点", "network", n.config.Network.ID.String())

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	if err := n.app.Start(startCtx); err != nil {
		logger.Error("节点启动失败", "error", err)
		stopCtx, stopCancel := context.WithTimeout(context.Background(), closeTimeout)
		defer stopCancel()
		n.state = StateStopped
		return multierr.Append(fmt.Errorf("start fx app: %w", err), n.app.Stop(stopCtx))
	}

	if n.opts.autoConnect {
		if err := n.network.Connect(); err != nil {
			logger.Warn("开始自动维护失败", "error", err)
		}
	}

	n.state = StateRunning
	logger.Info("节点启动成功",
		"addresses", n.book.Len(),
		"seeded", n.book.Seeded(),
		"listen", n.ListenAddr())
	return nil
}

// Stop 停止节点
//
// 先停止自动维护，再按反向依赖顺序停止组件；已建立的连接以
// ManualNetworkDisconnect 关闭。停止后不可再启动。
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateRunning:
	case StateIdle:
		return ErrNotStarted
	default:
		return ErrNodeClosed
	}

	n.state = StateStopping
	logger.Info("正在停止节点")

	n.network.Disconnect()
	err := n.app.Stop(ctx)
	n.state = StateStopped
	if err != nil {
		logger.Warn("停止节点时出现错误", "error", err)
		return fmt.Errorf("stop node: %w", err)
	}
	logger.Info("节点已停止")
	return nil
}

// Close 停止节点并释放资源，可重复调用
func (n *Node) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	switch err := n.Stop(ctx); err {
	case nil, ErrNodeClosed:
		return nil
	case ErrNotStarted:
		n.mu.Lock()
		n.state = StateStopped
		n.mu.Unlock()
		return nil
	default:
		return err
	}
}

// State 返回节点状态
func (n *Node) State() NodeState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// Config 返回节点使用的配置
func (n *Node) Config() *config.Config {
	return n.config
}

func (n *Node) running() error {
	switch n.State() {
	case StateRunning:
		return nil
	case StateIdle, StateStarting:
		return ErrNotStarted
	default:
		return ErrNodeClosed
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              网络维护
// ════════════════════════════════════════════════════════════════════════════

// Connect 开始自动维护连接
func (n *Node) Connect() error {
	if err := n.running(); err != nil {
		return err
	}
	return n.network.Connect()
}

// Disconnect 停止自动维护连接，已建立的连接保持不变
func (n *Node) Disconnect() {
	n.network.Disconnect()
}

// NetworkState 返回编排器状态
func (n *Node) NetworkState() network.State {
	return n.network.State()
}

// PeerCount 返回已建立连接的节点数
func (n *Node) PeerCount() int {
	return n.network.PeerCount()
}

// Peers 返回已建立连接的快照
func (n *Node) Peers() []connmgr.Record {
	return n.pool.Established()
}

// AddressCount 返回地址簿中的地址数
func (n *Node) AddressCount() int {
	return n.book.Len()
}

// AddAddresses 收录通过地址交换获得的地址，返回新增或更新的条数
//
// 有新增时立即检查一次节点数，处于退避期时由退避到期后的检查接手。
func (n *Node) AddAddresses(addrs ...types.PeerAddress) int {
	added := n.book.Add(addrbook.SourceExchange, addrs...)
	n.metrics.SetAddressBookSize(n.book.Len())
	if added > 0 && n.network.State() == network.StateConnecting {
		n.network.CheckPeerCount()
	}
	return added
}

// AllowInboundExchange 当前是否接受入站节点的地址交换请求
func (n *Node) AllowInboundExchange() bool {
	return n.pool.AllowInboundExchange()
}

// ════════════════════════════════════════════════════════════════════════════
//                              入站连接
// ════════════════════════════════════════════════════════════════════════════

// AcceptInbound 接入外部传输建立的入站连接
//
// 握手完成后调用 CompleteInbound；返回错误时连接未被接管。
func (n *Node) AcceptInbound(conn connmgr.Conn, remote netip.Addr) (uuid.UUID, error) {
	if err := n.running(); err != nil {
		return uuid.Nil, err
	}
	return n.pool.BeginInbound(conn, remote)
}

// CompleteInbound 以对端在握手中声明的地址完成入站登记
func (n *Node) CompleteInbound(id uuid.UUID, addr types.PeerAddress) error {
	return n.pool.CompleteInbound(id, addr)
}

// CloseConnection 以给定原因关闭连接
func (n *Node) CloseConnection(id uuid.UUID, reason types.CloseReason, msg string) bool {
	return n.pool.Close(id, reason, msg)
}

// InboundHandler 返回接收 WebSocket 入站连接的 HTTP 处理器
//
// 用于挂载到外部 HTTP 服务；使用自定义传输时返回 ErrNoListener。
func (n *Node) InboundHandler() (http.Handler, error) {
	if n.transport == nil {
		return nil, ErrNoListener
	}
	return n.transport.Handler(n.pool), nil
}

// ListenAddr 返回内置监听的实际地址，未监听时为空
func (n *Node) ListenAddr() string {
	if n.transport == nil {
		return ""
	}
	return n.transport.Addr()
}

// ════════════════════════════════════════════════════════════════════════════
//                              观测
// ════════════════════════════════════════════════════════════════════════════

// Subscribe 订阅连接事件
//
// evtType 为 new(types.EvtPeerConnected)、new(types.EvtPeerClosed)
// 或 new(types.EvtConnectFailed)。
func (n *Node) Subscribe(evtType interface{}) (*eventbus.Subscription, error) {
	return n.bus.Subscribe(evtType)
}

// MetricsHandler 返回 Prometheus 指标处理器
func (n *Node) MetricsHandler() http.Handler {
	return n.metrics.Handler()
}
