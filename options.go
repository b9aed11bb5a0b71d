package chainnet

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/internal/core/connmgr"
	"github.com/dep2p/go-chainnet/internal/core/network"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// base 基础配置，nil 时使用 config.NewConfig()
	base *config.Config

	network     *types.NetworkID
	peerAddress string
	seedPeers   []string
	listenAddr  *string

	storage struct {
		enable   bool
		dataDir  string
		inMemory bool
	}

	metricsAddr string
	logLevel    string

	// 注入的协作者
	clock     clock.Clock
	transport connmgr.Transport
	refresher network.AddressRefresher

	// autoConnect Start 后是否立即开始自动维护
	autoConnect bool

	// 用户自定义 Fx 选项
	userFxOptions []fx.Option
}

// newOptions 创建默认选项
func newOptions() *options {
	return &options{autoConnect: true}
}

// toConfig 转换为统一配置
//
// 返回的是副本，不会修改 WithConfig 传入的配置。
func (o *options) toConfig() *config.Config {
	cfg := config.NewConfig()
	if o.base != nil {
		copied := *o.base
		copied.Network.SeedPeers = append([]string(nil), o.base.Network.SeedPeers...)
		cfg = &copied
	}

	if o.network != nil {
		cfg.Network.ID = *o.network
	}
	if o.peerAddress != "" {
		cfg.Network.PeerAddress = o.peerAddress
	}
	if len(o.seedPeers) > 0 {
		cfg.Network.SeedPeers = append(cfg.Network.SeedPeers, o.seedPeers...)
	}
	if o.listenAddr != nil {
		cfg.Transport.ListenAddr = *o.listenAddr
	}
	if o.storage.enable {
		cfg.Storage.Enabled = true
		cfg.Storage.InMemory = o.storage.inMemory
		if o.storage.dataDir != "" {
			cfg.Storage.DataDir = o.storage.dataDir
		}
	}
	if o.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddr = o.metricsAddr
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg
}

// ============================================================================
//                              配置选项
// ============================================================================

// WithConfig 以完整配置为基础，其余选项在其上覆盖
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config cannot be nil")
		}
		o.base = cfg
		return nil
	}
}

// WithNetwork 设置所属网络
func WithNetwork(id types.NetworkID) Option {
	return func(o *options) error {
		o.network = &id
		return nil
	}
}

// WithPeerAddress 设置本机通告地址，格式 "wss://host:port/<pubkey-hex>"
//
// 未设置时节点无法主动拨号，只接受入站连接。
func WithPeerAddress(addr string) Option {
	return func(o *options) error {
		if _, err := types.ParsePeerAddress(addr); err != nil {
			return fmt.Errorf("invalid peer address: %w", err)
		}
		o.peerAddress = addr
		return nil
	}
}

// WithSeedPeers 追加种子节点
func WithSeedPeers(addrs ...string) Option {
	return func(o *options) error {
		for _, s := range addrs {
			if _, err := types.ParsePeerAddress(s); err != nil {
				return fmt.Errorf("invalid seed peer %q: %w", s, err)
			}
		}
		o.seedPeers = append(o.seedPeers, addrs...)
		return nil
	}
}

// WithListenAddr 设置 WebSocket 入站监听地址，例如 "0.0.0.0:8443"
//
// 空字符串表示不监听。
func WithListenAddr(addr string) Option {
	return func(o *options) error {
		o.listenAddr = &addr
		return nil
	}
}

// WithStorage 将地址持久化到 dataDir
func WithStorage(dataDir string) Option {
	return func(o *options) error {
		if dataDir == "" {
			return errors.New("data dir cannot be empty")
		}
		o.storage.enable = true
		o.storage.dataDir = dataDir
		return nil
	}
}

// WithInMemoryStorage 使用内存数据库持久化地址（测试用）
func WithInMemoryStorage() Option {
	return func(o *options) error {
		o.storage.enable = true
		o.storage.inMemory = true
		return nil
	}
}

// WithMetrics 在 addr 上提供 Prometheus 指标
func WithMetrics(addr string) Option {
	return func(o *options) error {
		if addr == "" {
			return errors.New("metrics addr cannot be empty")
		}
		o.metricsAddr = addr
		return nil
	}
}

// WithLogLevel 设置日志级别
func WithLogLevel(level string) Option {
	return func(o *options) error {
		o.logLevel = level
		return nil
	}
}

// WithAutoConnect 设置 Start 后是否立即开始自动维护，默认开启
func WithAutoConnect(enable bool) Option {
	return func(o *options) error {
		o.autoConnect = enable
		return nil
	}
}

// ============================================================================
//                              协作者注入
// ============================================================================

// WithClock 注入时钟，测试中可使用 clock.NewMock()
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		o.clock = clk
		return nil
	}
}

// WithTransport 替换默认的 WebSocket 传输
//
// 替换后不再启动内置的入站监听。
func WithTransport(t connmgr.Transport) Option {
	return func(o *options) error {
		if t == nil {
			return errors.New("transport cannot be nil")
		}
		o.transport = t
		return nil
	}
}

// WithAddressRefresher 注入本节点地址刷新器
func WithAddressRefresher(r network.AddressRefresher) Option {
	return func(o *options) error {
		o.refresher = r
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
