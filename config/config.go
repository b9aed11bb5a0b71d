// Package config 提供统一的配置管理
//
// 本包采用分节配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 文件加载和保存配置
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Network.ID = types.NetworkTest
//	cfg.Network.SeedPeers = []string{"wss://seed.example.org:8443/<hex>"}
//
//	// 从文件加载
//	cfg, err := config.LoadFile("chainnet.json")
package config

import (
	"errors"

	"github.com/dep2p/go-chainnet/pkg/lib/log"
)

// Config 是 chainnet 的完整配置结构
//
// 配置按照功能模块组织：
//   - Network: 所属网络与本机地址
//   - AddrBook: 地址簿容量与封禁策略
//   - ConnMgr: 连接池限制与入站过滤
//   - Transport: WebSocket 传输
//   - Scorer: 节点集合目标与评分阈值
//   - Maintenance: 维护周期、退避与回收
//   - Storage: 地址持久化
//   - Metrics: Prometheus 指标服务
//   - Log: 日志输出
type Config struct {
	// Network 网络配置
	Network NetworkConfig `json:"network"`

	// AddrBook 地址簿配置
	AddrBook AddrBookConfig `json:"addrbook"`

	// ConnMgr 连接管理配置
	ConnMgr ConnManagerConfig `json:"conn_mgr"`

	// Transport 传输配置
	Transport TransportConfig `json:"transport"`

	// Scorer 评分配置
	Scorer ScorerConfig `json:"scorer"`

	// Maintenance 维护配置
	Maintenance MaintenanceConfig `json:"maintenance"`

	// Storage 存储配置
	Storage StorageConfig `json:"storage"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`

	// Log 日志配置
	Log log.Config `json:"log"`
}

// NewConfig 创建默认配置
//
// 默认连接主网，不持久化地址，不启动指标服务。
func NewConfig() *Config {
	return &Config{
		Network:     DefaultNetworkConfig(),
		AddrBook:    DefaultAddrBookConfig(),
		ConnMgr:     DefaultConnManagerConfig(),
		Transport:   DefaultTransportConfig(),
		Scorer:      DefaultScorerConfig(),
		Maintenance: DefaultMaintenanceConfig(),
		Storage:     DefaultStorageConfig(),
		Metrics:     DefaultMetricsConfig(),
		Log:         log.DefaultConfig(),
	}
}

// Validate 验证配置的有效性
//
// 配置错误是启动阶段唯一的致命错误。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.Network.Validate(); err != nil {
		return err
	}
	if err := c.AddrBook.Validate(); err != nil {
		return err
	}
	if err := c.ConnMgr.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.Scorer.Validate(); err != nil {
		return err
	}
	if err := c.Maintenance.Validate(); err != nil {
		return err
	}
	if c.Scorer.PeerCountTarget > c.ConnMgr.PeerCountMax {
		return errors.New("scorer: peer_count_target exceeds conn_mgr.peer_count_max")
	}
	if c.Maintenance.RecyclingActive > c.ConnMgr.PeerCountMax {
		return errors.New("maintenance: recycling_active exceeds conn_mgr.peer_count_max")
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}
