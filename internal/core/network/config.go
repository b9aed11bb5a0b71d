package network

import (
	"fmt"
	"time"

	"github.com/dep2p/go-chainnet/config"
)

// Config 网络维护配置
type Config struct {
	// HousekeepingInterval 维护周期
	HousekeepingInterval time.Duration

	// BackoffInitial 首次退避时长
	BackoffInitial time.Duration

	// BackoffMax 退避上限
	BackoffMax time.Duration

	// Recycling 连接回收参数
	Recycling RecycleConfig

	// InboundExchangeScore 最低连接分低于此值时允许入站交换
	InboundExchangeScore float64
}

// RecycleConfig 连接回收参数
type RecycleConfig struct {
	// Active 连接数达到此值才开始回收
	Active int

	// PercentageMin 连接数为 Active 时的回收比例
	PercentageMin float64

	// PercentageMax 连接数为 PeerCountMax 时的回收比例，也是比例上限
	PercentageMax float64

	// PeerCountMax 连接数上限
	PeerCountMax int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		HousekeepingInterval: 5 * time.Minute,
		BackoffInitial:       2 * time.Second,
		BackoffMax:           10 * time.Minute,
		Recycling: RecycleConfig{
			Active:        1000,
			PercentageMin: 0.01,
			PercentageMax: 0.20,
			PeerCountMax:  4000,
		},
		InboundExchangeScore: 0.5,
	}
}

// ConfigFromUnified 从统一配置创建网络维护配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	m := cfg.Maintenance
	c.HousekeepingInterval = m.HousekeepingInterval.Duration()
	c.BackoffInitial = m.BackoffInitial.Duration()
	c.BackoffMax = m.BackoffMax.Duration()
	c.Recycling = RecycleConfig{
		Active:        m.RecyclingActive,
		PercentageMin: m.RecyclingPercentageMin,
		PercentageMax: m.RecyclingPercentageMax,
		PeerCountMax:  cfg.ConnMgr.PeerCountMax,
	}
	c.InboundExchangeScore = m.InboundExchangeScore
	return c
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.HousekeepingInterval <= 0 {
		return fmt.Errorf("%w: housekeeping interval must be positive", ErrInvalidConfig)
	}
	if c.BackoffInitial <= 0 || c.BackoffMax < c.BackoffInitial {
		return fmt.Errorf("%w: backoff must satisfy 0 < initial <= max", ErrInvalidConfig)
	}
	r := c.Recycling
	if r.Active < 0 || r.PeerCountMax <= 0 {
		return fmt.Errorf("%w: recycling bounds must be positive", ErrInvalidConfig)
	}
	if r.PercentageMin < 0 || r.PercentageMin > r.PercentageMax || r.PercentageMax > 1 {
		return fmt.Errorf("%w: recycling percentages must satisfy 0 <= min <= max <= 1", ErrInvalidConfig)
	}
	return nil
}
