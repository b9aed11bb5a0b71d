package scorer

import (
	"fmt"
	"time"

	"github.com/dep2p/go-chainnet/config"
)

// Config 评分器配置
type Config struct {
	// PeerCountTarget 期望维持的连接数
	PeerCountTarget int

	// GoodPeerCountMin 至少需要的优质节点数
	GoodPeerCountMin int

	// AcceptableScore 已评分连接平均分的下限
	AcceptableScore float64

	// MinAge 新连接评分保护期
	MinAge time.Duration

	// MaxDistance 地址跳数上限，用于距离因子
	MaxDistance int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		PeerCountTarget:  12,
		GoodPeerCountMin: 4,
		AcceptableScore:  0.5,
		MinAge:           5 * time.Minute,
		MaxDistance:      4,
	}
}

// ConfigFromUnified 从统一配置创建评分器配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	c.PeerCountTarget = cfg.Scorer.PeerCountTarget
	c.GoodPeerCountMin = cfg.Scorer.GoodPeerCountMin
	c.AcceptableScore = cfg.Scorer.AcceptableScore
	c.MinAge = cfg.Scorer.MinAge.Duration()
	c.MaxDistance = cfg.AddrBook.MaxDistance
	return c
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.PeerCountTarget <= 0 {
		return fmt.Errorf("%w: peer count target must be positive", ErrInvalidConfig)
	}
	if c.GoodPeerCountMin < 0 {
		return fmt.Errorf("%w: good peer count min cannot be negative", ErrInvalidConfig)
	}
	if c.AcceptableScore < 0 || c.AcceptableScore > 1 {
		return fmt.Errorf("%w: acceptable score must be in [0, 1]", ErrInvalidConfig)
	}
	if c.MinAge < 0 {
		return fmt.Errorf("%w: min age cannot be negative", ErrInvalidConfig)
	}
	if c.MaxDistance < 0 {
		return fmt.Errorf("%w: max distance cannot be negative", ErrInvalidConfig)
	}
	return nil
}
