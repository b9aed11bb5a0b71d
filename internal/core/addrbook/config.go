package addrbook

import (
	"fmt"
	"time"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// Config 地址簿配置
type Config struct {
	// MaxSize 最多保存的地址数
	MaxSize int

	// MaxFailedAttempts 非种子地址失败多少次后移除
	MaxFailedAttempts int

	// BanDuration 封禁时长
	BanDuration time.Duration

	// MaxDistance 交换地址允许的最大跳数
	MaxDistance int

	// MinSeeds 视为已播种所需的最少种子数
	MinSeeds int

	// OwnAddress 本机地址，收录时拒绝
	OwnAddress *types.PeerAddress
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxSize:           20000,
		MaxFailedAttempts: 3,
		BanDuration:       10 * time.Minute,
		MaxDistance:       4,
		MinSeeds:          1,
	}
}

// ConfigFromUnified 从统一配置创建地址簿配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	c.MaxSize = cfg.AddrBook.MaxSize
	c.MaxFailedAttempts = cfg.AddrBook.MaxFailedAttempts
	c.BanDuration = cfg.AddrBook.BanDuration.Duration()
	c.MaxDistance = cfg.AddrBook.MaxDistance
	c.MinSeeds = cfg.Network.MinSeeds
	if own, ok := cfg.Network.OwnAddress(); ok {
		c.OwnAddress = &own
	}
	return c
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("%w: max size must be positive", ErrInvalidConfig)
	}
	if c.MaxFailedAttempts <= 0 {
		return fmt.Errorf("%w: max failed attempts must be positive", ErrInvalidConfig)
	}
	if c.BanDuration < 0 {
		return fmt.Errorf("%w: ban duration cannot be negative", ErrInvalidConfig)
	}
	if c.MaxDistance < 0 || c.MaxDistance > 255 {
		return fmt.Errorf("%w: max distance must be in [0, 255]", ErrInvalidConfig)
	}
	if c.MinSeeds < 0 {
		return fmt.Errorf("%w: min seeds cannot be negative", ErrInvalidConfig)
	}
	return nil
}
