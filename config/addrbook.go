package config

import (
	"errors"
	"time"
)

// AddrBookConfig 地址簿配置
type AddrBookConfig struct {
	// MaxSize 最多保存的地址数，满时淘汰最早且空闲的地址
	MaxSize int `json:"max_size"`

	// MaxFailedAttempts 非种子地址连续失败多少次后移除
	MaxFailedAttempts int `json:"max_failed_attempts"`

	// BanDuration 因协议违规关闭后的封禁时长
	BanDuration Duration `json:"ban_duration"`

	// MaxDistance 节点交换获得的地址允许的最大跳数
	MaxDistance int `json:"max_distance"`
}

// DefaultAddrBookConfig 返回默认地址簿配置
func DefaultAddrBookConfig() AddrBookConfig {
	return AddrBookConfig{
		MaxSize:           20000,
		MaxFailedAttempts: 3,
		BanDuration:       Duration(10 * time.Minute),
		MaxDistance:       4,
	}
}

// Validate 验证地址簿配置
func (c *AddrBookConfig) Validate() error {
	if c.MaxSize <= 0 {
		return errors.New("addrbook: max_size must be positive")
	}
	if c.MaxFailedAttempts <= 0 {
		return errors.New("addrbook: max_failed_attempts must be positive")
	}
	if c.BanDuration < 0 {
		return errors.New("addrbook: ban_duration cannot be negative")
	}
	if c.MaxDistance < 0 || c.MaxDistance > 255 {
		return errors.New("addrbook: max_distance must be in [0, 255]")
	}
	return nil
}
