package config

import (
	"errors"
	"time"
)

// MaintenanceConfig 网络维护配置
//
// 控制周期性维护、拨号退避与连接回收。
type MaintenanceConfig struct {
	// HousekeepingInterval 维护周期
	HousekeepingInterval Duration `json:"housekeeping_interval"`

	// BackoffInitial 首次退避时长
	BackoffInitial Duration `json:"backoff_initial"`

	// BackoffMax 退避上限，每次退避时长翻倍直到此值
	BackoffMax Duration `json:"backoff_max"`

	// RecyclingActive 连接数达到此值才开始回收
	RecyclingActive int `json:"recycling_active"`

	// RecyclingPercentageMin 回收比例下限
	RecyclingPercentageMin float64 `json:"recycling_percentage_min"`

	// RecyclingPercentageMax 回收比例上限
	RecyclingPercentageMax float64 `json:"recycling_percentage_max"`

	// InboundExchangeScore 最低连接分低于此值时允许入站交换
	InboundExchangeScore float64 `json:"inbound_exchange_score"`
}

// DefaultMaintenanceConfig 返回默认维护配置
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		HousekeepingInterval:   Duration(5 * time.Minute),
		BackoffInitial:         Duration(2 * time.Second),
		BackoffMax:             Duration(10 * time.Minute),
		RecyclingActive:        1000,
		RecyclingPercentageMin: 0.01,
		RecyclingPercentageMax: 0.20,
		InboundExchangeScore:   0.5,
	}
}

// Validate 验证维护配置
func (c *MaintenanceConfig) Validate() error {
	if c.HousekeepingInterval <= 0 {
		return errors.New("maintenance: housekeeping_interval must be positive")
	}
	if c.BackoffInitial <= 0 || c.BackoffMax < c.BackoffInitial {
		return errors.New("maintenance: backoff_initial must be positive and not exceed backoff_max")
	}
	if c.RecyclingActive < 0 {
		return errors.New("maintenance: recycling_active cannot be negative")
	}
	if c.RecyclingPercentageMin < 0 || c.RecyclingPercentageMax > 1 ||
		c.RecyclingPercentageMin > c.RecyclingPercentageMax {
		return errors.New("maintenance: recycling percentages must satisfy 0 <= min <= max <= 1")
	}
	if c.InboundExchangeScore < 0 || c.InboundExchangeScore > 1 {
		return errors.New("maintenance: inbound_exchange_score must be in [0, 1]")
	}
	return nil
}
