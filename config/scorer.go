package config

import (
	"errors"
	"time"
)

// ScorerConfig 节点评分配置
type ScorerConfig struct {
	// PeerCountTarget 期望维持的连接数，低于此值时继续拨号
	PeerCountTarget int `json:"peer_count_target"`

	// GoodPeerCountMin 至少需要的优质节点数
	GoodPeerCountMin int `json:"good_peer_count_min"`

	// AcceptableScore 已评分连接平均分的下限
	AcceptableScore float64 `json:"acceptable_score"`

	// MinAge 新连接评分保护期
	MinAge Duration `json:"min_age"`
}

// DefaultScorerConfig 返回默认评分配置
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		PeerCountTarget:  12,
		GoodPeerCountMin: 4,
		AcceptableScore:  0.5,
		MinAge:           Duration(5 * time.Minute),
	}
}

// Validate 验证评分配置
func (c *ScorerConfig) Validate() error {
	if c.PeerCountTarget <= 0 {
		return errors.New("scorer: peer_count_target must be positive")
	}
	if c.GoodPeerCountMin < 0 {
		return errors.New("scorer: good_peer_count_min cannot be negative")
	}
	if c.AcceptableScore < 0 || c.AcceptableScore > 1 {
		return errors.New("scorer: acceptable_score must be in [0, 1]")
	}
	if c.MinAge < 0 {
		return errors.New("scorer: min_age cannot be negative")
	}
	return nil
}
