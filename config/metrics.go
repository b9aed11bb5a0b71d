package config

import "errors"

// MetricsConfig 指标服务配置
type MetricsConfig struct {
	// Enabled 是否启动 HTTP 指标服务
	Enabled bool `json:"enabled"`

	// ListenAddr 监听地址
	ListenAddr string `json:"listen_addr"`

	// Path 指标路径
	Path string `json:"path"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:    false,
		ListenAddr: "127.0.0.1:9464",
		Path:       "/metrics",
	}
}

// Validate 验证指标配置
func (c *MetricsConfig) Validate() error {
	if c.Enabled && c.ListenAddr == "" {
		return errors.New("metrics: listen_addr cannot be empty")
	}
	if c.Enabled && c.Path == "" {
		return errors.New("metrics: path cannot be empty")
	}
	return nil
}
