package config

import (
	"errors"
	"path/filepath"
)

// StorageConfig 存储配置
//
// 启用后，地址簿中的非种子地址以 JSON 形式写入 BadgerDB，
// 重启时重新载入。
//
// 数据目录结构：
//
//	${DataDir}/
//	└── chainnet.db/        # BadgerDB 主数据库
type StorageConfig struct {
	// Enabled 是否持久化地址
	Enabled bool `json:"enabled"`

	// DataDir 数据目录路径
	DataDir string `json:"data_dir"`

	// InMemory 使用内存数据库（测试用）
	InMemory bool `json:"in_memory,omitempty"`
}

// DefaultStorageConfig 返回默认的存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Enabled: false,
		DataDir: "./data",
	}
}

// Validate 验证存储配置的有效性
func (c *StorageConfig) Validate() error {
	if c.Enabled && !c.InMemory && c.DataDir == "" {
		return errors.New("storage: data_dir cannot be empty")
	}
	return nil
}

// DBPath 返回 BadgerDB 数据库路径
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "chainnet.db")
}
