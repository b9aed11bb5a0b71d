package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// ============================================================================
//                              环境变量（CLI 专用）
// ============================================================================

// envPrefix 环境变量前缀
const envPrefix = "CHAINNET_"

// applyEnvOverrides 应用环境变量覆盖配置
//
// 环境变量优先级高于配置文件，但低于命令行参数。
// 支持的环境变量：
//   - CHAINNET_NETWORK: 所属网络
//   - CHAINNET_PEER_ADDRESS: 本机通告地址
//   - CHAINNET_LISTEN_ADDR: WebSocket 监听地址
//   - CHAINNET_DATA_DIR: 数据目录
//   - CHAINNET_PEER_COUNT_MAX: 最大节点数
//   - CHAINNET_LOG_LEVEL: 日志级别
func applyEnvOverrides(cfg *config.Config) error {
	if v := os.Getenv(envPrefix + "NETWORK"); v != "" {
		var id types.NetworkID
		if err := id.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%sNETWORK: %w", envPrefix, err)
		}
		cfg.Network.ID = id
	}

	if v := os.Getenv(envPrefix + "PEER_ADDRESS"); v != "" {
		cfg.Network.PeerAddress = v
	}

	if v := os.Getenv(envPrefix + "LISTEN_ADDR"); v != "" {
		cfg.Transport.ListenAddr = v
	}

	if v := os.Getenv(envPrefix + "DATA_DIR"); v != "" {
		cfg.Storage.Enabled = true
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv(envPrefix + "PEER_COUNT_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPEER_COUNT_MAX: %w", envPrefix, err)
		}
		cfg.ConnMgr.PeerCountMax = n
	}

	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}
