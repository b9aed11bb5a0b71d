package config

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// NetworkConfig 网络配置
type NetworkConfig struct {
	// ID 所属逻辑网络
	ID types.NetworkID `json:"id"`

	// PeerAddress 本机对外通告的地址，格式 "wss://host:port/<pubkey-hex>"
	// 地址簿会拒绝收录本机地址
	PeerAddress string `json:"peer_address,omitempty"`

	// SeedPeers 额外的种子节点，与网络内置种子合并
	SeedPeers []string `json:"seed_peers,omitempty"`

	// MinSeeds 至少收录多少个种子后才允许拨号
	MinSeeds int `json:"min_seeds"`
}

// DefaultNetworkConfig 返回默认网络配置
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		ID:       types.NetworkMain,
		MinSeeds: 1,
	}
}

// Validate 验证网络配置
func (c *NetworkConfig) Validate() error {
	if c.ID == 0 {
		return errors.New("network: id is required")
	}
	if c.MinSeeds < 0 {
		return errors.New("network: min_seeds cannot be negative")
	}
	if c.PeerAddress != "" {
		if _, err := types.ParsePeerAddress(c.PeerAddress); err != nil {
			return fmt.Errorf("network: peer_address: %w", err)
		}
	}
	if _, err := c.ParseSeedPeers(); err != nil {
		return err
	}
	return nil
}

// OwnAddress 解析本机地址，未配置时返回 false
func (c *NetworkConfig) OwnAddress() (types.PeerAddress, bool) {
	if c.PeerAddress == "" {
		return types.PeerAddress{}, false
	}
	addr, err := types.ParsePeerAddress(c.PeerAddress)
	if err != nil {
		return types.PeerAddress{}, false
	}
	return addr, true
}

// ParseSeedPeers 解析额外种子列表
func (c *NetworkConfig) ParseSeedPeers() ([]types.PeerAddress, error) {
	out := make([]types.PeerAddress, 0, len(c.SeedPeers))
	for _, s := range c.SeedPeers {
		addr, err := types.ParsePeerAddress(s)
		if err != nil {
			return nil, fmt.Errorf("network: seed_peers: %w", err)
		}
		out = append(out, addr)
	}
	return out, nil
}
