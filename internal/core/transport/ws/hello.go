package ws

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// hello 拨号方在连接建立后发送的第一条消息
type hello struct {
	Address  string             `json:"address"`
	Services types.ServiceFlags `json:"services"`
	Network  types.NetworkID    `json:"network"`
}

func newHello(addr types.PeerAddress, network types.NetworkID) hello {
	return hello{
		Address:  addr.URI(),
		Services: addr.Services,
		Network:  network,
	}
}

// peerAddress 校验 hello 并转换为对端地址
func (h hello) peerAddress(network types.NetworkID, remote netip.Addr, now time.Time) (types.PeerAddress, error) {
	if h.Network != network {
		return types.PeerAddress{}, fmt.Errorf("%w: got %s, want %s", ErrNetworkMismatch, h.Network, network)
	}
	addr, err := types.ParsePeerAddress(h.Address)
	if err != nil {
		return types.PeerAddress{}, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	addr.Services = h.Services
	addr.NetAddress = remote
	addr.Timestamp = now
	return addr, nil
}
