package connmgr

import (
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// Gater 连接门控器
//
// 被封禁的节点保存在带过期时间的 LRU 中，到期自动解封。
type Gater struct {
	blocked *expirable.LRU[types.PeerID, struct{}]

	mu         sync.RWMutex
	blockedIPs map[netip.Addr]struct{}

	// limiter 入站限速，nil 表示不限速
	limiter *rate.Limiter

	// 统计
	interceptedDials   atomic.Int64
	interceptedAccepts atomic.Int64
}

// NewGater 创建连接门控器
func NewGater(cfg GaterConfig) *Gater {
	g := &Gater{
		blocked:    expirable.NewLRU[types.PeerID, struct{}](cfg.BlockedPeerCapacity, nil, cfg.BanDuration),
		blockedIPs: make(map[netip.Addr]struct{}),
	}
	for _, ip := range cfg.BlockedIPs {
		g.blockedIPs[ip.Unmap()] = struct{}{}
	}
	if cfg.InboundRate > 0 {
		burst := cfg.InboundBurst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.InboundRate), burst)
	}
	return g
}

// BlockPeer 封禁节点，封禁在 BanDuration 后过期
func (g *Gater) BlockPeer(id types.PeerID) {
	g.blocked.Add(id, struct{}{})
}

// UnblockPeer 解除节点封禁
func (g *Gater) UnblockPeer(id types.PeerID) {
	g.blocked.Remove(id)
}

// IsBlocked 检查节点是否被封禁
func (g *Gater) IsBlocked(id types.PeerID) bool {
	return g.blocked.Contains(id)
}

// BlockedPeers 返回所有被封禁的节点（用于调试）
func (g *Gater) BlockedPeers() []types.PeerID {
	return g.blocked.Keys()
}

// BlockIP 拒绝来自该 IP 的入站连接
func (g *Gater) BlockIP(ip netip.Addr) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blockedIPs[ip.Unmap()] = struct{}{}
}

// UnblockIP 解除 IP 封禁
func (g *Gater) UnblockIP(ip netip.Addr) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.blockedIPs, ip.Unmap())
}

// IsIPBlocked 检查 IP 是否被封禁
func (g *Gater) IsIPBlocked(ip netip.Addr) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.blockedIPs[ip.Unmap()]
	return ok
}

// InterceptPeerDial 在拨号前检查是否允许连接到目标节点
// 返回 true 表示允许，false 表示拒绝
func (g *Gater) InterceptPeerDial(id types.PeerID) bool {
	if g.IsBlocked(id) {
		g.interceptedDials.Add(1)
		return false
	}
	return true
}

// InterceptAccept 在接受入站连接前检查远端 IP 和速率
// 返回 nil 表示允许
func (g *Gater) InterceptAccept(remote netip.Addr) error {
	if remote.IsValid() && g.IsIPBlocked(remote) {
		g.interceptedAccepts.Add(1)
		return ErrPeerBlocked
	}
	if g.limiter != nil && !g.limiter.Allow() {
		g.interceptedAccepts.Add(1)
		return ErrRateLimited
	}
	return nil
}

// InterceptSecured 在握手完成、得知节点标识后检查
// 返回 true 表示允许，false 表示拒绝
func (g *Gater) InterceptSecured(id types.PeerID) bool {
	if g.IsBlocked(id) {
		g.interceptedAccepts.Add(1)
		return false
	}
	return true
}

// Stats 返回拦截统计
func (g *Gater) Stats() (dials, accepts int64) {
	return g.interceptedDials.Load(), g.interceptedAccepts.Load()
}
