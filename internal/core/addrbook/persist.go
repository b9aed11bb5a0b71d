package addrbook

import (
	"encoding/json"
	"net/netip"
	"time"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// persistedEntry 持久化的地址条目
type persistedEntry struct {
	Protocol       string `json:"protocol"`
	Host           string `json:"host,omitempty"`
	Port           uint16 `json:"port,omitempty"`
	Services       uint32 `json:"services"`
	NetAddress     string `json:"net_address,omitempty"`
	PublicKey      string `json:"public_key"`
	Signature      []byte `json:"signature,omitempty"`
	Distance       uint8  `json:"distance"`
	Timestamp      int64  `json:"timestamp"`    // Unix 纳秒
	BannedUntil    int64  `json:"banned_until"` // Unix 纳秒，0 表示未封禁
	FailedAttempts int    `json:"failed_attempts"`
}

func toPersisted(e *entry) persistedEntry {
	a := e.Address
	p := persistedEntry{
		Protocol:       a.Protocol.String(),
		Host:           a.Host,
		Port:           a.Port,
		Services:       uint32(a.Services),
		PublicKey:      a.PublicKey.Hex(),
		Signature:      a.Signature,
		Distance:       a.Distance,
		Timestamp:      a.Timestamp.UnixNano(),
		FailedAttempts: e.FailedAttempts,
	}
	if a.NetAddress.IsValid() {
		p.NetAddress = a.NetAddress.String()
	}
	if !e.BannedUntil.IsZero() {
		p.BannedUntil = e.BannedUntil.UnixNano()
	}
	return p
}

func (p persistedEntry) toEntry() (*entry, error) {
	protocol, err := types.ParseProtocol(p.Protocol)
	if err != nil {
		return nil, err
	}
	pk, err := types.ParsePublicKeyHex(p.PublicKey)
	if err != nil {
		return nil, err
	}

	addr := types.NewPeerAddress(protocol, p.Host, p.Port, types.ServiceFlags(p.Services), pk)
	addr.Signature = p.Signature
	addr.Distance = p.Distance
	addr.Timestamp = time.Unix(0, p.Timestamp)
	if p.NetAddress != "" {
		if ip, err := netip.ParseAddr(p.NetAddress); err == nil {
			addr.NetAddress = ip
		}
	}

	e := &entry{Entry: Entry{
		Address:        addr,
		Source:         SourceStore,
		State:          StateNew,
		FailedAttempts: p.FailedAttempts,
	}}
	if p.BannedUntil != 0 {
		e.BannedUntil = time.Unix(0, p.BannedUntil)
	}
	return e, nil
}

// persist 写入非种子条目，失败只记录日志
func (b *Book) persist(key string, e *entry) {
	if b.store == nil || e.IsSeed() {
		return
	}
	if err := b.store.PutJSON([]byte(key), toPersisted(e)); err != nil {
		logger.Warn("持久化地址失败", "addr", key, "error", err)
	}
}

func (b *Book) unpersist(key string) {
	if b.store == nil {
		return
	}
	if err := b.store.Delete([]byte(key)); err != nil {
		logger.Warn("删除持久化地址失败", "addr", key, "error", err)
	}
}

// load 从存储恢复地址，跳过损坏和已过期的记录
func (b *Book) load() (int, error) {
	now := b.clock.Now()
	var stale []string
	loaded := 0

	err := b.store.PrefixScan(func(key, value []byte) bool {
		var p persistedEntry
		if err := json.Unmarshal(value, &p); err != nil {
			stale = append(stale, string(key))
			return true
		}
		e, err := p.toEntry()
		if err != nil || e.Address.ExceedsAge(now) || b.isOwn(e.Address) {
			stale = append(stale, string(key))
			return true
		}
		if b.entries.Len() >= b.cfg.MaxSize {
			return false
		}
		k := e.Address.Locator()
		b.entries.Add(k, e)
		b.index(e.Address.PeerID, k)
		loaded++
		return true
	})
	if err != nil {
		return 0, err
	}

	for _, key := range stale {
		b.unpersist(key)
	}
	return loaded, nil
}
