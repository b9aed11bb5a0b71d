package ws

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-chainnet/internal/core/connmgr"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
	"github.com/dep2p/go-chainnet/pkg/types"
)

var logger = log.Logger("core/transport/ws")

var _ connmgr.Transport = (*Transport)(nil)

// Transport WebSocket 传输
type Transport struct {
	cfg    Config
	dialer *websocket.Dialer
	now    func() time.Time

	mu     sync.Mutex
	server *http.Server
	addr   string
}

// New 创建传输
func New(cfg Config) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Transport{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		now: time.Now,
	}, nil
}

// Config 返回传输配置
func (t *Transport) Config() Config {
	return t.cfg
}

// CanDial 本节点能否主动拨号该协议
//
// 未配置通告地址时无法发送 hello，一律返回 false。
func (t *Transport) CanDial(protocol types.Protocol) bool {
	if t.cfg.LocalAddress == nil {
		return false
	}
	if protocol != types.ProtocolWs && protocol != types.ProtocolWss {
		return false
	}
	return slices.Contains(t.cfg.Protocols, protocol)
}

// Dial 拨号并发送 hello
func (t *Transport) Dial(ctx context.Context, addr types.PeerAddress) (connmgr.Conn, error) {
	if t.cfg.LocalAddress == nil {
		return nil, ErrNoLocalAddress
	}
	if !t.CanDial(addr.Protocol) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProtocol, addr.Protocol)
	}

	url := addr.URL() + t.cfg.Path
	wsConn, resp, err := t.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := newConn(wsConn, remoteIP(wsConn.RemoteAddr()), t.cfg)
	if err := c.writeHello(newHello(*t.cfg.LocalAddress, t.cfg.Network)); err != nil {
		c.shutdown()
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	c.start()

	logger.Debug("出站 WebSocket 已连接", "url", url)
	return c, nil
}
