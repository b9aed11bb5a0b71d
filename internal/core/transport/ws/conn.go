package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-chainnet/internal/core/connmgr"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// closeCodeBase 关闭帧状态码基数，实际状态码为 closeCodeBase + CloseReason
const closeCodeBase = 4000

// maxCloseText 关闭帧原因文本上限（125 字节减去 2 字节状态码）
const maxCloseText = 123

// controlWriteTimeout 控制帧写超时
const controlWriteTimeout = time.Second

var (
	_ connmgr.Conn            = (*Conn)(nil)
	_ connmgr.LatencyReporter = (*Conn)(nil)
	_ connmgr.Monitor         = (*Conn)(nil)
)

// Conn WebSocket 连接
type Conn struct {
	ws     *websocket.Conn
	remote netip.Addr
	cfg    Config

	// writeMu gorilla 连接同一时刻只允许一个写者
	writeMu sync.Mutex

	latency  atomic.Int64
	pingSent atomic.Int64
	started  atomic.Bool
	closing  atomic.Bool

	mu      sync.Mutex
	lost    types.CloseReason
	lostMsg string

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(ws *websocket.Conn, remote netip.Addr, cfg Config) *Conn {
	ws.SetReadLimit(cfg.ReadLimit)
	return &Conn{
		ws:     ws,
		remote: remote,
		cfg:    cfg,
		done:   make(chan struct{}),
	}
}

// remoteIP 从 net.Addr 解析远端 IP
func remoteIP(addr net.Addr) netip.Addr {
	if addr == nil {
		return netip.Addr{}
	}
	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return netip.Addr{}
	}
	return ap.Addr().Unmap()
}

// RemoteIP 返回远端 IP
func (c *Conn) RemoteIP() netip.Addr {
	return c.remote
}

// Latency 最近一次心跳往返时延，尚未测得时为 0
func (c *Conn) Latency() time.Duration {
	return time.Duration(c.latency.Load())
}

// Done 连接结束时关闭
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// LostReason 连接意外结束的原因
//
// 本端主动关闭或连接仍存活时返回 0。
func (c *Conn) LostReason() (types.CloseReason, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lost, c.lostMsg
}

// ============================================================================
//                              握手
// ============================================================================

func (c *Conn) writeHello(h hello) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	defer c.ws.SetWriteDeadline(time.Time{})
	return c.ws.WriteJSON(h)
}

func (c *Conn) readHello(ctx context.Context) (hello, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.cfg.HandshakeTimeout)
	}
	_ = c.ws.SetReadDeadline(deadline)
	defer c.ws.SetReadDeadline(time.Time{})

	var h hello
	if err := c.ws.ReadJSON(&h); err != nil {
		return hello{}, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	return h, nil
}

// ============================================================================
//                              读循环与心跳
// ============================================================================

// start 启动读循环与心跳，只生效一次
func (c *Conn) start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.readLoop()
	go c.pingLoop()
}

func (c *Conn) idleDeadline() time.Time {
	return time.Now().Add(c.cfg.PingInterval + c.cfg.PongTimeout)
}

func (c *Conn) readLoop() {
	c.ws.SetPongHandler(func(string) error {
		if sent := c.pingSent.Load(); sent > 0 {
			c.latency.Store(time.Now().UnixNano() - sent)
		}
		return c.ws.SetReadDeadline(c.idleDeadline())
	})
	_ = c.ws.SetReadDeadline(c.idleDeadline())

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.markLost(err)
			c.shutdown()
			return
		}
		_ = c.ws.SetReadDeadline(c.idleDeadline())
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.pingSent.Store(time.Now().UnixNano())
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.PongTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// markLost 根据读错误记录连接结束原因
func (c *Conn) markLost(err error) {
	if c.closing.Load() {
		return
	}

	reason, msg := types.CloseConnectionLost, err.Error()
	var netErr net.Error
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		reason, msg = types.ClosePingTimeout, "no frames within ping timeout"
	case errors.As(err, &closeErr):
		if r := types.CloseReason(closeErr.Code - closeCodeBase); r.IsValid() {
			reason = types.CloseManualPeerDisconnect
			msg = "remote: " + r.String()
			if closeErr.Text != "" {
				msg += ": " + closeErr.Text
			}
		}
	}

	c.mu.Lock()
	if c.lost == 0 {
		c.lost, c.lostMsg = reason, msg
	}
	c.mu.Unlock()
}

// ============================================================================
//                              关闭
// ============================================================================

// Close 发送带原因的关闭帧并关闭连接
func (c *Conn) Close(reason types.CloseReason, msg string) error {
	c.closing.Store(true)

	if len(msg) > maxCloseText {
		msg = msg[:maxCloseText]
	}
	c.writeMu.Lock()
	err := c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCodeBase+int(reason), msg),
		time.Now().Add(controlWriteTimeout))
	c.writeMu.Unlock()
	if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		err = nil
	}

	c.shutdown()
	return err
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		_ = c.ws.Close()
		close(c.done)
	})
}
