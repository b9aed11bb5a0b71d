package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/netip"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dep2p/go-chainnet/internal/core/connmgr"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// InboundHandler 入站连接的接收方，*connmgr.Pool 实现了该接口
type InboundHandler interface {
	BeginInbound(conn connmgr.Conn, remote netip.Addr) (uuid.UUID, error)
	CompleteInbound(id uuid.UUID, addr types.PeerAddress) error
	Close(id uuid.UUID, reason types.CloseReason, msg string) bool
}

var _ InboundHandler = (*connmgr.Pool)(nil)

var upgrader = websocket.Upgrader{
	// 节点之间互连，不做来源校验
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler 返回处理入站 WebSocket 升级的 HTTP 处理器
func (t *Transport) Handler(h InboundHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Debug("WebSocket 升级失败", "remote", r.RemoteAddr, "error", err)
			return
		}
		t.accept(h, wsConn)
	})
}

func (t *Transport) accept(h InboundHandler, wsConn *websocket.Conn) {
	remote := remoteIP(wsConn.RemoteAddr())
	c := newConn(wsConn, remote, t.cfg)

	id, err := h.BeginInbound(c, remote)
	if err != nil {
		logger.Debug("入站连接被拒绝", "remote", remote.String(), "error", err)
		reason := types.CloseManualPeerDisconnect
		if errors.Is(err, connmgr.ErrTooManyConnections) {
			reason = types.CloseMaxPeerCountReached
		}
		_ = c.Close(reason, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.HandshakeTimeout)
	defer cancel()

	msg, err := c.readHello(ctx)
	if err != nil {
		h.Close(id, types.CloseInvalidHandshake, err.Error())
		return
	}
	addr, err := msg.peerAddress(t.cfg.Network, remote, t.now())
	if err != nil {
		h.Close(id, types.CloseInvalidHandshake, err.Error())
		return
	}

	c.start()
	if err := h.CompleteInbound(id, addr); err != nil {
		logger.Debug("入站登记失败", "remote", remote.String(), "error", err)
	}
}

// Listen 在 ListenAddr 上开始接受入站连接
func (t *Transport) Listen(h InboundHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.server != nil {
		return ErrAlreadyListening
	}

	ln, err := net.Listen("tcp", t.cfg.ListenAddr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(t.cfg.Path, t.Handler(h))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: t.cfg.HandshakeTimeout,
	}
	t.server = srv
	t.addr = ln.Addr().String()

	tls := t.cfg.TLSCertFile != "" && t.cfg.TLSKeyFile != ""
	go func() {
		var err error
		if tls {
			err = srv.ServeTLS(ln, t.cfg.TLSCertFile, t.cfg.TLSKeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("WebSocket 监听退出", "error", err)
		}
	}()

	logger.Info("WebSocket 监听已启动", "addr", t.addr, "path", t.cfg.Path, "tls", tls)
	return nil
}

// Addr 返回实际监听地址，未监听时为空
func (t *Transport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addr
}

// Close 停止监听
//
// 已建立的连接由连接池负责关闭。
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	srv := t.server
	t.server = nil
	t.addr = ""
	t.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
