package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dep2p/go-chainnet/pkg/lib/log"
)

var logger = log.Logger("core/metrics")

// Server 指标 HTTP 服务
type Server struct {
	cfg Config
	srv *http.Server
	ln  net.Listener
}

// NewServer 创建指标服务
func NewServer(cfg Config, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, m.Handler())
	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start 开始监听
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.ln = ln
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("指标服务异常退出", "error", err)
		}
	}()
	logger.Info("指标服务已启动", "addr", ln.Addr().String(), "path", s.cfg.Path)
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop 停止服务
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
