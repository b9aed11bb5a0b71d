package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// TestMetrics_Record 测试记录方法
func TestMetrics_Record(t *testing.T) {
	m := New()

	m.SetPeerCount(7)
	m.SetConnectingCount(2)
	m.SetAllowInboundExchange(true)
	m.ConnectAttempt()
	m.ConnectAttempt()
	m.ConnectFailure()
	m.Recycled(3)
	m.Recycled(0)
	m.ConnectionClosed(types.ClosePeerConnectionRecycled)

	assert.Equal(t, 7.0, testutil.ToFloat64(m.peerCount))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectingCount))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.allowInbound))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectAttempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectFailures))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.recycled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.closed.WithLabelValues("peer-connection-recycled")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.closed.WithLabelValues("ping-timeout")))
	t.Log("✅ 指标记录正确")
}

// TestMetrics_NilSafe nil 接收者不 panic
func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetPeerCount(1)
		m.SetConnectingCount(1)
		m.SetAddressBookSize(1)
		m.SetAllowInboundExchange(true)
		m.SetLowestScore(0.3)
		m.ConnectAttempt()
		m.ConnectFailure()
		m.ConnectionClosed(types.CloseConnectionLost)
		m.Recycled(1)
		m.HousekeepingRun()
		m.Backoff()
	})
}

// TestMetrics_Handler 测试 HTTP 导出
func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SetAddressBookSize(42)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "chainnet_network_address_book_size 42")
}

// TestModule_Server 启用时启动 HTTP 服务
func TestModule_Server(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.ListenAddr = "127.0.0.1:0"

	var m *Metrics
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module,
		fx.Populate(&m),
	)
	app.RequireStart()
	require.NotNil(t, m)
	app.RequireStop()
}

// TestServer_StartStop 测试服务启停
func TestServer_StartStop(t *testing.T) {
	m := New()
	m.HousekeepingRun()

	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	srv := NewServer(cfg, m)
	require.NoError(t, srv.Start())

	resp, err := http.Get("http://" + srv.Addr() + cfg.Path)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "chainnet_network_housekeeping_runs_total 1")

	require.NoError(t, srv.Stop(context.Background()))
}
