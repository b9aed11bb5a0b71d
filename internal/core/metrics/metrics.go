package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-chainnet/pkg/types"
)

const (
	namespace = "chainnet"
	subsystem = "network"
)

// Metrics 网络层指标集合
type Metrics struct {
	registry *prometheus.Registry

	peerCount       prometheus.Gauge
	connectingCount prometheus.Gauge
	addrBookSize    prometheus.Gauge
	allowInbound    prometheus.Gauge
	lowestScore     prometheus.Gauge

	connectAttempts  prometheus.Counter
	connectFailures  prometheus.Counter
	recycled         prometheus.Counter
	housekeepingRuns prometheus.Counter
	backoffs         prometheus.Counter

	closed *prometheus.CounterVec
}

// New 创建并注册全部指标
func New() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		})
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		})
	}

	m := &Metrics{
		registry:         prometheus.NewRegistry(),
		peerCount:        gauge("peer_count", "Number of established peer connections."),
		connectingCount:  gauge("connecting_count", "Number of outbound connection attempts in flight."),
		addrBookSize:     gauge("address_book_size", "Number of known peer addresses."),
		allowInbound:     gauge("allow_inbound_exchange", "1 if inbound peer exchange is currently allowed."),
		lowestScore:      gauge("lowest_connection_score", "Lowest score among scored established connections."),
		connectAttempts:  counter("connect_attempts_total", "Outbound connection attempts started."),
		connectFailures:  counter("connect_failures_total", "Outbound connection attempts that failed."),
		recycled:         counter("recycled_total", "Connections closed by recycling."),
		housekeepingRuns: counter("housekeeping_runs_total", "Completed housekeeping passes."),
		backoffs:         counter("backoffs_total", "Times peer discovery entered back-off."),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "connections_closed_total", Help: "Closed connections by reason.",
		}, []string{"reason"}),
	}

	m.registry.MustRegister(
		m.peerCount, m.connectingCount, m.addrBookSize, m.allowInbound, m.lowestScore,
		m.connectAttempts, m.connectFailures, m.recycled, m.housekeepingRuns, m.backoffs,
		m.closed,
	)
	for _, r := range types.AllCloseReasons() {
		m.closed.WithLabelValues(r.String())
	}
	return m
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回指标 HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ============================================================================
//                              记录方法
// ============================================================================

// SetPeerCount 记录已建立连接数
func (m *Metrics) SetPeerCount(n int) {
	if m == nil {
		return
	}
	m.peerCount.Set(float64(n))
}

// SetConnectingCount 记录进行中的拨号数
func (m *Metrics) SetConnectingCount(n int) {
	if m == nil {
		return
	}
	m.connectingCount.Set(float64(n))
}

// SetAddressBookSize 记录地址簿大小
func (m *Metrics) SetAddressBookSize(n int) {
	if m == nil {
		return
	}
	m.addrBookSize.Set(float64(n))
}

// SetAllowInboundExchange 记录入站交换许可
func (m *Metrics) SetAllowInboundExchange(allow bool) {
	if m == nil {
		return
	}
	if allow {
		m.allowInbound.Set(1)
	} else {
		m.allowInbound.Set(0)
	}
}

// SetLowestScore 记录最低连接分
func (m *Metrics) SetLowestScore(score float64) {
	if m == nil {
		return
	}
	m.lowestScore.Set(score)
}

// ConnectAttempt 记录一次出站拨号
func (m *Metrics) ConnectAttempt() {
	if m == nil {
		return
	}
	m.connectAttempts.Inc()
}

// ConnectFailure 记录一次拨号失败
func (m *Metrics) ConnectFailure() {
	if m == nil {
		return
	}
	m.connectFailures.Inc()
}

// ConnectionClosed 记录一次连接关闭
func (m *Metrics) ConnectionClosed(reason types.CloseReason) {
	if m == nil {
		return
	}
	m.closed.WithLabelValues(reason.String()).Inc()
}

// Recycled 记录回收的连接数
func (m *Metrics) Recycled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recycled.Add(float64(n))
}

// HousekeepingRun 记录一次维护
func (m *Metrics) HousekeepingRun() {
	if m == nil {
		return
	}
	m.housekeepingRuns.Inc()
}

// Backoff 记录一次退避
func (m *Metrics) Backoff() {
	if m == nil {
		return
	}
	m.backoffs.Inc()
}
