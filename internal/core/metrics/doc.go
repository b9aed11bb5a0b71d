// Package metrics 提供网络层 Prometheus 指标
//
// 指标注册在独立的 Registry 上，不污染全局默认注册表。
// 所有记录方法对 nil 接收者安全，未启用指标时组件可以直接传 nil。
//
// 指标列表（前缀 chainnet_network_）：
//   - peer_count, connecting_count, address_book_size: 当前规模
//   - allow_inbound_exchange, lowest_connection_score: 维护结果
//   - connect_attempts_total, connect_failures_total: 出站拨号
//   - connections_closed_total{reason}: 按原因统计的关闭
//   - recycled_total, housekeeping_runs_total, backoffs_total: 维护动作
package metrics
