// Package network 实现网络维护编排
//
// Network 在 Idle 与 Connecting 两个状态之间切换：
//
//	Idle ──Connect()──▶ Connecting ──Disconnect()──▶ Idle
//
// Connecting 状态下：
//   - 立即检查一次节点数（CheckPeerCount），不足则拨号一个候选
//   - 每个 HousekeepingInterval 执行一次维护（Housekeeping）
//   - 连接池事件（建立、关闭、拨号失败）触发新的检查
//   - 找不到合适候选时指数退避，退避期间检查为空操作
//
// 维护步骤：
//
//  0. 清理地址簿中过期的地址
//  1. 为已建立的连接评分
//  2. 按 RecycleCount 回收评分最低的连接
//  3. 最低连接分低于 InboundExchangeScore 时允许入站交换
//  4. 通过 AddressRefresher 刷新地址
//  5. 更新时间偏移
//  6. 更新指标
//
// 步骤 4、5 未实现时返回 ErrNotSupported，只记录日志。
package network
