// Package connmgr 实现连接池
//
// 连接池持有所有连接记录，负责：
//   - 出站拨号的准入（并发拨号上限、节点总数上限、重复节点、门控）
//   - 入站连接的两阶段接入（BeginInbound / CompleteInbound）
//   - 幂等的关闭操作，并同步地址簿状态
//   - 通过事件总线发布连接建立、连接关闭、拨号失败事件
//
// # 记录生命周期
//
//	PendingOutbound ──拨号成功──▶ Established ──Close──▶ Closed
//	PendingInbound  ──握手完成──▶ Established
//
// 拨号在独立 goroutine 中进行，失败时地址以 ConnectionFailed 关闭，
// 记录被移除，不会悄悄消失。
//
// # 锁
//
// 连接池的锁从不在调用地址簿、事件总线或传输层时持有。
package connmgr
