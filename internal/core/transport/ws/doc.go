// Package ws 实现基于 WebSocket 的传输
//
// 出站：Dial 建立 ws/wss 连接后发送 hello（本机通告地址、服务能力、所属网络）。
// 入站：Handler 升级 HTTP 连接，经 InboundHandler（通常是连接池）登记，
// 在握手超时内读取对端 hello，成功后完成入站登记。
//
// 连接建立后启动读循环与心跳：
//   - 心跳应答用于估计往返时延（Latency）
//   - 超过 PingInterval+PongTimeout 未收到任何帧视为 PingTimeout
//   - 对端带原因关闭视为 ManualPeerDisconnect，异常断开视为 ConnectionLost
//
// 关闭帧的状态码为 4000 + CloseReason。
package ws
