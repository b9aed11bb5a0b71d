// Package eventbus 实现进程内类型化事件总线
//
// 连接池把连接建立、连接关闭、拨号失败发布到总线，
// 网络编排器订阅这些事件并触发节点数检查。
//
// 事件按具体类型路由：
//
//	sub, _ := bus.Subscribe(new(types.EvtPeerClosed))
//	em, _ := bus.Emitter(new(types.EvtPeerClosed))
//	_ = em.Emit(types.EvtPeerClosed{...})
//	evt := (<-sub.Out()).(types.EvtPeerClosed)
//
// 发射永不阻塞：订阅者缓冲区满时事件被丢弃并计数。
package eventbus
