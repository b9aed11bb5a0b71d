package connmgr

import "errors"

// 连接池错误定义
var (
	// ErrPeerBlocked 节点被阻止
	ErrPeerBlocked = errors.New("connmgr: peer blocked")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("connmgr: invalid config")

	// ErrPoolClosed 连接池已关闭
	ErrPoolClosed = errors.New("connmgr: pool closed")

	// ErrTooManyConnections 已达连接数上限
	ErrTooManyConnections = errors.New("connmgr: too many connections")

	// ErrDuplicateConnection 与该节点已有连接
	ErrDuplicateConnection = errors.New("connmgr: duplicate connection")

	// ErrUnknownConnection 连接记录不存在或状态不符
	ErrUnknownConnection = errors.New("connmgr: unknown connection")

	// ErrRateLimited 入站连接被限速
	ErrRateLimited = errors.New("connmgr: inbound rate limited")
)
