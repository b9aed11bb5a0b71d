package addrbook

import "errors"

var (
	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("addrbook: invalid config")

	// ErrUnknownNetwork 网络未注册
	ErrUnknownNetwork = errors.New("addrbook: unknown network")
)
