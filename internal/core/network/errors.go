package network

import "errors"

var (
	// ErrNotSupported 维护步骤未实现
	ErrNotSupported = errors.New("network: not supported")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("network: invalid config")

	// ErrNilDependency 缺少依赖组件
	ErrNilDependency = errors.New("network: nil dependency")
)
