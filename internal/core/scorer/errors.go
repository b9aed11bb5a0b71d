package scorer

import "errors"

var (
	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("scorer: invalid config")

	// ErrNilDependency 缺少地址簿或连接池
	ErrNilDependency = errors.New("scorer: nil dependency")
)
