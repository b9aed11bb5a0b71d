package types

import "strings"

// ServiceFlags 节点声明的服务能力标志
type ServiceFlags uint32

const (
	// ServiceNone 无服务
	ServiceNone ServiceFlags = 0
	// ServiceNano 仅同步区块头
	ServiceNano ServiceFlags = 1 << 0
	// ServiceLight 轻节点
	ServiceLight ServiceFlags = 1 << 1
	// ServiceFull 全节点
	ServiceFull ServiceFlags = 1 << 2
)

// IsFullNode 是否全节点
func (s ServiceFlags) IsFullNode() bool {
	return s&ServiceFull != 0
}

// IsLightNode 是否轻节点
func (s ServiceFlags) IsLightNode() bool {
	return s&ServiceLight != 0
}

// IsNanoNode 是否 nano 节点
func (s ServiceFlags) IsNanoNode() bool {
	return s&ServiceNano != 0
}

// String 返回标志的可读表示
func (s ServiceFlags) String() string {
	if s == ServiceNone {
		return "none"
	}
	parts := make([]string, 0, 3)
	if s.IsFullNode() {
		parts = append(parts, "full")
	}
	if s.IsLightNode() {
		parts = append(parts, "light")
	}
	if s.IsNanoNode() {
		parts = append(parts, "nano")
	}
	return strings.Join(parts, "|")
}
