package network

import "math"

// recycleEpsilon 容忍浮点误差
const recycleEpsilon = 1e-9

// RecycleCount 计算一次维护应回收的连接数
//
// 连接数低于 Active 时不回收；之后回收比例从 PercentageMin 线性增长，
// 在 PeerCountMax 处达到 PercentageMax。结果向上取整且不超过连接数。
func RecycleCount(peerCount int, c RecycleConfig) int {
	if peerCount <= 0 || peerCount < c.Active {
		return 0
	}

	fraction := c.PercentageMax
	if span := c.PeerCountMax - c.Active; span > 0 {
		fraction = float64(peerCount-c.Active)*(c.PercentageMax-c.PercentageMin)/float64(span) + c.PercentageMin
	}
	fraction = math.Max(0, math.Min(fraction, c.PercentageMax))

	count := int(math.Ceil(float64(peerCount)*fraction - recycleEpsilon))
	switch {
	case count < 0:
		return 0
	case count > peerCount:
		return peerCount
	default:
		return count
	}
}
