// Package scorer 实现节点评分
//
// 评分器为候选地址和已建立连接打分，回答三个问题：
//   - 下一个该拨号的地址是谁（PickAddress）
//   - 当前节点集合是否足够好（IsGoodPeerSet / NeedsMorePeers / NeedsGoodPeers）
//   - 需要回收时先断开哪些连接（RecycleConnections）
//
// 分数取值 [0,1]，负分表示排除。地址评分与连接评分都可替换：
//
//	s, _ := scorer.New(cfg, book, pool, clk,
//	    scorer.WithAddressScoreFunc(myAddrScore),
//	    scorer.WithConnectionScoreFunc(myConnScore),
//	)
//
// 新连接在 MinAge 内不参与评分，也就不会被回收。
package scorer
