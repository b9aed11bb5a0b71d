// Package storage 提供基于 BadgerDB 的持久化存储
//
// Engine 封装 BadgerDB，Store 在其上提供按前缀隔离的命名空间，
// 每个组件使用独立前缀：
//   - a/ - 地址簿
//
// 存储是可选的：未启用时模块提供 nil Engine，组件退化为纯内存模式。
//
// # 使用示例
//
//	eng, err := storage.Open(storage.Config{InMemory: true})
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	book := storage.NewStore(eng, []byte("a/"))
//	_ = book.PutJSON([]byte("peer1"), entry)
package storage
