package storage

import "encoding/json"

// Store 带前缀隔离的 KV 存储
//
// 所有键自动添加前缀，遍历时返回去掉前缀的键。
type Store struct {
	engine *Engine
	prefix []byte
}

// NewStore 创建带前缀的 Store
func NewStore(eng *Engine, prefix []byte) *Store {
	return &Store{
		engine: eng,
		prefix: append([]byte(nil), prefix...),
	}
}

func (s *Store) prefixKey(key []byte) []byte {
	prefixed := make([]byte, len(s.prefix)+len(key))
	copy(prefixed, s.prefix)
	copy(prefixed[len(s.prefix):], key)
	return prefixed
}

// Get 获取指定键的值
func (s *Store) Get(key []byte) ([]byte, error) {
	return s.engine.Get(s.prefixKey(key))
}

// Put 设置键值对
func (s *Store) Put(key, value []byte) error {
	return s.engine.Put(s.prefixKey(key), value)
}

// Delete 删除指定键
func (s *Store) Delete(key []byte) error {
	return s.engine.Delete(s.prefixKey(key))
}

// GetJSON 获取并反序列化 JSON 值
func (s *Store) GetJSON(key []byte, v interface{}) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// PutJSON 序列化并存储 JSON 值
func (s *Store) PutJSON(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(key, data)
}

// PrefixScan 遍历本命名空间下的全部键值
func (s *Store) PrefixScan(fn func(key, value []byte) bool) error {
	return s.engine.PrefixScan(s.prefix, func(key, value []byte) bool {
		return fn(key[len(s.prefix):], value)
	})
}

// Count 统计本命名空间下的键数
func (s *Store) Count() (int, error) {
	n := 0
	err := s.PrefixScan(func(_, _ []byte) bool {
		n++
		return true
	})
	return n, err
}
