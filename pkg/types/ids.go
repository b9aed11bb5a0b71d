package types

import (
	"encoding/hex"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// ============================================================================
//                              PublicKey - 长期公钥
// ============================================================================

// PublicKeySize 公钥长度（字节）
const PublicKeySize = 32

// PublicKey 节点长期公钥
//
// 本包只把公钥当作不透明的定长字节序列，签名校验由外部完成。
type PublicKey [PublicKeySize]byte

// EmptyPublicKey 空公钥
var EmptyPublicKey PublicKey

// ParsePublicKeyHex 从十六进制字符串解析公钥
func ParsePublicKeyHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return EmptyPublicKey, ErrInvalidPublicKey
	}
	return PublicKeyFromBytes(b)
}

// MustParsePublicKeyHex 解析公钥，失败时 panic
//
// 仅用于静态种子表。
func MustParsePublicKeyHex(s string) PublicKey {
	pk, err := ParsePublicKeyHex(s)
	if err != nil {
		panic("types: invalid public key hex " + s)
	}
	return pk
}

// PublicKeyFromBytes 从字节切片创建公钥
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if len(b) != PublicKeySize {
		return EmptyPublicKey, ErrInvalidPublicKey
	}
	var pk PublicKey
	copy(pk[:], b)
	return pk, nil
}

// Hex 返回公钥的十六进制表示
func (pk PublicKey) Hex() string {
	return hex.EncodeToString(pk[:])
}

// String 实现 fmt.Stringer
func (pk PublicKey) String() string {
	return pk.Hex()
}

// IsEmpty 检查公钥是否为空
func (pk PublicKey) IsEmpty() bool {
	return pk == EmptyPublicKey
}

// PeerID 派生节点标识
func (pk PublicKey) PeerID() PeerID {
	return PeerIDFromPublicKey(pk)
}

// ============================================================================
//                              PeerID - 节点标识
// ============================================================================

// PeerIDSize 节点标识长度（字节）
const PeerIDSize = 16

// PeerID 逻辑节点唯一标识
//
// 由公钥派生：BLAKE2b-256(公钥) 的前 16 字节。
//
// 外部表示格式：
//   - String(): Base58 编码
//   - ShortString(): Base58 前 8 个字符，用于日志
type PeerID [PeerIDSize]byte

// EmptyPeerID 空节点标识
var EmptyPeerID PeerID

// PeerIDFromPublicKey 从公钥派生节点标识
func PeerIDFromPublicKey(pk PublicKey) PeerID {
	sum := blake2b.Sum256(pk[:])
	var id PeerID
	copy(id[:], sum[:PeerIDSize])
	return id
}

// PeerIDFromBytes 从字节切片创建节点标识
func PeerIDFromBytes(b []byte) (PeerID, error) {
	if len(b) != PeerIDSize {
		return EmptyPeerID, ErrInvalidPeerID
	}
	var id PeerID
	copy(id[:], b)
	return id, nil
}

// ParsePeerID 从 Base58 字符串解析节点标识
func ParsePeerID(s string) (PeerID, error) {
	if s == "" {
		return EmptyPeerID, ErrEmptyPeerID
	}
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyPeerID, ErrInvalidPeerID
	}
	return PeerIDFromBytes(b)
}

// String 返回 Base58 表示
func (id PeerID) String() string {
	if id.IsEmpty() {
		return ""
	}
	return base58.Encode(id[:])
}

// ShortString 返回日志用的短标识
func (id PeerID) ShortString() string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Bytes 返回字节切片
func (id PeerID) Bytes() []byte {
	return id[:]
}

// IsEmpty 检查是否为空
func (id PeerID) IsEmpty() bool {
	return id == EmptyPeerID
}
