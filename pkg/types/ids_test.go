package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

const testKeyHex = "b70d0c3e6cdf95485cac0688b086597a5139bc4237173023c83411331ef90507"

// TestPublicKey_ParseHex 测试公钥解析
func TestPublicKey_ParseHex(t *testing.T) {
	pk, err := ParsePublicKeyHex(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, pk.Hex())
	assert.False(t, pk.IsEmpty())

	_, err = ParsePublicKeyHex("zz")
	assert.ErrorIs(t, err, ErrInvalidPublicKey)

	_, err = ParsePublicKeyHex("abcd")
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

// TestPeerID_Derivation 测试 PeerID 派生
func TestPeerID_Derivation(t *testing.T) {
	pk := MustParsePublicKeyHex(testKeyHex)

	sum := blake2b.Sum256(pk[:])
	id := PeerIDFromPublicKey(pk)
	assert.Equal(t, sum[:PeerIDSize], id.Bytes())
	assert.Equal(t, id, pk.PeerID())
}

// TestPeerID_StringRoundTrip 测试 Base58 表示
func TestPeerID_StringRoundTrip(t *testing.T) {
	id := MustParsePublicKeyHex(testKeyHex).PeerID()

	parsed, err := ParsePeerID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.Len(t, id.ShortString(), 8)

	_, err = ParsePeerID("")
	assert.ErrorIs(t, err, ErrEmptyPeerID)

	_, err = ParsePeerID("0OIl")
	assert.ErrorIs(t, err, ErrInvalidPeerID)

	assert.Equal(t, "", EmptyPeerID.String())
}
