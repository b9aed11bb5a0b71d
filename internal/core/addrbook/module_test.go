package addrbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// TestModule_MainNetwork 主网种子自动收录
func TestModule_MainNetwork(t *testing.T) {
	var book *Book
	app := fxtest.New(t,
		fx.Supply(config.NewConfig()),
		Module(),
		fx.Populate(&book),
	)
	app.RequireStart().RequireStop()

	require.NotNil(t, book)
	assert.True(t, book.Seeded())
	assert.Equal(t, 20, book.Len())
}

// TestModule_ConfiguredSeeds 测试网使用配置的种子
func TestModule_ConfiguredSeeds(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Network.ID = types.NetworkTest
	cfg.Network.SeedPeers = []string{
		"wss://seed.example.org:8443/b70d0c3e6cdf95485cac0688b086597a5139bc4237173023c83411331ef90507",
	}

	book, err := ProvideBook(Params{UnifiedCfg: cfg})
	require.NoError(t, err)
	assert.True(t, book.Seeded())
	assert.Equal(t, 1, book.Len())

	cfg.Network.SeedPeers = nil
	book, err = ProvideBook(Params{UnifiedCfg: cfg})
	require.NoError(t, err)
	assert.False(t, book.Seeded(), "test network has no built-in seeds")
}

// TestModule_UnknownNetwork 未注册网络是致命错误
func TestModule_UnknownNetwork(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Network.ID = types.NetworkBounty

	_, err := ProvideBook(Params{UnifiedCfg: cfg})
	assert.ErrorIs(t, err, ErrUnknownNetwork)
}
