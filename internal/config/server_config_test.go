package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-cardsigner/internal/config"
)

func TestPrintServiceEnv(t *testing.T) {
	config := config.DefaultServiceConfigFromEnv()
	_, err := json.MarshalIndent(config, "", "  ")

	if err != nil {
		t.Fatal(err)
	}
}

func TestDefaultServiceConfigFromEnv(t *testing.T) {
	t.Setenv("CHAIN_ID", "1")
	t.Setenv("CHAIN_REPLAY_PROTECTION", "false")
	t.Setenv("CHAIN_RPC_URLS", "http://a:8545,http://b:8545")
	t.Setenv("SERVER_LOGGER_LEVEL", "debug")

	cfg := config.DefaultServiceConfigFromEnv()

	assert.Equal(t, uint64(1), cfg.Chain.ChainID)
	assert.False(t, cfg.Chain.ReplayProtection)
	assert.Equal(t, []string{"http://a:8545", "http://b:8545"}, cfg.Chain.RPCURLs)
	assert.Equal(t, zerolog.DebugLevel, cfg.Logger.Level)
	assert.Equal(t, config.DefaultKeyIndex, cfg.Device.KeyIndex)
}

func TestDotEnvTryLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env.test")
	require.NoError(t, os.WriteFile(path, []byte("DEVICE_KEY_INDEX=7\n"), 0o600))

	t.Setenv("SERVER_DOTENV_FILE", path)
	t.Setenv("DEVICE_KEY_INDEX", "")
	require.NoError(t, os.Unsetenv("DEVICE_KEY_INDEX"))

	cfg := config.DefaultServiceConfigFromEnv()
	assert.Equal(t, 7, cfg.Device.KeyIndex)

	// missing files are ignored
	config.DotEnvTryLoad(filepath.Join(t.TempDir(), "missing"))
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[logger]
level = "warn"
caller = true

[chain]
chain_id = 5
rpc_urls = ["http://node:8545"]
rpc_timeout = "2s"

[device]
key_index = 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := config.DefaultServiceConfigFromEnv()
	cfg.Chain.ReplayProtection = true
	require.NoError(t, config.LoadTOML(path, &cfg))

	assert.Equal(t, zerolog.WarnLevel, cfg.Logger.Level)
	assert.True(t, cfg.Logger.Caller)
	assert.Equal(t, uint64(5), cfg.Chain.ChainID)
	assert.True(t, cfg.Chain.ReplayProtection)
	assert.Equal(t, []string{"http://node:8545"}, cfg.Chain.RPCURLs)
	assert.Equal(t, 2*time.Second, cfg.Chain.RPCTimeout)
	assert.Equal(t, 3, cfg.Device.KeyIndex)
}

func TestLoadTOMLInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chain]\nrpc_timeout = \"soon\"\n"), 0o600))

	cfg := config.DefaultServiceConfigFromEnv()
	require.Error(t, config.LoadTOML(path, &cfg))
	require.Error(t, config.LoadTOML(filepath.Join(t.TempDir(), "missing.toml"), &cfg))
}

func TestSigningChainID(t *testing.T) {
	chain := config.Chain{ChainID: 3, ReplayProtection: true}
	require.NotNil(t, chain.SigningChainID())
	assert.Equal(t, int64(3), chain.SigningChainID().Int64())

	chain.ReplayProtection = false
	assert.Nil(t, chain.SigningChainID())
}
