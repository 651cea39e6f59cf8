package command

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github/chapool/go-cardsigner/internal/config"
)

// Keys of the persistent flags bound through viper.
const (
	KeyConfigFile       = "config"
	KeyLogLevel         = "logger.level"
	KeyChainID          = "chain.id"
	KeyReplayProtection = "chain.replay-protection"
	KeyRPCURLs          = "chain.rpc-urls"
	KeyKeyIndex         = "device.key-index"
)

// BindPersistentFlags registers the global flags on root and binds them to v.
func BindPersistentFlags(root *cobra.Command, v *viper.Viper) error {
	flags := root.PersistentFlags()
	flags.String("config", "", "TOML config file overlaid on the environment")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.Uint64("chain-id", config.DefaultChainID, "chain id used for replay protection")
	flags.Bool("replay-protection", true, "sign the chain scoped EIP-155 hash")
	flags.StringSlice("rpc-url", nil, "node JSON-RPC URL, repeat for failover")
	flags.Int("key-index", config.DefaultKeyIndex, "signing device key slot")

	for key, name := range map[string]string{
		KeyConfigFile:       "config",
		KeyLogLevel:         "log-level",
		KeyChainID:          "chain-id",
		KeyReplayProtection: "replay-protection",
		KeyRPCURLs:          "rpc-url",
		KeyKeyIndex:         "key-index",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return errors.Wrapf(err, "failed to bind flag %s", name)
		}
	}

	return nil
}

// LoadConfig resolves the server config with flags over the TOML file over the environment.
func LoadConfig(v *viper.Viper) (config.Server, error) {
	cfg := config.DefaultServiceConfigFromEnv()

	if path := v.GetString(KeyConfigFile); path != "" {
		if err := config.LoadTOML(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if v.IsSet(KeyLogLevel) {
		cfg.Logger.Level = config.ParseLogLevel(v.GetString(KeyLogLevel))
	}
	if v.IsSet(KeyChainID) {
		cfg.Chain.ChainID = v.GetUint64(KeyChainID)
	}
	if v.IsSet(KeyReplayProtection) {
		cfg.Chain.ReplayProtection = v.GetBool(KeyReplayProtection)
	}
	if v.IsSet(KeyRPCURLs) {
		cfg.Chain.RPCURLs = v.GetStringSlice(KeyRPCURLs)
	}
	if v.IsSet(KeyKeyIndex) {
		cfg.Device.KeyIndex = v.GetInt(KeyKeyIndex)
	}

	return cfg, nil
}

// RunWithConfig loads the config from the global viper instance and runs fn through WithConfig.
func RunWithConfig(cmd *cobra.Command, fn func(ctx context.Context, cfg config.Server) error) error {
	cfg, err := LoadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return WithConfig(ctx, cfg, fn)
}
