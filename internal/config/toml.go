package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

type fileConfig struct {
	Logger struct {
		Level              string `toml:"level"`
		PrettyPrintConsole *bool  `toml:"pretty_print_console"`
		Caller             *bool  `toml:"caller"`
	} `toml:"logger"`
	Chain struct {
		ChainID          *uint64  `toml:"chain_id"`
		ReplayProtection *bool    `toml:"replay_protection"`
		RPCURLs          []string `toml:"rpc_urls"`
		RPCTimeout       string   `toml:"rpc_timeout"`
	} `toml:"chain"`
	Device struct {
		KeyIndex *int `toml:"key_index"`
	} `toml:"device"`
}

// LoadTOML overlays the values present in the TOML file at path onto cfg.
// Keys missing from the file keep their current value.
func LoadTOML(path string, cfg *Server) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return errors.Wrapf(err, "failed to decode config file %s", path)
	}

	if fc.Logger.Level != "" {
		cfg.Logger.Level = ParseLogLevel(fc.Logger.Level)
	}
	if fc.Logger.PrettyPrintConsole != nil {
		cfg.Logger.PrettyPrintConsole = *fc.Logger.PrettyPrintConsole
	}
	if fc.Logger.Caller != nil {
		cfg.Logger.Caller = *fc.Logger.Caller
	}

	if fc.Chain.ChainID != nil {
		cfg.Chain.ChainID = *fc.Chain.ChainID
	}
	if fc.Chain.ReplayProtection != nil {
		cfg.Chain.ReplayProtection = *fc.Chain.ReplayProtection
	}
	if len(fc.Chain.RPCURLs) > 0 {
		cfg.Chain.RPCURLs = fc.Chain.RPCURLs
	}
	if fc.Chain.RPCTimeout != "" {
		d, err := time.ParseDuration(fc.Chain.RPCTimeout)
		if err != nil {
			return errors.Wrap(err, "invalid chain.rpc_timeout")
		}
		cfg.Chain.RPCTimeout = d
	}

	if fc.Device.KeyIndex != nil {
		cfg.Device.KeyIndex = *fc.Device.KeyIndex
	}

	return nil
}
