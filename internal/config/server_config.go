package config

import (
	"math/big"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/subosito/gotenv"
	"github/chapool/go-cardsigner/internal/util"
)

const (
	// DefaultChainID is the Ropsten test network.
	DefaultChainID = 3
	// DefaultKeyIndex is the first key slot generated on a fresh card.
	DefaultKeyIndex = 1
)

type LoggerServer struct {
	Level              zerolog.Level
	PrettyPrintConsole bool
	Caller             bool
}

type Chain struct {
	ChainID uint64
	// ReplayProtection selects EIP-155 v values and the chain scoped signing hash.
	ReplayProtection bool
	RPCURLs          []string
	RPCTimeout       time.Duration
}

// SigningChainID is the chain id mixed into signing hashes and v, nil without replay protection.
func (c Chain) SigningChainID() *big.Int {
	if !c.ReplayProtection {
		return nil
	}

	return new(big.Int).SetUint64(c.ChainID)
}

type Device struct {
	KeyIndex int
	// EmulatorSeedHex feeds the in-process card emulator, never used with a real card.
	EmulatorSeedHex string `json:"-"`
	EmulatorHighS   bool
}

type Server struct {
	Logger LoggerServer
	Chain  Chain
	Device Device
}

// DefaultServiceConfigFromEnv returns the server config as parsed from environment variables
// and their respective defaults defined below.
func DefaultServiceConfigFromEnv() Server {
	DotEnvTryLoad(util.GetEnv("SERVER_DOTENV_FILE", ".env.local"))

	return Server{
		Logger: LoggerServer{
			Level:              ParseLogLevel(util.GetEnv("SERVER_LOGGER_LEVEL", zerolog.InfoLevel.String())),
			PrettyPrintConsole: util.GetEnvAsBool("SERVER_LOGGER_PRETTY_PRINT_CONSOLE", false),
			Caller:             util.GetEnvAsBool("SERVER_LOGGER_CALLER", false),
		},
		Chain: Chain{
			ChainID:          util.GetEnvAsUint64("CHAIN_ID", DefaultChainID),
			ReplayProtection: util.GetEnvAsBool("CHAIN_REPLAY_PROTECTION", true),
			RPCURLs:          util.GetEnvAsStringArr("CHAIN_RPC_URLS", []string{}),
			RPCTimeout:       util.GetEnvAsDuration("CHAIN_RPC_TIMEOUT", 10*time.Second), //nolint:mnd
		},
		Device: Device{
			KeyIndex:        util.GetEnvAsInt("DEVICE_KEY_INDEX", DefaultKeyIndex),
			EmulatorSeedHex: util.GetEnv("DEVICE_EMULATOR_SEED", ""),
			EmulatorHighS:   util.GetEnvAsBool("DEVICE_EMULATOR_HIGH_S", false),
		},
	}
}

// DotEnvTryLoad loads the given dotenv file into the process environment.
// Variables already present in the environment win. A missing file is not an error.
func DotEnvTryLoad(path string) {
	if path == "" {
		return
	}

	if _, err := os.Stat(path); err != nil {
		return
	}

	if err := gotenv.Load(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to load dotenv file")
	}
}

// ParseLogLevel parses a zerolog level name, falling back to info.
func ParseLogLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		log.Warn().Err(err).Str("level", s).Msg("Invalid log level, falling back to info")
		return zerolog.InfoLevel
	}

	return level
}
