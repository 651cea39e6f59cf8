package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github/chapool/go-cardsigner/cmd/address"
	"github/chapool/go-cardsigner/cmd/card"
	"github/chapool/go-cardsigner/cmd/node"
	"github/chapool/go-cardsigner/cmd/tx"
	"github/chapool/go-cardsigner/internal/config"
	"github/chapool/go-cardsigner/internal/util/command"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     "app",
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

Decodes, hashes and assembles legacy Ethereum transactions signed by a
detached security element. Configuration through ENV, a TOML file or flags.`, config.ModuleName),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := command.BindPersistentFlags(rootCmd, viper.GetViper()); err != nil {
		log.Fatal().Err(err).Msg("Failed to bind flags")
	}

	// attach the subcommands
	rootCmd.AddCommand(
		address.New(),
		card.New(),
		node.New(),
		tx.New(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		os.Exit(1)
	}
}
