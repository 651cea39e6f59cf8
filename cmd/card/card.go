package card

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github/chapool/go-cardsigner/cmd/node"
	"github/chapool/go-cardsigner/internal/config"
	"github/chapool/go-cardsigner/internal/metrics"
	"github/chapool/go-cardsigner/internal/util"
	"github/chapool/go-cardsigner/internal/util/command"
	"github/chapool/go-cardsigner/internal/wallet/address"
	"github/chapool/go-cardsigner/internal/wallet/device"
	"github/chapool/go-cardsigner/internal/wallet/signer"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("card",
		newEmulateSign(),
	)
}

func newEmulateSign() *cobra.Command {
	var (
		seedHex    string
		mnemonic   string
		passphrase string
		highS      bool
		send       bool
		showStats  bool
	)

	cmd := &cobra.Command{
		Use:   "emulate-sign <serialized-hex>",
		Short: "Sign an unsigned transaction end to end against the in-process card emulator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.RunWithConfig(cmd, func(ctx context.Context, cfg config.Server) error {
				if mnemonic == "-" {
					var err error
					if mnemonic, err = command.PromptSecret(cmd, "Mnemonic: "); err != nil {
						return err
					}
				}
				if mnemonic != "" && !cmd.Flags().Changed("passphrase") {
					var err error
					if passphrase, err = command.PromptSecret(cmd, "BIP39 passphrase (empty for none): "); err != nil {
						return err
					}
				}

				seed, err := emulatorSeed(seedHex, mnemonic, passphrase, cfg.Device)
				if err != nil {
					return err
				}

				var opts []device.EmulatorOption
				if highS || cfg.Device.EmulatorHighS {
					opts = append(opts, device.WithHighS())
				}

				emu, err := device.NewEmulator(seed, opts...)
				if err != nil {
					return err
				}
				card := device.NewCard(emu)

				registry := prometheus.NewRegistry()
				svc, err := signer.NewService(cfg.Chain, metrics.NewMetricsWithRegistry(registry))
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()

				ex, err := sign(ctx, svc, card, args[0], cfg.Device.KeyIndex)
				if showStats {
					if werr := metrics.WriteText(cmd.ErrOrStderr(), registry); werr != nil && err == nil {
						err = werr
					}
				}
				if err != nil {
					return err
				}

				from, err := ex.Signed.Sender()
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "from:        %s\n", address.Checksum(from))
				fmt.Fprintf(out, "recovery id: %d\n", ex.Components.RecoveryID)
				fmt.Fprintf(out, "signed:      %s\n", ex.Hex())
				fmt.Fprintf(out, "hash:        %s\n", ex.TxHash().Hex())

				if !send {
					return nil
				}

				client, err := node.Dial(ctx, cfg.Chain)
				if err != nil {
					return err
				}
				defer client.Close()

				hash, err := client.SendRawTransaction(ctx, ex.Hex())
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "broadcast:   %s\n", hash.Hex())
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&seedHex, "seed", "", "emulator BIP32 seed as hex, defaults to DEVICE_EMULATOR_SEED")
	flags.StringVar(&mnemonic, "mnemonic", "", "derive the emulator seed from a BIP39 mnemonic instead, - to prompt for it")
	flags.StringVar(&passphrase, "passphrase", "", "BIP39 passphrase used with --mnemonic, prompted for when omitted")
	flags.BoolVar(&highS, "high-s", false, "make the emulator return high-S signatures")
	flags.BoolVar(&send, "send", false, "broadcast the signed transaction to the configured node")
	flags.BoolVar(&showStats, "metrics", false, "write the exchange metrics in Prometheus text format to stderr")

	return cmd
}

func sign(ctx context.Context, svc signer.Service, dev signer.Device, serialized string, keyIndex int) (*signer.Exchange, error) {
	ex, err := svc.Prepare(ctx, serialized)
	if err != nil {
		return nil, err
	}

	if err := svc.SignWithDevice(ctx, ex, dev, keyIndex); err != nil {
		return nil, err
	}

	return ex, nil
}

func emulatorSeed(seedHex, mnemonic, passphrase string, cfg config.Device) ([]byte, error) {
	if mnemonic != "" {
		return device.SeedFromMnemonic(mnemonic, passphrase), nil
	}

	if seedHex == "" {
		seedHex = cfg.EmulatorSeedHex
	}
	if seedHex == "" {
		return nil, errors.New("no emulator seed, set DEVICE_EMULATOR_SEED, --seed or --mnemonic")
	}

	seed, err := util.DecodePrefixedHex(seedHex)
	if err != nil {
		return nil, errors.Wrap(err, "invalid emulator seed")
	}

	return seed, nil
}
