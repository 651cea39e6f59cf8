package tx

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github/chapool/go-cardsigner/internal/config"
	"github/chapool/go-cardsigner/internal/util"
	"github/chapool/go-cardsigner/internal/util/command"
	"github/chapool/go-cardsigner/internal/wallet/txcodec"
	"github/chapool/go-cardsigner/internal/wallet/units"
)

type buildFlags struct {
	nonce    string
	gasPrice string
	gasLimit string
	to       string
	value    string
	data     string
}

func newBuild() *cobra.Command {
	var f buildFlags

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build an unsigned transaction and print its serialization and signing hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return command.RunWithConfig(cmd, func(_ context.Context, cfg config.Server) error {
				tx, err := f.transaction()
				if err != nil {
					return err
				}

				enc, err := txcodec.Encode(tx, nil, nil)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "serialized: 0x%s\n", util.BytesToHex(enc))
				fmt.Fprintf(out, "hash:       %s\n", txcodec.TransactionHash(tx, cfg.Chain.SigningChainID()).Hex())

				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.nonce, "nonce", "0", "account nonce (decimal or 0x hex)")
	flags.StringVar(&f.gasPrice, "gas-price", "20000000000", "gas price in wei (decimal or 0x hex)")
	flags.StringVar(&f.gasLimit, "gas-limit", "21000", "gas limit")
	flags.StringVar(&f.to, "to", "", "recipient address, empty for contract creation")
	flags.StringVar(&f.value, "value", "0", "value in ether, e.g. 1.5")
	flags.StringVar(&f.data, "data", "", "call data as hex")

	return cmd
}

func (f buildFlags) transaction() (*txcodec.RawTransaction, error) {
	nonce, err := parseQuantity(f.nonce, "nonce")
	if err != nil {
		return nil, err
	}
	gasPrice, err := parseQuantity(f.gasPrice, "gas price")
	if err != nil {
		return nil, err
	}
	gasLimit, err := parseQuantity(f.gasLimit, "gas limit")
	if err != nil {
		return nil, err
	}
	to, err := parseTo(f.to)
	if err != nil {
		return nil, err
	}
	value, err := units.ToWei(f.value)
	if err != nil {
		return nil, err
	}
	data, err := util.DecodePrefixedHex(f.data)
	if err != nil {
		return nil, err
	}

	return txcodec.NewRawTransaction(nonce, gasPrice, gasLimit, to, value, data), nil
}
