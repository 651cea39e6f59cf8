package tx

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github/chapool/go-cardsigner/internal/config"
	"github/chapool/go-cardsigner/internal/util"
	"github/chapool/go-cardsigner/internal/util/command"
	"github/chapool/go-cardsigner/internal/wallet/signer"
	"github/chapool/go-cardsigner/internal/wallet/txcodec"
)

func newHash() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <serialized-hex>",
		Short: "Print the hash a device must sign for an unsigned transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.RunWithConfig(cmd, func(_ context.Context, cfg config.Server) error {
				raw, err := util.DecodePrefixedHex(args[0])
				if err != nil {
					return err
				}

				tx, err := txcodec.DecodeBytes(raw)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "hash:  %s\n", txcodec.TransactionHash(tx, cfg.Chain.SigningChainID()).Hex())
				fmt.Fprintf(out, "token: %s\n", signer.TransactionToken(raw))

				return nil
			})
		},
	}
}
