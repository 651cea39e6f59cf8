package tx

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github/chapool/go-cardsigner/internal/config"
	"github/chapool/go-cardsigner/internal/util/command"
	"github/chapool/go-cardsigner/internal/wallet/signer"
)

func newVerifyHash() *cobra.Command {
	var req signer.TransactRequest

	cmd := &cobra.Command{
		Use:   "verify-hash",
		Short: "Check that transfer fields and their serialization both hash to the claimed hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return command.RunWithConfig(cmd, func(ctx context.Context, cfg config.Server) error {
				svc, err := signer.NewService(cfg.Chain, nil)
				if err != nil {
					return err
				}

				if err := svc.VerifyTransactionHash(ctx, &req); err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), "hash verified")
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.From, "from", "", "sender address")
	flags.StringVar(&req.To, "to", "", "recipient address")
	flags.StringVar(&req.Nonce, "nonce", "", "nonce as 0x hex")
	flags.StringVar(&req.GasPrice, "gas-price", "", "gas price as 0x hex")
	flags.StringVar(&req.GasLimit, "gas-limit", "", "gas limit as 0x hex")
	flags.StringVar(&req.Value, "value", "", "value in wei as 0x hex")
	flags.StringVar(&req.Serialized, "serialized", "", "unsigned serialization as hex")
	flags.StringVar(&req.Hash, "hash", "", "claimed 0x prefixed hash")

	return cmd
}
