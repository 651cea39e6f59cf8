package tx

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github/chapool/go-cardsigner/internal/config"
	"github/chapool/go-cardsigner/internal/util"
	"github/chapool/go-cardsigner/internal/util/command"
	"github/chapool/go-cardsigner/internal/wallet/signer"
)

const uncompressedKeyLength = 65

func newAssemble() *cobra.Command {
	var pubkey, sig string

	cmd := &cobra.Command{
		Use:   "assemble <serialized-hex>",
		Short: "Combine an unsigned transaction with a device DER signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.RunWithConfig(cmd, func(ctx context.Context, cfg config.Server) error {
				publicKey, err := util.DecodePrefixedHex(pubkey)
				if err != nil {
					return err
				}
				if len(publicKey) == uncompressedKeyLength && publicKey[0] == 0x04 {
					publicKey = publicKey[1:]
				}

				der, err := util.DecodePrefixedHex(sig)
				if err != nil {
					return err
				}

				svc, err := signer.NewService(cfg.Chain, nil)
				if err != nil {
					return err
				}

				ex, err := svc.Prepare(ctx, args[0])
				if err != nil {
					return err
				}

				if err := svc.Complete(ctx, ex, publicKey, der); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "signed: %s\n", ex.Hex())
				fmt.Fprintf(out, "hash:   %s\n", ex.TxHash().Hex())

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&pubkey, "pubkey", "", "signer public key, 64 bytes hex (a leading 04 is stripped)")
	cmd.Flags().StringVar(&sig, "signature", "", "DER signature returned by the device, hex")
	_ = cmd.MarkFlagRequired("pubkey")
	_ = cmd.MarkFlagRequired("signature")

	return cmd
}
