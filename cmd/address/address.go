package address

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-cardsigner/internal/util"
	"github/chapool/go-cardsigner/internal/util/command"
	evmaddress "github/chapool/go-cardsigner/internal/wallet/address"
)

const uncompressedKeyLength = 65

func New() *cobra.Command {
	return command.NewSubcommandGroup("address",
		newDerive(),
		newChecksum(),
		newValidate(),
	)
}

func newDerive() *cobra.Command {
	return &cobra.Command{
		Use:   "derive <public-key-hex>",
		Short: "Derive the checksummed address of a 64 byte public key",
		Long:  "Derive the checksummed address of a 64 byte x||y public key. A leading 04 byte is stripped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := util.DecodePrefixedHex(args[0])
			if err != nil {
				return err
			}
			if len(pub) == uncompressedKeyLength && pub[0] == 0x04 {
				pub = pub[1:]
			}

			checksummed, err := evmaddress.ChecksumFromPublicKey(pub)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), checksummed)
			return nil
		},
	}
}

func newChecksum() *cobra.Command {
	return &cobra.Command{
		Use:   "checksum <address>",
		Short: "Render an address in EIP-55 mixed case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checksummed, err := evmaddress.ToChecksumAddress(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), checksummed)
			return nil
		},
	}
}

func newValidate() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <address>",
		Short: "Check that an address is 40 hex characters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !evmaddress.IsValidAddress(args[0]) {
				return errors.Wrapf(evmaddress.ErrMalformedAddress, "%q", args[0])
			}
			if strict && !evmaddress.IsChecksummed(args[0]) {
				return errors.Wrapf(evmaddress.ErrMalformedAddress, "%q has an invalid checksum", args[0])
			}

			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "also require a correct EIP-55 checksum")

	return cmd
}
