package tx

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-cardsigner/internal/config"
	"github/chapool/go-cardsigner/internal/util"
	"github/chapool/go-cardsigner/internal/util/command"
	"github/chapool/go-cardsigner/internal/wallet/address"
	"github/chapool/go-cardsigner/internal/wallet/signer"
	"github/chapool/go-cardsigner/internal/wallet/txcodec"
	"github/chapool/go-cardsigner/internal/wallet/units"
)

func newDecode() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <serialized-hex>",
		Short: "Decode an unsigned or signed legacy transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.RunWithConfig(cmd, func(ctx context.Context, cfg config.Server) error {
				raw, err := util.DecodePrefixedHex(args[0])
				if err != nil {
					return err
				}

				t := command.NewTable(cmd.OutOrStdout(), "")

				tx, err := txcodec.DecodeBytes(raw)
				if err == nil {
					appendTransaction(t, tx)
					t.AppendRow(table.Row{"Signing hash", txcodec.TransactionHash(tx, cfg.Chain.SigningChainID()).Hex()})
					t.AppendRow(table.Row{"Token", signer.TransactionToken(raw)})
					t.Render()
					return nil
				}
				if !errors.Is(err, txcodec.ErrMalformedTransaction) {
					return err
				}

				signed, signedErr := txcodec.DecodeSigned(raw)
				if signedErr != nil {
					util.LogFromContext(ctx).Debug().Err(signedErr).Msg("Not a signed transaction either")
					return err
				}

				appendTransaction(t, signed.Tx)
				appendSignature(t, signed)
				t.Render()
				return nil
			})
		},
	}
}

func appendTransaction(t table.Writer, tx *txcodec.RawTransaction) {
	to := "(contract creation)"
	if tx.To != nil {
		to = address.Checksum(*tx.To)
	}

	t.AppendRows([]table.Row{
		{"Nonce", tx.Nonce.String()},
		{"Gas price", fmt.Sprintf("%s wei (%s ether)", tx.GasPrice, units.FormatEther(tx.GasPrice))},
		{"Gas limit", tx.GasLimit.String()},
		{"To", to},
		{"Value", units.FormatEther(tx.Value) + " ether"},
		{"Data", hexutil.Encode(tx.Data)},
		{"Max fee", units.Fee(tx.GasPrice, tx.GasLimit).String() + " ether"},
	})
}

func appendSignature(t table.Writer, signed *txcodec.SignedTransaction) {
	chainID := "(none)"
	if signed.ChainID != nil {
		chainID = signed.ChainID.String()
	}

	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Chain id", chainID},
		{"V", signed.Signature.V.String()},
		{"R", hexutil.Encode(signed.Signature.R)},
		{"S", hexutil.Encode(signed.Signature.S)},
		{"Recovery id", int(signed.Components.RecoveryID)},
	})

	if from, err := signed.Sender(); err == nil {
		t.AppendRow(table.Row{"From", address.Checksum(from)})
	} else {
		t.AppendRow(table.Row{"From", "(unrecoverable: " + err.Error() + ")"})
	}

	t.AppendRow(table.Row{"Transaction hash", signed.Hash.Hex()})
}

// parseQuantity accepts decimal or 0x prefixed hex.
func parseQuantity(v, name string) (*big.Int, error) {
	base := 10
	if util.Has0xPrefix(v) {
		base = 16
	}

	n, ok := new(big.Int).SetString(util.Strip0x(v), base)
	if !ok || n.Sign() < 0 {
		return nil, errors.Errorf("invalid %s %q", name, v)
	}

	return n, nil
}

func parseTo(v string) (*common.Address, error) {
	if v == "" {
		return nil, nil //nolint:nilnil // contract creation
	}

	to, err := address.ParseAddress(v)
	if err != nil {
		return nil, err
	}

	return &to, nil
}
