package node

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-cardsigner/internal/config"
	"github/chapool/go-cardsigner/internal/util/command"
	"github/chapool/go-cardsigner/internal/wallet/address"
	rpcnode "github/chapool/go-cardsigner/internal/wallet/node"
	"github/chapool/go-cardsigner/internal/wallet/units"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("node",
		newInfo(),
		newSend(),
	)
}

// Dial connects to the nodes configured in cfg.
func Dial(ctx context.Context, cfg config.Chain) (*rpcnode.RPCClient, error) {
	if len(cfg.RPCURLs) == 0 {
		return nil, errors.New("no node configured, set CHAIN_RPC_URLS or --rpc-url")
	}

	return rpcnode.NewRPCClient(ctx, cfg.RPCURLs, cfg.RPCTimeout)
}

func newInfo() *cobra.Command {
	return &cobra.Command{
		Use:   "info <address>",
		Short: "Show balance, nonce and gas price of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.RunWithConfig(cmd, func(ctx context.Context, cfg config.Server) error {
				account, err := address.ParseAddress(args[0])
				if err != nil {
					return err
				}

				client, err := Dial(ctx, cfg.Chain)
				if err != nil {
					return err
				}
				defer client.Close()

				version, err := client.ClientVersion(ctx)
				if err != nil {
					return err
				}
				chainID, err := client.ChainID(ctx)
				if err != nil {
					return err
				}
				balance, err := client.BalanceAt(ctx, account)
				if err != nil {
					return err
				}
				nonce, err := client.PendingNonceAt(ctx, account)
				if err != nil {
					return err
				}
				gasPrice, err := client.SuggestGasPrice(ctx)
				if err != nil {
					return err
				}

				t := command.NewTable(cmd.OutOrStdout(), address.Checksum(account))
				t.AppendRows([]table.Row{
					{"Node", version},
					{"Chain id", chainID.String()},
					{"Balance", units.FormatEther(balance) + " ether"},
					{"Nonce", nonce},
					{"Gas price", fmt.Sprintf("%s wei", gasPrice)},
				})
				t.Render()

				return nil
			})
		},
	}
}

func newSend() *cobra.Command {
	return &cobra.Command{
		Use:   "send <signed-hex>",
		Short: "Broadcast a signed transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.RunWithConfig(cmd, func(ctx context.Context, cfg config.Server) error {
				client, err := Dial(ctx, cfg.Chain)
				if err != nil {
					return err
				}
				defer client.Close()

				hash, err := client.SendRawTransaction(ctx, args[0])
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), hash.Hex())
				return nil
			})
		},
	}
}
