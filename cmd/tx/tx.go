package tx

import (
	"github.com/spf13/cobra"
	"github/chapool/go-cardsigner/internal/util/command"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("tx",
		newDecode(),
		newHash(),
		newBuild(),
		newAssemble(),
		newVerifyHash(),
	)
}
