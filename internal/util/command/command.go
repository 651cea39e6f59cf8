package command

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-cardsigner/internal/config"
)

// NewSubcommandGroup returns a command that only groups the given subcommands and prints its help otherwise.
func NewSubcommandGroup(use string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: use + " related subcommands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(subcommands...)

	return cmd
}

// WithConfig configures the global logger from cfg and runs fn with a context that is
// cancelled on SIGINT/SIGTERM.
func WithConfig(ctx context.Context, cfg config.Server, fn func(ctx context.Context, cfg config.Server) error) error {
	ConfigureLogger(cfg.Logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := log.With().Str("module", config.ModuleName).Logger()

	return fn(l.WithContext(ctx), cfg)
}

// ConfigureLogger applies the logger configuration to the global zerolog logger.
func ConfigureLogger(cfg config.LoggerServer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(cfg.Level)

	l := log.Logger
	if cfg.PrettyPrintConsole {
		l = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	if cfg.Caller {
		l = l.With().Caller().Logger()
	}

	log.Logger = l
}
