package command

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// PromptSecret writes prompt to stderr and reads one line from the command's input. Terminal
// input is read with echo disabled.
func PromptSecret(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", errors.Wrap(err, "failed to read secret from terminal")
		}

		return string(secret), nil
	}

	line, err := readLine(cmd.InOrStdin())
	if err != nil {
		return "", errors.Wrap(err, "failed to read secret")
	}

	return strings.TrimSuffix(line, "\r"), nil
}

// readLine reads up to and excluding the next newline one byte at a time, so that consecutive
// prompts on the same input do not consume each other's lines.
func readLine(r io.Reader) (string, error) {
	var (
		line strings.Builder
		b    [1]byte
	)

	for {
		n, err := r.Read(b[:])
		if n == 1 {
			if b[0] == '\n' {
				return line.String(), nil
			}
			line.WriteByte(b[0])
		}

		if errors.Is(err, io.EOF) {
			return line.String(), nil
		}
		if err != nil {
			return "", err
		}
	}
}
