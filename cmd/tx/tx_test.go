package tx_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-cardsigner/cmd/tx"
	"github/chapool/go-cardsigner/internal/wallet/address"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SERVER_DOTENV_FILE", "")
	t.Setenv("CHAIN_ID", "3")
	t.Setenv("CHAIN_REPLAY_PROTECTION", "true")

	cmd := tx.New()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func field(t *testing.T, out, name string) string {
	t.Helper()

	for _, line := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(line, name+":"); ok {
			return strings.TrimSpace(rest)
		}
	}

	t.Fatalf("no %s in output %q", name, out)
	return ""
}

func TestBuildHashDecode(t *testing.T) {
	out, err := run(t, "build",
		"--nonce", "0",
		"--gas-price", "20000000000",
		"--gas-limit", "21000",
		"--to", "0xd7a0a13c3206dacd44f3218c07ee809826facce5",
		"--value", "1")
	require.NoError(t, err)

	serialized := field(t, out, "serialized")
	hash := field(t, out, "hash")
	assert.True(t, strings.HasPrefix(serialized, "0x"))
	assert.Len(t, hash, 66)

	out, err = run(t, "hash", serialized)
	require.NoError(t, err)
	assert.Equal(t, hash, field(t, out, "hash"))
	assert.Len(t, field(t, out, "token"), 64)

	out, err = run(t, "decode", serialized)
	require.NoError(t, err)
	checksummed, err := address.ToChecksumAddress("0xd7a0a13c3206dacd44f3218c07ee809826facce5")
	require.NoError(t, err)
	assert.Contains(t, out, checksummed)
	assert.Contains(t, out, "1 ether")
	assert.Contains(t, out, hash)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := run(t, "decode", "0xc0")
	require.Error(t, err)

	_, err = run(t, "build", "--to", "0x1234")
	require.Error(t, err)
}
