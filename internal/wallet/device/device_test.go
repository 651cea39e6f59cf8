package device_test

import (
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-cardsigner/internal/util"
	"github/chapool/go-cardsigner/internal/wallet/device"
	"github/chapool/go-cardsigner/internal/wallet/signature"
)

var testSeed = []byte("card emulator test seed, 32 byte")

func newCard(t *testing.T, opts ...device.EmulatorOption) (*device.Card, *device.Emulator) {
	t.Helper()

	emu, err := device.NewEmulator(testSeed, opts...)
	require.NoError(t, err)

	return device.NewCard(emu), emu
}

func TestCardPublicKeyGeneratesSlot(t *testing.T) {
	ctx := context.Background()
	card, _ := newCard(t)

	pub, err := card.PublicKey(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pub, 64)

	again, err := card.PublicKey(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, pub, again)

	// same seed, same key
	other, _ := newCard(t, device.WithKeys(1))
	otherPub, err := other.PublicKey(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, pub, otherPub)
}

func TestCardPublicKeyWrongSlot(t *testing.T) {
	card, _ := newCard(t)

	_, err := card.PublicKey(context.Background(), 2)
	assert.True(t, errors.Is(err, device.ErrKeyNotFound))
}

func TestCardSign(t *testing.T) {
	ctx := context.Background()
	card, _ := newCard(t, device.WithKeys(2))
	hash := crypto.Keccak256([]byte("sign me"))

	pub, err := card.PublicKey(ctx, 2)
	require.NoError(t, err)

	before, err := card.KeyInfo(ctx, 2)
	require.NoError(t, err)

	sig, err := card.GenerateSignature(ctx, 2, hash)
	require.NoError(t, err)
	assert.Equal(t, before.Counter-1, sig.Counter)
	assert.Equal(t, before.GlobalCounter-1, sig.GlobalCounter)

	r, s, err := signature.Parse(sig.DER)
	require.NoError(t, err)

	rs := append(make([]byte, 0, 64), make([]byte, 32-len(r))...)
	rs = append(rs, r...)
	rs = append(rs, make([]byte, 32-len(s))...)
	rs = append(rs, s...)
	assert.True(t, crypto.VerifySignature(append([]byte{0x04}, pub...), hash, rs))

	after, err := card.KeyInfo(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, sig.Counter, after.Counter)

	_, err = card.Sign(ctx, 2, hash[:31])
	require.Error(t, err)

	_, err = card.Sign(ctx, 7, hash)
	assert.True(t, errors.Is(err, device.ErrKeyNotFound))
}

func TestEmulatorHighS(t *testing.T) {
	ctx := context.Background()
	card, _ := newCard(t, device.WithKeys(1), device.WithHighS())

	der, err := card.Sign(ctx, 1, crypto.Keccak256([]byte("malleable")))
	require.NoError(t, err)

	s, err := signature.ExtractS(der)
	require.NoError(t, err)
	assert.False(t, signature.IsCanonical(s))
}

func TestEmulatorStatusWords(t *testing.T) {
	ctx := context.Background()
	emu, err := device.NewEmulator(testSeed, device.WithKeys(1))
	require.NoError(t, err)

	tests := []struct {
		name string
		apdu string
		want string
	}{
		{"key info before select", "0016010000", "6985"},
		{"unknown applet", "00A404000401020304 00", "6A82"},
		{"wrong class", "8016010000", "6E00"},
		{"short apdu", "0016", "6700"},
		{"select", "00A404000DD2760000041502000100000001 00", "9000"},
		{"unknown instruction", "0099000000", "6D00"},
		{"empty slot", "0016050000", "6A88"},
		{"short hash", "00180100020102 00", "6A80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apdu, err := util.HexToBytes(tt.apdu)
			require.NoError(t, err)

			resp, err := emu.Transceive(ctx, apdu)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(resp), 2)
			assert.Equal(t, tt.want, util.BytesToHex(resp[len(resp)-2:]))
		})
	}
}

type brokenLink struct{}

func (brokenLink) Transceive(context.Context, []byte) ([]byte, error) {
	return nil, errors.New("tag was lost")
}

func TestCardTransportFailure(t *testing.T) {
	card := device.NewCard(brokenLink{})

	_, err := card.PublicKey(context.Background(), 1)
	assert.True(t, errors.Is(err, device.ErrTransport))
}

func TestEmulatorCancelledContext(t *testing.T) {
	emu, err := device.NewEmulator(testSeed)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = device.NewCard(emu).PublicKey(ctx, 1)
	assert.True(t, errors.Is(err, device.ErrTransport))
}

func TestSeedFromMnemonic(t *testing.T) {
	// BIP39 reference vector, passphrase TREZOR
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	want := "C55257C360C07C72029AEBC1B53C05ED0362ADA38EAD3E3E9EFA3708E53495531F09A6987599D18264C1E1C92F2CF141630C7A3C4AB7C81B2F001698E7463B04"

	seed := device.SeedFromMnemonic(mnemonic, "TREZOR")
	assert.Equal(t, want, util.BytesToHex(seed))
	assert.Equal(t, seed, device.SeedFromMnemonic("  "+strings.ReplaceAll(mnemonic, " ", "\n")+" ", "TREZOR"))

	_, err := device.NewEmulator(seed)
	require.NoError(t, err)
}
