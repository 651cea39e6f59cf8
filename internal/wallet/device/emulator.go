package device

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

const (
	emulatorGlobalCounter = 1_000_000
	emulatorKeyCounter    = 100_000
	emulatorMaxKeys       = 255
)

// BIP44 prefix m/44'/60'/0'/0 of the keys held by the emulator.
var emulatorPath = []uint32{
	bip32.FirstHardenedChild + 44, //nolint:mnd
	bip32.FirstHardenedChild + 60, //nolint:mnd
	bip32.FirstHardenedChild,
	0,
}

type emulatedKey struct {
	priv    *ecdsa.PrivateKey
	counter uint32
}

// Emulator is an in-process card. Slot i holds the key at m/44'/60'/0'/0/i of the seed.
type Emulator struct {
	mu            sync.Mutex
	account       *bip32.Key
	keys          map[byte]*emulatedKey
	globalCounter uint32
	selected      bool
	highS         bool
}

// EmulatorOption configures an Emulator.
type EmulatorOption func(*Emulator)

// WithHighS makes the emulator return the high-S twin of every signature.
func WithHighS() EmulatorOption {
	return func(e *Emulator) { e.highS = true }
}

// WithKeys pre-generates slots 1..n.
func WithKeys(n int) EmulatorOption {
	return func(e *Emulator) {
		for range min(n, emulatorMaxKeys) {
			_, _ = e.generate()
		}
	}
}

func NewEmulator(seed []byte, opts ...EmulatorOption) (*Emulator, error) {
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create master key")
	}

	account := master
	for _, index := range emulatorPath {
		account, err = account.NewChildKey(index)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive child key at index %d", index)
		}
	}

	e := &Emulator{
		account:       account,
		keys:          make(map[byte]*emulatedKey),
		globalCounter: emulatorGlobalCounter,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

func (e *Emulator) Transceive(ctx context.Context, apdu []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(apdu) < 4 { //nolint:mnd
		return withStatus(nil, SWWrongLength), nil
	}
	if apdu[0] != claISO {
		return withStatus(nil, SWClassNotSupported), nil
	}

	ins, p1 := apdu[1], apdu[2]
	data, ok := commandData(apdu)
	if !ok {
		return withStatus(nil, SWWrongLength), nil
	}

	if ins == insSelect {
		return e.handleSelect(p1, data), nil
	}

	if !e.selected {
		return withStatus(nil, SWConditionsNotMet), nil
	}

	switch ins {
	case insGenerateKeyPair:
		return e.handleGenerateKeyPair(), nil
	case insGetKeyInfo:
		return e.handleGetKeyInfo(p1), nil
	case insGenerateSignature:
		return e.handleGenerateSignature(p1, data), nil
	default:
		return withStatus(nil, SWInsNotSupported), nil
	}
}

// commandData returns the Lc data field of a short APDU.
func commandData(apdu []byte) ([]byte, bool) {
	body := apdu[4:]
	switch {
	case len(body) <= 1:
		return nil, true
	case int(body[0])+1 == len(body):
		return body[1:], true
	case int(body[0])+2 == len(body):
		return body[1 : len(body)-1], true
	default:
		return nil, false
	}
}

func (e *Emulator) handleSelect(p1 byte, aid []byte) []byte {
	if p1 != p1SelectByName {
		return withStatus(nil, SWIncorrectParameters)
	}
	if !bytes.Equal(aid, AppletID) {
		return withStatus(nil, SWFileNotFound)
	}

	e.selected = true
	return withStatus(nil, SWSuccess)
}

func (e *Emulator) generate() (byte, bool) {
	if len(e.keys) >= emulatorMaxKeys {
		return 0, false
	}

	idx := byte(len(e.keys) + 1)
	child, err := e.account.NewChildKey(uint32(idx))
	if err != nil {
		return 0, false
	}

	priv, err := crypto.ToECDSA(child.Key)
	if err != nil {
		return 0, false
	}

	e.keys[idx] = &emulatedKey{priv: priv, counter: emulatorKeyCounter}
	return idx, true
}

func (e *Emulator) handleGenerateKeyPair() []byte {
	idx, ok := e.generate()
	if !ok {
		return withStatus(nil, SWNotEnoughMemory)
	}

	return withStatus([]byte{idx}, SWSuccess)
}

func (e *Emulator) counters(key *emulatedKey) []byte {
	out := binary.BigEndian.AppendUint32(nil, e.globalCounter)
	return binary.BigEndian.AppendUint32(out, key.counter)
}

func (e *Emulator) handleGetKeyInfo(idx byte) []byte {
	key, ok := e.keys[idx]
	if !ok {
		return withStatus(nil, SWKeyNotFound)
	}

	out := e.counters(key)
	out = append(out, crypto.FromECDSAPub(&key.priv.PublicKey)...)

	return withStatus(out, SWSuccess)
}

func (e *Emulator) handleGenerateSignature(idx byte, hash []byte) []byte {
	key, ok := e.keys[idx]
	if !ok {
		return withStatus(nil, SWKeyNotFound)
	}
	if len(hash) != hashLength {
		return withStatus(nil, SWWrongData)
	}
	if key.counter == 0 || e.globalCounter == 0 {
		return withStatus(nil, SWConditionsNotMet)
	}

	sig, err := crypto.Sign(hash, key.priv)
	if err != nil {
		return withStatus(nil, SWWrongData)
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if e.highS {
		s.Sub(crypto.S256().Params().N, s)
	}

	der, err := marshalDER(r, s)
	if err != nil {
		return withStatus(nil, SWWrongData)
	}

	key.counter--
	e.globalCounter--

	out := e.counters(key)
	return withStatus(append(out, der...), SWSuccess)
}

// marshalDER encodes SEQUENCE { INTEGER r, INTEGER s }.
func marshalDER(r, s *big.Int) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})

	return b.Bytes()
}
