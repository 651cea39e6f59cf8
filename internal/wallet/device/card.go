package device

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	"github/chapool/go-cardsigner/internal/util"
)

// KeyInfo is the GET KEY INFO response of one key slot.
type KeyInfo struct {
	GlobalCounter uint32
	Counter       uint32
	// PublicKey is x||y without the uncompressed point prefix.
	PublicKey []byte
}

// Signature is a GENERATE SIGNATURE response.
type Signature struct {
	GlobalCounter uint32
	Counter       uint32
	DER           []byte
}

// Card speaks the blockchain security applet command set over a Transceiver.
// It is safe for concurrent use, commands are serialized.
type Card struct {
	mu       sync.Mutex
	t        Transceiver
	selected bool
}

func NewCard(t Transceiver) *Card {
	return &Card{t: t}
}

func (c *Card) transceive(ctx context.Context, apdu []byte) ([]byte, error) {
	log := util.LogFromContext(ctx)
	log.Trace().Str("command", util.BytesToHex(apdu)).Msg("APDU out")

	resp, err := c.t.Transceive(ctx, apdu)
	if err != nil {
		return nil, errors.Wrap(ErrTransport, err.Error())
	}

	log.Trace().Str("response", util.BytesToHex(resp)).Msg("APDU in")

	return splitResponse(resp)
}

func (c *Card) selectApplet(ctx context.Context) error {
	if c.selected {
		return nil
	}

	if _, err := c.transceive(ctx, command(insSelect, p1SelectByName, 0x00, AppletID)); err != nil {
		return errors.Wrap(err, "failed to select applet")
	}

	c.selected = true
	return nil
}

// Select selects the applet. Other commands select it on first use.
func (c *Card) Select(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selected = false
	return c.selectApplet(ctx)
}

// KeyInfo reads the public key and signature counters of slot keyIndex.
func (c *Card) KeyInfo(ctx context.Context, keyIndex int) (*KeyInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.keyInfo(ctx, keyIndex)
}

func (c *Card) keyInfo(ctx context.Context, keyIndex int) (*KeyInfo, error) {
	idx, err := slot(keyIndex)
	if err != nil {
		return nil, err
	}

	if err := c.selectApplet(ctx); err != nil {
		return nil, err
	}

	data, err := c.transceive(ctx, command(insGetKeyInfo, idx, 0x00, nil))
	if err != nil {
		return nil, err
	}

	if len(data) != 2*counterLength+uncompressedKeyLength {
		return nil, errors.Wrapf(ErrResponseData, "key info has %d bytes", len(data))
	}

	pub := data[2*counterLength:]
	if pub[0] != uncompressedPrefix {
		return nil, errors.Wrapf(ErrResponseData, "unexpected public key prefix 0x%02x", pub[0])
	}

	return &KeyInfo{
		GlobalCounter: binary.BigEndian.Uint32(data[:counterLength]),
		Counter:       binary.BigEndian.Uint32(data[counterLength : 2*counterLength]),
		PublicKey:     bytes.Clone(pub[1:]),
	}, nil
}

// GenerateKeyPair creates a key in the next free slot and returns its index.
func (c *Card) GenerateKeyPair(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.generateKeyPair(ctx)
}

func (c *Card) generateKeyPair(ctx context.Context) (int, error) {
	if err := c.selectApplet(ctx); err != nil {
		return 0, err
	}

	data, err := c.transceive(ctx, command(insGenerateKeyPair, 0x00, 0x00, nil))
	if err != nil {
		return 0, errors.Wrap(err, "failed to generate key pair")
	}

	if len(data) != 1 {
		return 0, errors.Wrapf(ErrResponseData, "generate key pair returned %d bytes", len(data))
	}

	return int(data[0]), nil
}

// PublicKey returns the 64 byte key of slot keyIndex, generating it when the slot is empty
// and the card allocates exactly that slot.
func (c *Card) PublicKey(ctx context.Context, keyIndex int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := c.keyInfo(ctx, keyIndex)
	if err == nil {
		return info.PublicKey, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}

	generated, err := c.generateKeyPair(ctx)
	if err != nil {
		return nil, err
	}
	if generated != keyIndex {
		return nil, errors.Wrapf(ErrKeyNotFound, "card allocated slot %d instead of %d", generated, keyIndex)
	}

	util.LogFromContext(ctx).Info().Int("key_index", keyIndex).Msg("Generated key pair on card")

	info, err = c.keyInfo(ctx, keyIndex)
	if err != nil {
		return nil, err
	}

	return info.PublicKey, nil
}

// GenerateSignature signs the 32 byte hash with slot keyIndex.
func (c *Card) GenerateSignature(ctx context.Context, keyIndex int, hash []byte) (*Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(hash) != hashLength {
		return nil, errors.Errorf("hash must be %d bytes, got %d", hashLength, len(hash))
	}

	idx, err := slot(keyIndex)
	if err != nil {
		return nil, err
	}

	if err := c.selectApplet(ctx); err != nil {
		return nil, err
	}

	data, err := c.transceive(ctx, command(insGenerateSignature, idx, 0x00, hash))
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate signature")
	}

	if len(data) <= 2*counterLength {
		return nil, errors.Wrapf(ErrResponseData, "signature response has %d bytes", len(data))
	}

	return &Signature{
		GlobalCounter: binary.BigEndian.Uint32(data[:counterLength]),
		Counter:       binary.BigEndian.Uint32(data[counterLength : 2*counterLength]),
		DER:           bytes.Clone(data[2*counterLength:]),
	}, nil
}

// Sign returns the DER signature over hash.
func (c *Card) Sign(ctx context.Context, keyIndex int, hash []byte) ([]byte, error) {
	sig, err := c.GenerateSignature(ctx, keyIndex, hash)
	if err != nil {
		return nil, err
	}

	return sig.DER, nil
}

func slot(keyIndex int) (byte, error) {
	if keyIndex < 0 || keyIndex > 0xFF {
		return 0, errors.Errorf("key index %d out of range", keyIndex)
	}

	return byte(keyIndex), nil
}
