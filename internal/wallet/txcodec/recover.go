package txcodec

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github/chapool/go-cardsigner/internal/wallet/address"
)

const (
	hashLength      = common.HashLength
	componentLength = 32
)

// RecoverID tries every recovery id against (r, s, messageHash) and returns the first one
// whose recovered key equals publicKey (64 bytes, x||y).
func RecoverID(publicKey, messageHash, r, s []byte) (RecoveryID, error) {
	if len(publicKey) != address.PublicKeyLength {
		return RecoveryIDUnset, errors.Wrapf(address.ErrMalformedKey, "expected %d bytes, got %d", address.PublicKeyLength, len(publicKey))
	}

	if len(messageHash) != hashLength {
		return RecoveryIDUnset, errors.Wrapf(ErrRecovery, "message hash has %d bytes", len(messageHash))
	}

	r = common.TrimLeftZeroes(r)
	s = common.TrimLeftZeroes(s)
	if len(r) == 0 || len(r) > componentLength || len(s) == 0 || len(s) > componentLength {
		return RecoveryIDUnset, errors.Wrap(ErrRecovery, "r and s must be 1 to 32 bytes")
	}

	sig := make([]byte, 0, crypto.SignatureLength)
	sig = append(sig, common.LeftPadBytes(r, componentLength)...)
	sig = append(sig, common.LeftPadBytes(s, componentLength)...)
	sig = append(sig, 0)

	for i := range recoveryIDSpan {
		sig[crypto.RecoveryIDOffset] = byte(i)

		pub, err := RecoverPublicKey(messageHash, sig)
		if err != nil {
			continue
		}

		if bytes.Equal(pub, publicKey) {
			return RecoveryID(i), nil
		}
	}

	return RecoveryIDUnset, errors.WithStack(ErrRecovery)
}

// RecoverPublicKey recovers the 64 byte public key from a 65 byte r||s||id signature.
func RecoverPublicKey(messageHash, sig []byte) ([]byte, error) {
	pub, err := crypto.SigToPub(messageHash, sig)
	if err != nil {
		return nil, errors.Wrap(ErrRecovery, err.Error())
	}

	return crypto.FromECDSAPub(pub)[1:], nil
}
