package address

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github/chapool/go-cardsigner/internal/util"
)

const (
	// PublicKeyLength is the raw uncompressed public key x||y without the 0x04 format byte.
	PublicKeyLength = 64
)

var (
	ErrMalformedKey     = errors.New("malformed public key")
	ErrMalformedAddress = errors.New("malformed address")
)

// DeriveAddress derives the account address from a 64 byte public key.
func DeriveAddress(publicKey []byte) (common.Address, error) {
	if len(publicKey) != PublicKeyLength {
		return common.Address{}, errors.Wrapf(ErrMalformedKey, "expected %d bytes, got %d", PublicKeyLength, len(publicKey))
	}

	return common.BytesToAddress(crypto.Keccak256(publicKey)[12:]), nil
}

// ChecksumFromPublicKey derives the address of publicKey and renders it checksummed.
func ChecksumFromPublicKey(publicKey []byte) (string, error) {
	addr, err := DeriveAddress(publicKey)
	if err != nil {
		return "", err
	}

	return Checksum(addr), nil
}

// Checksum renders addr as 0x prefixed mixed-case hex.
func Checksum(addr common.Address) string {
	return addr.Hex()
}

// ToChecksumAddress normalizes a hex address (optional 0x/0X prefix, any case) and returns
// its 0x prefixed mixed-case checksum form.
func ToChecksumAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", errors.Wrapf(ErrMalformedAddress, "%q", addr)
	}

	return common.HexToAddress(addr).Hex(), nil
}

// IsValidAddress reports whether addr is 40 hex characters after an optional prefix.
// Letter case is not checked.
func IsValidAddress(addr string) bool {
	return common.IsHexAddress(addr)
}

// IsChecksummed reports whether addr is valid and already carries the correct checksum casing.
func IsChecksummed(addr string) bool {
	sum, err := ToChecksumAddress(addr)
	if err != nil {
		return false
	}

	return util.Strip0x(sum) == util.Strip0x(addr)
}

// ParseAddress parses a hex address into its 20 byte value.
func ParseAddress(addr string) (common.Address, error) {
	if !IsValidAddress(addr) {
		return common.Address{}, errors.Wrapf(ErrMalformedAddress, "%q", addr)
	}

	return common.HexToAddress(addr), nil
}
