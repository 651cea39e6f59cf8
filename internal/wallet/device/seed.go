package device

import (
	"crypto/sha512"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 2048
	seedLength       = 64
)

// SeedFromMnemonic stretches a BIP39 mnemonic and optional passphrase into the 64 byte seed
// the emulator derives its keys from. The word list itself is not validated.
func SeedFromMnemonic(mnemonic, passphrase string) []byte {
	normalized := strings.Join(strings.Fields(mnemonic), " ")

	return pbkdf2.Key([]byte(normalized), []byte("mnemonic"+passphrase), pbkdf2Iterations, seedLength, sha512.New)
}
