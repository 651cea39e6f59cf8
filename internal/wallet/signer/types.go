package signer

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrStageOrder is returned when an exchange is asked to skip or repeat a stage.
	ErrStageOrder = errors.New("signing exchange stage out of order")
	// ErrHashMismatch is returned when an independently computed hash disagrees with the claimed one.
	ErrHashMismatch = errors.New("transaction hash mismatch")
	// ErrSenderMismatch is returned when the assembled transaction does not recover to the signing key.
	ErrSenderMismatch = errors.New("assembled transaction sender does not match public key")
)

// Service drives signing exchanges between a transaction requester and a signing device.
// An Exchange must not be used from more than one goroutine at a time.
type Service interface {
	// Prepare decodes the unsigned serialization and computes the hash the device must sign.
	Prepare(ctx context.Context, serialized string) (*Exchange, error)

	// Complete turns a DER signature over the exchange hash into a broadcastable transaction.
	// publicKey is the 64 byte x||y key of the signer.
	Complete(ctx context.Context, ex *Exchange, publicKey, derSignature []byte) error

	// SignWithDevice reads the public key from dev, has it sign the exchange hash and completes.
	SignWithDevice(ctx context.Context, ex *Exchange, dev Device, keyIndex int) error

	// VerifyTransactionHash checks that the transaction rebuilt from the request fields and the
	// decoded serialization both hash to the claimed hash.
	VerifyTransactionHash(ctx context.Context, req *TransactRequest) error
}

// Device is a signing element that never releases its private key.
type Device interface {
	// PublicKey returns the 64 byte x||y public key held in slot keyIndex.
	PublicKey(ctx context.Context, keyIndex int) ([]byte, error)
	// Sign returns a DER signature over the 32 byte hash.
	Sign(ctx context.Context, keyIndex int, hash []byte) ([]byte, error)
}

// TransactRequest is a transfer proposal as submitted by the requesting party. Quantities are
// 0x prefixed hex, Hash is the hash the requester computed over the chain scoped encoding.
type TransactRequest struct {
	From       string `json:"from"       validate:"required,eth_addr"`
	To         string `json:"to"         validate:"required,eth_addr"`
	Nonce      string `json:"nonce"      validate:"required,hexadecimal"`
	GasPrice   string `json:"gasPrice"   validate:"required,hexadecimal"`
	GasLimit   string `json:"gasLimit"   validate:"required,hexadecimal"`
	Value      string `json:"value"      validate:"required,hexadecimal"`
	Serialized string `json:"serialized" validate:"required,hexadecimal"`
	Hash       string `json:"hash"       validate:"required,hexadecimal,len=66"`
}
