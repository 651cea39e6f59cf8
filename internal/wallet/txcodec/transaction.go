package txcodec

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github/chapool/go-cardsigner/internal/util"
)

const (
	unsignedFieldCount = 6
	signedFieldCount   = 9
)

// RawTransaction is an unsigned legacy transaction. The fields are exported and not copied
// on read: a *RawTransaction returned by Decode owns its integers and data, and callers that
// share one across goroutines must not mutate it. Use NewRawTransaction or Copy for a private copy.
type RawTransaction struct {
	Nonce    *big.Int
	GasPrice *big.Int
	GasLimit *big.Int
	// To is nil for contract creation.
	To    *common.Address
	Value *big.Int
	Data  []byte
}

// NewRawTransaction copies all arguments. Nil integers are treated as zero.
func NewRawTransaction(nonce, gasPrice, gasLimit *big.Int, to *common.Address, value *big.Int, data []byte) *RawTransaction {
	tx := &RawTransaction{
		Nonce:    copyInt(nonce),
		GasPrice: copyInt(gasPrice),
		GasLimit: copyInt(gasLimit),
		Value:    copyInt(value),
	}

	if len(data) > 0 {
		tx.Data = common.CopyBytes(data)
	}

	if to != nil {
		addr := *to
		tx.To = &addr
	}

	return tx
}

// Copy returns a deep copy of tx.
func (tx *RawTransaction) Copy() *RawTransaction {
	return NewRawTransaction(tx.Nonce, tx.GasPrice, tx.GasLimit, tx.To, tx.Value, tx.Data)
}

func (tx *RawTransaction) IsContractCreation() bool {
	return tx.To == nil
}

// Decode parses the hex serialization of an unsigned transaction. The hex must not carry a 0x prefix.
func Decode(serialized string) (*RawTransaction, error) {
	b, err := util.HexToBytes(serialized)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode transaction hex")
	}

	return DecodeBytes(b)
}

// DecodeBytes parses the six field list nonce, gasPrice, gasLimit, to, value, data.
func DecodeBytes(b []byte) (*RawTransaction, error) {
	fields, err := decodeFields(b, unsignedFieldCount)
	if err != nil {
		return nil, err
	}

	return rawFromFields(fields)
}

// Encode serializes tx. With sig set the three signature values are appended, with chainID set
// the replay scoped trailer [chainID, empty, empty] is appended, with neither the six base
// fields are emitted. Passing both is ErrEncodingMode.
func Encode(tx *RawTransaction, sig *Signature, chainID *big.Int) ([]byte, error) {
	if sig != nil && chainID != nil {
		return nil, errors.WithStack(ErrEncodingMode)
	}

	if sig == nil {
		return SigningPayload(tx, chainID), nil
	}

	if sig.V == nil || len(sig.R) == 0 || len(sig.S) == 0 {
		return nil, errors.WithStack(ErrIncompleteSignature)
	}

	return encodeFields(tx,
		uintItem(sig.V),
		String(common.TrimLeftZeroes(sig.R)),
		String(common.TrimLeftZeroes(sig.S)),
	), nil
}

// SigningPayload is the unsigned encoding whose Keccak-256 the device signs.
func SigningPayload(tx *RawTransaction, chainID *big.Int) []byte {
	if chainID == nil {
		return encodeFields(tx)
	}

	return encodeFields(tx, uintItem(chainID), String(nil), String(nil))
}

// encodeFields serializes the six base fields followed by trailer.
func encodeFields(tx *RawTransaction, trailer ...Item) []byte {
	return EncodeItem(List(append(tx.fields(), trailer...)...))
}

// TransactionHash is Keccak-256 of the unsigned encoding, replay scoped when chainID is non-nil.
func TransactionHash(tx *RawTransaction, chainID *big.Int) common.Hash {
	return crypto.Keccak256Hash(SigningPayload(tx, chainID))
}

func (tx *RawTransaction) fields() []Item {
	to := String(nil)
	if tx.To != nil {
		to = String(tx.To.Bytes())
	}

	return []Item{
		uintItem(tx.Nonce),
		uintItem(tx.GasPrice),
		uintItem(tx.GasLimit),
		to,
		uintItem(tx.Value),
		String(tx.Data),
	}
}

func decodeFields(b []byte, want ...int) ([]Item, error) {
	it, err := DecodeItem(b)
	if err != nil {
		return nil, err
	}

	if it.Kind() != KindList {
		return nil, errors.Wrap(ErrMalformedTransaction, "transaction is not a list")
	}

	fields := it.Items()
	for _, n := range want {
		if len(fields) == n {
			for i, f := range fields {
				if f.Kind() != KindString {
					return nil, errors.Wrapf(ErrMalformedTransaction, "field %d is a list", i)
				}
			}
			return fields, nil
		}
	}

	return nil, errors.Wrapf(ErrMalformedTransaction, "unexpected field count %d", len(fields))
}

func rawFromFields(fields []Item) (*RawTransaction, error) {
	var (
		tx  RawTransaction
		err error
	)

	if tx.Nonce, err = fieldUint(fields[0], "nonce"); err != nil {
		return nil, err
	}
	if tx.GasPrice, err = fieldUint(fields[1], "gasPrice"); err != nil {
		return nil, err
	}
	if tx.GasLimit, err = fieldUint(fields[2], "gasLimit"); err != nil {
		return nil, err
	}

	switch to := fields[3].Bytes(); len(to) {
	case 0:
	case common.AddressLength:
		addr := common.BytesToAddress(to)
		tx.To = &addr
	default:
		return nil, errors.Wrapf(ErrMalformedTransaction, "to has %d bytes", len(to))
	}

	if tx.Value, err = fieldUint(fields[4], "value"); err != nil {
		return nil, err
	}

	if data := fields[5].Bytes(); len(data) > 0 {
		tx.Data = data
	}

	return &tx, nil
}

// fieldUint rejects leading zero bytes so that decoding followed by encoding reproduces the input.
func fieldUint(it Item, name string) (*big.Int, error) {
	b := it.Bytes()
	if len(b) > 0 && b[0] == 0 {
		return nil, errors.Wrapf(ErrMalformedTransaction, "%s has leading zero bytes", name)
	}

	return new(big.Int).SetBytes(b), nil
}

func uintItem(v *big.Int) Item {
	if v == nil {
		return String(nil)
	}

	return String(v.Bytes())
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}

	return new(big.Int).Set(v)
}
