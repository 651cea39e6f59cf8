package txcodec

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github/chapool/go-cardsigner/internal/wallet/signature"
)

// SignedTransaction is a RawTransaction combined with a resolved signature and its wire form.
type SignedTransaction struct {
	Tx         *RawTransaction
	Components SignatureComponents
	Signature  *Signature
	// ChainID is nil when v carries no chain id.
	ChainID *big.Int
	Raw     []byte
	Hash    common.Hash
}

// Hex returns the 0x prefixed serialization ready for eth_sendRawTransaction.
func (st *SignedTransaction) Hex() string {
	return hexutil.Encode(st.Raw)
}

// SigningHash recomputes the hash the signature was made over.
func (st *SignedTransaction) SigningHash() common.Hash {
	return TransactionHash(st.Tx, st.ChainID)
}

// Sender recovers the signer address from the signature.
func (st *SignedTransaction) Sender() (common.Address, error) {
	sig := make([]byte, 0, crypto.SignatureLength)
	sig = append(sig, common.LeftPadBytes(st.Components.R, componentLength)...)
	sig = append(sig, common.LeftPadBytes(st.Components.S, componentLength)...)
	sig = append(sig, byte(st.Components.RecoveryID))

	pub, err := crypto.SigToPub(st.SigningHash().Bytes(), sig)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrRecovery, err.Error())
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// AssembleSigned canonicalizes s, resolves the recovery id against publicKey and builds the
// signed serialization. chainID nil produces v = id + 27, otherwise the EIP-155 value.
func AssembleSigned(tx *RawTransaction, publicKey, messageHash, r, s []byte, chainID *big.Int) (*SignedTransaction, error) {
	canonicalS, err := signature.Canonicalize(r, s)
	if err != nil {
		return nil, err
	}

	id, err := RecoverID(publicKey, messageHash, r, canonicalS)
	if err != nil {
		return nil, err
	}

	components := SignatureComponents{
		R:          common.CopyBytes(common.TrimLeftZeroes(r)),
		S:          canonicalS,
		RecoveryID: id,
	}

	return Finalize(tx, components, chainID)
}

// Finalize encodes tx with complete components.
func Finalize(tx *RawTransaction, components SignatureComponents, chainID *big.Int) (*SignedTransaction, error) {
	sig, err := components.Finalize(chainID)
	if err != nil {
		return nil, err
	}

	raw, err := Encode(tx, sig, nil)
	if err != nil {
		return nil, err
	}

	var cid *big.Int
	if chainID != nil {
		cid = new(big.Int).Set(chainID)
	}

	return &SignedTransaction{
		Tx:         tx,
		Components: components,
		Signature:  sig,
		ChainID:    cid,
		Raw:        raw,
		Hash:       crypto.Keccak256Hash(raw),
	}, nil
}

// DecodeSigned parses a nine field signed serialization.
func DecodeSigned(b []byte) (*SignedTransaction, error) {
	fields, err := decodeFields(b, signedFieldCount)
	if err != nil {
		return nil, err
	}

	tx, err := rawFromFields(fields[:unsignedFieldCount])
	if err != nil {
		return nil, err
	}

	v, err := fieldUint(fields[6], "v")
	if err != nil {
		return nil, err
	}

	id, chainID, err := SplitV(v)
	if err != nil {
		return nil, err
	}

	r, s := fields[7].Bytes(), fields[8].Bytes()
	if len(r) == 0 || len(s) == 0 || r[0] == 0 || s[0] == 0 || len(r) > componentLength || len(s) > componentLength {
		return nil, errors.Wrap(ErrMalformedTransaction, "invalid r or s")
	}

	return &SignedTransaction{
		Tx:         tx,
		Components: SignatureComponents{R: r, S: s, RecoveryID: id},
		Signature:  &Signature{V: v, R: r, S: s},
		ChainID:    chainID,
		Raw:        common.CopyBytes(b),
		Hash:       crypto.Keccak256Hash(b),
	}, nil
}
