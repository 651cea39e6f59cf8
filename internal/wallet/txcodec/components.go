package txcodec

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// RecoveryID selects one of the up to four public keys recoverable from (r, s, hash).
type RecoveryID int

const RecoveryIDUnset RecoveryID = -1

const (
	legacyVOffset  = 27
	eip155VOffset  = 35
	maxRecoveryID  = 3
	recoveryIDSpan = maxRecoveryID + 1
)

// SignatureComponents is a device signature after DER extraction. It is not usable for
// serialization until RecoveryID is resolved.
type SignatureComponents struct {
	R          []byte
	S          []byte
	RecoveryID RecoveryID
}

func (sc SignatureComponents) Complete() bool {
	return sc.RecoveryID >= 0 && sc.RecoveryID <= maxRecoveryID && len(sc.R) > 0 && len(sc.S) > 0
}

// Finalize turns the components into the wire signature. chainID nil yields v = id + 27,
// otherwise the EIP-155 value id + chainID*2 + 35.
func (sc SignatureComponents) Finalize(chainID *big.Int) (*Signature, error) {
	if !sc.Complete() {
		return nil, errors.WithStack(ErrIncompleteSignature)
	}

	return &Signature{
		V: ComputeV(sc.RecoveryID, chainID),
		R: common.CopyBytes(common.TrimLeftZeroes(sc.R)),
		S: common.CopyBytes(common.TrimLeftZeroes(sc.S)),
	}, nil
}

// Signature is the (v, r, s) triple appended to a signed transaction.
type Signature struct {
	V *big.Int
	R []byte
	S []byte
}

func ComputeV(id RecoveryID, chainID *big.Int) *big.Int {
	if chainID == nil {
		return big.NewInt(int64(id) + legacyVOffset)
	}

	v := new(big.Int).Lsh(chainID, 1)
	return v.Add(v, big.NewInt(int64(id)+eip155VOffset))
}

// SplitV is the inverse of ComputeV. chainID is nil for pre EIP-155 values 27 and 28.
func SplitV(v *big.Int) (RecoveryID, *big.Int, error) {
	if v == nil {
		return RecoveryIDUnset, nil, errors.Wrap(ErrMalformedTransaction, "missing v")
	}

	if v.IsInt64() {
		switch v.Int64() {
		case legacyVOffset, legacyVOffset + 1:
			return RecoveryID(v.Int64() - legacyVOffset), nil, nil
		}
	}

	if v.Cmp(big.NewInt(eip155VOffset)) < 0 {
		return RecoveryIDUnset, nil, errors.Wrapf(ErrMalformedTransaction, "invalid v %s", v)
	}

	rest := new(big.Int).Sub(v, big.NewInt(eip155VOffset))
	id := RecoveryID(rest.Bit(0))

	return id, rest.Rsh(rest, 1), nil
}
