package signature

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

var (
	curveOrder     = new(big.Int).Set(crypto.S256().Params().N)
	halfCurveOrder = new(big.Int).Rsh(curveOrder, 1)
)

// CurveOrder returns a copy of the secp256k1 group order.
func CurveOrder() *big.Int {
	return new(big.Int).Set(curveOrder)
}

// Canonicalize returns s in low-S form: curveOrder - s when s > curveOrder/2, s otherwise.
// Both components must lie in [1, curveOrder-1]. The result carries no leading zero bytes.
func Canonicalize(r, s []byte) ([]byte, error) {
	rInt := new(big.Int).SetBytes(r)
	sInt := new(big.Int).SetBytes(s)

	if !inRange(rInt) {
		return nil, errors.Wrap(ErrSignatureFormat, "r out of range")
	}

	if !inRange(sInt) {
		return nil, errors.Wrap(ErrSignatureFormat, "s out of range")
	}

	if sInt.Cmp(halfCurveOrder) > 0 {
		sInt.Sub(curveOrder, sInt)
	}

	return sInt.Bytes(), nil
}

// IsCanonical reports whether s is in [1, curveOrder/2].
func IsCanonical(s []byte) bool {
	sInt := new(big.Int).SetBytes(s)
	return sInt.Sign() > 0 && sInt.Cmp(halfCurveOrder) <= 0
}

func inRange(v *big.Int) bool {
	return v.Sign() > 0 && v.Cmp(curveOrder) < 0
}
