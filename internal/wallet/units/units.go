package units

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of wei decimals in one ether.
const EtherDecimals = 18

var ErrInvalidAmount = errors.New("invalid amount")

// FromWei converts wei to ether.
func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}

	return decimal.NewFromBigInt(wei, -EtherDecimals)
}

// ToWei parses a decimal ether amount such as "1.5" into wei. Amounts that are negative or
// finer than one wei are rejected.
func ToWei(ether string) (*big.Int, error) {
	d, err := decimal.NewFromString(ether)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q: %v", ether, err)
	}

	if d.IsNegative() {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q is negative", ether)
	}

	wei := d.Shift(EtherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q has more than %d decimals", ether, EtherDecimals)
	}

	return wei.BigInt(), nil
}

// Fee is gasPrice * gas expressed in ether.
func Fee(gasPrice, gas *big.Int) decimal.Decimal {
	if gasPrice == nil || gas == nil {
		return decimal.Zero
	}

	return FromWei(new(big.Int).Mul(gasPrice, gas))
}

// FormatEther renders wei as an ether string without trailing zeros.
func FormatEther(wei *big.Int) string {
	return FromWei(wei).String()
}
