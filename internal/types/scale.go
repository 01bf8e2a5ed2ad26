package types

import (
	"errors"
	"math/big"
)

var (
	ErrInvalidAmountScaling = errors.New("amount scaling collapses a non-zero amount to zero")
	ErrAmountOverflow       = errors.New("scaled amount exceeds 256 bits")
	ErrDecimalsOutOfRange   = errors.New("token decimals out of range")
)

// maxDecimals bounds the scaling exponent; 77 is the largest power of
// ten that fits a uint256.
const maxDecimals = 77

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// RescaleAmount converts an integer token amount between decimal bases.
// Down-scaling floors, but a non-zero amount that floors to zero is an
// error rather than a silent loss of value. Up-scaling past 256 bits is
// an explicit overflow error, never a wrap or saturation.
func RescaleAmount(amount *big.Int, fromDecimals, toDecimals uint8) (*big.Int, error) {
	if fromDecimals > maxDecimals || toDecimals > maxDecimals {
		return nil, ErrDecimalsOutOfRange
	}
	if amount == nil || amount.Sign() == 0 {
		return new(big.Int), nil
	}
	if fromDecimals == toDecimals {
		return new(big.Int).Set(amount), nil
	}

	if fromDecimals > toDecimals {
		factor := pow10(uint(fromDecimals - toDecimals))
		scaled := new(big.Int).Quo(amount, factor)
		if scaled.Sign() == 0 {
			return nil, ErrInvalidAmountScaling
		}
		return scaled, nil
	}

	factor := pow10(uint(toDecimals - fromDecimals))
	scaled := new(big.Int).Mul(amount, factor)
	if scaled.Cmp(maxUint256) > 0 {
		return nil, ErrAmountOverflow
	}
	return scaled, nil
}

func pow10(exp uint) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), new(big.Int).SetUint64(uint64(exp)), nil)
}
