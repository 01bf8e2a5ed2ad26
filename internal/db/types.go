package db

import (
	"math/big"
)

// Token amounts are stored as base-10 strings so sqlite never rounds
// them; conversion happens at the edges.

func BigToDec(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func DecToBig(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}
