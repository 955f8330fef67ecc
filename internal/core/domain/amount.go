package domain

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// NativeCurrency is the single asset handled by a deployment.
const NativeCurrency = "SOL"

// LamportsPerSOL is the number of base units in one SOL.
const LamportsPerSOL = 1_000_000_000

// lamportExp is the decimal exponent of one lamport.
const lamportExp = -9

var (
	ErrAmountPrecision = errors.New("amount has more than 9 decimal places")
	ErrAmountRange     = errors.New("amount out of range")
)

// LamportsToSOL converts base units to ledger units.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), lamportExp)
}

// SOLToLamports converts ledger units to base units. Negative amounts and
// amounts finer than one lamport are rejected.
func SOLToLamports(sol decimal.Decimal) (uint64, error) {
	if sol.IsNegative() {
		return 0, ErrAmountRange
	}
	scaled := sol.Shift(-lamportExp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrAmountPrecision
	}
	n := scaled.BigInt()
	if !n.IsUint64() {
		return 0, ErrAmountRange
	}
	return n.Uint64(), nil
}
