// Copyright (c) 2013-2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
)

const (
	// SatoshiPerCoin is the number of satoshi in one coin.
	SatoshiPerCoin = 100000000

	// MaxSatoshi is the maximum transaction amount allowed in satoshi.
	MaxSatoshi = 21000000 * SatoshiPerCoin
)

// Amount represents the base coin monetary unit (colloquially referred to as
// a `Satoshi'). A single Amount is equal to 1e-8 of a coin.
type Amount int64

// round converts a floating point number, which may or may not be
// representable as an integer, to the Amount integer type by rounding to the
// nearest integer. This is performed by adding or subtracting 0.5 depending
// on the sign, and relying on integer truncation to round the value to the
// nearest Amount.
func round(f float64) Amount {
	if f < 0 {
		return Amount(f - 0.5)
	}
	return Amount(f + 0.5)
}

// NewAmount creates an Amount from a floating point value representing some
// value in coins. NewAmount errors if f is NaN or +-Infinity, but does not
// check that the amount is within the total amount of coins producible.
//
// NewAmount is for specifically for converting coins to satoshi. For creating
// a new Amount with an int64 value which denotes a quantity of satoshi, do a
// simple type conversion from type int64 to Amount.
func NewAmount(f float64) (Amount, error) {
	// The amount is only considered invalid if it cannot be represented
	// as an integer type. This may happen if f is NaN or +-Infinity.
	switch {
	case math.IsNaN(f):
		fallthrough
	case math.IsInf(f, 1):
		fallthrough
	case math.IsInf(f, -1):
		return 0, errors.New("invalid coin amount")
	}

	return round(f * SatoshiPerCoin), nil
}

// ToCoin is the equivalent of calling ToUnit with AmountCoin; it returns the
// amount as a floating point quantity of whole coins.
func (a Amount) ToCoin() float64 {
	return float64(a) / SatoshiPerCoin
}

// String returns the amount formatted as a quantity of whole coins with the
// "SLS" unit suffix.
func (a Amount) String() string {
	return strconv.FormatFloat(a.ToCoin(), 'f', -1, 64) + " SLS"
}

// MulF64 multiplies an Amount by a floating point value. While this is not
// an operation that must typically be done by a full node or wallet, it is
// useful for services that build on top of solis (for example, calculating
// a fee by multiplying by a percentage).
func (a Amount) MulF64(f float64) Amount {
	return round(float64(a) * f)
}

// MoneyRange returns whether the amount is a valid transaction amount: not
// negative and not above the maximum producible supply.
func MoneyRange(a Amount) bool {
	return a >= 0 && a <= MaxSatoshi
}
