// Package ray implements fixed point arithmetic on integers scaled by 1e27.
// Indices and rates are rays; token amounts stay in their native base units.
package ray

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	// Unit is one ray, 1e27.
	Unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)
	// HalfUnit is used for half-up rounding in Mul and Div.
	HalfUnit = new(big.Int).Rsh(Unit, 1)

	// SecondsPerYear is the accrual year, 365 days.
	SecondsPerYear = big.NewInt(365 * 24 * 3600)

	// MaxUint128 bounds every stored index and rate.
	MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	// PercentFactor is the basis point denominator.
	PercentFactor = big.NewInt(10000)
	halfPercent   = big.NewInt(5000)

	two = big.NewInt(2)
	six = big.NewInt(6)
)

// Mul multiplies two rays, rounding half up.
func Mul(a, b *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	r.Add(r, HalfUnit)
	return r.Quo(r, Unit)
}

// Div divides ray a by ray b, rounding half up.
func Div(a, b *big.Int) *big.Int {
	r := new(big.Int).Mul(a, Unit)
	r.Add(r, new(big.Int).Rsh(b, 1))
	return r.Quo(r, b)
}

// PercentMul multiplies an amount by a basis point factor, rounding half up.
func PercentMul(a *big.Int, bps uint64) *big.Int {
	r := new(big.Int).Mul(a, new(big.Int).SetUint64(bps))
	r.Add(r, halfPercent)
	return r.Quo(r, PercentFactor)
}

// PercentMulTrunc multiplies an amount by a basis point factor, truncating
// toward zero. Used where a cap must never round past its bound.
func PercentMulTrunc(a *big.Int, bps uint64) *big.Int {
	r := new(big.Int).Mul(a, new(big.Int).SetUint64(bps))
	return r.Quo(r, PercentFactor)
}

// PercentDiv divides an amount by a basis point factor, rounding half up.
func PercentDiv(a *big.Int, bps uint64) *big.Int {
	d := new(big.Int).SetUint64(bps)
	r := new(big.Int).Mul(a, PercentFactor)
	r.Add(r, new(big.Int).Rsh(d, 1))
	return r.Quo(r, d)
}

// LinearInterest computes 1 + rate*Δt/secondsPerYear as a ray.
// Used for the liquidity index: the supply side accrues simple interest.
func LinearInterest(rate *big.Int, elapsed int64) *big.Int {
	r := new(big.Int).Mul(rate, big.NewInt(elapsed))
	r.Quo(r, SecondsPerYear)
	return r.Add(r, Unit)
}

// CompoundedInterest approximates (1+rate/secondsPerYear)^Δt as a ray with a
// third order binomial expansion, the same truncation the variable borrow
// index uses on chain. Unpaid debt compounds per second, so the linear
// formula would undercharge borrowers over long gaps.
func CompoundedInterest(rate *big.Int, elapsed int64) *big.Int {
	if elapsed == 0 {
		return new(big.Int).Set(Unit)
	}

	exp := big.NewInt(elapsed)
	expMinusOne := big.NewInt(elapsed - 1)
	expMinusTwo := big.NewInt(elapsed - 2)
	if elapsed < 2 {
		expMinusTwo = big.NewInt(0)
	}

	ratePerSecond := new(big.Int).Quo(rate, SecondsPerYear)
	basePowerTwo := Mul(ratePerSecond, ratePerSecond)
	basePowerThree := Mul(basePowerTwo, ratePerSecond)

	firstTerm := new(big.Int).Mul(exp, ratePerSecond)

	secondTerm := new(big.Int).Mul(exp, expMinusOne)
	secondTerm.Mul(secondTerm, basePowerTwo)
	secondTerm.Quo(secondTerm, two)

	thirdTerm := new(big.Int).Mul(exp, expMinusOne)
	thirdTerm.Mul(thirdTerm, expMinusTwo)
	thirdTerm.Mul(thirdTerm, basePowerThree)
	thirdTerm.Quo(thirdTerm, six)

	r := new(big.Int).Add(Unit, firstTerm)
	r.Add(r, secondTerm)
	return r.Add(r, thirdTerm)
}

// FitsUint128 reports whether x fits the fixed width reserve storage.
func FitsUint128(x *big.Int) bool {
	return x.Sign() >= 0 && x.Cmp(MaxUint128) <= 0
}

// FromDecimal converts a plain decimal (e.g. 0.02 for 2% APR) to a ray.
func FromDecimal(d decimal.Decimal) *big.Int {
	return d.Shift(27).Truncate(0).BigInt()
}

// ToDecimal converts a ray back to a plain decimal.
func ToDecimal(x *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(x, -27)
}
