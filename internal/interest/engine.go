// Package interest owns the per reserve index and rate lifecycle. Handlers
// call UpdateState then UpdateInterestRates inside the same action so rates
// always see freshly accrued indices.
package interest

import (
	"context"
	"math/big"
	"time"

	"reservoir/core"
	"reservoir/pkg/ray"

	"github.com/asaskevich/EventBus"
)

// Engine recomputes reserve indices and rates. It holds no state of its own;
// every call reads and mutates the reserve passed in.
type Engine struct {
	strategy core.IRateStrategy
	bus      EventBus.Bus
}

// New new interest engine
func New(strategy core.IRateStrategy, bus EventBus.Bus) *Engine {
	return &Engine{strategy: strategy, bus: bus}
}

// NormalizedIncome returns the liquidity index accrued to now without
// mutating the reserve. Same instant calls return the stored index.
func NormalizedIncome(reserve *core.Reserve, now time.Time) *big.Int {
	elapsed := now.Unix() - reserve.LastUpdateTimestamp
	if elapsed == 0 {
		return reserve.LiquidityIndex.Big()
	}

	cumulated := ray.LinearInterest(reserve.CurrentLiquidityRate.Big(), elapsed)
	return ray.Mul(cumulated, reserve.LiquidityIndex.Big())
}

// NormalizedDebt returns the variable borrow index accrued to now without
// mutating the reserve.
func NormalizedDebt(reserve *core.Reserve, now time.Time) *big.Int {
	elapsed := now.Unix() - reserve.LastUpdateTimestamp
	if elapsed == 0 {
		return reserve.VariableBorrowIndex.Big()
	}

	cumulated := ray.CompoundedInterest(reserve.CurrentVariableBorrowRate.Big(), elapsed)
	return ray.Mul(cumulated, reserve.VariableBorrowIndex.Big())
}

// UpdateState accrues both indices up to now and stamps the update time.
// scaledDebt is the debt token's scaled total supply. A reserve with no
// liquidity rate never accrues; a reserve with no debt never advances its
// borrow index.
func (e *Engine) UpdateState(ctx context.Context, reserve *core.Reserve, scaledDebt *big.Int, now time.Time) error {
	elapsed := now.Unix() - reserve.LastUpdateTimestamp

	if reserve.CurrentLiquidityRate.Big().Sign() > 0 {
		cumulated := ray.LinearInterest(reserve.CurrentLiquidityRate.Big(), elapsed)
		liquidityIndex := ray.Mul(cumulated, reserve.LiquidityIndex.Big())
		if !ray.FitsUint128(liquidityIndex) {
			return core.ErrIndexOverflow
		}
		reserve.LiquidityIndex = core.NewBigInt(liquidityIndex)

		if scaledDebt.Sign() != 0 {
			cumulated := ray.CompoundedInterest(reserve.CurrentVariableBorrowRate.Big(), elapsed)
			borrowIndex := ray.Mul(cumulated, reserve.VariableBorrowIndex.Big())
			if !ray.FitsUint128(borrowIndex) {
				return core.ErrIndexOverflow
			}
			reserve.VariableBorrowIndex = core.NewBigInt(borrowIndex)
		}
	}

	reserve.LastUpdateTimestamp = now.Unix()
	return nil
}

// UpdateInterestRates asks the strategy for fresh rates with the liquidity
// about to be added and taken, stores them and announces the new reserve
// data. Call after UpdateState in the same action.
func (e *Engine) UpdateInterestRates(ctx context.Context, reserve *core.Reserve, scaledDebt, added, taken *big.Int) error {
	availableLiquidity := reserve.AvailableLiquidity.Big()
	availableLiquidity.Add(availableLiquidity, added)
	availableLiquidity.Sub(availableLiquidity, taken)

	totalVariableDebt := ray.Mul(scaledDebt, reserve.VariableBorrowIndex.Big())

	liquidityRate, borrowRate, err := e.strategy.Rates(ctx, reserve.Asset, availableLiquidity, totalVariableDebt, reserve.ReserveFactorBps)
	if err != nil {
		return err
	}
	if !ray.FitsUint128(liquidityRate) || !ray.FitsUint128(borrowRate) {
		return core.ErrIndexOverflow
	}

	reserve.CurrentLiquidityRate = core.NewBigInt(liquidityRate)
	reserve.CurrentVariableBorrowRate = core.NewBigInt(borrowRate)

	if e.bus != nil {
		e.bus.Publish(core.TopicReserveDataUpdated, &core.ReserveDataUpdatedEvent{
			ID:                  core.NewEventID(),
			Asset:               reserve.Asset,
			LiquidityRate:       reserve.CurrentLiquidityRate,
			VariableBorrowRate:  reserve.CurrentVariableBorrowRate,
			LiquidityIndex:      reserve.LiquidityIndex,
			VariableBorrowIndex: reserve.VariableBorrowIndex,
			Timestamp:           reserve.LastUpdateTimestamp,
		})
	}

	return nil
}

// CumulateToLiquidityIndex distributes a one shot income amount, such as an
// externally sourced fee, to every receipt holder by bumping the index.
func (e *Engine) CumulateToLiquidityIndex(reserve *core.Reserve, totalLiquidity, amount *big.Int) error {
	if totalLiquidity.Sign() == 0 {
		return core.ErrInvalidAmount
	}

	factor := ray.Div(amount, totalLiquidity)
	factor.Add(factor, ray.Unit)

	index := ray.Mul(factor, reserve.LiquidityIndex.Big())
	if !ray.FitsUint128(index) {
		return core.ErrIndexOverflow
	}

	reserve.LiquidityIndex = core.NewBigInt(index)
	return nil
}
