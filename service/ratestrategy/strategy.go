// Package ratestrategy is the default utilization driven rate model: a base
// rate plus a first slope up to the optimal utilization point and a steeper
// second slope past it.
package ratestrategy

import (
	"context"
	"math/big"
	"sync"

	"reservoir/core"
	"reservoir/pkg/ray"
)

type params struct {
	optimalUtilization *big.Int
	baseRate           *big.Int
	slope1             *big.Int
	slope2             *big.Int
}

type strategy struct {
	mux    sync.RWMutex
	assets map[string]params
}

// New new rate strategy
func New() *strategy {
	return &strategy{assets: make(map[string]params)}
}

// Set installs the model parameters for an asset.
func (s *strategy) Set(asset string, p core.StrategyParams) {
	s.mux.Lock()
	defer s.mux.Unlock()

	s.assets[asset] = params{
		optimalUtilization: ray.FromDecimal(p.OptimalUtilization),
		baseRate:           ray.FromDecimal(p.BaseRate),
		slope1:             ray.FromDecimal(p.Slope1),
		slope2:             ray.FromDecimal(p.Slope2),
	}
}

func (s *strategy) Rates(ctx context.Context, asset string, availableLiquidity, totalVariableDebt *big.Int, reserveFactorBps uint64) (*big.Int, *big.Int, error) {
	s.mux.RLock()
	p, ok := s.assets[asset]
	s.mux.RUnlock()
	if !ok {
		return nil, nil, core.ErrReserveNotFound
	}

	total := new(big.Int).Add(availableLiquidity, totalVariableDebt)

	utilization := big.NewInt(0)
	if total.Sign() > 0 {
		utilization = ray.Div(totalVariableDebt, total)
	}

	borrowRate := new(big.Int).Set(p.baseRate)
	if utilization.Cmp(p.optimalUtilization) <= 0 {
		if p.optimalUtilization.Sign() > 0 {
			borrowRate.Add(borrowRate, ray.Mul(p.slope1, ray.Div(utilization, p.optimalUtilization)))
		}
	} else {
		excess := new(big.Int).Sub(utilization, p.optimalUtilization)
		excessCeiling := new(big.Int).Sub(ray.Unit, p.optimalUtilization)
		borrowRate.Add(borrowRate, p.slope1)
		borrowRate.Add(borrowRate, ray.Mul(p.slope2, ray.Div(excess, excessCeiling)))
	}

	// the supply side earns the borrow rate scaled by utilization, minus
	// the protocol's reserve factor cut
	liquidityRate := ray.PercentMul(ray.Mul(borrowRate, utilization), 10000-reserveFactorBps)

	return liquidityRate, borrowRate, nil
}
