package core

import (
	"context"
	"math/big"
)

// IRateStrategy maps reserve utilization to annualized rates. Both returned
// rates are ray scaled.
type IRateStrategy interface {
	Rates(ctx context.Context, asset string, availableLiquidity, totalVariableDebt *big.Int, reserveFactorBps uint64) (liquidityRate, variableBorrowRate *big.Int, err error)
}
