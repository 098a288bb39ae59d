package core

import (
	"context"
	"math/big"
)

// HealthFactorLiquidationThreshold is the ray scaled health factor below
// which a position becomes liquidatable.
var HealthFactorLiquidationThreshold = new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)

// ISolvencyValidator guards every position mutation. Implementations read
// the same reserves and ledger the pool mutates; checks run before any state
// change so a rejection leaves no trace.
type ISolvencyValidator interface {
	// HealthFactor is ray scaled; ray.Unit means the position sits exactly
	// on the liquidation threshold.
	HealthFactor(ctx context.Context, user string) (*big.Int, error)

	ValidateBorrow(ctx context.Context, asset, user string, amount, amountValue *big.Int) error
	ValidateWithdraw(ctx context.Context, asset, user string, amount, balance *big.Int) error
	ValidateRepay(ctx context.Context, asset, caller, onBehalfOf string, amount, debt *big.Int) error
	ValidateTransfer(ctx context.Context, asset, from string) error
	ValidateCollateralToggle(ctx context.Context, asset, user string, useAsCollateral bool) error
}
