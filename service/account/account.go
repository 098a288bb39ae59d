// Package account computes position wide solvency: collateral and debt
// values across every reserve a user touches, weighted by the per reserve
// risk parameters.
package account

import (
	"context"
	"math/big"

	"reservoir/core"
	"reservoir/internal/interest"
	"reservoir/pkg/ray"

	"github.com/facebookgo/clock"
)

type accountService struct {
	clock clock.Clock

	reserves core.IReserveStore
	users    core.IUserConfigStore
	oracle   core.IPriceOracle
	tokens   core.ITokenRegistry
}

// New new account service
func New(
	clk clock.Clock,
	reserveStore core.IReserveStore,
	userStore core.IUserConfigStore,
	oracle core.IPriceOracle,
	tokens core.ITokenRegistry,
) core.ISolvencyValidator {
	return &accountService{
		clock:    clk,
		reserves: reserveStore,
		users:    userStore,
		oracle:   oracle,
		tokens:   tokens,
	}
}

// accountData aggregates a user's position in the 1e18 common value unit.
type accountData struct {
	collateralValue *big.Int
	// thresholdAdjusted weights each collateral by its liquidation
	// threshold; ltvAdjusted weights by loan to value.
	thresholdAdjusted *big.Int
	ltvAdjusted       *big.Int
	debtValue         *big.Int
}

func (d *accountData) healthFactor() *big.Int {
	if d.debtValue.Sign() == 0 {
		return new(big.Int).Set(ray.MaxUint128)
	}
	return ray.Div(d.thresholdAdjusted, d.debtValue)
}

// liquidity walks every reserve the user touches. A nonzero
// excludedCollateral simulates removing that much of excludedAsset from the
// user's collateral before aggregating.
func (s *accountService) liquidity(ctx context.Context, user, excludedAsset string, excludedCollateral *big.Int) (*accountData, error) {
	userConfig, err := s.users.FindOrCreate(ctx, nil, user)
	if err != nil {
		return nil, err
	}

	data := &accountData{
		collateralValue:   big.NewInt(0),
		thresholdAdjusted: big.NewInt(0),
		ltvAdjusted:       big.NewInt(0),
		debtValue:         big.NewInt(0),
	}
	if userConfig.IsEmpty() {
		return data, nil
	}

	reserves, err := s.reserves.All(ctx, nil)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	for _, reserve := range reserves {
		asCollateral := userConfig.UsingAsCollateral(reserve.ReserveID)
		borrowing := userConfig.IsBorrowing(reserve.ReserveID)
		if !asCollateral && !borrowing {
			continue
		}

		price, err := s.oracle.Price(ctx, reserve.Asset)
		if err != nil {
			return nil, err
		}

		if asCollateral {
			receipt, err := s.tokens.Receipt(reserve.Asset)
			if err != nil {
				return nil, err
			}
			scaled, err := receipt.ScaledBalanceOf(ctx, user)
			if err != nil {
				return nil, err
			}
			balance := ray.Mul(scaled, interest.NormalizedIncome(reserve, now))
			if reserve.Asset == excludedAsset && excludedCollateral != nil {
				balance.Sub(balance, excludedCollateral)
				if balance.Sign() < 0 {
					balance.SetInt64(0)
				}
			}

			value := assetValue(balance, price, reserve.Decimals)
			data.collateralValue.Add(data.collateralValue, value)
			data.thresholdAdjusted.Add(data.thresholdAdjusted, bpsOf(value, reserve.LiquidationThresholdBps))
			data.ltvAdjusted.Add(data.ltvAdjusted, bpsOf(value, reserve.LoanToValueBps))
		}

		if borrowing {
			debtToken, err := s.tokens.Debt(reserve.Asset)
			if err != nil {
				return nil, err
			}
			scaled, err := debtToken.ScaledBalanceOf(ctx, user)
			if err != nil {
				return nil, err
			}
			debt := ray.Mul(scaled, interest.NormalizedDebt(reserve, now))
			data.debtValue.Add(data.debtValue, assetValue(debt, price, reserve.Decimals))
		}
	}

	return data, nil
}

func (s *accountService) HealthFactor(ctx context.Context, user string) (*big.Int, error) {
	data, err := s.liquidity(ctx, user, "", nil)
	if err != nil {
		return nil, err
	}
	return data.healthFactor(), nil
}

func (s *accountService) ValidateBorrow(ctx context.Context, asset, user string, amount, amountValue *big.Int) error {
	data, err := s.liquidity(ctx, user, "", nil)
	if err != nil {
		return err
	}
	if data.collateralValue.Sign() == 0 {
		return core.ErrInsufficientCollateral
	}

	newDebt := new(big.Int).Add(data.debtValue, amountValue)
	if data.ltvAdjusted.Cmp(newDebt) < 0 {
		return core.ErrInsufficientCollateral
	}
	return nil
}

func (s *accountService) ValidateWithdraw(ctx context.Context, asset, user string, amount, balance *big.Int) error {
	userConfig, err := s.users.FindOrCreate(ctx, nil, user)
	if err != nil {
		return err
	}

	reserve, err := s.reserves.Find(ctx, nil, asset)
	if err != nil {
		return err
	}
	if !userConfig.UsingAsCollateral(reserve.ReserveID) || !userConfig.IsBorrowingAny() {
		return nil
	}

	data, err := s.liquidity(ctx, user, asset, amount)
	if err != nil {
		return err
	}
	if data.debtValue.Sign() == 0 {
		return nil
	}
	if data.healthFactor().Cmp(core.HealthFactorLiquidationThreshold) < 0 {
		return core.ErrInsufficientCollateral
	}
	return nil
}

func (s *accountService) ValidateRepay(ctx context.Context, asset, caller, onBehalfOf string, amount, debt *big.Int) error {
	// repaying only ever improves the position
	return nil
}

func (s *accountService) ValidateTransfer(ctx context.Context, asset, from string) error {
	userConfig, err := s.users.FindOrCreate(ctx, nil, from)
	if err != nil {
		return err
	}
	if !userConfig.IsBorrowingAny() {
		return nil
	}

	// the balances already moved; the sender's position must still hold
	data, err := s.liquidity(ctx, from, "", nil)
	if err != nil {
		return err
	}
	if data.healthFactor().Cmp(core.HealthFactorLiquidationThreshold) < 0 {
		return core.ErrInsufficientCollateral
	}
	return nil
}

func (s *accountService) ValidateCollateralToggle(ctx context.Context, asset, user string, useAsCollateral bool) error {
	receipt, err := s.tokens.Receipt(asset)
	if err != nil {
		return err
	}
	balance, err := receipt.BalanceOf(ctx, user)
	if err != nil {
		return err
	}

	if useAsCollateral {
		if balance.Sign() == 0 {
			return core.ErrInsufficientBalance
		}
		return nil
	}

	// disabling behaves like withdrawing the whole balance
	return s.ValidateWithdraw(ctx, asset, user, balance, balance)
}

// assetValue converts an asset amount to the 1e18 common value unit.
func assetValue(amount, price *big.Int, decimals uint) *big.Int {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	v := new(big.Int).Mul(amount, price)
	return v.Quo(v, unit)
}

func bpsOf(value *big.Int, bps uint64) *big.Int {
	v := new(big.Int).Mul(value, new(big.Int).SetUint64(bps))
	return v.Quo(v, big.NewInt(10000))
}
