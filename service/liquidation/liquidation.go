// Package liquidation settles undercollateralized positions. Each call is
// one atomic attempt with no state carried between calls: eligibility
// checks, close factor cap, collateral sizing, seizure and settlement all
// happen inside a single transaction, and the external swap runs before any
// balance moves so a failed swap leaves nothing behind.
package liquidation

import (
	"context"
	"math/big"
	"time"

	"reservoir/core"
	"reservoir/internal/interest"
	"reservoir/pkg/ray"

	"github.com/asaskevich/EventBus"
	"github.com/facebookgo/clock"
	"github.com/fox-one/pkg/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// closeFactorBps caps how much of the user's debt one call may settle.
	closeFactorBps = 5000
	// minOutBps is the slippage floor on the swap leg, relative to the
	// debt amount being covered.
	minOutBps = 9000
	// swapDeadline bounds how long a submitted swap stays valid.
	swapDeadline = 60 * time.Second
)

var _ core.ILiquidator = (*Liquidator)(nil)

// Liquidator shares the pool's stores and mutates the same reserve and
// ledger state the ordinary action handlers do.
type Liquidator struct {
	db    *gorm.DB
	clock clock.Clock
	cfg   *core.Config

	reserves core.IReserveStore
	users    core.IUserConfigStore
	configs  core.IPoolConfigStore

	engine    *interest.Engine
	oracle    core.IPriceOracle
	validator core.ISolvencyValidator
	tokens    core.ITokenRegistry
	swap      core.ISwapVenue
	bus       EventBus.Bus
}

// New new liquidator
func New(
	db *gorm.DB,
	clk clock.Clock,
	cfg *core.Config,
	reserveStore core.IReserveStore,
	userStore core.IUserConfigStore,
	poolConfigStore core.IPoolConfigStore,
	engine *interest.Engine,
	oracle core.IPriceOracle,
	validator core.ISolvencyValidator,
	tokens core.ITokenRegistry,
	swap core.ISwapVenue,
	bus EventBus.Bus,
) *Liquidator {
	return &Liquidator{
		db:        db,
		clock:     clk,
		cfg:       cfg,
		reserves:  reserveStore,
		users:     userStore,
		configs:   poolConfigStore,
		engine:    engine,
		oracle:    oracle,
		validator: validator,
		tokens:    tokens,
		swap:      swap,
		bus:       bus,
	}
}

// LiquidationCall seizes collateral from an unsafe position and settles up
// to half of the user's debt in the target asset. The liquidator keeps the
// liquidation bonus as receipt tokens; the rest of the seized collateral is
// sold for the debt asset unless the two assets coincide.
func (l *Liquidator) LiquidationCall(ctx context.Context, collateralAsset, debtAsset, user, liquidator string, debtToCover *big.Int) error {
	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"event":      "liquidation",
		"collateral": collateralAsset,
		"debt":       debtAsset,
		"user":       user,
	})
	ctx = logger.WithContext(ctx, log)

	if debtToCover == nil || debtToCover.Sign() <= 0 {
		return core.ErrInvalidAmount
	}

	return l.db.Transaction(func(tx *gorm.DB) error {
		cfg, err := l.configs.Get(ctx, tx)
		if err != nil {
			return err
		}
		if cfg.Paused {
			return core.ErrPoolPaused
		}

		collReserve, err := l.activeReserve(ctx, tx, collateralAsset)
		if err != nil {
			return err
		}
		debtReserve := collReserve
		if debtAsset != collateralAsset {
			debtReserve, err = l.activeReserve(ctx, tx, debtAsset)
			if err != nil {
				return err
			}
		}

		collReceipt, err := l.tokens.Receipt(collateralAsset)
		if err != nil {
			return err
		}
		debtToken, err := l.tokens.Debt(debtAsset)
		if err != nil {
			return err
		}

		userConfig, err := l.users.FindOrCreate(ctx, tx, user)
		if err != nil {
			return err
		}

		hf, err := l.validator.HealthFactor(ctx, user)
		if err != nil {
			return err
		}
		if hf.Cmp(core.HealthFactorLiquidationThreshold) >= 0 {
			log.Infoln("skip: position still safe")
			return core.ErrHealthFactorNotBelowThreshold
		}

		if !userConfig.UsingAsCollateral(collReserve.ReserveID) || collReserve.LiquidationThresholdBps == 0 {
			return core.ErrCollateralCannotBeLiquidated
		}

		now := l.clock.Now()

		scaledDebt, err := debtToken.ScaledBalanceOf(ctx, user)
		if err != nil {
			return err
		}
		userDebt := ray.Mul(scaledDebt, interest.NormalizedDebt(debtReserve, now))
		if userDebt.Sign() == 0 {
			return core.ErrNoDebtToLiquidate
		}

		// at most half of the debt per call; the cap truncates so an odd
		// debt never settles past the half mark
		covered := bigMin(debtToCover, ray.PercentMulTrunc(userDebt, closeFactorBps))

		collPrice, err := l.oracle.Price(ctx, collateralAsset)
		if err != nil {
			return err
		}
		debtPrice, err := l.oracle.Price(ctx, debtAsset)
		if err != nil {
			return err
		}

		userCollateral, err := collReceipt.BalanceOf(ctx, user)
		if err != nil {
			return err
		}

		// size the seizure: bonus on top of the price converted debt,
		// capped at what the user actually holds
		toSell := convert(covered, debtPrice, collPrice, debtReserve.Decimals, collReserve.Decimals)
		seized := ray.PercentMul(toSell, collReserve.LiquidationBonusBps)
		if seized.Cmp(userCollateral) > 0 {
			seized = new(big.Int).Set(userCollateral)
			toSell = ray.PercentDiv(seized, collReserve.LiquidationBonusBps)
			covered = convert(toSell, collPrice, debtPrice, collReserve.Decimals, debtReserve.Decimals)
		}
		if toSell.Sign() <= 0 || covered.Sign() <= 0 {
			return core.ErrInvalidAmount
		}
		bonus := new(big.Int).Sub(seized, toSell)

		// the swap runs before anything mutates, so a venue failure
		// aborts the whole call with no seizure
		settled := new(big.Int).Set(covered)
		sameAsset := collateralAsset == debtAsset
		if !sameAsset {
			minOut := ray.PercentMul(covered, minOutBps)
			path := l.swapPath(collateralAsset, debtAsset)
			amounts, err := l.swap.SwapExactIn(ctx, toSell, minOut, path, cfg.LiquidationModule, now.Add(swapDeadline).Unix())
			if err != nil {
				log.WithError(err).Infoln("skip: swap failed")
				return err
			}
			if len(amounts) == 0 {
				return core.ErrSwapFailure
			}
			// whatever the venue returned is the debt relieved, even when
			// it diverges from the amount the sizing asked for
			settled = new(big.Int).Set(amounts[len(amounts)-1])
		}

		scaledDebtSupply, err := debtToken.ScaledTotalSupply(ctx)
		if err != nil {
			return err
		}
		if err := l.engine.UpdateState(ctx, debtReserve, scaledDebtSupply, now); err != nil {
			return err
		}
		if !sameAsset {
			collScaledDebtSupply := big.NewInt(0)
			if collDebtToken, terr := l.tokens.Debt(collateralAsset); terr == nil {
				if collScaledDebtSupply, terr = collDebtToken.ScaledTotalSupply(ctx); terr != nil {
					return terr
				}
			}
			if err := l.engine.UpdateState(ctx, collReserve, collScaledDebtSupply, now); err != nil {
				return err
			}
		}

		// the bonus goes straight to the liquidator as receipt tokens
		liquidatorBalance, err := collReceipt.BalanceOf(ctx, liquidator)
		if err != nil {
			return err
		}
		if bonus.Sign() > 0 {
			if err := collReceipt.TransferOnLiquidation(ctx, user, liquidator, bonus); err != nil {
				return err
			}
		}

		liquidatorConfig := userConfig
		if liquidator != user {
			liquidatorConfig, err = l.users.FindOrCreate(ctx, tx, liquidator)
			if err != nil {
				return err
			}
		}
		if bonus.Sign() > 0 && liquidatorBalance.Sign() == 0 {
			liquidatorConfig.SetUsingAsCollateral(collReserve.ReserveID, true)
		}

		if sameAsset {
			// the user's own deposit covers the debt, the underlying
			// never leaves the reserve
			if err := debtToken.Burn(ctx, user, toSell, debtReserve.VariableBorrowIndex.Big()); err != nil {
				return err
			}
			settled = toSell
			if err := collReceipt.Burn(ctx, user, collReserve.ReceiptTokenAddress, toSell, collReserve.LiquidityIndex.Big()); err != nil {
				return err
			}
		} else {
			available := collReserve.AvailableLiquidity.Big()
			available.Sub(available, toSell)
			if available.Sign() < 0 {
				return core.ErrInsufficientLiquidity
			}
			collReserve.AvailableLiquidity = core.NewBigInt(available)
			debtReserve.AvailableLiquidity = core.NewBigInt(new(big.Int).Add(debtReserve.AvailableLiquidity.Big(), settled))

			if err := debtToken.Burn(ctx, user, settled, debtReserve.VariableBorrowIndex.Big()); err != nil {
				return err
			}
			// the sold collateral leaves through the module's custody
			if err := collReceipt.Burn(ctx, user, cfg.LiquidationModule, toSell, collReserve.LiquidityIndex.Big()); err != nil {
				return err
			}
		}

		remainingDebt, err := debtToken.ScaledBalanceOf(ctx, user)
		if err != nil {
			return err
		}
		if remainingDebt.Sign() == 0 {
			userConfig.SetBorrowing(debtReserve.ReserveID, false)
		}
		remainingCollateral, err := collReceipt.BalanceOf(ctx, user)
		if err != nil {
			return err
		}
		if remainingCollateral.Sign() == 0 {
			userConfig.SetUsingAsCollateral(collReserve.ReserveID, false)
		}

		if err := l.users.Update(ctx, tx, userConfig); err != nil {
			return err
		}
		if liquidator != user {
			if err := l.users.Update(ctx, tx, liquidatorConfig); err != nil {
				return err
			}
		}
		if err := l.reserves.Update(ctx, tx, collReserve); err != nil {
			return err
		}
		if !sameAsset {
			if err := l.reserves.Update(ctx, tx, debtReserve); err != nil {
				return err
			}
		}

		if l.bus != nil {
			l.bus.Publish(core.TopicLiquidation, &core.LiquidationEvent{
				ID:               core.NewEventID(),
				CollateralAsset:  collateralAsset,
				DebtAsset:        debtAsset,
				User:             user,
				DebtCovered:      core.NewBigInt(settled),
				CollateralSeized: core.NewBigInt(seized),
				Liquidator:       liquidator,
				Timestamp:        now.Unix(),
			})
		}

		log.Infoln("liquidation completed")
		return nil
	})
}

func (l *Liquidator) activeReserve(ctx context.Context, tx *gorm.DB, asset string) (*core.Reserve, error) {
	reserve, err := l.reserves.Find(ctx, tx, asset)
	if err != nil {
		return nil, err
	}
	if !reserve.Active {
		return nil, core.ErrReserveInactive
	}
	return reserve, nil
}

// swapPath routes directly when either side is the intermediary asset, and
// through it otherwise.
func (l *Liquidator) swapPath(from, to string) []string {
	mid := l.cfg.Pool.IntermediaryAsset
	if mid == "" || from == mid || to == mid {
		return []string{from, to}
	}
	return []string{from, mid, to}
}

// convert reprices an amount from one asset into another using their 1e18
// scaled oracle prices and decimals.
func convert(amount, fromPrice, toPrice *big.Int, fromDecimals, toDecimals uint) *big.Int {
	num := new(big.Int).Mul(amount, fromPrice)
	num.Mul(num, exp10(toDecimals))
	den := new(big.Int).Mul(toPrice, exp10(fromDecimals))
	return num.Quo(num, den)
}

func exp10(n uint) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func bigMin(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
