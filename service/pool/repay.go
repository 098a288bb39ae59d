package pool

import (
	"context"
	"math/big"

	"reservoir/core"
	"reservoir/internal/interest"
	"reservoir/pkg/ray"

	"github.com/fox-one/pkg/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repay settles onBehalfOf's debt from the caller's own receipt balance:
// the receipt tokens are burned back into the reserve, which returns the
// liquidity to the pool without a separate transfer. Pass core.AmountAll to
// repay everything. Returns the amount actually settled.
func (s *Service) Repay(ctx context.Context, asset, caller, onBehalfOf string, amount *big.Int) (*big.Int, error) {
	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"event": "repay",
		"asset": asset,
	})
	ctx = logger.WithContext(ctx, log)

	if amount == nil || (amount.Sign() <= 0 && !isAmountAll(amount)) {
		return nil, core.ErrInvalidAmount
	}

	var payback *big.Int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.requireOpen(ctx, tx); err != nil {
			return err
		}

		reserve, err := s.mustGetActiveReserve(ctx, tx, asset)
		if err != nil {
			log.WithError(err).Infoln("skip: reserve unavailable")
			return err
		}

		receipt, err := s.tokens.Receipt(asset)
		if err != nil {
			return err
		}
		debtToken, err := s.tokens.Debt(asset)
		if err != nil {
			return err
		}

		now := s.now()

		scaledDebt, err := debtToken.ScaledBalanceOf(ctx, onBehalfOf)
		if err != nil {
			return err
		}
		debt := ray.Mul(scaledDebt, interest.NormalizedDebt(reserve, now))
		if debt.Sign() == 0 {
			return core.ErrNoDebt
		}

		toRepay := amount
		if isAmountAll(amount) {
			toRepay = debt
		}

		if err := s.validator.ValidateRepay(ctx, asset, caller, onBehalfOf, toRepay, debt); err != nil {
			log.WithError(err).Infoln("skip: repay denied")
			return err
		}

		paybackAmount := bigMin(toRepay, debt)

		// the repayer pays with their deposit claim
		callerBalance, err := receipt.BalanceOf(ctx, caller)
		if err != nil {
			return err
		}
		if callerBalance.Cmp(paybackAmount) < 0 {
			return core.ErrInsufficientBalance
		}

		scaledDebtSupply, err := debtToken.ScaledTotalSupply(ctx)
		if err != nil {
			return err
		}
		if err := s.engine.UpdateState(ctx, reserve, scaledDebtSupply, now); err != nil {
			return err
		}

		if err := debtToken.Burn(ctx, onBehalfOf, paybackAmount, reserve.VariableBorrowIndex.Big()); err != nil {
			return err
		}

		user, err := s.users.FindOrCreate(ctx, tx, onBehalfOf)
		if err != nil {
			log.WithError(err).Errorln("users.FindOrCreate")
			return err
		}
		if paybackAmount.Cmp(debt) == 0 {
			user.SetBorrowing(reserve.ReserveID, false)
		}

		// rates still refresh against the now smaller debt total
		scaledDebtSupply, err = debtToken.ScaledTotalSupply(ctx)
		if err != nil {
			return err
		}
		if err := s.engine.UpdateInterestRates(ctx, reserve, scaledDebtSupply, big.NewInt(0), big.NewInt(0)); err != nil {
			return err
		}

		// historical quirk, kept on purpose: a repay that exactly matches
		// the caller's receipt balance also turns that balance off as
		// collateral, even when the debt belonged to someone else.
		callerDrained := callerBalance.Cmp(paybackAmount) == 0
		callerUser := user
		if caller != onBehalfOf {
			callerUser, err = s.users.FindOrCreate(ctx, tx, caller)
			if err != nil {
				log.WithError(err).Errorln("users.FindOrCreate")
				return err
			}
		}
		if callerDrained {
			callerUser.SetUsingAsCollateral(reserve.ReserveID, false)
		}

		if err := s.users.Update(ctx, tx, user); err != nil {
			log.WithError(err).Errorln("users.Update")
			return err
		}
		if caller != onBehalfOf {
			if err := s.users.Update(ctx, tx, callerUser); err != nil {
				log.WithError(err).Errorln("users.Update")
				return err
			}
		}
		if err := s.reserves.Update(ctx, tx, reserve); err != nil {
			log.WithError(err).Errorln("reserves.Update")
			return err
		}

		// burn the repayer's claim back into the reserve itself
		if err := receipt.Burn(ctx, caller, reserve.ReceiptTokenAddress, paybackAmount, reserve.LiquidityIndex.Big()); err != nil {
			return err
		}

		if callerDrained {
			s.publish(core.TopicCollateralDisabled, &core.CollateralEvent{
				ID:        core.NewEventID(),
				Asset:     asset,
				User:      caller,
				Enabled:   false,
				Timestamp: now.Unix(),
			})
		}
		s.publish(core.TopicRepay, &core.RepayEvent{
			ID:         core.NewEventID(),
			Asset:      asset,
			Repayer:    caller,
			OnBehalfOf: onBehalfOf,
			Amount:     core.NewBigInt(paybackAmount),
			Timestamp:  now.Unix(),
		})

		payback = paybackAmount
		log.Infoln("repay completed")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payback, nil
}
