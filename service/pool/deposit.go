package pool

import (
	"context"
	"math/big"

	"reservoir/core"
	"reservoir/pkg/ray"

	"github.com/fox-one/pkg/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deposit moves amount of the underlying into the reserve for beneficiary.
// If the beneficiary owes debt on the same asset the deposit first settles
// it, up to the full amount; only the remainder is minted as receipt tokens.
func (s *Service) Deposit(ctx context.Context, asset, beneficiary string, amount *big.Int) error {
	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"event": "deposit",
		"asset": asset,
	})
	ctx = logger.WithContext(ctx, log)

	if amount == nil || amount.Sign() <= 0 {
		return core.ErrInvalidAmount
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
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

		scaledDebtSupply, err := debtToken.ScaledTotalSupply(ctx)
		if err != nil {
			return err
		}

		now := s.now()
		if err := s.engine.UpdateState(ctx, reserve, scaledDebtSupply, now); err != nil {
			return err
		}
		if err := s.engine.UpdateInterestRates(ctx, reserve, scaledDebtSupply, amount, big.NewInt(0)); err != nil {
			return err
		}

		// funds arrive
		reserve.AvailableLiquidity = core.NewBigInt(new(big.Int).Add(reserve.AvailableLiquidity.Big(), amount))

		user, err := s.users.FindOrCreate(ctx, tx, beneficiary)
		if err != nil {
			log.WithError(err).Errorln("users.FindOrCreate")
			return err
		}

		scaledDebt, err := debtToken.ScaledBalanceOf(ctx, beneficiary)
		if err != nil {
			return err
		}
		debt := ray.Mul(scaledDebt, reserve.VariableBorrowIndex.Big())

		payback := bigMin(amount, debt)
		remainder := new(big.Int).Sub(amount, payback)

		if payback.Sign() > 0 {
			if err := debtToken.Burn(ctx, beneficiary, payback, reserve.VariableBorrowIndex.Big()); err != nil {
				return err
			}
			if payback.Cmp(debt) == 0 {
				user.SetBorrowing(reserve.ReserveID, false)
			}
		}

		if remainder.Sign() > 0 {
			first, err := receipt.Mint(ctx, beneficiary, remainder, reserve.LiquidityIndex.Big())
			if err != nil {
				return err
			}
			if first {
				user.SetUsingAsCollateral(reserve.ReserveID, true)
			}
		}

		if err := s.users.Update(ctx, tx, user); err != nil {
			log.WithError(err).Errorln("users.Update")
			return err
		}
		if err := s.reserves.Update(ctx, tx, reserve); err != nil {
			log.WithError(err).Errorln("reserves.Update")
			return err
		}

		if payback.Sign() > 0 {
			s.publish(core.TopicRepay, &core.RepayEvent{
				ID:         core.NewEventID(),
				Asset:      asset,
				Repayer:    beneficiary,
				OnBehalfOf: beneficiary,
				Amount:     core.NewBigInt(payback),
				Timestamp:  now.Unix(),
			})
		}
		if remainder.Sign() > 0 {
			s.publish(core.TopicDeposit, &core.DepositEvent{
				ID:          core.NewEventID(),
				Asset:       asset,
				Caller:      beneficiary,
				Beneficiary: beneficiary,
				Amount:      core.NewBigInt(remainder),
				Timestamp:   now.Unix(),
			})
		}

		log.Infoln("deposit completed")
		return nil
	})
}
