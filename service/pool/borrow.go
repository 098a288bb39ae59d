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

// Borrow opens or grows variable rate debt for onBehalfOf and sends the
// underlying, minus the protocol borrow fee, to the caller. The debt is
// recorded pre fee.
func (s *Service) Borrow(ctx context.Context, asset, caller, onBehalfOf string, amount *big.Int) error {
	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"event": "borrow",
		"asset": asset,
	})
	ctx = logger.WithContext(ctx, log)

	if amount == nil || amount.Sign() <= 0 {
		return core.ErrInvalidAmount
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		cfg, err := s.requireOpen(ctx, tx)
		if err != nil {
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

		price, err := s.oracle.Price(ctx, asset)
		if err != nil {
			log.WithError(err).Errorln("oracle.Price")
			return err
		}
		amountValue := assetValue(amount, price, reserve.Decimals)

		// borrowing power check happens before any state mutation
		if err := s.validator.ValidateBorrow(ctx, asset, onBehalfOf, amount, amountValue); err != nil {
			log.WithError(err).Infoln("skip: borrow denied")
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

		first, err := debtToken.Mint(ctx, caller, onBehalfOf, amount, reserve.VariableBorrowIndex.Big())
		if err != nil {
			return err
		}

		user, err := s.users.FindOrCreate(ctx, tx, onBehalfOf)
		if err != nil {
			log.WithError(err).Errorln("users.FindOrCreate")
			return err
		}
		if first {
			user.SetBorrowing(reserve.ReserveID, true)
		}

		// the mint grew the scaled supply; rates must see it
		scaledDebtSupply, err = debtToken.ScaledTotalSupply(ctx)
		if err != nil {
			return err
		}
		if err := s.engine.UpdateInterestRates(ctx, reserve, scaledDebtSupply, big.NewInt(0), amount); err != nil {
			return err
		}

		available := reserve.AvailableLiquidity.Big()
		available.Sub(available, amount)
		if available.Sign() < 0 {
			return core.ErrInsufficientLiquidity
		}
		reserve.AvailableLiquidity = core.NewBigInt(available)

		if err := s.users.Update(ctx, tx, user); err != nil {
			log.WithError(err).Errorln("users.Update")
			return err
		}
		if err := s.reserves.Update(ctx, tx, reserve); err != nil {
			log.WithError(err).Errorln("reserves.Update")
			return err
		}

		// fee split: the two parts sum exactly to amount
		toBorrower := ray.PercentMul(amount, 10000-cfg.BorrowFeeBps)
		fee := new(big.Int).Sub(amount, toBorrower)

		// funds leave last
		if err := receipt.TransferUnderlyingTo(ctx, caller, toBorrower); err != nil {
			return err
		}
		if fee.Sign() > 0 {
			if err := receipt.TransferUnderlyingTo(ctx, cfg.Treasury, fee); err != nil {
				return err
			}
		}

		s.publish(core.TopicBorrow, &core.BorrowEvent{
			ID:         core.NewEventID(),
			Asset:      asset,
			User:       caller,
			OnBehalfOf: onBehalfOf,
			Amount:     core.NewBigInt(amount),
			Fee:        core.NewBigInt(fee),
			BorrowRate: reserve.CurrentVariableBorrowRate,
			Timestamp:  now.Unix(),
		})

		log.Infoln("borrow completed")
		return nil
	})
}

// assetValue converts an amount of an asset to the 1e18 scaled common value
// unit using its oracle price and decimals.
func assetValue(amount, price *big.Int, decimals uint) *big.Int {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	v := new(big.Int).Mul(amount, price)
	return v.Quo(v, unit)
}
