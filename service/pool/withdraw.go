package pool

import (
	"context"
	"math/big"

	"reservoir/core"

	"github.com/fox-one/pkg/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Withdraw burns the caller's receipt tokens and sends the underlying to
// the recipient, minus the protocol withdraw fee which is burned to the
// treasury. Pass core.AmountAll to withdraw the full balance. Returns the
// net amount the recipient received.
func (s *Service) Withdraw(ctx context.Context, asset, caller, recipient string, amount *big.Int) (*big.Int, error) {
	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"event": "withdraw",
		"asset": asset,
	})
	ctx = logger.WithContext(ctx, log)

	if amount == nil || (amount.Sign() <= 0 && !isAmountAll(amount)) {
		return nil, core.ErrInvalidAmount
	}

	var net *big.Int
	err := s.db.Transaction(func(tx *gorm.DB) error {
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

		balance, err := receipt.BalanceOf(ctx, caller)
		if err != nil {
			return err
		}

		toWithdraw := amount
		if isAmountAll(amount) {
			toWithdraw = balance
		}
		if toWithdraw.Sign() <= 0 {
			return core.ErrInvalidAmount
		}
		if toWithdraw.Cmp(balance) > 0 {
			return core.ErrInsufficientBalance
		}

		// solvency check happens before any state mutation
		if err := s.validator.ValidateWithdraw(ctx, asset, caller, toWithdraw, balance); err != nil {
			log.WithError(err).Infoln("skip: withdraw denied")
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
		if err := s.engine.UpdateInterestRates(ctx, reserve, scaledDebtSupply, big.NewInt(0), toWithdraw); err != nil {
			return err
		}

		available := reserve.AvailableLiquidity.Big()
		available.Sub(available, toWithdraw)
		if available.Sign() < 0 {
			return core.ErrInsufficientLiquidity
		}
		reserve.AvailableLiquidity = core.NewBigInt(available)

		user, err := s.users.FindOrCreate(ctx, tx, caller)
		if err != nil {
			log.WithError(err).Errorln("users.FindOrCreate")
			return err
		}

		drained := toWithdraw.Cmp(balance) == 0
		if drained {
			user.SetUsingAsCollateral(reserve.ReserveID, false)
		}

		fee := new(big.Int).Quo(
			new(big.Int).Mul(toWithdraw, new(big.Int).SetUint64(cfg.WithdrawFeeBps)),
			big.NewInt(10000),
		)
		netAmount := new(big.Int).Sub(toWithdraw, fee)

		if err := s.users.Update(ctx, tx, user); err != nil {
			log.WithError(err).Errorln("users.Update")
			return err
		}
		if err := s.reserves.Update(ctx, tx, reserve); err != nil {
			log.WithError(err).Errorln("reserves.Update")
			return err
		}

		// funds leave last
		if err := receipt.Burn(ctx, caller, recipient, netAmount, reserve.LiquidityIndex.Big()); err != nil {
			return err
		}
		if fee.Sign() > 0 {
			if err := receipt.Burn(ctx, caller, cfg.Treasury, fee, reserve.LiquidityIndex.Big()); err != nil {
				return err
			}
		}

		if drained {
			s.publish(core.TopicCollateralDisabled, &core.CollateralEvent{
				ID:        core.NewEventID(),
				Asset:     asset,
				User:      caller,
				Enabled:   false,
				Timestamp: now.Unix(),
			})
		}
		s.publish(core.TopicWithdraw, &core.WithdrawEvent{
			ID:        core.NewEventID(),
			Asset:     asset,
			User:      caller,
			Recipient: recipient,
			Amount:    core.NewBigInt(netAmount),
			Fee:       core.NewBigInt(fee),
			Timestamp: now.Unix(),
		})

		net = netAmount
		log.Infoln("withdraw completed")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return net, nil
}
