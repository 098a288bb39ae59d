package pool

import (
	"context"
	"math/big"

	"reservoir/core"

	"github.com/fox-one/pkg/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FinalizeTransfer is the hook the receipt token calls after moving a
// balance, so the ledger flags can follow the balances. Only the asset's
// own receipt token may call it.
func (s *Service) FinalizeTransfer(ctx context.Context, asset, caller, from, to string, amount, fromBalanceBefore, toBalanceBefore *big.Int) error {
	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"event": "finalize-transfer",
		"asset": asset,
	})
	ctx = logger.WithContext(ctx, log)

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
		if caller != receipt.Address() {
			return core.ErrOperationForbidden
		}

		// the balances already moved; the sender must still be solvent
		if err := s.validator.ValidateTransfer(ctx, asset, from); err != nil {
			log.WithError(err).Infoln("skip: transfer leaves sender unsafe")
			return err
		}

		if from == to {
			return nil
		}

		now := s.now().Unix()

		remaining := new(big.Int).Sub(fromBalanceBefore, amount)
		if remaining.Sign() == 0 {
			fromUser, err := s.users.FindOrCreate(ctx, tx, from)
			if err != nil {
				log.WithError(err).Errorln("users.FindOrCreate")
				return err
			}
			fromUser.SetUsingAsCollateral(reserve.ReserveID, false)
			if err := s.users.Update(ctx, tx, fromUser); err != nil {
				log.WithError(err).Errorln("users.Update")
				return err
			}
			s.publish(core.TopicCollateralDisabled, &core.CollateralEvent{
				ID:        core.NewEventID(),
				Asset:     asset,
				User:      from,
				Enabled:   false,
				Timestamp: now,
			})
		}

		if toBalanceBefore.Sign() == 0 && amount.Sign() > 0 {
			toUser, err := s.users.FindOrCreate(ctx, tx, to)
			if err != nil {
				log.WithError(err).Errorln("users.FindOrCreate")
				return err
			}
			toUser.SetUsingAsCollateral(reserve.ReserveID, true)
			if err := s.users.Update(ctx, tx, toUser); err != nil {
				log.WithError(err).Errorln("users.Update")
				return err
			}
			s.publish(core.TopicCollateralEnabled, &core.CollateralEvent{
				ID:        core.NewEventID(),
				Asset:     asset,
				User:      to,
				Enabled:   true,
				Timestamp: now,
			})
		}

		return nil
	})
}
