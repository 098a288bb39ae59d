package pool

import (
	"context"

	"reservoir/core"

	"github.com/fox-one/pkg/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SetUseAsCollateral flips whether the caller's receipt balance in the
// asset backs their debt. Disabling is validated so it cannot leave the
// position undercollateralized.
func (s *Service) SetUseAsCollateral(ctx context.Context, asset, caller string, useAsCollateral bool) error {
	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"event": "collateral-toggle",
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

		if err := s.validator.ValidateCollateralToggle(ctx, asset, caller, useAsCollateral); err != nil {
			log.WithError(err).Infoln("skip: toggle denied")
			return err
		}

		user, err := s.users.FindOrCreate(ctx, tx, caller)
		if err != nil {
			log.WithError(err).Errorln("users.FindOrCreate")
			return err
		}
		user.SetUsingAsCollateral(reserve.ReserveID, useAsCollateral)

		if err := s.users.Update(ctx, tx, user); err != nil {
			log.WithError(err).Errorln("users.Update")
			return err
		}

		topic := core.TopicCollateralDisabled
		if useAsCollateral {
			topic = core.TopicCollateralEnabled
		}
		s.publish(topic, &core.CollateralEvent{
			ID:        core.NewEventID(),
			Asset:     asset,
			User:      caller,
			Enabled:   useAsCollateral,
			Timestamp: s.now().Unix(),
		})

		log.Infoln("collateral toggle completed")
		return nil
	})
}
