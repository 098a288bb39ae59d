package pool

import (
	"context"
	"math/big"

	"reservoir/core"

	"gorm.io/gorm"
)

// SetPaused flips the global pause switch. While paused every mutating
// handler rejects with ErrPoolPaused; reads stay available.
func (s *Service) SetPaused(ctx context.Context, caller string, paused bool) error {
	if !s.cfg.IsAdmin(caller) {
		return core.ErrOperationForbidden
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		cfg, err := s.configs.Get(ctx, tx)
		if err != nil {
			return err
		}
		if cfg.Paused == paused {
			return nil
		}
		cfg.Paused = paused
		return s.configs.Save(ctx, tx, cfg)
	})
}

// SetFees updates the protocol fee rates. Rates above 100% are rejected.
func (s *Service) SetFees(ctx context.Context, caller string, borrowFeeBps, withdrawFeeBps uint64) error {
	if !s.cfg.IsAdmin(caller) {
		return core.ErrOperationForbidden
	}
	if borrowFeeBps > 10000 || withdrawFeeBps > 10000 {
		return core.ErrInvalidAmount
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		cfg, err := s.configs.Get(ctx, tx)
		if err != nil {
			return err
		}
		cfg.BorrowFeeBps = borrowFeeBps
		cfg.WithdrawFeeBps = withdrawFeeBps
		return s.configs.Save(ctx, tx, cfg)
	})
}

// RegisterReserve lists a new asset. The store assigns the next dense
// reserve id and rejects once all slots are taken.
func (s *Service) RegisterReserve(ctx context.Context, caller string, reserve *core.Reserve) error {
	if !s.cfg.IsAdmin(caller) {
		return core.ErrOperationForbidden
	}
	if reserve.Asset == "" {
		return core.ErrReserveNotFound
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.reserves.Register(ctx, tx, reserve)
	})
}

// SetReserveStrategy points a reserve at a different rate strategy. State
// accrues at the old rates up to now before the switch takes effect.
func (s *Service) SetReserveStrategy(ctx context.Context, caller, asset, strategyAddress string) error {
	if !s.cfg.IsAdmin(caller) {
		return core.ErrOperationForbidden
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		reserve, err := s.reserves.Find(ctx, tx, asset)
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

		if err := s.engine.UpdateState(ctx, reserve, scaledDebtSupply, s.now()); err != nil {
			return err
		}
		if err := s.engine.UpdateInterestRates(ctx, reserve, scaledDebtSupply, big.NewInt(0), big.NewInt(0)); err != nil {
			return err
		}

		reserve.RateStrategyAddress = strategyAddress
		return s.reserves.Update(ctx, tx, reserve)
	})
}

// SetReserveActive freezes or unfreezes a single reserve without touching
// the rest of the pool.
func (s *Service) SetReserveActive(ctx context.Context, caller, asset string, active bool) error {
	if !s.cfg.IsAdmin(caller) {
		return core.ErrOperationForbidden
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		reserve, err := s.reserves.Find(ctx, tx, asset)
		if err != nil {
			return err
		}
		if reserve.Active == active {
			return nil
		}
		reserve.Active = active
		return s.reserves.Update(ctx, tx, reserve)
	})
}
