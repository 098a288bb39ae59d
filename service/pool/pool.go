// Package pool implements the action surface of the lending market. Every
// handler is one database transaction: checks run first, internal state
// mutates next, and calls that hand funds to outsiders come last, so a
// collaborator re-entering mid call only ever sees settled state.
package pool

import (
	"context"
	"math/big"
	"time"

	"reservoir/core"
	"reservoir/internal/interest"

	"github.com/asaskevich/EventBus"
	"github.com/facebookgo/clock"
	"gorm.io/gorm"
)

var (
	_ core.IPool      = (*Service)(nil)
	_ core.IPoolAdmin = (*Service)(nil)
)

type Service struct {
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
	bus       EventBus.Bus
}

// New new pool service
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
	bus EventBus.Bus,
) *Service {
	return &Service{
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
		bus:       bus,
	}
}

// requireOpen loads the pool config and rejects when paused.
func (s *Service) requireOpen(ctx context.Context, tx *gorm.DB) (*core.PoolConfig, error) {
	cfg, err := s.configs.Get(ctx, tx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, core.ErrPoolPaused
	}
	return cfg, nil
}

// mustGetActiveReserve loads a reserve and rejects inactive ones.
func (s *Service) mustGetActiveReserve(ctx context.Context, tx *gorm.DB, asset string) (*core.Reserve, error) {
	reserve, err := s.reserves.Find(ctx, tx, asset)
	if err != nil {
		return nil, err
	}
	if !reserve.Active {
		return nil, core.ErrReserveInactive
	}
	return reserve, nil
}

func (s *Service) publish(topic string, event interface{}) {
	if s.bus != nil {
		s.bus.Publish(topic, event)
	}
}

func bigMin(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func isAmountAll(amount *big.Int) bool {
	return amount != nil && amount.Cmp(core.AmountAll) == 0
}

func (s *Service) Reserve(ctx context.Context, asset string) (*core.Reserve, error) {
	return s.reserves.Find(ctx, nil, asset)
}

func (s *Service) ReserveList(ctx context.Context) ([]string, error) {
	return s.reserves.AddressList(ctx, nil)
}

func (s *Service) NormalizedIncome(ctx context.Context, asset string) (*big.Int, error) {
	reserve, err := s.reserves.Find(ctx, nil, asset)
	if err != nil {
		return nil, err
	}
	return interest.NormalizedIncome(reserve, s.clock.Now()), nil
}

func (s *Service) NormalizedDebt(ctx context.Context, asset string) (*big.Int, error) {
	reserve, err := s.reserves.Find(ctx, nil, asset)
	if err != nil {
		return nil, err
	}
	return interest.NormalizedDebt(reserve, s.clock.Now()), nil
}

func (s *Service) UserConfiguration(ctx context.Context, address string) (*core.UserConfiguration, error) {
	return s.users.Find(ctx, nil, address)
}

// now is the single clock read each handler works against.
func (s *Service) now() time.Time {
	return s.clock.Now()
}
