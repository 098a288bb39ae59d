package cmd

import (
	"time"

	"reservoir/core"
	"reservoir/internal/interest"
	"reservoir/service/account"
	"reservoir/service/oracle"
	"reservoir/service/pool"
	"reservoir/service/ratestrategy"
	poolconfigstore "reservoir/store/poolconfig"
	reservestore "reservoir/store/reserve"
	userstore "reservoir/store/user"

	"github.com/asaskevich/EventBus"
	"github.com/facebookgo/clock"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func provideDatabase() (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(cfg.DB.Path), &gorm.Config{})
}

func provideReserveStore(db *gorm.DB) core.IReserveStore {
	return reservestore.New(db)
}

func provideUserStore(db *gorm.DB) core.IUserConfigStore {
	return userstore.New(db)
}

func providePoolConfigStore(db *gorm.DB) core.IPoolConfigStore {
	return poolconfigstore.New(db)
}

func provideRateStrategy() core.IRateStrategy {
	strategy := ratestrategy.New()
	for _, seed := range cfg.Reserves {
		strategy.Set(seed.Asset, seed.Strategy)
	}
	return strategy
}

func provideOracle() core.IPriceOracle {
	ttl := time.Duration(cfg.Oracle.CacheSeconds) * time.Second
	return oracle.New(cfg.Oracle.EndPoint, ttl)
}

// provideTokenRegistry starts empty; the token adapters attach when the
// deployment binds its receipt and debt token backends.
func provideTokenRegistry() *core.TokenRegistry {
	return core.NewTokenRegistry()
}

func providePool(db *gorm.DB, bus EventBus.Bus) *pool.Service {
	clk := clock.New()
	reserves := provideReserveStore(db)
	users := provideUserStore(db)
	tokens := provideTokenRegistry()
	priceOracle := provideOracle()

	return pool.New(
		db,
		clk,
		&cfg,
		reserves,
		users,
		providePoolConfigStore(db),
		interest.New(provideRateStrategy(), bus),
		priceOracle,
		account.New(clk, reserves, users, priceOracle, tokens),
		tokens,
		bus,
	)
}
