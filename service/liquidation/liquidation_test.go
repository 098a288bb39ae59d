package liquidation

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"reservoir/core"
	"reservoir/internal/interest"
	"reservoir/internal/mocks"
	"reservoir/pkg/ray"
	"reservoir/service/pool"
	"reservoir/service/ratestrategy"
	poolconfigstore "reservoir/store/poolconfig"
	reservestore "reservoir/store/reserve"
	userstore "reservoir/store/user"

	"github.com/asaskevich/EventBus"
	"github.com/facebookgo/clock"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const custody = "liquidation-module"

type testEnv struct {
	liq  *Liquidator
	pool *pool.Service
	clk  *clock.Mock

	oracle    *mocks.PriceOracle
	validator *mocks.Validator
	venue     *mocks.SwapVenue
	registry  *core.TokenRegistry
	receipts  map[string]*mocks.ReceiptToken
	debts     map[string]*mocks.DebtToken

	reserves core.IReserveStore
	users    core.IUserConfigStore
	configs  core.IPoolConfigStore

	strategySetter func(asset string, p core.StrategyParams)
}

func newTestEnv(t *testing.T, intermediary string) *testEnv {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, reservestore.Migrate(db))
	require.NoError(t, userstore.Migrate(db))
	require.NoError(t, poolconfigstore.Migrate(db))

	env := &testEnv{
		clk:       clock.NewMock(),
		oracle:    mocks.NewPriceOracle(),
		validator: mocks.NewValidator(),
		venue:     mocks.NewSwapVenue(10000),
		registry:  core.NewTokenRegistry(),
		receipts:  make(map[string]*mocks.ReceiptToken),
		debts:     make(map[string]*mocks.DebtToken),
		reserves:  reservestore.New(db),
		users:     userstore.New(db),
		configs:   poolconfigstore.New(db),
	}

	strategy := ratestrategy.New()
	env.strategySetter = strategy.Set
	engine := interest.New(strategy, EventBus.New())

	cfg := &core.Config{
		Pool: core.PoolSettings{IntermediaryAsset: intermediary},
	}

	env.pool = pool.New(db, env.clk, cfg,
		env.reserves, env.users, env.configs,
		engine, env.oracle, env.validator, env.registry, EventBus.New())

	env.liq = New(db, env.clk, cfg,
		env.reserves, env.users, env.configs,
		engine, env.oracle, env.validator, env.registry, env.venue, EventBus.New())

	require.NoError(t, env.configs.Save(context.Background(), nil, &core.PoolConfig{
		Treasury:          "treasury",
		LiquidationModule: custody,
	}))

	return env
}

func (env *testEnv) listReserve(t *testing.T, asset string, price int64) *core.Reserve {
	receipt := mocks.NewReceiptToken("r-" + asset)
	debt := mocks.NewDebtToken("d-" + asset)
	env.receipts[asset] = receipt
	env.debts[asset] = debt
	env.registry.Add(asset, receipt, debt)

	env.strategySetter(asset, core.StrategyParams{
		OptimalUtilization: decimal.NewFromFloat(0.8),
		BaseRate:           decimal.NewFromFloat(0.02),
		Slope1:             decimal.NewFromFloat(0.04),
		Slope2:             decimal.NewFromFloat(0.75),
	})
	env.oracle.Set(asset, new(big.Int).Mul(big.NewInt(price), exp10(18)))

	reserve := &core.Reserve{
		Asset:                   asset,
		Symbol:                  asset,
		LiquidityIndex:          core.NewBigInt(ray.Unit),
		VariableBorrowIndex:     core.NewBigInt(ray.Unit),
		AvailableLiquidity:      core.NewBigIntFromInt64(0),
		LastUpdateTimestamp:     env.clk.Now().Unix(),
		ReceiptTokenAddress:     receipt.Address(),
		DebtTokenAddress:        debt.Address(),
		Decimals:                18,
		LoanToValueBps:          7500,
		LiquidationThresholdBps: 8000,
		LiquidationBonusBps:     10500,
		ReserveFactorBps:        1000,
		Active:                  true,
	}
	require.NoError(t, env.reserves.Register(context.Background(), nil, reserve))
	return reserve
}

// openPosition deposits collateral and takes on debt, then marks the
// position unsafe so it can be liquidated.
func (env *testEnv) openPosition(t *testing.T, user, collateralAsset string, deposit int64, debtAsset string, borrow int64) {
	ctx := context.Background()
	require.NoError(t, env.pool.Deposit(ctx, collateralAsset, user, big.NewInt(deposit)))
	if borrow > 0 {
		require.NoError(t, env.pool.Deposit(ctx, debtAsset, "lender", big.NewInt(borrow*3)))
		require.NoError(t, env.pool.Borrow(ctx, debtAsset, user, user, big.NewInt(borrow)))
	}
	env.validator.SetHealthFactor(user, ray.PercentMul(ray.Unit, 9500))
}

func TestLiquidationRequiresUnsafePosition(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)
	env.listReserve(t, "dai", 1)

	env.openPosition(t, "alice", "dai", 1_000_000, "usdc", 400_000)

	// exactly at the threshold is still safe
	env.validator.SetHealthFactor("alice", new(big.Int).Set(core.HealthFactorLiquidationThreshold))
	err := env.liq.LiquidationCall(ctx, "dai", "usdc", "alice", "bob", big.NewInt(100_000))
	require.Equal(t, core.ErrHealthFactorNotBelowThreshold, err)

	// one unit below becomes eligible
	env.validator.SetHealthFactor("alice", new(big.Int).Sub(core.HealthFactorLiquidationThreshold, big.NewInt(1)))
	require.NoError(t, env.liq.LiquidationCall(ctx, "dai", "usdc", "alice", "bob", big.NewInt(100_000)))
}

func TestLiquidationRequiresFlaggedCollateral(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)
	env.listReserve(t, "dai", 1)

	env.openPosition(t, "alice", "dai", 1_000_000, "usdc", 400_000)
	require.NoError(t, env.pool.SetUseAsCollateral(ctx, "dai", "alice", false))

	err := env.liq.LiquidationCall(ctx, "dai", "usdc", "alice", "bob", big.NewInt(100_000))
	require.Equal(t, core.ErrCollateralCannotBeLiquidated, err)
}

func TestLiquidationRequiresDebt(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)
	env.listReserve(t, "dai", 1)

	env.openPosition(t, "alice", "dai", 1_000_000, "usdc", 0)

	err := env.liq.LiquidationCall(ctx, "dai", "usdc", "alice", "bob", big.NewInt(100_000))
	require.Equal(t, core.ErrNoDebtToLiquidate, err)
}

func TestSameAssetLiquidationSkipsSwap(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	reserve := env.listReserve(t, "usdc", 1)

	env.openPosition(t, "alice", "usdc", 1_000_000, "usdc", 400_000)

	require.NoError(t, env.liq.LiquidationCall(ctx, "usdc", "usdc", "alice", "bob", big.NewInt(1_000_000_000)))

	require.Empty(t, env.venue.Calls)

	// half the debt settled, 5% bonus on the sold collateral
	debt, err := env.debts["usdc"].BalanceOf(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(200_000), debt)

	bonus, err := env.receipts["usdc"].BalanceOf(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(10_000), bonus)

	remaining, err := env.receipts["usdc"].BalanceOf(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(790_000), remaining)

	bob, err := env.users.Find(ctx, nil, "bob")
	require.NoError(t, err)
	require.True(t, bob.UsingAsCollateral(reserve.ReserveID))
}

func TestCrossAssetLiquidationSettlesThroughSwap(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	env.listReserve(t, "dai", 1)
	env.listReserve(t, "usdc", 1)

	env.openPosition(t, "alice", "dai", 1_000_000, "usdc", 400_000)
	env.venue.OutBps = 9500

	debtBefore, err := env.reserves.Find(ctx, nil, "usdc")
	require.NoError(t, err)

	require.NoError(t, env.liq.LiquidationCall(ctx, "dai", "usdc", "alice", "bob", big.NewInt(1_000_000_000)))

	require.Len(t, env.venue.Calls, 1)
	call := env.venue.Calls[0]
	require.Equal(t, []string{"dai", "usdc"}, call.Path)
	require.Equal(t, custody, call.Recipient)
	require.Equal(t, big.NewInt(200_000), call.AmountIn)
	// floor is 90% of the covered debt
	require.Equal(t, big.NewInt(180_000), call.MinOut)

	// the debt relieved is the actual swap output, not the sized amount
	debt, err := env.debts["usdc"].BalanceOf(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(210_000), debt)

	bonus, err := env.receipts["dai"].BalanceOf(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(10_000), bonus)

	collateralReserve, err := env.reserves.Find(ctx, nil, "dai")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(800_000), collateralReserve.AvailableLiquidity.Big())

	debtReserve, err := env.reserves.Find(ctx, nil, "usdc")
	require.NoError(t, err)
	require.Equal(t,
		new(big.Int).Add(debtBefore.AvailableLiquidity.Big(), big.NewInt(190_000)),
		debtReserve.AvailableLiquidity.Big())
}

func TestSwapBelowFloorAbortsWithoutSeizure(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	env.listReserve(t, "dai", 1)
	env.listReserve(t, "usdc", 1)

	env.openPosition(t, "alice", "dai", 1_000_000, "usdc", 400_000)
	env.venue.OutBps = 8500

	err := env.liq.LiquidationCall(ctx, "dai", "usdc", "alice", "bob", big.NewInt(1_000_000_000))
	require.Equal(t, core.ErrSwapFailure, err)

	// nothing moved
	debt, derr := env.debts["usdc"].BalanceOf(ctx, "alice")
	require.NoError(t, derr)
	require.Equal(t, big.NewInt(400_000), debt)

	collateral, cerr := env.receipts["dai"].BalanceOf(ctx, "alice")
	require.NoError(t, cerr)
	require.Equal(t, big.NewInt(1_000_000), collateral)

	bonus, berr := env.receipts["dai"].BalanceOf(ctx, "bob")
	require.NoError(t, berr)
	require.Zero(t, bonus.Sign())
}

// silentVenue reports success without returning any leg amounts.
type silentVenue struct{}

func (silentVenue) SwapExactIn(ctx context.Context, amountIn, minOut *big.Int, path []string, recipient string, deadline int64) ([]*big.Int, error) {
	return nil, nil
}

func TestSwapReturningNoAmountsAborts(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	env.listReserve(t, "dai", 1)
	env.listReserve(t, "usdc", 1)

	env.openPosition(t, "alice", "dai", 1_000_000, "usdc", 400_000)
	env.liq.swap = silentVenue{}

	err := env.liq.LiquidationCall(ctx, "dai", "usdc", "alice", "bob", big.NewInt(100_000))
	require.Equal(t, core.ErrSwapFailure, err)

	debt, derr := env.debts["usdc"].BalanceOf(ctx, "alice")
	require.NoError(t, derr)
	require.Equal(t, big.NewInt(400_000), debt)
}

func TestCloseFactorCapsCoveredDebt(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	env.listReserve(t, "dai", 1)
	env.listReserve(t, "usdc", 1)

	env.openPosition(t, "alice", "dai", 1_000_000, "usdc", 400_000)

	require.NoError(t, env.liq.LiquidationCall(ctx, "dai", "usdc", "alice", "bob", big.NewInt(350_000)))

	// the request exceeded the cap, only half the debt was covered
	require.Len(t, env.venue.Calls, 1)
	require.Equal(t, big.NewInt(200_000), env.venue.Calls[0].AmountIn)
}

func TestCloseFactorTruncatesOddDebt(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)

	env.openPosition(t, "alice", "usdc", 1_000_000, "usdc", 3)

	require.NoError(t, env.liq.LiquidationCall(ctx, "usdc", "usdc", "alice", "bob", big.NewInt(3)))

	// half of 3 truncates to 1, the cap never rounds up past the half mark
	debt, err := env.debts["usdc"].BalanceOf(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2), debt)
}

func TestLiquidationRoutesThroughIntermediary(t *testing.T) {
	env := newTestEnv(t, "weth")
	ctx := context.Background()
	env.listReserve(t, "dai", 1)
	env.listReserve(t, "usdc", 1)

	env.openPosition(t, "alice", "dai", 1_000_000, "usdc", 400_000)

	require.NoError(t, env.liq.LiquidationCall(ctx, "dai", "usdc", "alice", "bob", big.NewInt(100_000)))

	require.Len(t, env.venue.Calls, 1)
	require.Equal(t, []string{"dai", "weth", "usdc"}, env.venue.Calls[0].Path)
}

func TestLiquidationSeizureCappedAtBalance(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	env.listReserve(t, "dai", 1)
	env.listReserve(t, "usdc", 1)

	// collateral worth far less than the sized seizure
	env.openPosition(t, "alice", "dai", 105_000, "usdc", 400_000)

	require.NoError(t, env.liq.LiquidationCall(ctx, "dai", "usdc", "alice", "bob", big.NewInt(1_000_000_000)))

	// the whole balance is gone and the flag follows it
	collateral, err := env.receipts["dai"].BalanceOf(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, collateral.Sign())

	alice, err := env.users.Find(ctx, nil, "alice")
	require.NoError(t, err)
	daiReserve, err := env.reserves.Find(ctx, nil, "dai")
	require.NoError(t, err)
	require.False(t, alice.UsingAsCollateral(daiReserve.ReserveID))

	require.Len(t, env.venue.Calls, 1)
	require.Equal(t, big.NewInt(100_000), env.venue.Calls[0].AmountIn)
}

func TestLiquidationWhilePaused(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)

	cfg, err := env.configs.Get(ctx, nil)
	require.NoError(t, err)
	cfg.Paused = true
	require.NoError(t, env.configs.Save(ctx, nil, cfg))

	err = env.liq.LiquidationCall(ctx, "usdc", "usdc", "alice", "bob", big.NewInt(1))
	require.Equal(t, core.ErrPoolPaused, err)
}
