package pool

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"reservoir/core"
	"reservoir/internal/interest"
	"reservoir/internal/mocks"
	"reservoir/pkg/ray"
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

const (
	treasury  = "treasury"
	custody   = "liquidation-module"
	adminUser = "admin"
)

type testEnv struct {
	svc *Service
	db  *gorm.DB
	clk *clock.Mock

	oracle    *mocks.PriceOracle
	validator *mocks.Validator
	registry  *core.TokenRegistry
	receipts  map[string]*mocks.ReceiptToken
	debts     map[string]*mocks.DebtToken

	reserves core.IReserveStore
	users    core.IUserConfigStore
	configs  core.IPoolConfigStore

	strategySetter func(asset string, p core.StrategyParams)
}

func newTestEnv(t *testing.T) *testEnv {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, reservestore.Migrate(db))
	require.NoError(t, userstore.Migrate(db))
	require.NoError(t, poolconfigstore.Migrate(db))

	env := &testEnv{
		db:        db,
		clk:       clock.NewMock(),
		oracle:    mocks.NewPriceOracle(),
		validator: mocks.NewValidator(),
		registry:  core.NewTokenRegistry(),
		receipts:  make(map[string]*mocks.ReceiptToken),
		debts:     make(map[string]*mocks.DebtToken),
		reserves:  reservestore.New(db),
		users:     userstore.New(db),
		configs:   poolconfigstore.New(db),
	}

	strategy := ratestrategy.New()
	env.strategySetter = strategy.Set

	cfg := &core.Config{Admins: []string{adminUser}}
	env.svc = New(
		db,
		env.clk,
		cfg,
		env.reserves,
		env.users,
		env.configs,
		interest.New(strategy, EventBus.New()),
		env.oracle,
		env.validator,
		env.registry,
		EventBus.New(),
	)

	require.NoError(t, env.configs.Save(context.Background(), nil, &core.PoolConfig{
		BorrowFeeBps:      30,
		WithdrawFeeBps:    30,
		Treasury:          treasury,
		LiquidationModule: custody,
	}))

	return env
}

// listReserve registers an asset with its token fakes, rate model and a
// fixed oracle price.
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
		Asset:                     asset,
		Symbol:                    asset,
		LiquidityIndex:            core.NewBigInt(ray.Unit),
		VariableBorrowIndex:       core.NewBigInt(ray.Unit),
		CurrentLiquidityRate:      core.NewBigIntFromInt64(0),
		CurrentVariableBorrowRate: core.NewBigIntFromInt64(0),
		AvailableLiquidity:        core.NewBigIntFromInt64(0),
		LastUpdateTimestamp:       env.clk.Now().Unix(),
		ReceiptTokenAddress:       receipt.Address(),
		DebtTokenAddress:          debt.Address(),
		Decimals:                  18,
		LoanToValueBps:            7500,
		LiquidationThresholdBps:   8000,
		LiquidationBonusBps:       10500,
		ReserveFactorBps:          1000,
		Active:                    true,
	}
	require.NoError(t, env.reserves.Register(context.Background(), nil, reserve))
	return reserve
}

func exp10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func TestDepositMintsReceiptAndFlagsCollateral(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reserve := env.listReserve(t, "usdc", 1)

	amount := big.NewInt(1_000_000)
	require.NoError(t, env.svc.Deposit(ctx, "usdc", "alice", amount))

	balance, err := env.receipts["usdc"].BalanceOf(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, amount, balance)

	got, err := env.reserves.Find(ctx, nil, "usdc")
	require.NoError(t, err)
	require.Equal(t, amount, got.AvailableLiquidity.Big())

	user, err := env.users.Find(ctx, nil, "alice")
	require.NoError(t, err)
	require.True(t, user.UsingAsCollateral(reserve.ReserveID))
	require.False(t, user.IsBorrowing(reserve.ReserveID))
}

func TestDepositRejectsBadAmount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)

	require.Equal(t, core.ErrInvalidAmount, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(0)))
	require.Equal(t, core.ErrInvalidAmount, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(-5)))
	require.Equal(t, core.ErrInvalidAmount, env.svc.Deposit(ctx, "usdc", "alice", nil))
}

func TestDepositSettlesDebtFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reserve := env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "lender", big.NewInt(1_000_000)))
	require.NoError(t, env.svc.Borrow(ctx, "usdc", "alice", "alice", big.NewInt(400_000)))

	user, err := env.users.Find(ctx, nil, "alice")
	require.NoError(t, err)
	require.True(t, user.IsBorrowing(reserve.ReserveID))

	// the deposit covers the whole debt; only the excess becomes a deposit
	require.NoError(t, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(500_000)))

	debt, err := env.debts["usdc"].BalanceOf(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, debt.Sign())

	balance, err := env.receipts["usdc"].BalanceOf(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100_000), balance)

	user, err = env.users.Find(ctx, nil, "alice")
	require.NoError(t, err)
	require.False(t, user.IsBorrowing(reserve.ReserveID))
	require.True(t, user.UsingAsCollateral(reserve.ReserveID))
}

func TestWithdrawTakesFeeToTreasury(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(1_000_000)))

	net, err := env.svc.Withdraw(ctx, "usdc", "alice", "alice", big.NewInt(500_000))
	require.NoError(t, err)
	// 30 bps of 500000 is 1500
	require.Equal(t, big.NewInt(498_500), net)

	transfers := env.receipts["usdc"].Transfers
	require.NotEmpty(t, transfers)
	last := transfers[len(transfers)-1]
	require.Equal(t, treasury, last.To)
	require.Equal(t, big.NewInt(1_500), last.Amount)

	got, err := env.reserves.Find(ctx, nil, "usdc")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500_000), got.AvailableLiquidity.Big())
}

func TestWithdrawAllClearsCollateralFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reserve := env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(1_000_000)))

	net, err := env.svc.Withdraw(ctx, "usdc", "alice", "alice", core.AmountAll)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(997_000), net)

	balance, err := env.receipts["usdc"].BalanceOf(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	user, err := env.users.Find(ctx, nil, "alice")
	require.NoError(t, err)
	require.False(t, user.UsingAsCollateral(reserve.ReserveID))
}

func TestWithdrawOverBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(1_000)))

	_, err := env.svc.Withdraw(ctx, "usdc", "alice", "alice", big.NewInt(2_000))
	require.Equal(t, core.ErrInsufficientBalance, err)
}

func TestWithdrawDeniedBySolvencyCheck(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(1_000)))
	env.validator.WithdrawErr = core.ErrInsufficientCollateral

	_, err := env.svc.Withdraw(ctx, "usdc", "alice", "alice", big.NewInt(500))
	require.Equal(t, core.ErrInsufficientCollateral, err)

	// denied before any mutation
	got, err := env.reserves.Find(ctx, nil, "usdc")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_000), got.AvailableLiquidity.Big())
}

func TestBorrowFeeSplitSumsExactly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reserve := env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "lender", big.NewInt(1_000_000)))
	require.NoError(t, env.svc.Borrow(ctx, "usdc", "alice", "alice", big.NewInt(50_000)))

	// debt is recorded pre fee
	debt, err := env.debts["usdc"].BalanceOf(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(50_000), debt)

	transfers := env.receipts["usdc"].Transfers
	require.Len(t, transfers, 2)
	require.Equal(t, "alice", transfers[0].To)
	require.Equal(t, treasury, transfers[1].To)
	require.Equal(t, big.NewInt(50_000), new(big.Int).Add(transfers[0].Amount, transfers[1].Amount))

	user, err := env.users.Find(ctx, nil, "alice")
	require.NoError(t, err)
	require.True(t, user.IsBorrowing(reserve.ReserveID))

	got, err := env.reserves.Find(ctx, nil, "usdc")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(950_000), got.AvailableLiquidity.Big())
	require.Positive(t, got.CurrentVariableBorrowRate.Big().Sign())
}

func TestBorrowBeyondLiquidity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "lender", big.NewInt(1_000)))

	err := env.svc.Borrow(ctx, "usdc", "alice", "alice", big.NewInt(2_000))
	require.Equal(t, core.ErrInsufficientLiquidity, err)

	// the failed transaction left nothing behind
	debt, derr := env.debts["usdc"].BalanceOf(ctx, "alice")
	require.NoError(t, derr)
	require.Zero(t, debt.Sign())
	got, gerr := env.reserves.Find(ctx, nil, "usdc")
	require.NoError(t, gerr)
	require.Equal(t, big.NewInt(1_000), got.AvailableLiquidity.Big())
}

func TestBorrowDeniedByBorrowingPower(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "lender", big.NewInt(1_000_000)))
	env.validator.BorrowErr = core.ErrInsufficientCollateral

	err := env.svc.Borrow(ctx, "usdc", "alice", "alice", big.NewInt(100))
	require.Equal(t, core.ErrInsufficientCollateral, err)
}

func TestRepayPartialKeepsBorrowingFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reserve := env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(1_000_000)))
	require.NoError(t, env.svc.Borrow(ctx, "usdc", "alice", "alice", big.NewInt(400_000)))

	payback, err := env.svc.Repay(ctx, "usdc", "alice", "alice", big.NewInt(100_000))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100_000), payback)

	debt, err := env.debts["usdc"].BalanceOf(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(300_000), debt)

	user, err := env.users.Find(ctx, nil, "alice")
	require.NoError(t, err)
	require.True(t, user.IsBorrowing(reserve.ReserveID))
}

func TestRepayAllClearsBorrowingFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reserve := env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(1_000_000)))
	require.NoError(t, env.svc.Borrow(ctx, "usdc", "alice", "alice", big.NewInt(400_000)))

	payback, err := env.svc.Repay(ctx, "usdc", "alice", "alice", core.AmountAll)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(400_000), payback)

	debt, err := env.debts["usdc"].BalanceOf(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, debt.Sign())

	user, err := env.users.Find(ctx, nil, "alice")
	require.NoError(t, err)
	require.False(t, user.IsBorrowing(reserve.ReserveID))
}

func TestRepayWithoutDebt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)

	_, err := env.svc.Repay(ctx, "usdc", "alice", "alice", big.NewInt(100))
	require.Equal(t, core.ErrNoDebt, err)
}

func TestRepayExactBalanceDropsCallerCollateral(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reserve := env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "lender", big.NewInt(1_000_000)))
	require.NoError(t, env.svc.Borrow(ctx, "usdc", "bob", "bob", big.NewInt(300_000)))

	// alice holds exactly what bob owes and pays it off for him
	require.NoError(t, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(300_000)))

	payback, err := env.svc.Repay(ctx, "usdc", "alice", "bob", core.AmountAll)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(300_000), payback)

	alice, err := env.users.Find(ctx, nil, "alice")
	require.NoError(t, err)
	require.False(t, alice.UsingAsCollateral(reserve.ReserveID))

	bob, err := env.users.Find(ctx, nil, "bob")
	require.NoError(t, err)
	require.False(t, bob.IsBorrowing(reserve.ReserveID))
}

func TestDebtAccruesOverTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "lender", big.NewInt(1_000_000)))
	require.NoError(t, env.svc.Borrow(ctx, "usdc", "alice", "alice", big.NewInt(400_000)))

	env.clk.Add(365 * 24 * time.Hour)

	index, err := env.svc.NormalizedDebt(ctx, "usdc")
	require.NoError(t, err)
	require.Positive(t, index.Cmp(ray.Unit))

	income, err := env.svc.NormalizedIncome(ctx, "usdc")
	require.NoError(t, err)
	require.Positive(t, income.Cmp(ray.Unit))
}

func TestPausedPoolRejectsActions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(1_000)))
	require.NoError(t, env.svc.SetPaused(ctx, adminUser, true))

	require.Equal(t, core.ErrPoolPaused, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(1)))
	_, err := env.svc.Withdraw(ctx, "usdc", "alice", "alice", big.NewInt(1))
	require.Equal(t, core.ErrPoolPaused, err)
	require.Equal(t, core.ErrPoolPaused, env.svc.Borrow(ctx, "usdc", "alice", "alice", big.NewInt(1)))
	_, err = env.svc.Repay(ctx, "usdc", "alice", "alice", big.NewInt(1))
	require.Equal(t, core.ErrPoolPaused, err)
	require.Equal(t, core.ErrPoolPaused, env.svc.SetUseAsCollateral(ctx, "usdc", "alice", false))

	// reads stay available while paused
	_, err = env.svc.Reserve(ctx, "usdc")
	require.NoError(t, err)

	require.NoError(t, env.svc.SetPaused(ctx, adminUser, false))
	require.NoError(t, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(1)))
}

func TestInactiveReserveRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.SetReserveActive(ctx, adminUser, "usdc", false))
	require.Equal(t, core.ErrReserveInactive, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(1)))

	require.Equal(t, core.ErrReserveNotFound, env.svc.Deposit(ctx, "ghost", "alice", big.NewInt(1)))
}

func TestSetUseAsCollateral(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reserve := env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(1_000)))
	require.NoError(t, env.svc.SetUseAsCollateral(ctx, "usdc", "alice", false))

	user, err := env.users.Find(ctx, nil, "alice")
	require.NoError(t, err)
	require.False(t, user.UsingAsCollateral(reserve.ReserveID))

	require.NoError(t, env.svc.SetUseAsCollateral(ctx, "usdc", "alice", true))
	user, err = env.users.Find(ctx, nil, "alice")
	require.NoError(t, err)
	require.True(t, user.UsingAsCollateral(reserve.ReserveID))

	env.validator.CollateralToggleErr = core.ErrInsufficientCollateral
	require.Equal(t, core.ErrInsufficientCollateral, env.svc.SetUseAsCollateral(ctx, "usdc", "alice", false))
}

func TestFinalizeTransferMovesFlags(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reserve := env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(1_000)))

	receipt := env.receipts["usdc"]

	// a stranger may not invoke the hook
	err := env.svc.FinalizeTransfer(ctx, "usdc", "mallory", "alice", "bob",
		big.NewInt(1_000), big.NewInt(1_000), big.NewInt(0))
	require.Equal(t, core.ErrOperationForbidden, err)

	require.NoError(t, env.svc.FinalizeTransfer(ctx, "usdc", receipt.Address(), "alice", "bob",
		big.NewInt(1_000), big.NewInt(1_000), big.NewInt(0)))

	alice, err := env.users.Find(ctx, nil, "alice")
	require.NoError(t, err)
	require.False(t, alice.UsingAsCollateral(reserve.ReserveID))

	bob, err := env.users.Find(ctx, nil, "bob")
	require.NoError(t, err)
	require.True(t, bob.UsingAsCollateral(reserve.ReserveID))
}

func TestFinalizeTransferSelfIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reserve := env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(1_000)))

	receipt := env.receipts["usdc"]
	require.NoError(t, env.svc.FinalizeTransfer(ctx, "usdc", receipt.Address(), "alice", "alice",
		big.NewInt(1_000), big.NewInt(1_000), big.NewInt(1_000)))

	alice, err := env.users.Find(ctx, nil, "alice")
	require.NoError(t, err)
	require.True(t, alice.UsingAsCollateral(reserve.ReserveID))
}

func TestAdminGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)

	require.Equal(t, core.ErrOperationForbidden, env.svc.SetPaused(ctx, "mallory", true))
	require.Equal(t, core.ErrOperationForbidden, env.svc.SetFees(ctx, "mallory", 10, 10))
	require.Equal(t, core.ErrOperationForbidden, env.svc.SetReserveActive(ctx, "mallory", "usdc", false))
	require.Equal(t, core.ErrOperationForbidden, env.svc.SetReserveStrategy(ctx, "mallory", "usdc", "strategy-v2"))

	require.Equal(t, core.ErrInvalidAmount, env.svc.SetFees(ctx, adminUser, 10001, 10))

	require.NoError(t, env.svc.SetFees(ctx, adminUser, 50, 10))
	cfg, err := env.configs.Get(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(50), cfg.BorrowFeeBps)
	require.Equal(t, uint64(10), cfg.WithdrawFeeBps)
}

func TestSetReserveStrategyAccruesBeforeSwitch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.listReserve(t, "usdc", 1)

	require.NoError(t, env.svc.Deposit(ctx, "usdc", "alice", big.NewInt(1_000_000)))
	require.NoError(t, env.svc.Borrow(ctx, "usdc", "alice", "alice", big.NewInt(400_000)))

	env.clk.Add(30 * 24 * time.Hour)

	require.Equal(t, core.ErrReserveNotFound, env.svc.SetReserveStrategy(ctx, adminUser, "ghost", "strategy-v2"))
	require.NoError(t, env.svc.SetReserveStrategy(ctx, adminUser, "usdc", "strategy-v2"))

	reserve, err := env.reserves.Find(ctx, nil, "usdc")
	require.NoError(t, err)
	require.Equal(t, "strategy-v2", reserve.RateStrategyAddress)
	// the month of open debt settled into the index at the old rates
	require.True(t, reserve.VariableBorrowIndex.Big().Cmp(ray.Unit) > 0)
	require.Equal(t, env.clk.Now().Unix(), reserve.LastUpdateTimestamp)
}
