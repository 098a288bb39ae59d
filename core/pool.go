package core

import (
	"context"
	"math/big"
	"time"

	"gorm.io/gorm"
)

// AmountAll is the sentinel callers pass to withdraw or repay everything.
var AmountAll = big.NewInt(-1)

// PoolConfig is the single row of global pool state: pause flag, protocol
// fees in basis points and the identities fees are routed to. It mutates
// only through the privileged setters on the pool service.
type PoolConfig struct {
	ID                uint64    `gorm:"primaryKey" json:"id"`
	Paused            bool      `json:"paused"`
	BorrowFeeBps      uint64    `json:"borrow_fee_bps"`
	WithdrawFeeBps    uint64    `json:"withdraw_fee_bps"`
	Treasury          string    `gorm:"size:66" json:"treasury"`
	LiquidationModule string    `gorm:"size:66" json:"liquidation_module"`
	Version           int64     `gorm:"default:0" json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IPoolConfigStore pool configuration persistence
type IPoolConfigStore interface {
	Get(ctx context.Context, tx *gorm.DB) (*PoolConfig, error)
	Save(ctx context.Context, tx *gorm.DB, cfg *PoolConfig) error
}

// IPool is the action surface exposed to external actors. Every mutating
// call is one atomic transition: it fully applies or leaves no trace.
type IPool interface {
	Deposit(ctx context.Context, asset, beneficiary string, amount *big.Int) error
	// Withdraw returns the net amount sent to the recipient.
	Withdraw(ctx context.Context, asset, caller, recipient string, amount *big.Int) (*big.Int, error)
	Borrow(ctx context.Context, asset, caller, onBehalfOf string, amount *big.Int) error
	// Repay returns the payback amount actually settled.
	Repay(ctx context.Context, asset, caller, onBehalfOf string, amount *big.Int) (*big.Int, error)
	SetUseAsCollateral(ctx context.Context, asset, caller string, useAsCollateral bool) error
	// FinalizeTransfer is callable only by the asset's receipt token.
	FinalizeTransfer(ctx context.Context, asset, caller, from, to string, amount, fromBalanceBefore, toBalanceBefore *big.Int) error

	Reserve(ctx context.Context, asset string) (*Reserve, error)
	ReserveList(ctx context.Context) ([]string, error)
	NormalizedIncome(ctx context.Context, asset string) (*big.Int, error)
	NormalizedDebt(ctx context.Context, asset string) (*big.Int, error)
	UserConfiguration(ctx context.Context, address string) (*UserConfiguration, error)
}

// IPoolAdmin is the privileged configuration surface. Callers are gated
// against the admin list in the node config.
type IPoolAdmin interface {
	SetPaused(ctx context.Context, caller string, paused bool) error
	SetFees(ctx context.Context, caller string, borrowFeeBps, withdrawFeeBps uint64) error
	RegisterReserve(ctx context.Context, caller string, reserve *Reserve) error
	SetReserveActive(ctx context.Context, caller, asset string, active bool) error
	SetReserveStrategy(ctx context.Context, caller, asset, strategyAddress string) error
}

// ILiquidator is the privileged liquidation entry path. It mutates the same
// reserve and ledger state as IPool, through the same stores.
type ILiquidator interface {
	LiquidationCall(ctx context.Context, collateralAsset, debtAsset, user, liquidator string, debtToCover *big.Int) error
}
