package core

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// MaxReserves caps the registry; reserve ids are dense slot indices below it.
const MaxReserves = 128

// Reserve is the per asset liquidity pool state.
type Reserve struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ReserveID uint   `gorm:"column:reserve_id" json:"reserve_id"`
	Asset     string `gorm:"size:66;uniqueIndex:reserve_asset_idx" json:"asset"`
	Symbol    string `gorm:"size:20" json:"symbol"`

	// indices are ray scaled and only ever grow
	LiquidityIndex      BigInt `json:"liquidity_index"`
	VariableBorrowIndex BigInt `json:"variable_borrow_index"`
	// annualized rates, ray scaled
	CurrentLiquidityRate      BigInt `json:"current_liquidity_rate"`
	CurrentVariableBorrowRate BigInt `json:"current_variable_borrow_rate"`
	// underlying units held by the reserve and not lent out
	AvailableLiquidity  BigInt `json:"available_liquidity"`
	LastUpdateTimestamp int64  `json:"last_update_timestamp"`

	ReceiptTokenAddress string `gorm:"size:66" json:"receipt_token_address"`
	DebtTokenAddress    string `gorm:"size:66" json:"debt_token_address"`
	RateStrategyAddress string `gorm:"size:66" json:"rate_strategy_address"`

	Decimals                uint   `json:"decimals"`
	LoanToValueBps          uint64 `json:"loan_to_value_bps"`
	LiquidationThresholdBps uint64 `json:"liquidation_threshold_bps"`
	// 10500 means the liquidator takes 105% of the covered value in collateral
	LiquidationBonusBps uint64 `json:"liquidation_bonus_bps"`
	ReserveFactorBps    uint64 `json:"reserve_factor_bps"`
	Active              bool   `json:"active"`

	Version   int64     `gorm:"default:0" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IReserveStore reserve registry and persistence
type IReserveStore interface {
	// Register assigns the next dense id and appends the reserve to the
	// ordered list. Registering an already listed asset is a no-op.
	Register(ctx context.Context, tx *gorm.DB, reserve *Reserve) error
	Find(ctx context.Context, tx *gorm.DB, asset string) (*Reserve, error)
	FindByReserveID(ctx context.Context, tx *gorm.DB, reserveID uint) (*Reserve, error)
	// All returns reserves ordered by reserve id.
	All(ctx context.Context, tx *gorm.DB) ([]*Reserve, error)
	// AddressList returns the asset addresses ordered by reserve id.
	AddressList(ctx context.Context, tx *gorm.DB) ([]string, error)
	Count(ctx context.Context, tx *gorm.DB) (int, error)
	Update(ctx context.Context, tx *gorm.DB, reserve *Reserve) error
}
