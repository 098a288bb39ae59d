package core

import (
	"github.com/shopspring/decimal"
)

// Config reservoir config
type Config struct {
	DB       DB            `json:"db"`
	API      API           `json:"api"`
	Pool     PoolSettings  `json:"pool"`
	Oracle   OracleConfig  `json:"oracle"`
	Reserves []ReserveSeed `json:"reserves"`
	Admins   []string      `json:"admins"`
}

// IsAdmin check if the identity is admin
func (c *Config) IsAdmin(id string) bool {
	if len(c.Admins) <= 0 {
		return false
	}

	for _, a := range c.Admins {
		if a == id {
			return true
		}
	}

	return false
}

// DB database config
type DB struct {
	Path string `json:"path"`
}

// API read api config
type API struct {
	Addr string `json:"addr"`
}

// PoolSettings global pool settings applied at migrate time
type PoolSettings struct {
	BorrowFeeBps      uint64 `json:"borrow_fee_bps"`
	WithdrawFeeBps    uint64 `json:"withdraw_fee_bps"`
	Treasury          string `json:"treasury"`
	LiquidationModule string `json:"liquidation_module"`
	// IntermediaryAsset routes liquidation swaps for pairs with no direct
	// market; empty means all pairs trade directly.
	IntermediaryAsset string `json:"intermediary_asset"`
}

// OracleConfig price oracle endpoint config
type OracleConfig struct {
	EndPoint     string `json:"end_point"`
	CacheSeconds int64  `json:"cache_seconds"`
}

// ReserveSeed reserve listed at migrate time
type ReserveSeed struct {
	Asset                   string         `json:"asset"`
	Symbol                  string         `json:"symbol"`
	Decimals                uint           `json:"decimals"`
	LoanToValueBps          uint64         `json:"loan_to_value_bps"`
	LiquidationThresholdBps uint64         `json:"liquidation_threshold_bps"`
	LiquidationBonusBps     uint64         `json:"liquidation_bonus_bps"`
	ReserveFactorBps        uint64         `json:"reserve_factor_bps"`
	ReceiptTokenAddress     string         `json:"receipt_token_address"`
	DebtTokenAddress        string         `json:"debt_token_address"`
	RateStrategyAddress     string         `json:"rate_strategy_address"`
	Strategy                StrategyParams `json:"strategy"`
}

// StrategyParams kinked utilization rate model parameters, plain decimals
// (0.02 is 2% APR) converted to rays at wiring time
type StrategyParams struct {
	OptimalUtilization decimal.Decimal `json:"optimal_utilization"`
	BaseRate           decimal.Decimal `json:"base_rate"`
	Slope1             decimal.Decimal `json:"slope1"`
	Slope2             decimal.Decimal `json:"slope2"`
}
