package views

import (
	"math/big"

	"reservoir/core"
	"reservoir/pkg/ray"

	"github.com/shopspring/decimal"
)

// Reserve reserve view, ray quantities rendered as plain decimals
type Reserve struct {
	Asset                   string          `json:"asset"`
	Symbol                  string          `json:"symbol"`
	ReserveID               uint            `json:"reserve_id"`
	Decimals                uint            `json:"decimals"`
	Active                  bool            `json:"active"`
	AvailableLiquidity      core.BigInt     `json:"available_liquidity"`
	LiquidityIndex          decimal.Decimal `json:"liquidity_index"`
	VariableBorrowIndex     decimal.Decimal `json:"variable_borrow_index"`
	LiquidityRate           decimal.Decimal `json:"liquidity_rate"`
	VariableBorrowRate      decimal.Decimal `json:"variable_borrow_rate"`
	LoanToValueBps          uint64          `json:"loan_to_value_bps"`
	LiquidationThresholdBps uint64          `json:"liquidation_threshold_bps"`
	LiquidationBonusBps     uint64          `json:"liquidation_bonus_bps"`
	ReserveFactorBps        uint64          `json:"reserve_factor_bps"`

	NormalizedIncome decimal.Decimal `json:"normalized_income,omitempty"`
	NormalizedDebt   decimal.Decimal `json:"normalized_debt,omitempty"`
}

// NewReserve new reserve view
func NewReserve(reserve *core.Reserve) Reserve {
	return Reserve{
		Asset:                   reserve.Asset,
		Symbol:                  reserve.Symbol,
		ReserveID:               reserve.ReserveID,
		Decimals:                reserve.Decimals,
		Active:                  reserve.Active,
		AvailableLiquidity:      reserve.AvailableLiquidity,
		LiquidityIndex:          ray.ToDecimal(reserve.LiquidityIndex.Big()),
		VariableBorrowIndex:     ray.ToDecimal(reserve.VariableBorrowIndex.Big()),
		LiquidityRate:           ray.ToDecimal(reserve.CurrentLiquidityRate.Big()),
		VariableBorrowRate:      ray.ToDecimal(reserve.CurrentVariableBorrowRate.Big()),
		LoanToValueBps:          reserve.LoanToValueBps,
		LiquidationThresholdBps: reserve.LiquidationThresholdBps,
		LiquidationBonusBps:     reserve.LiquidationBonusBps,
		ReserveFactorBps:        reserve.ReserveFactorBps,
	}
}

// WithNormalized attaches the time adjusted indices.
func (v Reserve) WithNormalized(income, debt *big.Int) Reserve {
	v.NormalizedIncome = ray.ToDecimal(income)
	v.NormalizedDebt = ray.ToDecimal(debt)
	return v
}

// UserPosition one reserve's flags for a user
type UserPosition struct {
	Asset        string `json:"asset"`
	AsCollateral bool   `json:"as_collateral"`
	Borrowing    bool   `json:"borrowing"`
}

// User user ledger view
type User struct {
	Address   string         `json:"address"`
	Positions []UserPosition `json:"positions"`
}

// NewUser renders the user's bitmap against the ordered reserve list.
func NewUser(address string, userConfig *core.UserConfiguration, reserves []*core.Reserve) User {
	view := User{Address: address, Positions: []UserPosition{}}
	for _, reserve := range reserves {
		asCollateral := userConfig.UsingAsCollateral(reserve.ReserveID)
		borrowing := userConfig.IsBorrowing(reserve.ReserveID)
		if !asCollateral && !borrowing {
			continue
		}
		view.Positions = append(view.Positions, UserPosition{
			Asset:        reserve.Asset,
			AsCollateral: asCollateral,
			Borrowing:    borrowing,
		})
	}
	return view
}
