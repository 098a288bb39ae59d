package core

import (
	"github.com/gofrs/uuid"
)

// Event topics published on the pool bus.
const (
	TopicDeposit            = "reservoir:deposit"
	TopicWithdraw           = "reservoir:withdraw"
	TopicBorrow             = "reservoir:borrow"
	TopicRepay              = "reservoir:repay"
	TopicCollateralEnabled  = "reservoir:collateral-enabled"
	TopicCollateralDisabled = "reservoir:collateral-disabled"
	TopicReserveDataUpdated = "reservoir:reserve-data-updated"
	TopicLiquidation        = "reservoir:liquidation"
)

// NewEventID new event id
func NewEventID() string {
	return uuid.Must(uuid.NewV4()).String()
}

// DepositEvent deposit completed
type DepositEvent struct {
	ID          string `json:"id"`
	Asset       string `json:"asset"`
	Caller      string `json:"caller"`
	Beneficiary string `json:"beneficiary"`
	Amount      BigInt `json:"amount"`
	Timestamp   int64  `json:"timestamp"`
}

// WithdrawEvent withdraw completed
type WithdrawEvent struct {
	ID        string `json:"id"`
	Asset     string `json:"asset"`
	User      string `json:"user"`
	Recipient string `json:"recipient"`
	Amount    BigInt `json:"amount"`
	Fee       BigInt `json:"fee"`
	Timestamp int64  `json:"timestamp"`
}

// BorrowEvent borrow completed, carries the rate the debt was opened at
type BorrowEvent struct {
	ID         string `json:"id"`
	Asset      string `json:"asset"`
	User       string `json:"user"`
	OnBehalfOf string `json:"on_behalf_of"`
	Amount     BigInt `json:"amount"`
	Fee        BigInt `json:"fee"`
	BorrowRate BigInt `json:"borrow_rate"`
	Timestamp  int64  `json:"timestamp"`
}

// RepayEvent repay completed
type RepayEvent struct {
	ID         string `json:"id"`
	Asset      string `json:"asset"`
	Repayer    string `json:"repayer"`
	OnBehalfOf string `json:"on_behalf_of"`
	Amount     BigInt `json:"amount"`
	Timestamp  int64  `json:"timestamp"`
}

// CollateralEvent collateral flag flipped
type CollateralEvent struct {
	ID        string `json:"id"`
	Asset     string `json:"asset"`
	User      string `json:"user"`
	Enabled   bool   `json:"enabled"`
	Timestamp int64  `json:"timestamp"`
}

// ReserveDataUpdatedEvent rates and indices after an interest rate update
type ReserveDataUpdatedEvent struct {
	ID                  string `json:"id"`
	Asset               string `json:"asset"`
	LiquidityRate       BigInt `json:"liquidity_rate"`
	VariableBorrowRate  BigInt `json:"variable_borrow_rate"`
	LiquidityIndex      BigInt `json:"liquidity_index"`
	VariableBorrowIndex BigInt `json:"variable_borrow_index"`
	Timestamp           int64  `json:"timestamp"`
}

// LiquidationEvent liquidation completed
type LiquidationEvent struct {
	ID               string `json:"id"`
	CollateralAsset  string `json:"collateral_asset"`
	DebtAsset        string `json:"debt_asset"`
	User             string `json:"user"`
	DebtCovered      BigInt `json:"debt_covered"`
	CollateralSeized BigInt `json:"collateral_seized"`
	Liquidator       string `json:"liquidator"`
	Timestamp        int64  `json:"timestamp"`
}
