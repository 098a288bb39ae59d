package core

import "strconv"

// ErrorCode int
type ErrorCode int

const (
	// ErrUnknown unknown
	ErrUnknown ErrorCode = 100000
	// ErrOperationForbidden privileged call from a non privileged caller
	ErrOperationForbidden ErrorCode = 100001
	// ErrPoolPaused action attempted while the pool is paused
	ErrPoolPaused ErrorCode = 100002

	// ErrReserveNotFound no reserve registered for the asset
	ErrReserveNotFound ErrorCode = 100100
	// ErrReserveInactive reserve exists but is not active
	ErrReserveInactive ErrorCode = 100101
	// ErrReserveListFull registry is at capacity
	ErrReserveListFull ErrorCode = 100102
	// ErrInvalidAmount zero or negative amount
	ErrInvalidAmount ErrorCode = 100103
	// ErrIndexOverflow an accrued index or rate exceeds its storage bound
	ErrIndexOverflow ErrorCode = 100104

	// ErrInsufficientCollateral collateral cannot cover the resulting debt
	ErrInsufficientCollateral ErrorCode = 100200
	// ErrCollateralNotEnabled asset not flagged as collateral
	ErrCollateralNotEnabled ErrorCode = 100201
	// ErrInsufficientLiquidity reserve cash cannot cover the transfer out
	ErrInsufficientLiquidity ErrorCode = 100202
	// ErrNoDebt nothing to repay
	ErrNoDebt ErrorCode = 100203
	// ErrInsufficientBalance receipt balance cannot cover the action
	ErrInsufficientBalance ErrorCode = 100204

	// ErrHealthFactorNotBelowThreshold position is still safe
	ErrHealthFactorNotBelowThreshold ErrorCode = 100300
	// ErrCollateralCannotBeLiquidated collateral not usable for liquidation
	ErrCollateralCannotBeLiquidated ErrorCode = 100301
	// ErrNoDebtToLiquidate target owes nothing in the requested asset
	ErrNoDebtToLiquidate ErrorCode = 100302
	// ErrSwapFailure swap venue returned below the minimum output floor
	ErrSwapFailure ErrorCode = 100303
)

func (e ErrorCode) String() string {
	return strconv.Itoa(int(e))
}

func (e ErrorCode) Error() string {
	return e.String()
}
