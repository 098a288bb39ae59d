package core

import (
	"context"
	"math/big"
)

// IReceiptToken is the interest bearing claim on deposited liquidity. The
// token keeps scaled balances; callers pass the current liquidity index so
// mint and burn land on the right scale.
type IReceiptToken interface {
	Address() string
	// Mint reports whether this was the holder's first balance.
	Mint(ctx context.Context, user string, amount, index *big.Int) (bool, error)
	// Burn destroys receipt tokens from `from` and sends the underlying to
	// `to`. Burning to the reserve itself keeps the underlying pooled.
	Burn(ctx context.Context, from, to string, amount, index *big.Int) error
	TransferUnderlyingTo(ctx context.Context, to string, amount *big.Int) error
	TransferOnLiquidation(ctx context.Context, from, to string, amount *big.Int) error
	BalanceOf(ctx context.Context, user string) (*big.Int, error)
	ScaledBalanceOf(ctx context.Context, user string) (*big.Int, error)
	ScaledTotalSupply(ctx context.Context) (*big.Int, error)
}

// IDebtToken tracks owed principal plus interest, scaled by the variable
// borrow index.
type IDebtToken interface {
	Address() string
	// Mint reports whether this is the user's first debt in the asset.
	Mint(ctx context.Context, caller, onBehalfOf string, amount, index *big.Int) (bool, error)
	Burn(ctx context.Context, user string, amount, index *big.Int) error
	BalanceOf(ctx context.Context, user string) (*big.Int, error)
	ScaledBalanceOf(ctx context.Context, user string) (*big.Int, error)
	ScaledTotalSupply(ctx context.Context) (*big.Int, error)
}

// ITokenRegistry resolves the token pair backing a reserve.
type ITokenRegistry interface {
	Receipt(asset string) (IReceiptToken, error)
	Debt(asset string) (IDebtToken, error)
}

// TokenRegistry is a static ITokenRegistry fed at wiring time.
type TokenRegistry struct {
	receipts map[string]IReceiptToken
	debts    map[string]IDebtToken
}

// NewTokenRegistry new token registry
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		receipts: make(map[string]IReceiptToken),
		debts:    make(map[string]IDebtToken),
	}
}

// Add registers the token pair for an asset.
func (r *TokenRegistry) Add(asset string, receipt IReceiptToken, debt IDebtToken) {
	r.receipts[asset] = receipt
	r.debts[asset] = debt
}

func (r *TokenRegistry) Receipt(asset string) (IReceiptToken, error) {
	t, ok := r.receipts[asset]
	if !ok {
		return nil, ErrReserveNotFound
	}
	return t, nil
}

func (r *TokenRegistry) Debt(asset string) (IDebtToken, error) {
	t, ok := r.debts[asset]
	if !ok {
		return nil, ErrReserveNotFound
	}
	return t, nil
}
