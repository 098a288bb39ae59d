package mocks

import (
	"context"
	"math/big"
	"sync"

	"reservoir/core"
	"reservoir/pkg/ray"
)

// PriceOracle quotes fixed prices, 1e18 scaled.
type PriceOracle struct {
	mux    sync.RWMutex
	prices map[string]*big.Int
}

// NewPriceOracle new price oracle fake
func NewPriceOracle() *PriceOracle {
	return &PriceOracle{prices: make(map[string]*big.Int)}
}

// Set fixes the price for an asset.
func (o *PriceOracle) Set(asset string, price *big.Int) {
	o.mux.Lock()
	defer o.mux.Unlock()
	o.prices[asset] = new(big.Int).Set(price)
}

func (o *PriceOracle) Price(ctx context.Context, asset string) (*big.Int, error) {
	o.mux.RLock()
	defer o.mux.RUnlock()

	price, ok := o.prices[asset]
	if !ok {
		return nil, core.ErrReserveNotFound
	}
	return new(big.Int).Set(price), nil
}

// SwapCall records one SwapExactIn invocation.
type SwapCall struct {
	AmountIn  *big.Int
	MinOut    *big.Int
	Path      []string
	Recipient string
	Deadline  int64
}

// SwapVenue converts the input at a fixed output ratio in basis points.
// A ratio below the caller's floor makes the swap fail the way a venue
// reverting on minOut would.
type SwapVenue struct {
	mux sync.Mutex

	// OutBps of the input amount comes back out; 10000 is a perfect swap.
	OutBps uint64
	Calls  []SwapCall
}

// NewSwapVenue new swap venue fake
func NewSwapVenue(outBps uint64) *SwapVenue {
	return &SwapVenue{OutBps: outBps}
}

func (v *SwapVenue) SwapExactIn(ctx context.Context, amountIn, minOut *big.Int, path []string, recipient string, deadline int64) ([]*big.Int, error) {
	v.mux.Lock()
	defer v.mux.Unlock()

	v.Calls = append(v.Calls, SwapCall{
		AmountIn:  new(big.Int).Set(amountIn),
		MinOut:    new(big.Int).Set(minOut),
		Path:      append([]string(nil), path...),
		Recipient: recipient,
		Deadline:  deadline,
	})

	out := ray.PercentMul(amountIn, v.OutBps)
	if out.Cmp(minOut) < 0 {
		return nil, core.ErrSwapFailure
	}

	amounts := make([]*big.Int, len(path))
	for i := range amounts {
		amounts[i] = new(big.Int).Set(amountIn)
	}
	amounts[len(amounts)-1] = out
	return amounts, nil
}

// Validator approves everything unless told otherwise.
type Validator struct {
	mux sync.RWMutex

	healthFactors map[string]*big.Int

	BorrowErr           error
	WithdrawErr         error
	RepayErr            error
	TransferErr         error
	CollateralToggleErr error
}

// NewValidator new validator fake
func NewValidator() *Validator {
	return &Validator{healthFactors: make(map[string]*big.Int)}
}

// SetHealthFactor fixes a user's health factor, ray scaled.
func (v *Validator) SetHealthFactor(user string, hf *big.Int) {
	v.mux.Lock()
	defer v.mux.Unlock()
	v.healthFactors[user] = new(big.Int).Set(hf)
}

func (v *Validator) HealthFactor(ctx context.Context, user string) (*big.Int, error) {
	v.mux.RLock()
	defer v.mux.RUnlock()

	if hf, ok := v.healthFactors[user]; ok {
		return new(big.Int).Set(hf), nil
	}
	// no debt anywhere: effectively infinite
	return new(big.Int).Set(ray.MaxUint128), nil
}

func (v *Validator) ValidateBorrow(ctx context.Context, asset, user string, amount, amountValue *big.Int) error {
	return v.BorrowErr
}

func (v *Validator) ValidateWithdraw(ctx context.Context, asset, user string, amount, balance *big.Int) error {
	return v.WithdrawErr
}

func (v *Validator) ValidateRepay(ctx context.Context, asset, caller, onBehalfOf string, amount, debt *big.Int) error {
	return v.RepayErr
}

func (v *Validator) ValidateTransfer(ctx context.Context, asset, from string) error {
	return v.TransferErr
}

func (v *Validator) ValidateCollateralToggle(ctx context.Context, asset, user string, useAsCollateral bool) error {
	return v.CollateralToggleErr
}
