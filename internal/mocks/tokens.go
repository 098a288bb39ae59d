// Package mocks holds hand written fakes for the pool's external
// collaborators: token contracts, oracle, swap venue and validator. Token
// fakes keep scaled balances the way the real contracts do, so index math in
// the handlers is exercised for real.
package mocks

import (
	"context"
	"math/big"
	"sync"

	"reservoir/pkg/ray"
)

// UnderlyingTransfer records an underlying token movement out of a reserve.
type UnderlyingTransfer struct {
	To     string
	Amount *big.Int
}

// ReceiptToken is an in memory receipt token with scaled balances.
type ReceiptToken struct {
	mux sync.Mutex

	address string
	// Index is the liquidity index BalanceOf scales by; tests advance it
	// to simulate accrued income.
	Index *big.Int

	scaled    map[string]*big.Int
	Transfers []UnderlyingTransfer
}

// NewReceiptToken new receipt token fake
func NewReceiptToken(address string) *ReceiptToken {
	return &ReceiptToken{
		address: address,
		Index:   new(big.Int).Set(ray.Unit),
		scaled:  make(map[string]*big.Int),
	}
}

func (t *ReceiptToken) Address() string {
	return t.address
}

func (t *ReceiptToken) Mint(ctx context.Context, user string, amount, index *big.Int) (bool, error) {
	t.mux.Lock()
	defer t.mux.Unlock()

	bal, ok := t.scaled[user]
	if !ok {
		bal = big.NewInt(0)
		t.scaled[user] = bal
	}
	first := bal.Sign() == 0
	bal.Add(bal, ray.Div(amount, index))
	return first, nil
}

func (t *ReceiptToken) Burn(ctx context.Context, from, to string, amount, index *big.Int) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	bal := t.scaled[from]
	if bal == nil {
		bal = big.NewInt(0)
		t.scaled[from] = bal
	}
	bal.Sub(bal, ray.Div(amount, index))
	if bal.Sign() < 0 {
		bal.SetInt64(0)
	}
	t.Transfers = append(t.Transfers, UnderlyingTransfer{To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func (t *ReceiptToken) TransferUnderlyingTo(ctx context.Context, to string, amount *big.Int) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	t.Transfers = append(t.Transfers, UnderlyingTransfer{To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func (t *ReceiptToken) TransferOnLiquidation(ctx context.Context, from, to string, amount *big.Int) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	delta := ray.Div(amount, t.Index)

	fromBal := t.scaled[from]
	if fromBal == nil {
		fromBal = big.NewInt(0)
		t.scaled[from] = fromBal
	}
	fromBal.Sub(fromBal, delta)
	if fromBal.Sign() < 0 {
		fromBal.SetInt64(0)
	}

	toBal, ok := t.scaled[to]
	if !ok {
		toBal = big.NewInt(0)
		t.scaled[to] = toBal
	}
	toBal.Add(toBal, delta)
	return nil
}

func (t *ReceiptToken) BalanceOf(ctx context.Context, user string) (*big.Int, error) {
	t.mux.Lock()
	defer t.mux.Unlock()

	bal := t.scaled[user]
	if bal == nil {
		return big.NewInt(0), nil
	}
	return ray.Mul(bal, t.Index), nil
}

func (t *ReceiptToken) ScaledBalanceOf(ctx context.Context, user string) (*big.Int, error) {
	t.mux.Lock()
	defer t.mux.Unlock()

	bal := t.scaled[user]
	if bal == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

func (t *ReceiptToken) ScaledTotalSupply(ctx context.Context) (*big.Int, error) {
	t.mux.Lock()
	defer t.mux.Unlock()

	total := big.NewInt(0)
	for _, bal := range t.scaled {
		total.Add(total, bal)
	}
	return total, nil
}

// DebtToken is an in memory variable debt token with scaled balances.
type DebtToken struct {
	mux sync.Mutex

	address string
	// Index is the variable borrow index BalanceOf scales by.
	Index *big.Int

	scaled map[string]*big.Int
}

// NewDebtToken new debt token fake
func NewDebtToken(address string) *DebtToken {
	return &DebtToken{
		address: address,
		Index:   new(big.Int).Set(ray.Unit),
		scaled:  make(map[string]*big.Int),
	}
}

func (t *DebtToken) Address() string {
	return t.address
}

func (t *DebtToken) Mint(ctx context.Context, caller, onBehalfOf string, amount, index *big.Int) (bool, error) {
	t.mux.Lock()
	defer t.mux.Unlock()

	bal, ok := t.scaled[onBehalfOf]
	if !ok {
		bal = big.NewInt(0)
		t.scaled[onBehalfOf] = bal
	}
	first := bal.Sign() == 0
	bal.Add(bal, ray.Div(amount, index))
	return first, nil
}

func (t *DebtToken) Burn(ctx context.Context, user string, amount, index *big.Int) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	bal := t.scaled[user]
	if bal == nil {
		return nil
	}
	bal.Sub(bal, ray.Div(amount, index))
	if bal.Sign() < 0 {
		bal.SetInt64(0)
	}
	return nil
}

func (t *DebtToken) BalanceOf(ctx context.Context, user string) (*big.Int, error) {
	t.mux.Lock()
	defer t.mux.Unlock()

	bal := t.scaled[user]
	if bal == nil {
		return big.NewInt(0), nil
	}
	return ray.Mul(bal, t.Index), nil
}

func (t *DebtToken) ScaledBalanceOf(ctx context.Context, user string) (*big.Int, error) {
	t.mux.Lock()
	defer t.mux.Unlock()

	bal := t.scaled[user]
	if bal == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

func (t *DebtToken) ScaledTotalSupply(ctx context.Context) (*big.Int, error) {
	t.mux.Lock()
	defer t.mux.Unlock()

	total := big.NewInt(0)
	for _, bal := range t.scaled {
		total.Add(total, bal)
	}
	return total, nil
}
