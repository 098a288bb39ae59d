package core

import (
	"context"
	"math/big"
)

// ISwapVenue is the external exchange liquidations settle through.
// SwapExactIn returns the amounts along the path; the last entry is the
// output actually received. A venue must fail, not under deliver, when the
// output would land below minOut.
type ISwapVenue interface {
	SwapExactIn(ctx context.Context, amountIn, minOut *big.Int, path []string, recipient string, deadline int64) ([]*big.Int, error)
}
