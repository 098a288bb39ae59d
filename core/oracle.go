package core

import (
	"context"
	"math/big"
)

// IPriceOracle quotes assets in the common value unit. Prices are integers
// scaled by 1e18, the convention every consumer here relies on.
type IPriceOracle interface {
	Price(ctx context.Context, asset string) (*big.Int, error)
}
