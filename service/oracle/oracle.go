// Package oracle is the HTTP price feed client. Quotes are cached with a
// short TTL and concurrent fetches for the same asset collapse into one
// request.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"reservoir/core"
	"reservoir/pkg/resthttp"

	"github.com/bluele/gcache"
	"github.com/fox-one/pkg/logger"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const cacheCapacity = 256

type priceOracle struct {
	endpoint string
	ttl      time.Duration
	cache    gcache.Cache
	sf       singleflight.Group
}

// New new price oracle client
func New(endpoint string, ttl time.Duration) core.IPriceOracle {
	return &priceOracle{
		endpoint: endpoint,
		ttl:      ttl,
		cache:    gcache.New(cacheCapacity).LRU().Build(),
	}
}

// priceTicker is the feed's wire format; the price is a plain decimal.
type priceTicker struct {
	Asset string          `json:"asset"`
	Price decimal.Decimal `json:"price"`
}

func (o *priceOracle) Price(ctx context.Context, asset string) (*big.Int, error) {
	if cached, err := o.cache.Get(asset); err == nil {
		return new(big.Int).Set(cached.(*big.Int)), nil
	}

	price, err, _ := o.sf.Do(asset, func() (interface{}, error) {
		return o.pull(ctx, asset)
	})
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(price.(*big.Int)), nil
}

func (o *priceOracle) pull(ctx context.Context, asset string) (*big.Int, error) {
	url := fmt.Sprintf("%s/api/prices/%s", o.endpoint, asset)
	logger.FromContext(ctx).Debugln("pull price:", url)

	resp, err := resthttp.Request(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	var ticker priceTicker
	if err := resthttp.ParseResponse(resp, &ticker); err != nil {
		return nil, err
	}
	if ticker.Price.Sign() <= 0 {
		return nil, core.ErrInvalidAmount
	}

	price := ticker.Price.Shift(18).Truncate(0).BigInt()
	if o.ttl > 0 {
		_ = o.cache.SetWithExpire(asset, price, o.ttl)
	}
	return price, nil
}
