package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"reservoir/core"
	"reservoir/internal/interest"
	"reservoir/internal/mocks"
	"reservoir/pkg/ray"
	"reservoir/service/pool"
	"reservoir/service/ratestrategy"
	poolconfigstore "reservoir/store/poolconfig"
	reservestore "reservoir/store/reserve"
	userstore "reservoir/store/user"

	"github.com/asaskevich/EventBus"
	"github.com/facebookgo/clock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newHandler(t *testing.T) (http.Handler, core.IReserveStore) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, reservestore.Migrate(db))
	require.NoError(t, userstore.Migrate(db))
	require.NoError(t, poolconfigstore.Migrate(db))

	reserves := reservestore.New(db)
	registry := core.NewTokenRegistry()
	registry.Add("usdc", mocks.NewReceiptToken("r-usdc"), mocks.NewDebtToken("d-usdc"))

	clk := clock.NewMock()
	poolSvc := pool.New(db, clk, &core.Config{},
		reserves, userstore.New(db), poolconfigstore.New(db),
		interest.New(ratestrategy.New(), EventBus.New()),
		mocks.NewPriceOracle(), mocks.NewValidator(), registry, EventBus.New())

	require.NoError(t, reserves.Register(context.Background(), nil, &core.Reserve{
		Asset:               "usdc",
		Symbol:              "USDC",
		LiquidityIndex:      core.NewBigInt(ray.Unit),
		VariableBorrowIndex: core.NewBigInt(ray.Unit),
		AvailableLiquidity:  core.NewBigIntFromInt64(0),
		LastUpdateTimestamp: clk.Now().Unix(),
		Decimals:            6,
		Active:              true,
	}))

	return Handle(poolSvc, reserves), reserves
}

func TestListReserves(t *testing.T) {
	handler, _ := newHandler(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/reserves", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Reserves []struct {
			Asset  string `json:"asset"`
			Symbol string `json:"symbol"`
		} `json:"reserves"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Reserves, 1)
	require.Equal(t, "usdc", body.Reserves[0].Asset)
}

func TestGetReserve(t *testing.T) {
	handler, _ := newHandler(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/reserves/usdc", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Asset            string `json:"asset"`
		NormalizedIncome string `json:"normalized_income"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "usdc", body.Asset)
	require.Equal(t, "1", body.NormalizedIncome)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/reserves/ghost", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUser(t *testing.T) {
	handler, _ := newHandler(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/users/alice", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Address   string        `json:"address"`
		Positions []interface{} `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "alice", body.Address)
	require.Empty(t, body.Positions)
}
