package usecase

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-umemoto/meme-market/internal/domain/market"
	"github.com/r-umemoto/meme-market/internal/exception"
)

func newTestTrade(t *testing.T) (*TradeUseCase, *market.Registry) {
	t.Helper()
	reg, err := market.NewRegistry(market.DefaultAssets(time.Now()))
	require.NoError(t, err)
	return NewTradeUseCase(reg), reg
}

func TestExecuteBuyScenario(t *testing.T) {
	uc, reg := newTestTrade(t)
	before, _ := reg.Get("DOGE")

	tx, err := uc.Execute("DOGE", market.Buy, 1.5e9)
	require.NoError(t, err)

	// 時価総額 0.12 * 1.5e11 = 1.8e10 に対して 1.5e9 の買い
	wantPrice := 0.12 * (1 + 1.5e9/1.8e10)
	after, _ := reg.Get("DOGE")
	assert.InDelta(t, wantPrice, after.Price, 1e-12)
	assert.InDelta(t, after.Price*after.Supply, after.MarketCap, 1e-3)
	assert.Len(t, after.History, len(before.History)+1)
	assert.InDelta(t, before.Volume+1.8e8, after.Volume, 1e-3)

	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, "DOGE", tx.AssetID)
	assert.Equal(t, market.Buy, tx.Side)
	assert.Equal(t, 0.12, tx.Price)
	assert.InDelta(t, 1.8e8, tx.Total, 1e-3)
}

func TestExecuteDirection(t *testing.T) {
	uc, reg := newTestTrade(t)

	for _, amount := range []float64{1, 1e6, 1e9, 1e10} {
		before, _ := reg.Get("DOGE")
		_, err := uc.Execute("DOGE", market.Buy, amount)
		require.NoError(t, err)
		after, _ := reg.Get("DOGE")
		assert.Greater(t, after.Price, before.Price, "buy %v", amount)

		before = after
		_, err = uc.Execute("DOGE", market.Sell, amount)
		require.NoError(t, err)
		after, _ = reg.Get("DOGE")
		assert.Less(t, after.Price, before.Price, "sell %v", amount)
	}
}

func TestExecuteSellIncreasesVolumeAtPreTradePrice(t *testing.T) {
	uc, reg := newTestTrade(t)
	before, _ := reg.Get("AAPL")

	tx, err := uc.Execute("AAPL", market.Sell, 1000)
	require.NoError(t, err)

	after, _ := reg.Get("AAPL")
	assert.Equal(t, before.Price, tx.Price)
	assert.InDelta(t, before.Volume+1000*before.Price, after.Volume, 1e-3)
}

func TestExecuteErrors(t *testing.T) {
	uc, reg := newTestTrade(t)
	before := reg.Snapshot()

	_, err := uc.Execute("NOPE", market.Buy, 10)
	assert.ErrorIs(t, err, exception.ErrAssetNotFound)

	for _, amount := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err = uc.Execute("DOGE", market.Buy, amount)
		assert.ErrorIs(t, err, exception.ErrInvalidAmount, "amount %v", amount)
	}

	_, err = uc.Execute("DOGE", market.Side("hold"), 10)
	assert.ErrorIs(t, err, exception.ErrMalformedRequest)

	assert.Equal(t, before, reg.Snapshot())
	assert.Empty(t, uc.Transactions())
}

func TestExecuteRejectsOversizedSell(t *testing.T) {
	uc, reg := newTestTrade(t)
	before, _ := reg.Get("PEPE")

	_, err := uc.Execute("PEPE", market.Sell, before.MarketCap)
	assert.ErrorIs(t, err, exception.ErrInvalidAmount)

	after, _ := reg.Get("PEPE")
	assert.Equal(t, before, after)
	assert.Empty(t, uc.Transactions())
}

func TestTransactionsKeepExecutionOrder(t *testing.T) {
	uc, _ := newTestTrade(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = uc.Execute("MSFT", market.Buy, 10)
		}()
	}
	wg.Wait()

	txs := uc.Transactions()
	require.Len(t, txs, 20)
	for i := 1; i < len(txs); i++ {
		assert.Greater(t, txs[i].Price, txs[i-1].Price)
		assert.NotEqual(t, txs[i].ID, txs[i-1].ID)
	}
}
