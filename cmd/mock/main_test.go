package main

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-umemoto/meme-market/internal/domain/market"
	"github.com/r-umemoto/meme-market/internal/domain/sentiment"
	"github.com/r-umemoto/meme-market/internal/infra/feed"
	"github.com/r-umemoto/meme-market/internal/infra/observer"
	"github.com/r-umemoto/meme-market/internal/usecase"
)

func TestTrendBoardServesWithETag(t *testing.T) {
	board := &trendBoard{}
	srv := httptest.NewServer(http.HandlerFunc(board.handle))
	defer srv.Close()

	res, err := http.Get(srv.URL)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	_, err = board.update(map[string]float64{"DOGE": 80})
	require.NoError(t, err)

	src := feed.NewHTTPSource(srv.URL, time.Second)
	payload, marker, err := src.Fetch(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, marker)

	f, err := sentiment.DecodeFeed(payload)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"DOGE": 80}, f.Scores)

	payload, _, err = src.Fetch(context.Background(), marker)
	require.NoError(t, err)
	assert.Nil(t, payload)

	_, err = board.update(map[string]float64{"DOGE": 20})
	require.NoError(t, err)
	payload, marker, err = src.Fetch(context.Background(), marker)
	require.NoError(t, err)
	assert.NotNil(t, payload)
	assert.Equal(t, `"v2"`, marker)
}

func TestWriteFileAtomicFeedsFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meme_trends.json")
	require.NoError(t, writeFileAtomic(path, []byte(`{"scores":{"PEPE":1}}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"scores":{"PEPE":1}}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRandomOrderStaysWithinMarketCapShare(t *testing.T) {
	reg, err := market.NewRegistry(market.DefaultAssets(time.Now()))
	require.NoError(t, err)
	trade := usecase.NewTradeUseCase(reg)
	initial := reg.Snapshot()
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 2000; i++ {
		assets := reg.Snapshot()
		symbol, action, amount := randomOrder(assets, rng.Float64)
		require.Contains(t, assets, symbol)
		assert.Contains(t, []string{observer.ActionBuy, observer.ActionSell}, action)
		assert.LessOrEqual(t, amount/assets[symbol].MarketCap, maxOrderShare, "%s %v", symbol, amount)

		// 売りでも時価総額の割合が小さいので拒否されない
		_, err := trade.Execute(symbol, market.Side(action), amount)
		require.NoError(t, err, "%s %s %v", action, symbol, amount)
	}

	// 1注文あたり最大 0.05% の変動なので、2000件でも桁が変わるほどには動かない
	for symbol, after := range reg.Snapshot() {
		ratio := after.Price / initial[symbol].Price
		assert.Greater(t, ratio, 0.1, symbol)
		assert.Less(t, ratio, 10.0, symbol)
	}
}
