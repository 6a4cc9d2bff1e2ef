package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-umemoto/meme-market/internal/config"
	"github.com/r-umemoto/meme-market/internal/domain/market"
	"github.com/r-umemoto/meme-market/internal/exception"
)

type recordingObserver struct {
	mu     sync.Mutex
	frames int
	fail   bool
}

func (o *recordingObserver) Send([]byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return exception.ErrObserverSendFailure
	}
	o.frames++
	return nil
}

func (o *recordingObserver) Close() error { return nil }

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.frames
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		Market: config.MarketConfig{
			Addr:         "127.0.0.1:0",
			WSPath:       "/ws",
			TickInterval: 10 * time.Millisecond,
			Seed:         7,
		},
		Observer: config.ObserverConfig{WriteTimeout: time.Second, ReadLimit: 4096},
		Sentiment: config.SentimentConfig{
			Source:       config.SourceFile,
			File:         filepath.Join(t.TempDir(), "meme_trends.json"),
			PollInterval: time.Millisecond,
		},
	}
}

func TestTickPollsPricesAndBroadcasts(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Sentiment.File, []byte(`{"timestamp":"t","scores":{"PEPE":100}}`), 0o644))

	e, err := BuildEngine(cfg)
	require.NoError(t, err)

	healthy, broken := &recordingObserver{}, &recordingObserver{}
	require.NoError(t, e.hub.Connect(healthy))
	require.NoError(t, e.hub.Connect(broken))
	broken.fail = true

	before, err := e.registry.Get("PEPE")
	require.NoError(t, err)

	report := e.Tick(context.Background())
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 1, report.Failed)

	after, err := e.registry.Get("PEPE")
	require.NoError(t, err)
	assert.Len(t, after.History, len(before.History)+1)
	require.Len(t, after.Modifiers, 1)
	assert.InDelta(t, 1.1, after.Modifiers[0].Impact, 1e-12)
	assert.Equal(t, map[string]float64{"PEPE": 100}, e.ingester.Scores())

	report = e.Tick(context.Background())
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 3, healthy.count())
}

func TestTickSurvivesMissingFeed(t *testing.T) {
	e, err := BuildEngine(testConfig(t))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		e.Tick(context.Background())
	}
	for symbol, a := range e.registry.Snapshot() {
		assert.Len(t, a.History, 4, symbol)
	}
	assert.Empty(t, e.ingester.Scores())
}

func TestRunStopsOnCancel(t *testing.T) {
	e, err := BuildEngine(testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool {
		a, err := e.registry.Get("DOGE")
		return err == nil && len(a.History) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFailsWhenListenFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Market.Addr = "256.0.0.1:99999"

	e, err := BuildEngine(cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not report the listen failure")
	}
}

func TestBuildEngineWithCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sentiment.Source = config.SourceNone
	cfg.Market.CatalogFile = filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(cfg.Market.CatalogFile, []byte("assets:\n  - {symbol: BONK, class: meme, price: 0.00002, supply: 90000000000000}\n"), 0o644))

	e, err := BuildEngine(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"BONK"}, e.registry.Symbols())

	a, err := e.registry.Get("BONK")
	require.NoError(t, err)
	assert.Equal(t, market.ClassMeme, a.Class)
}

func TestBuildEngineRejectsBadCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Market.CatalogFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := BuildEngine(cfg)
	assert.Error(t, err)
}
