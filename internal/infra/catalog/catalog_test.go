package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-umemoto/meme-market/internal/domain/market"
)

const sample = `
assets:
  - symbol: WIF
    name: dogwifhat
    class: meme
    price: 2.5
    supply: 1000000000
    volume: 100
  - symbol: NVDA
    class: equity
    price: 900
    supply: 2500000000
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assets, err := Load(path, at)
	require.NoError(t, err)
	require.Len(t, assets, 2)

	wif := assets[0]
	assert.Equal(t, "WIF", wif.Symbol)
	assert.Equal(t, market.ClassMeme, wif.Class)
	assert.InDelta(t, 2.5e9, wif.MarketCap, 1e-3)
	assert.Equal(t, []market.PricePoint{{Timestamp: at, Price: 2.5}}, wif.History)
	assert.Equal(t, []market.Modifier{{Kind: market.ModifierSentiment, Impact: 1.0}}, wif.Modifiers)

	nvda := assets[1]
	assert.Equal(t, "NVDA", nvda.Name)
	assert.Empty(t, nvda.Modifiers)
}

func TestParseRejectsInvalidCatalog(t *testing.T) {
	cases := map[string]string{
		"empty":     `assets: []`,
		"duplicate": "assets:\n  - {symbol: A, class: meme, price: 1, supply: 1}\n  - {symbol: A, class: meme, price: 1, supply: 1}\n",
		"class":     "assets:\n  - {symbol: A, class: bond, price: 1, supply: 1}\n",
		"price":     "assets:\n  - {symbol: A, class: meme, price: 0, supply: 1}\n",
		"supply":    "assets:\n  - {symbol: A, class: meme, price: 1, supply: -5}\n",
		"syntax":    "assets: [",
	}

	for name, doc := range cases {
		_, err := Parse([]byte(doc), time.Now())
		assert.Error(t, err, name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), time.Now())
	assert.Error(t, err)
}
