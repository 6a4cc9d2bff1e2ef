package market

import (
	"time"
)

// Side は売買区分です
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Transaction は約定した売買の記録です。記録後に変更されることはありません
type Transaction struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	AssetID   string    `json:"asset_id"`
	Side      Side      `json:"action"`
	Amount    float64   `json:"amount"`
	Price     float64   `json:"price"` // 約定時点（価格インパクト適用前）の価格
	Total     float64   `json:"total"`
}

// DefaultAssets は起動時に投入する6銘柄です
func DefaultAssets(at time.Time) []Asset {
	return []Asset{
		NewAsset("DOGE", "Dogecoin", ClassMeme, 0.12, 150_000_000_000, 1_000_000, at),
		NewAsset("PEPE", "Pepe Coin", ClassMeme, 0.000001, 42_000_000_000_000, 500_000, at),
		NewAsset("SHIB", "Shiba Inu", ClassMeme, 0.000015, 589_000_000_000_000, 750_000, at),
		NewAsset("USDT", "Tether", ClassStable, 1.0, 100_000_000_000, 50_000_000_000, at),
		NewAsset("AAPL", "Apple Inc.", ClassEquity, 185.92, 15_000_000_000, 10_000_000_000, at),
		NewAsset("MSFT", "Microsoft Corporation", ClassEquity, 403.78, 7_420_000_000, 8_000_000_000, at),
	}
}
