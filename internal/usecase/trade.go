package usecase

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/r-umemoto/meme-market/internal/common/logger"
	"github.com/r-umemoto/meme-market/internal/domain/market"
	"github.com/r-umemoto/meme-market/internal/exception"
	"github.com/r-umemoto/meme-market/internal/metrics"
)

// AssetStore は売買の適用先（market.Registry）の規格です
type AssetStore interface {
	Update(symbol string, fn func(a *market.Asset) error) error
}

// TradeUseCase は売買注文を検証して価格へ反映し、約定記録を残すユースケースです
type TradeUseCase struct {
	assets AssetStore
	now    func() time.Time
	logger *logrus.Logger

	mu  sync.Mutex // 約定ログの順序 = 執行順序を保つ
	log []market.Transaction
}

func NewTradeUseCase(assets AssetStore) *TradeUseCase {
	return &TradeUseCase{
		assets: assets,
		now:    time.Now,
		logger: logger.GetLogger(),
	}
}

// Execute は注文を執行します。
// 価格インパクト = 数量 / 時価総額 で、買いなら上昇・売りなら下落します。
// 時価総額以上の売りは価格が0以下になるため拒否します
func (u *TradeUseCase) Execute(symbol string, side market.Side, amount float64) (market.Transaction, error) {
	if !(amount > 0) || math.IsInf(amount, 0) {
		return market.Transaction{}, exception.ErrInvalidAmount
	}
	if !side.Valid() {
		return market.Transaction{}, exception.ErrMalformedRequest
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	var tx market.Transaction
	err := u.assets.Update(symbol, func(a *market.Asset) error {
		at := u.now()
		price := a.Price
		impact := amount / a.MarketCap

		multiplier := 1 + impact
		if side == market.Sell {
			multiplier = 1 - impact
		}
		if multiplier <= 0 {
			return exception.ErrInvalidAmount
		}

		if err := a.ApplyPriceDelta(multiplier, at); err != nil {
			return exception.ErrInvalidAmount
		}
		a.RecordVolume(amount * price)

		tx = market.Transaction{
			ID:        uuid.NewString(),
			Timestamp: at,
			AssetID:   symbol,
			Side:      side,
			Amount:    amount,
			Price:     price,
			Total:     amount * price,
		}
		return nil
	})
	if err != nil {
		return market.Transaction{}, err
	}

	u.log = append(u.log, tx)
	metrics.TransactionsTotal.WithLabelValues(string(side)).Inc()
	u.logger.WithFields(logrus.Fields{
		"id":     tx.ID,
		"symbol": symbol,
		"side":   side,
		"amount": amount,
		"price":  tx.Price,
	}).Info("💹 約定しました")

	return tx, nil
}

// Transactions は約定ログのコピーを執行順に返します
func (u *TradeUseCase) Transactions() []market.Transaction {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]market.Transaction{}, u.log...)
}
