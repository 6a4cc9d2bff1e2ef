package usecase

import (
	"github.com/sirupsen/logrus"

	"github.com/r-umemoto/meme-market/internal/common/logger"
	"github.com/r-umemoto/meme-market/internal/domain/market"
)

// MarketReader は市場状態の取得元（market.Registry）です
type MarketReader interface {
	Snapshot() map[string]market.Asset
	Symbols() []string
}

// ObserverCloser は接続中のオブザーバーをまとめて閉じる先（observer.Hub）です
type ObserverCloser interface {
	CloseAll() int
}

// LifecycleUseCase は起動時の市場状態の確認と、終了時の撤収（全接続の切断と最終状態の記録）を担います
type LifecycleUseCase struct {
	assets    MarketReader
	observers ObserverCloser
	trades    *TradeUseCase
	logger    *logrus.Logger
}

func NewLifecycleUseCase(assets MarketReader, observers ObserverCloser, trades *TradeUseCase) *LifecycleUseCase {
	return &LifecycleUseCase{
		assets:    assets,
		observers: observers,
		trades:    trades,
		logger:    logger.GetLogger(),
	}
}

// Startup は投入済みの銘柄を記録します
func (u *LifecycleUseCase) Startup() {
	snapshot := u.assets.Snapshot()
	for _, symbol := range u.assets.Symbols() {
		a := snapshot[symbol]
		u.logger.WithFields(logrus.Fields{
			"symbol":     symbol,
			"class":      a.Class,
			"price":      a.Price,
			"market_cap": a.MarketCap,
		}).Info("銘柄を上場しました")
	}
	u.logger.WithField("assets", len(snapshot)).Info("✅ 市場の初期化が完了しました")
}

// Shutdown は全オブザーバーを切断し、最終価格と約定件数を記録します
func (u *LifecycleUseCase) Shutdown() {
	u.logger.Info("🚨 終了シグナルを検知。オブザーバーを切断します...")
	closed := u.observers.CloseAll()

	snapshot := u.assets.Snapshot()
	final := make(map[string]float64, len(snapshot))
	for symbol, a := range snapshot {
		final[symbol] = a.Price
	}

	transactions := 0
	if u.trades != nil {
		transactions = len(u.trades.Transactions())
	}

	u.logger.WithFields(logrus.Fields{
		"observers":    closed,
		"transactions": transactions,
		"prices":       final,
	}).Info("✅ 市場を閉じました")
}
