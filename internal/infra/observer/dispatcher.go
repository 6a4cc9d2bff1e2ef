package observer

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/r-umemoto/meme-market/internal/common/logger"
	"github.com/r-umemoto/meme-market/internal/domain/market"
	"github.com/r-umemoto/meme-market/internal/exception"
	"github.com/r-umemoto/meme-market/internal/metrics"
)

// Trader は売買を執行するユースケース（usecase.TradeUseCase）の規格です
type Trader interface {
	Execute(symbol string, side market.Side, amount float64) (market.Transaction, error)
	Transactions() []market.Transaction
}

// TrendReader は最新のセンチメントスコアの取得元（sentiment.Ingester）です
type TrendReader interface {
	Scores() map[string]float64
}

// Dispatcher は1件の要求を処理して応答を作ります。
// broadcast が true の場合、呼び出し側は応答の送信後にスナップショットを配信します
type Dispatcher struct {
	assets Snapshotter
	trader Trader
	trends TrendReader
	logger *logrus.Logger
}

func NewDispatcher(assets Snapshotter, trader Trader, trends TrendReader) *Dispatcher {
	return &Dispatcher{
		assets: assets,
		trader: trader,
		trends: trends,
		logger: logger.GetLogger(),
	}
}

// Handle はフレームを解釈して実行し、エンコード済みの応答を返します
func (d *Dispatcher) Handle(frame []byte) (payload []byte, broadcast bool) {
	resp, broadcast := d.dispatch(frame)

	payload, err := EncodeResponse(resp)
	if err != nil {
		d.logger.WithError(err).Error("応答をエンコードできません")
		payload, _ = EncodeResponse(Failure("Internal error"))
		return payload, false
	}
	return payload, broadcast
}

func (d *Dispatcher) dispatch(frame []byte) (Response, bool) {
	req, err := DecodeRequest(frame)
	if err != nil {
		return d.reject(err), false
	}

	switch r := req.(type) {
	case TradeRequest:
		tx, err := d.trader.Execute(r.AssetID, r.Side, r.Amount)
		if err != nil {
			return d.reject(err), false
		}
		return Success(tx), true
	case GetAssetsRequest:
		return Success(d.assets.Snapshot()), false
	case GetTransactionsRequest:
		return Success(d.trader.Transactions()), false
	case GetMemeTrendsRequest:
		scores := map[string]float64{}
		if d.trends != nil {
			if s := d.trends.Scores(); s != nil {
				scores = s
			}
		}
		return Success(scores), false
	default:
		return d.reject(&RequestError{Err: exception.ErrMalformedRequest}), false
	}
}

func (d *Dispatcher) reject(err error) Response {
	var reason, message string
	switch {
	case errors.Is(err, exception.ErrAssetNotFound):
		reason, message = "asset_not_found", "Asset not found"
	case errors.Is(err, exception.ErrInvalidAmount):
		reason, message = "invalid_amount", "Invalid amount"
	default:
		reason, message = "malformed_request", "Malformed request"
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.Detail != "" {
			message += ": " + reqErr.Detail
		}
	}

	metrics.RejectedRequests.WithLabelValues(reason).Inc()
	d.logger.WithError(err).WithField("reason", reason).Debug("要求を拒否しました")
	return Failure(message)
}
