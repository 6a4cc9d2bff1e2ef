// Package observer はオブザーバー（ダッシュボード等）との websocket 通信を担当します
package observer

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"github.com/r-umemoto/meme-market/internal/domain/market"
	"github.com/r-umemoto/meme-market/internal/exception"
)

const (
	ActionBuy             = "buy"
	ActionSell            = "sell"
	ActionGetAssets       = "get_assets"
	ActionGetTransactions = "get_transactions"
	ActionGetMemeTrends   = "get_meme_trends"
)

const (
	PushMarketState  = "market_state"
	PushMarketUpdate = "market_update"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request はオブザーバーから受け取る要求です。下の4種類のどれかになります
type Request interface {
	isRequest()
}

// TradeRequest は buy / sell 注文です
type TradeRequest struct {
	AssetID string
	Side    market.Side
	Amount  float64
}

type GetAssetsRequest struct{}

type GetTransactionsRequest struct{}

type GetMemeTrendsRequest struct{}

func (TradeRequest) isRequest()           {}
func (GetAssetsRequest) isRequest()       {}
func (GetTransactionsRequest) isRequest() {}
func (GetMemeTrendsRequest) isRequest()   {}

// RequestError はデコード時の失敗理由です。Err は exception のセンチネルです
type RequestError struct {
	Err    error
	Detail string
}

func (e *RequestError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

func (e *RequestError) Unwrap() error { return e.Err }

func malformed(detail string) error {
	return &RequestError{Err: exception.ErrMalformedRequest, Detail: detail}
}

type rawRequest struct {
	Action  string          `json:"action"`
	AssetID *string         `json:"asset_id"`
	Amount  json.RawMessage `json:"amount"`
}

// DecodeRequest は受信したテキストフレームを要求に変換します。
// amount は数値のほか数値文字列（"1.5e9" など）も受け付けます
func DecodeRequest(frame []byte) (Request, error) {
	var raw rawRequest
	if err := sonic.ConfigStd.Unmarshal(frame, &raw); err != nil {
		return nil, malformed("invalid json")
	}

	switch raw.Action {
	case ActionBuy, ActionSell:
		if raw.AssetID == nil {
			return nil, malformed("missing asset_id")
		}
		amount, err := decodeAmount(raw.Amount)
		if err != nil {
			return nil, err
		}
		return TradeRequest{AssetID: *raw.AssetID, Side: market.Side(raw.Action), Amount: amount}, nil
	case ActionGetAssets:
		return GetAssetsRequest{}, nil
	case ActionGetTransactions:
		return GetTransactionsRequest{}, nil
	case ActionGetMemeTrends:
		return GetMemeTrendsRequest{}, nil
	case "":
		return nil, malformed("missing action")
	default:
		return nil, malformed("unknown action " + strconv.Quote(raw.Action))
	}
}

func decodeAmount(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, malformed("missing amount")
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := sonic.ConfigStd.Unmarshal(raw, &text); err != nil {
			return 0, &RequestError{Err: exception.ErrInvalidAmount}
		}
	}

	amount, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, &RequestError{Err: exception.ErrInvalidAmount}
	}
	return amount, nil
}

// Response は要求に対する応答です（要求したオブザーバーにだけ返します）
type Response struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Push はサーバーから一方的に送る市場スナップショットです
type Push struct {
	Type      string                  `json:"type"`
	Data      map[string]market.Asset `json:"data"`
	Timestamp string                  `json:"timestamp"`
}

func Success(data any) Response {
	return Response{Status: StatusSuccess, Data: data}
}

func Failure(message string) Response {
	return Response{Status: StatusError, Message: message}
}

func EncodeResponse(r Response) ([]byte, error) {
	return sonic.ConfigStd.Marshal(r)
}

func EncodePush(kind string, assets map[string]market.Asset, at time.Time) ([]byte, error) {
	return sonic.ConfigStd.Marshal(Push{
		Type:      kind,
		Data:      assets,
		Timestamp: at.UTC().Format(time.RFC3339),
	})
}
