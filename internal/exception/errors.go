// Package exception はシステム全体で共有するエラーの分類です
package exception

import "github.com/yanun0323/errors"

// リクエスト起因のエラー（要求したオブザーバーにだけエラー応答として返す）
var (
	ErrAssetNotFound    = errors.New("asset not found")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrMalformedRequest = errors.New("malformed request")
)

// インフラ起因のエラー（ログに残して処理を継続する）
var (
	ErrFeedUnavailable     = errors.New("sentiment feed unavailable")
	ErrObserverSendFailure = errors.New("observer send failure")
	ErrNonPositivePrice    = errors.New("price must stay positive")
)
