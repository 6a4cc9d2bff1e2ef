// Package sentiment は外部のセンチメントフィードを取り込み、meme 銘柄の価格補正に変換します
package sentiment

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"github.com/r-umemoto/meme-market/internal/exception"
)

const (
	minScore = 0.0
	maxScore = 100.0
)

// Feed はセンチメント生成側が書き出すペイロードです
type Feed struct {
	Timestamp string             `json:"timestamp"`
	Scores    map[string]float64 `json:"scores"`
}

// Source はフィードの取得元（ファイル、HTTP、Redis など）の規格です
type Source interface {
	// Fetch は since（前回の変更マーカー）から変化があった場合のみペイロードを返します。
	// 変化がなければ payload は nil で、marker は since のままです
	Fetch(ctx context.Context, since string) (payload []byte, marker string, err error)
}

// ImpactFromScore はスコア(0〜100)を価格補正係数(0.9〜1.1)に変換します。
// 範囲外のスコアは切り詰めます
func ImpactFromScore(score float64) float64 {
	if score < minScore {
		score = minScore
	}
	if score > maxScore {
		score = maxScore
	}
	return 0.9 + (score / 500)
}

// DecodeFeed はフィードのペイロードを解析します
func DecodeFeed(payload []byte) (Feed, error) {
	var feed Feed
	if err := sonic.ConfigStd.Unmarshal(payload, &feed); err != nil {
		return Feed{}, errors.Wrap(exception.ErrFeedUnavailable, "decode feed: "+err.Error())
	}
	if feed.Scores == nil {
		feed.Scores = map[string]float64{}
	}
	return feed, nil
}
