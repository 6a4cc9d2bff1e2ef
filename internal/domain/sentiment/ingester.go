package sentiment

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yanun0323/errors"

	"github.com/r-umemoto/meme-market/internal/common/logger"
	"github.com/r-umemoto/meme-market/internal/domain/market"
	"github.com/r-umemoto/meme-market/internal/metrics"
)

var errNotMeme = errors.New("not a meme asset")

// AssetUpdater は補正係数を書き込む先（market.Registry）の規格です
type AssetUpdater interface {
	Update(symbol string, fn func(a *market.Asset) error) error
}

// Ingester はフィードを一定間隔以上あけてポーリングし、変化があった時だけ取り込みます。
// 取得に失敗しても直前のスコアを保持し続け、呼び出し側にエラーは返しません
type Ingester struct {
	source   Source
	assets   AssetUpdater
	interval time.Duration
	now      func() time.Time
	logger   *logrus.Logger

	mu       sync.Mutex
	polled   bool
	lastPoll time.Time
	marker   string
	scores   map[string]float64
}

func NewIngester(source Source, assets AssetUpdater, interval time.Duration) *Ingester {
	return &Ingester{
		source:   source,
		assets:   assets,
		interval: interval,
		now:      time.Now,
		logger:   logger.GetLogger(),
		scores:   map[string]float64{},
	}
}

// Poll は前回から interval 以上経過していればフィードを確認し、最新のスコアを返します
func (i *Ingester) Poll(ctx context.Context) map[string]float64 {
	i.mu.Lock()
	now := i.now()
	if i.source == nil || (i.polled && now.Sub(i.lastPoll) < i.interval) {
		out := maps.Clone(i.scores)
		i.mu.Unlock()
		return out
	}
	i.polled = true
	i.lastPoll = now
	since := i.marker
	i.mu.Unlock()

	// I/O の間はロックを持たない
	payload, marker, err := i.source.Fetch(ctx, since)
	if err != nil {
		i.logger.WithError(err).Warn("センチメントフィードを取得できません。直前のスコアを維持します")
		metrics.SentimentPolls.WithLabelValues("unavailable").Inc()
		return i.Scores()
	}
	if payload == nil {
		metrics.SentimentPolls.WithLabelValues("unchanged").Inc()
		return i.Scores()
	}

	feed, err := DecodeFeed(payload)
	if err != nil {
		i.logger.WithError(err).Warn("センチメントフィードの形式が不正です。直前のスコアを維持します")
		metrics.SentimentPolls.WithLabelValues("malformed").Inc()
		return i.Scores()
	}

	i.mu.Lock()
	i.marker = marker
	i.mu.Unlock()

	metrics.SentimentPolls.WithLabelValues("updated").Inc()
	i.Apply(feed.Scores)
	return i.Scores()
}

// Apply はスコアを保存し、meme 銘柄のセンチメント補正を更新します。
// 更新した銘柄と補正係数を返します（未知の銘柄や meme 以外は無視）
func (i *Ingester) Apply(scores map[string]float64) map[string]float64 {
	i.mu.Lock()
	i.scores = maps.Clone(scores)
	if i.scores == nil {
		i.scores = map[string]float64{}
	}
	i.mu.Unlock()

	applied := make(map[string]float64)
	for symbol, score := range scores {
		impact := ImpactFromScore(score)
		err := i.assets.Update(symbol, func(a *market.Asset) error {
			if a.Class != market.ClassMeme {
				return errNotMeme
			}
			a.UpsertModifier(market.ModifierSentiment, impact)
			return nil
		})
		if err != nil {
			continue
		}
		applied[symbol] = impact
		i.logger.WithFields(logrus.Fields{"symbol": symbol, "score": score, "impact": impact}).Info("センチメント補正を更新しました")
	}
	return applied
}

// Scores は最後に取り込んだスコアのコピーを返します
func (i *Ingester) Scores() map[string]float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return maps.Clone(i.scores)
}
