package engine

import (
	"io"
	"time"

	"github.com/yanun0323/errors"

	"github.com/r-umemoto/meme-market/internal/config"
	"github.com/r-umemoto/meme-market/internal/domain/market"
	"github.com/r-umemoto/meme-market/internal/domain/pricing"
	"github.com/r-umemoto/meme-market/internal/domain/sentiment"
	"github.com/r-umemoto/meme-market/internal/infra/catalog"
	"github.com/r-umemoto/meme-market/internal/infra/feed"
	"github.com/r-umemoto/meme-market/internal/infra/observer"
	"github.com/r-umemoto/meme-market/internal/usecase"
)

const feedHTTPTimeout = 5 * time.Second

// BuildEngine は、システム全体を俯瞰する「目次」です
func BuildEngine(cfg *config.AppConfig) (*Engine, error) {
	// 1. 市場（銘柄の初期投入）
	registry, err := buildRegistry(cfg.Market)
	if err != nil {
		return nil, errors.Wrap(err, "銘柄の初期投入に失敗")
	}

	// 2. インフラ層の構築（泥臭い設定はすべてここへ）
	source, closers, err := buildSentimentSource(cfg.Sentiment)
	if err != nil {
		return nil, err
	}

	// 3. ドメインとユースケースの組み立て
	ingester := sentiment.NewIngester(source, registry, cfg.Sentiment.PollInterval)
	pricer := pricing.NewEngine(nil)
	if cfg.Market.Seed != 0 {
		pricer = pricing.NewSeededEngine(cfg.Market.Seed)
	}
	tradeUC := usecase.NewTradeUseCase(registry)

	// 4. オブザーバー向けの配信とサーバー
	hub := observer.NewHub(registry)
	dispatcher := observer.NewDispatcher(registry, tradeUC, ingester)
	server := observer.NewServer(observer.ServerConfig{
		Addr:         cfg.Market.Addr,
		WSPath:       cfg.Market.WSPath,
		WriteTimeout: cfg.Observer.WriteTimeout,
		ReadLimit:    cfg.Observer.ReadLimit,
	}, hub, dispatcher, ingester)

	lifecycle := usecase.NewLifecycleUseCase(registry, hub, tradeUC)

	// 5. エンジンの完成
	return newEngine(registry, ingester, pricer, hub, server, lifecycle, cfg.Market.TickInterval, closers...), nil
}

// ---------------------------------------------------------
// ▼ ここから下は「下請け工場（プライベート関数）」に押し込む
// ---------------------------------------------------------

func buildRegistry(cfg config.MarketConfig) (*market.Registry, error) {
	now := time.Now()
	assets := market.DefaultAssets(now)
	if cfg.CatalogFile != "" {
		loaded, err := catalog.Load(cfg.CatalogFile, now)
		if err != nil {
			return nil, err
		}
		assets = loaded
	}
	return market.NewRegistry(assets)
}

func buildSentimentSource(cfg config.SentimentConfig) (sentiment.Source, []io.Closer, error) {
	switch cfg.Source {
	case config.SourceFile:
		return feed.NewFileSource(cfg.File), nil, nil
	case config.SourceHTTP:
		return feed.NewHTTPSource(cfg.URL, feedHTTPTimeout), nil, nil
	case config.SourceRedis:
		src := feed.NewRedisSource(feed.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.RedisKey)
		return src, []io.Closer{src}, nil
	case config.SourceNone:
		return nil, nil, nil
	default:
		return nil, nil, errors.Errorf("未対応のセンチメントソースです: %s", cfg.Source)
	}
}
