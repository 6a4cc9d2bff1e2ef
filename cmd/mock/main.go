// cmd/mock/main.go
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"
	"github.com/yanun0323/errors"

	"github.com/r-umemoto/meme-market/internal/common/logger"
	"github.com/r-umemoto/meme-market/internal/config"
	"github.com/r-umemoto/meme-market/internal/domain/market"
	"github.com/r-umemoto/meme-market/internal/domain/sentiment"
	"github.com/r-umemoto/meme-market/internal/infra/feed"
	"github.com/r-umemoto/meme-market/internal/infra/observer"
)

// scoreWave はスコアのシナリオ（波）です。銘柄ごとに位相をずらして使います
var scoreWave = []float64{
	50, 55, 62, 70, 85,
	100, // 🎯 急騰。meme 銘柄の補正が最大(1.1)になるはず
	90, 70, 50, 30, 10,
	0, // 🎯 急落。補正が最小(0.9)になるはず
	15, 35, 45,
}

var memeSymbols = []string{"DOGE", "PEPE", "SHIB"}

func main() {
	addr := flag.String("addr", ":18082", "GET /meme_trends を配信するアドレス（空なら配信しない）")
	interval := flag.Duration("interval", 15*time.Second, "スコアの更新間隔")
	pushURL := flag.String("push", "", "スコアを POST するマーケットの URL（例: http://localhost:8765/sentiment）")
	tradeURL := flag.String("trade", "", "ランダムに売買するマーケットの websocket URL（例: ws://localhost:8765/ws）")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("設定の読み込みに失敗しました")
	}
	logger.Init(cfg.Log.Level)
	log := logger.GetLogger()

	board := &trendBoard{}
	publish := buildPublisher(cfg.Sentiment, *pushURL)

	if *addr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/meme_trends", board.handle)
		srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.WithField("addr", *addr).Info("[Mock] センチメント配信サーバーを起動します")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Fatal("サーバー起動エラー")
			}
		}()
		defer srv.Close()
	}

	if *tradeURL != "" {
		go runTrader(ctx, *tradeURL, log)
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	tick := 0
	for {
		scores := make(map[string]float64, len(memeSymbols))
		for i, symbol := range memeSymbols {
			base := scoreWave[(tick+i*4)%len(scoreWave)]
			scores[symbol] = min(100, max(0, base+rand.NormFloat64()*3))
		}
		tick++

		payload, err := board.update(scores)
		if err != nil {
			log.WithError(err).Error("スコアをエンコードできません")
		} else if err := publish(ctx, payload); err != nil {
			log.WithError(err).Warn("スコアを書き出せません")
		} else {
			log.WithField("scores", scores).Info("[Mock] 📈 センチメントを更新しました")
		}

		select {
		case <-ctx.Done():
			log.Info("[Mock] 終了します")
			return
		case <-ticker.C:
		}
	}
}

// trendBoard は最新のフィードを ETag 付きで配信します
type trendBoard struct {
	mu      sync.RWMutex
	payload []byte
	etag    string
	seq     int
}

func (b *trendBoard) update(scores map[string]float64) ([]byte, error) {
	payload, err := sonic.ConfigStd.Marshal(sentiment.Feed{
		Timestamp: time.Now().Format(time.RFC3339),
		Scores:    scores,
	})
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.payload = payload
	b.etag = fmt.Sprintf(`"v%d"`, b.seq)
	return payload, nil
}

func (b *trendBoard) handle(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	payload, etag := b.payload, b.etag
	b.mu.RUnlock()

	if payload == nil {
		http.Error(w, "no trends yet", http.StatusServiceUnavailable)
		return
	}
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

type publisher func(ctx context.Context, payload []byte) error

// buildPublisher はマーケット側の SENTIMENT_SOURCE に合わせた書き出し先を選びます
func buildPublisher(cfg config.SentimentConfig, pushURL string) publisher {
	var sinks []publisher

	switch cfg.Source {
	case config.SourceFile:
		sinks = append(sinks, func(_ context.Context, payload []byte) error {
			return writeFileAtomic(cfg.File, payload)
		})
	case config.SourceRedis:
		src := feed.NewRedisSource(feed.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.RedisKey)
		sinks = append(sinks, src.Publish)
	}

	if pushURL != "" {
		client := &http.Client{Timeout: 5 * time.Second}
		sinks = append(sinks, func(ctx context.Context, payload []byte) error {
			return post(ctx, client, pushURL, payload)
		})
	}

	return func(ctx context.Context, payload []byte) error {
		for _, sink := range sinks {
			if err := sink(ctx, payload); err != nil {
				return err
			}
		}
		return nil
	}
}

// writeFileAtomic は読み手が書きかけのファイルを見ないよう、一時ファイル経由で置き換えます
func writeFileAtomic(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".meme_trends-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func post(ctx context.Context, client *http.Client, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("post %s: status %d", url, resp.StatusCode)
	}
	return nil
}

// runTrader はオブザーバーとして接続し、市場の更新を受けるたびにランダムに売買します
func runTrader(ctx context.Context, url string, log *logrus.Logger) {
	client, err := observer.Dial(ctx, url)
	if err != nil {
		log.WithError(err).Error("[Mock] マーケットに接続できません")
		return
	}
	defer client.Close()

	msgCh := make(chan observer.Message)
	go client.Listen(ctx, msgCh)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgCh:
			if !ok {
				log.Warn("[Mock] マーケットから切断されました")
				return
			}
			if !msg.IsPush() {
				if msg.Status == observer.StatusError {
					log.WithField("message", msg.Message).Warn("[Mock] 注文が拒否されました")
				}
				continue
			}
			if rand.IntN(3) != 0 {
				continue
			}

			var assets map[string]market.Asset
			if err := msg.Decode(&assets); err != nil || len(assets) == 0 {
				continue
			}
			symbol, action, amount := randomOrder(assets, rand.Float64)

			if err := client.Send(map[string]any{"action": action, "asset_id": symbol, "amount": amount}); err != nil {
				log.WithError(err).Warn("[Mock] 注文を送れません")
				return
			}
		}
	}
}

// maxOrderShare は1注文の数量の上限（時価総額に対する割合）です。
// 価格インパクトは 数量 / 時価総額 なので、1注文で動く価格もこの割合までになります
const maxOrderShare = 0.0005

// randomOrder は銘柄・売買区分・数量をランダムに選びます
func randomOrder(assets map[string]market.Asset, random func() float64) (symbol, action string, amount float64) {
	symbols := make([]string, 0, len(assets))
	for s := range assets {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	target := assets[symbols[int(random()*float64(len(symbols)))%len(symbols)]]

	action = observer.ActionBuy
	if random() < 0.5 {
		action = observer.ActionSell
	}
	return target.Symbol, action, target.MarketCap * random() * maxOrderShare
}
