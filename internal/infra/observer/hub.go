package observer

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yanun0323/errors"

	"github.com/r-umemoto/meme-market/internal/common/logger"
	"github.com/r-umemoto/meme-market/internal/domain/market"
	"github.com/r-umemoto/meme-market/internal/metrics"
)

// Observer は接続中のオブザーバー1件です。Send は同時に呼ばれても安全である必要があります
type Observer interface {
	Send(payload []byte) error
	Close() error
}

// Snapshotter は配信する市場状態の取得元（market.Registry）です
type Snapshotter interface {
	Snapshot() map[string]market.Asset
}

// Report は1回のブロードキャストの配信結果です
type Report struct {
	Delivered int
	Failed    int
}

// Hub は接続中のオブザーバー集合を管理し、市場スナップショットを配信します。
// 1件の送信失敗はその接続を切るだけで、他への配信は止めません
type Hub struct {
	assets Snapshotter
	now    func() time.Time
	logger *logrus.Logger

	// スナップショットの取得から全件送信までを直列化する。
	// 各オブザーバーには取得順にスナップショットが届く
	broadcastMu sync.Mutex

	mu        sync.Mutex // 集合の操作だけを守る。送信中は持たない
	observers map[Observer]struct{}
}

func NewHub(assets Snapshotter) *Hub {
	return &Hub{
		assets:    assets,
		now:       time.Now,
		logger:    logger.GetLogger(),
		observers: make(map[Observer]struct{}),
	}
}

// Connect はその接続にだけ market_state を送ってから集合に追加します。
// 配信と直列化しているので、最初に届くフレームは必ず market_state です
func (h *Hub) Connect(o Observer) error {
	h.broadcastMu.Lock()
	defer h.broadcastMu.Unlock()

	payload, err := EncodePush(PushMarketState, h.assets.Snapshot(), h.now())
	if err != nil {
		return errors.Wrap(err, "encode market_state")
	}
	if err := o.Send(payload); err != nil {
		metrics.SendFailures.Inc()
		h.logger.WithError(err).Warn("market_state を送信できないため接続を閉じます")
		_ = o.Close()
		return err
	}

	h.mu.Lock()
	h.observers[o] = struct{}{}
	count := len(h.observers)
	h.mu.Unlock()

	metrics.ObserversConnected.Set(float64(count))
	h.logger.WithField("observers", count).Info("🔌 オブザーバーが接続しました")
	return nil
}

// Disconnect は集合から外します。既に外れていれば何もしません
func (h *Hub) Disconnect(o Observer) bool {
	h.mu.Lock()
	_, ok := h.observers[o]
	delete(h.observers, o)
	count := len(h.observers)
	h.mu.Unlock()

	if ok {
		metrics.ObserversConnected.Set(float64(count))
		h.logger.WithField("observers", count).Info("オブザーバーが切断しました")
	}
	return ok
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// BroadcastSnapshot は全オブザーバーに market_update を並行に送ります。
// 失敗した接続は切断して閉じ、結果を返します
func (h *Hub) BroadcastSnapshot() Report {
	h.broadcastMu.Lock()
	defer h.broadcastMu.Unlock()

	targets := h.members()
	if len(targets) == 0 {
		return Report{}
	}

	payload, err := EncodePush(PushMarketUpdate, h.assets.Snapshot(), h.now())
	if err != nil {
		h.logger.WithError(err).Error("market_update をエンコードできません")
		return Report{}
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report Report
	)
	for _, o := range targets {
		wg.Add(1)
		go func(o Observer) {
			defer wg.Done()
			err := o.Send(payload)

			mu.Lock()
			if err != nil {
				report.Failed++
			} else {
				report.Delivered++
			}
			mu.Unlock()

			if err != nil {
				h.drop(o, err)
			}
		}(o)
	}
	wg.Wait()

	metrics.BroadcastsTotal.Inc()
	return report
}

// CloseAll は全接続を閉じて集合を空にします（シャットダウン用）
func (h *Hub) CloseAll() int {
	targets := h.members()
	for _, o := range targets {
		h.Disconnect(o)
		_ = o.Close()
	}
	return len(targets)
}

func (h *Hub) members() []Observer {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Observer, 0, len(h.observers))
	for o := range h.observers {
		out = append(out, o)
	}
	return out
}

func (h *Hub) drop(o Observer, cause error) {
	metrics.SendFailures.Inc()
	h.logger.WithError(cause).Warn("送信に失敗したオブザーバーを切断します")
	h.Disconnect(o)
	_ = o.Close()
}
