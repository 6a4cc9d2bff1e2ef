// Package engine はシステム全体のライフサイクル（初期化、実行、停止）を管理します
package engine

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/r-umemoto/meme-market/internal/common/logger"
	"github.com/r-umemoto/meme-market/internal/domain/market"
	"github.com/r-umemoto/meme-market/internal/domain/pricing"
	"github.com/r-umemoto/meme-market/internal/domain/sentiment"
	"github.com/r-umemoto/meme-market/internal/infra/observer"
	"github.com/r-umemoto/meme-market/internal/metrics"
	"github.com/r-umemoto/meme-market/internal/usecase"
)

// Engine は価格更新ループとオブザーバーサーバーを束ねる司令部です
type Engine struct {
	registry     *market.Registry
	ingester     *sentiment.Ingester
	pricer       *pricing.Engine
	hub          *observer.Hub
	server       *observer.Server
	lifecycle    *usecase.LifecycleUseCase
	tickInterval time.Duration
	closers      []io.Closer
	logger       *logrus.Logger
}

// Run はサーバーを起動し、ctx がキャンセルされるまでティックを刻み続けます
func (e *Engine) Run(ctx context.Context) error {
	defer e.close()

	e.lifecycle.Startup()

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.server.Start(serverCtx)
	}()

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	e.logger.WithField("interval", e.tickInterval.String()).Info("🚀 価格更新ループを開始します...")

Loop:
	for {
		select {
		case <-ctx.Done(): // OSの終了シグナル (Ctrl+C)
			break Loop

		case err := <-serverErr:
			// リスナーが落ちたら続行できない
			e.lifecycle.Shutdown()
			return err

		case <-ticker.C:
			e.Tick(ctx)
		}
	}

	e.lifecycle.Shutdown()
	stopServer()
	return <-serverErr
}

// Tick はセンチメントの取り込み → 価格更新 → 配信 を1回行います
func (e *Engine) Tick(ctx context.Context) observer.Report {
	start := time.Now()
	defer func() {
		metrics.TicksTotal.Inc()
		metrics.TickLatency.Observe(time.Since(start).Seconds())
	}()

	e.ingester.Poll(ctx)

	if err := e.pricer.Tick(e.registry); err != nil {
		// 価格が0以下になる変動は棄却されるだけなので、配信は続ける
		e.logger.WithError(err).Warn("価格更新に失敗した銘柄があります")
	}

	report := e.hub.BroadcastSnapshot()
	if report.Failed > 0 {
		e.logger.WithFields(logrus.Fields{
			"delivered": report.Delivered,
			"failed":    report.Failed,
		}).Warn("一部のオブザーバーへの配信に失敗しました")
	}
	return report
}

func (e *Engine) close() {
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			e.logger.WithError(err).Warn("リソースの解放に失敗しました")
		}
	}
}

func newEngine(
	registry *market.Registry,
	ingester *sentiment.Ingester,
	pricer *pricing.Engine,
	hub *observer.Hub,
	server *observer.Server,
	lifecycle *usecase.LifecycleUseCase,
	tickInterval time.Duration,
	closers ...io.Closer,
) *Engine {
	return &Engine{
		registry:     registry,
		ingester:     ingester,
		pricer:       pricer,
		hub:          hub,
		server:       server,
		lifecycle:    lifecycle,
		tickInterval: tickInterval,
		closers:      closers,
		logger:       logger.GetLogger(),
	}
}
