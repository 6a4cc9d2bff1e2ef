// cmd/market/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grafana/pyroscope-go"

	"github.com/r-umemoto/meme-market/internal/common/logger"
	"github.com/r-umemoto/meme-market/internal/config"
	"github.com/r-umemoto/meme-market/internal/engine"
)

func main() {
	// 1. 全体を安全に停止するためのコンテキスト管理（Ctrl+C / SIGTERM）
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.GetLogger().WithError(err).Error("❌ システムを停止しました")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Init(cfg.Log.Level)
	log := logger.GetLogger()
	log.Info("システム起動: 初期化プロセスを開始します。")

	if cfg.Pyroscope.ServerAddress != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "meme-market",
			ServerAddress:   cfg.Pyroscope.ServerAddress,
			Tags: map[string]string{
				"addr": cfg.Market.Addr,
			},
			Logger: log,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.WithError(err).Warn("pyroscope を開始できません。プロファイリングなしで続行します")
		} else {
			defer func() {
				_ = profiler.Stop()
			}()
		}
	}

	eng, err := engine.BuildEngine(cfg)
	if err != nil {
		return err
	}

	if err := eng.Run(ctx); err != nil {
		return err
	}

	log.Info("システムを安全にシャットダウンしました。")
	return nil
}
