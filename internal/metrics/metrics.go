package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meme_market_ticks_total",
		Help: "Total number of price update ticks",
	})

	TickLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meme_market_tick_latency_seconds",
		Help:    "Latency of one tick (sentiment poll, price update and broadcast)",
		Buckets: prometheus.DefBuckets,
	})

	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meme_market_transactions_total",
		Help: "Total number of executed transactions",
	}, []string{"side"})

	RejectedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meme_market_rejected_requests_total",
		Help: "Total number of observer requests answered with an error",
	}, []string{"reason"})

	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meme_market_broadcasts_total",
		Help: "Total number of market_update broadcasts",
	})

	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meme_market_observer_send_failures_total",
		Help: "Total number of failed sends to observers",
	})

	ObserversConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meme_market_observers_connected",
		Help: "Number of currently connected observers",
	})

	SentimentPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meme_market_sentiment_polls_total",
		Help: "Sentiment feed polls by result",
	}, []string{"result"})
)
