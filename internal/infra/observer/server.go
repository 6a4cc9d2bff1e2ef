package observer

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/yanun0323/errors"

	"github.com/r-umemoto/meme-market/internal/common/logger"
	"github.com/r-umemoto/meme-market/internal/domain/sentiment"
	"github.com/r-umemoto/meme-market/internal/exception"
)

// TrendApplier は POST /sentiment で受け取ったスコアの適用先（sentiment.Ingester）です
type TrendApplier interface {
	Apply(scores map[string]float64) map[string]float64
}

// ServerConfig はオブザーバーサーバーの設定です
type ServerConfig struct {
	Addr         string
	WSPath       string
	WriteTimeout time.Duration
	ReadLimit    int64
}

// Server は websocket のオブザーバー接続と運用用の HTTP エンドポイントを1つのリスナーで提供します
type Server struct {
	cfg        ServerConfig
	hub        *Hub
	dispatcher *Dispatcher
	trends     TrendApplier
	logger     *logrus.Logger
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

func NewServer(cfg ServerConfig, hub *Hub, dispatcher *Dispatcher, trends TrendApplier) *Server {
	s := &Server{
		cfg:        cfg,
		hub:        hub,
		dispatcher: dispatcher,
		trends:     trends,
		logger:     logger.GetLogger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 認証は行わない
			},
		},
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler はルーティング済みのハンドラーを返します
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/sentiment", s.handleSentiment)
	if s.cfg.WSPath != "" && s.cfg.WSPath != "/" {
		mux.HandleFunc(s.cfg.WSPath, s.handleConnection)
	}
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// Start はリスナーを開き、ctx がキャンセルされるまで待ってから停止します
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.cfg.Addr).Info("🚀 オブザーバーサーバーを起動します")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- errors.Wrap(err, "listen")
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" && websocket.IsWebSocketUpgrade(r) {
		s.handleConnection(w, r)
		return
	}
	http.NotFound(w, r)
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	reply := func(status int, resp Response) {
		body, _ := EncodeResponse(resp)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}

	if r.Method != http.MethodPost {
		reply(http.StatusMethodNotAllowed, Failure("Method not allowed"))
		return
	}
	if s.trends == nil {
		reply(http.StatusServiceUnavailable, Failure("Sentiment ingestion disabled"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		reply(http.StatusBadRequest, Failure(err.Error()))
		return
	}
	feed, err := sentiment.DecodeFeed(body)
	if err != nil {
		reply(http.StatusBadRequest, Failure("Malformed request: invalid feed payload"))
		return
	}

	applied := s.trends.Apply(feed.Scores)
	s.logger.WithField("scores", feed.Scores).Info("HTTP 経由でセンチメントを受信しました")
	reply(http.StatusOK, Response{Status: StatusSuccess, Data: applied, Message: "Trends updated"})
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket へのアップグレードに失敗しました")
		return
	}

	o := &wsObserver{conn: conn, writeTimeout: s.cfg.WriteTimeout}
	if err := s.hub.Connect(o); err != nil {
		return
	}
	go s.readPump(o)
}

// readPump は1接続の要求を1件ずつ順番に処理します
func (s *Server) readPump(o *wsObserver) {
	defer func() {
		s.hub.Disconnect(o)
		_ = o.Close()
	}()

	if s.cfg.ReadLimit > 0 {
		o.conn.SetReadLimit(s.cfg.ReadLimit)
	}

	for {
		msgType, frame, err := o.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.WithError(err).Debug("websocket 読み取りエラー")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		payload, broadcast := s.dispatcher.Handle(frame)
		if err := o.Send(payload); err != nil {
			s.logger.WithError(err).Warn("応答を送信できません")
			return
		}
		if broadcast {
			s.hub.BroadcastSnapshot()
		}
	}
}

// wsObserver は gorilla の接続を Observer として扱うためのラッパーです。
// gorilla の接続は同時書き込みできないため書き込みを直列化します
type wsObserver struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func (o *wsObserver) Send(payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return exception.ErrObserverSendFailure
	}
	if o.writeTimeout > 0 {
		_ = o.conn.SetWriteDeadline(time.Now().Add(o.writeTimeout))
	}
	if err := o.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.Wrapf(exception.ErrObserverSendFailure, "write: %v", err)
	}
	return nil
}

func (o *wsObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true
	return o.conn.Close()
}
