package observer

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yanun0323/errors"

	"github.com/r-umemoto/meme-market/internal/common/logger"
)

// Message は受信したフレームです。Push なら Type、応答なら Status が入ります
type Message struct {
	Type      string          `json:"type,omitempty"`
	Status    string          `json:"status,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func (m Message) IsPush() bool { return m.Type != "" }

// Decode は Data を v に展開します
func (m Message) Decode(v any) error {
	return sonic.ConfigStd.Unmarshal(m.Data, v)
}

// Client はマーケットサーバーに接続するオブザーバー側のクライアントです
type Client struct {
	URL    string
	conn   *websocket.Conn
	logger *logrus.Logger

	mu sync.Mutex // 書き込みの直列化
}

// Dial はサーバーに接続したクライアントを返します
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return &Client{URL: url, conn: conn, logger: logger.GetLogger()}, nil
}

// Send は要求を1件送ります（例: map[string]any{"action": "buy", ...}）
func (c *Client) Send(req any) error {
	payload, err := sonic.ConfigStd.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Next は次のフレームを1件読みます
func (c *Client) Next() (Message, error) {
	_, frame, err := c.conn.ReadMessage()
	if err != nil {
		return Message{}, err
	}

	var msg Message
	if err := sonic.ConfigStd.Unmarshal(frame, &msg); err != nil {
		return Message{}, errors.Wrap(err, "decode frame")
	}
	return msg, nil
}

// NextResponse は Push を読み飛ばして次の応答を返します
func (c *Client) NextResponse() (Message, error) {
	for {
		msg, err := c.Next()
		if err != nil || !msg.IsPush() {
			return msg, err
		}
	}
}

// Listen は切断されるか ctx がキャンセルされるまで、受信したフレームを ch に流し続けます。
// Goroutine で実行されることを想定しています。終了時に ch を閉じます
func (c *Client) Listen(ctx context.Context, ch chan<- Message) {
	defer close(ch)

	// 読み取り待ちのまま止まらないよう、キャンセル時は接続を閉じる
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.Close()
	})
	defer stop()

	for {
		msg, err := c.Next()
		if err != nil {
			c.logger.WithError(err).Debug("websocket 読み取りを終了します")
			return
		}
		select {
		case ch <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}
