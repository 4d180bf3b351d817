// Package client is a headless WebSocket client for the quiz server. It backs
// the load-test bot and the end-to-end tests.
package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/palemoky/geoquiz/internal/logger"
	"github.com/palemoky/geoquiz/internal/network/protocol"
	"github.com/palemoky/geoquiz/internal/network/protocol/codec"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	bufferSize = 256
)

var (
	// ErrClosed 连接已关闭
	ErrClosed = errors.New("connection closed")
	// ErrSendBufferFull 发送队列已满
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrTimeout 接收超时
	ErrTimeout = errors.New("receive timeout")
)

// Client WebSocket 客户端
type Client struct {
	ServerURL string

	codec   codec.Codec
	log     *zap.Logger
	conn    *websocket.Conn
	send    chan []byte
	receive chan *protocol.Message
	done    chan struct{}

	playerID atomic.Value  // string，收到 connected 后设置
	latency  atomic.Int64  // 毫秒
	dropped  atomic.Uint64 // 接收队列满时丢弃的消息数

	mu     sync.RWMutex
	closed bool
}

// Option 客户端可选项
type Option func(*Client)

// WithCodec 设置线格式，需与服务器一致
func WithCodec(c codec.Codec) Option {
	return func(cl *Client) { cl.codec = c }
}

// WithLogger 设置日志
func WithLogger(log *zap.Logger) Option {
	return func(cl *Client) { cl.log = logger.OrNop(log) }
}

// NewClient 创建客户端
func NewClient(serverURL string, opts ...Option) *Client {
	c := &Client{
		ServerURL: serverURL,
		codec:     codec.JSON,
		log:       zap.NewNop(),
		send:      make(chan []byte, bufferSize),
		receive:   make(chan *protocol.Message, bufferSize),
		done:      make(chan struct{}),
	}
	c.playerID.Store("")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect 连接服务器并启动读写协程
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.ServerURL, nil)
	if err != nil {
		return err
	}
	c.conn = conn

	go c.readPump()
	go c.writePump()
	return nil
}

// readPump 从服务器读取消息
func (c *Client) readPump() {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(c.log, r)
		}
		c.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("读取错误", zap.Error(err))
			}
			return
		}

		msg, err := c.codec.Decode(data)
		if err != nil {
			c.log.Debug("消息解析错误", zap.Error(err))
			continue
		}

		switch msg.Type {
		case protocol.MsgConnected:
			if payload, err := protocol.ParsePayload[protocol.ConnectedPayload](msg); err == nil {
				c.playerID.Store(payload.PlayerID)
			}
		case protocol.MsgPong:
			if payload, err := protocol.ParsePayload[protocol.PongPayload](msg); err == nil {
				c.latency.Store(time.Now().UnixMilli() - payload.ClientTimestamp)
			}
		}

		select {
		case c.receive <- msg:
		case <-c.done:
			return
		default:
			c.dropped.Add(1)
			c.log.Debug("接收队列已满，丢弃消息", zap.String("type", string(msg.Type)))
		}
	}
}

// writePump 向服务器写入消息
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	frameType := c.codec.FrameType()
	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(frameType, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// SendMessage 发送消息
func (c *Client) SendMessage(msg *protocol.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}

	data, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Receive 阻塞接收消息，直到 ctx 取消或连接关闭
func (c *Client) Receive(ctx context.Context) (*protocol.Message, error) {
	select {
	case msg := <-c.receive:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// ReceiveWithTimeout 带超时接收消息
func (c *Client) ReceiveWithTimeout(timeout time.Duration) (*protocol.Message, error) {
	select {
	case msg := <-c.receive:
		return msg, nil
	case <-time.After(timeout):
		return nil, ErrTimeout
	case <-c.done:
		return nil, ErrClosed
	}
}

// WaitFor 丢弃其他消息，直到收到指定类型
func (c *Client) WaitFor(ctx context.Context, msgType protocol.MessageType) (*protocol.Message, error) {
	for {
		msg, err := c.Receive(ctx)
		if err != nil {
			return nil, err
		}
		if msg.Type == msgType {
			return msg, nil
		}
	}
}

// Close 关闭连接，可重复调用
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// Done 连接关闭后返回的 channel 被关闭
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// IsConnected 是否已连接
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed && c.conn != nil
}

// PlayerID 服务器分配的 ID，收到 connected 之前为空
func (c *Client) PlayerID() string {
	return c.playerID.Load().(string)
}

// Latency 最近一次心跳往返延迟（毫秒）
func (c *Client) Latency() int64 {
	return c.latency.Load()
}

// Dropped 因接收队列满被丢弃的消息数
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}
