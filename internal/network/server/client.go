package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/palemoky/geoquiz/internal/network/protocol"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// 读取超时（pong 等待时间）
	pongWait = 60 * time.Second

	// ping 发送间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 消息最大大小
	maxMessageSize = 4096

	// 发送队列长度
	sendBufferSize = 256
)

var (
	// ErrClientNotFound 没有该玩家的连接
	ErrClientNotFound = errors.New("client not found")
	// ErrClientClosed 连接已关闭
	ErrClientClosed = errors.New("client closed")
	// ErrSendBufferFull 发送队列已满，连接会被关闭
	ErrSendBufferFull = errors.New("client send buffer full")
)

// Client 代表一个连接的玩家。
// 所有出站消息经同一个队列由 WritePump 顺序写出。
type Client struct {
	ID string // 连接 ID，也是发给其他玩家的 sid
	IP string // 客户端 IP 地址

	server *Server
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.RWMutex
	name   string
	closed bool
}

// NewClient 创建新客户端
func NewClient(s *Server, conn *websocket.Conn) *Client {
	return &Client{
		ID:     uuid.NewString(),
		name:   GenerateNickname(),
		server: s,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

// GetID 返回连接 ID
func (c *Client) GetID() string { return c.ID }

// GetName 返回玩家昵称
func (c *Client) GetName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// SetName 设置玩家昵称
func (c *Client) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

// ReadPump 从 WebSocket 读取消息
func (c *Client) ReadPump() {
	log := c.server.log
	defer func() {
		c.server.unregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("读取错误", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}

		allowed, warning := c.server.messageLimiter.AllowMessage(c.ID)
		if !allowed {
			log.Warn("⚠️ 客户端消息过于频繁", zap.String("client_id", c.ID), zap.String("ip", c.IP))
			_ = c.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeRateLimit))
			if c.server.messageLimiter.ShouldDisconnect(c.ID) {
				log.Warn("🚫 客户端多次超速，断开连接", zap.String("client_id", c.ID))
				c.server.banIP(c.IP)
				return
			}
			continue
		}
		if warning {
			_ = c.SendMessage(protocol.NewErrorMessageWithText(protocol.ErrCodeRateLimit, "slow down"))
		}

		msg, err := c.server.codec.Decode(data)
		if err != nil {
			log.Debug("消息解析错误", zap.String("client_id", c.ID), zap.Error(err))
			_ = c.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
			continue
		}

		c.server.handler.Handle(c, msg)
	}
}

// WritePump 向 WebSocket 写入消息
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	frameType := c.server.codec.FrameType()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 通道已关闭
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(frameType, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage 编码并发送消息
func (c *Client) SendMessage(msg *protocol.Message) error {
	data, err := c.server.codec.Encode(msg)
	if err != nil {
		return err
	}
	return c.sendRaw(data)
}

// sendRaw 把已编码的消息放入发送队列，队列满时关闭连接
func (c *Client) sendRaw(data []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		c.mu.RUnlock()
		return nil
	default:
	}
	c.mu.RUnlock()

	c.server.log.Warn("客户端发送缓冲区已满", zap.String("client_id", c.ID))
	c.Close()
	return ErrSendBufferFull
}

// Close 关闭发送队列，WritePump 随后关闭连接
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
