package client

import (
	"time"

	"github.com/palemoky/geoquiz/internal/network/protocol"
)

// --- 便捷方法 ---

// JoinGame 加入游戏，name 为空时服务器使用随机昵称
func (c *Client) JoinGame(name string) error {
	return c.SendMessage(protocol.MustNewMessage(protocol.MsgJoinGame, protocol.JoinGamePayload{
		PlayerName: name,
	}))
}

// Answer 提交答案
func (c *Client) Answer(lat, lng float64) error {
	return c.SendMessage(protocol.MustNewMessage(protocol.MsgAnswer, protocol.AnswerPayload{
		Lat: lat,
		Lng: lng,
	}))
}

// Ping 发送心跳
func (c *Client) Ping() error {
	return c.SendMessage(protocol.MustNewMessage(protocol.MsgPing, protocol.PingPayload{
		Timestamp: time.Now().UnixMilli(),
	}))
}
