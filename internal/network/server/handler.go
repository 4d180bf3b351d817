package server

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/palemoky/geoquiz/internal/apperrors"
	"github.com/palemoky/geoquiz/internal/network/protocol"
	"github.com/palemoky/geoquiz/internal/network/server/types"
)

// Handler 消息处理器
type Handler struct {
	players types.PlayerRegistry
	log     *zap.Logger
}

// NewHandler 创建处理器
func NewHandler(players types.PlayerRegistry, log *zap.Logger) *Handler {
	return &Handler{players: players, log: log}
}

// Handle 处理消息
func (h *Handler) Handle(client types.ClientInterface, msg *protocol.Message) {
	switch msg.Type {
	case protocol.MsgPing:
		h.handlePing(client, msg)
	case protocol.MsgJoinGame:
		h.handleJoinGame(client, msg)
	case protocol.MsgAnswer:
		h.handleAnswer(client, msg)
	default:
		h.log.Debug("未知消息类型", zap.String("type", string(msg.Type)), zap.String("client_id", client.GetID()))
		h.reply(client, protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
	}
}

// handlePing 处理心跳消息
func (h *Handler) handlePing(client types.ClientInterface, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.PingPayload](msg)
	if err != nil {
		h.reply(client, protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}
	h.reply(client, protocol.MustNewMessage(protocol.MsgPong, protocol.PongPayload{
		ClientTimestamp: payload.Timestamp,
		ServerTimestamp: time.Now().UnixMilli(),
	}))
}

// handleJoinGame 玩家加入游戏，名字为空时沿用连接时生成的昵称
func (h *Handler) handleJoinGame(client types.ClientInterface, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.JoinGamePayload](msg)
	if err != nil {
		h.reply(client, protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	name := strings.TrimSpace(payload.PlayerName)
	if name == "" {
		name = client.GetName()
	}
	color, err := h.players.AddPlayer(client.GetID(), name)
	if err != nil {
		h.reply(client, apperrors.ToMessage(err))
		return
	}
	client.SetName(name)

	h.log.Info("玩家加入游戏", zap.String("client_id", client.GetID()), zap.String("name", name), zap.String("color", color))
	h.reply(client, protocol.MustNewMessage(protocol.MsgColorInform, protocol.ColorInformPayload{Color: color}))
}

// handleAnswer 提交答案
func (h *Handler) handleAnswer(client types.ClientInterface, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.AnswerPayload](msg)
	if err != nil {
		h.reply(client, protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}
	if err := h.players.SubmitAnswer(client.GetID(), payload.Lat, payload.Lng); err != nil {
		h.reply(client, apperrors.ToMessage(err))
	}
}

func (h *Handler) reply(client types.ClientInterface, msg *protocol.Message) {
	if err := client.SendMessage(msg); err != nil {
		h.log.Debug("回复失败", zap.String("client_id", client.GetID()), zap.Error(err))
	}
}
