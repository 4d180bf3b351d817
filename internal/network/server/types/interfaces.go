package types

import (
	"context"

	"github.com/palemoky/geoquiz/internal/game/round"
	"github.com/palemoky/geoquiz/internal/network/protocol"
)

// Broadcaster 广播通道接口 - 避免 game 包依赖 server 包
type Broadcaster interface {
	// Broadcast 发送给所有已连接的客户端
	Broadcast(msg *protocol.Message)
	// SendTo 只发送给指定玩家
	SendTo(playerID string, msg *protocol.Message) error
}

// RoundState 回合编排器读取/驱动的回合状态
type RoundState interface {
	StartNewTurn() (int, error)
	CurrentTarget() round.Target
	EndCurrentTurn() error
	RankedPlayersForTurn(turn int) ([]round.PlayerInfo, error)
	ResultFor(playerID string, turn int) (round.Result, error)
	AnswerFor(playerID string, turn int) (round.Answer, error)
	RankedScores() []round.Score
	DrainLegend() ([]round.LegendEntry, bool)
}

// PlayerRegistry 连接层对回合状态的写操作
type PlayerRegistry interface {
	AddPlayer(id, name string) (string, error)
	RemovePlayer(id string) bool
	SubmitAnswer(id string, lat, lng float64) error
}

// LeaderboardSink 排行榜发布后的外部镜像
type LeaderboardSink interface {
	Record(ctx context.Context, turn int, scores []round.Score) error
}

// ClientInterface 客户端接口
type ClientInterface interface {
	GetID() string
	GetName() string
	SetName(name string)
	SendMessage(msg *protocol.Message) error
	Close()
}
