package round

import (
	"errors"

	"github.com/palemoky/geoquiz/internal/game/round/catalogue"
)

// NoColor 未分配到颜色的玩家使用的标记颜色
const NoColor = "grey"

// Palette 可分配的标记颜色，最多同时分配给 6 名玩家
var Palette = []string{"blue", "green", "orange", "yellow", "violet", "black"}

var (
	// ErrTurnStillOpen 上一回合尚未结束就开始新回合
	ErrTurnStillOpen = errors.New("round: previous turn still open")
	// ErrUnknownTurn 查询的回合不是最近结束的回合
	ErrUnknownTurn = errors.New("round: turn not available")
	// ErrNoResult 玩家在该回合没有成绩
	ErrNoResult = errors.New("round: no result for player")
)

// Config 回合状态配置
type Config struct {
	ScoreMaxDistance       float64 // 公里
	MaxScore               int
	LeaderboardAnswerCount int // 排行榜统计的最近成绩数
	AllowMultipleAnswer    bool
}

// Target 回合目标
type Target = catalogue.City

// PlayerInfo 玩家公开信息
type PlayerInfo struct {
	ID    string
	Name  string
	Color string
}

// Answer 玩家答案，Seq 为提交顺序，用于并列时排序
type Answer struct {
	Lat float64
	Lng float64
	Seq uint64
}

// Result 玩家某回合的成绩
type Result struct {
	Distance float64
	Score    int
}

// Score 排行榜上的玩家累计得分
type Score struct {
	Player PlayerInfo
	Score  int
}

// LegendEntry 图例条目，按颜色分配顺序排列
type LegendEntry struct {
	PlayerName string
	Color      string
}
