package protocol

import "encoding/json"

// Message 基础消息结构
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageType 消息类型
type MessageType string

// 客户端 → 服务端 消息类型
const (
	MsgPing     MessageType = "ping"      // 心跳 ping
	MsgJoinGame MessageType = "join_game" // 加入游戏
	MsgAnswer   MessageType = "answer"    // 提交答案
)

// 服务端 → 客户端 消息类型
const (
	// 连接相关
	MsgConnected   MessageType = "connected"    // 连接成功
	MsgPong        MessageType = "pong"         // 心跳 pong
	MsgColorInform MessageType = "color_inform" // 告知玩家标记颜色

	// 回合流程
	MsgNewTurn       MessageType = "new_turn"           // 新回合开始
	MsgEndOfTurn     MessageType = "end_of_turn"        // 回合结束，公布答案
	MsgPlayerResults MessageType = "player_results"     // 个人成绩（单发）
	MsgLeaderboard   MessageType = "leaderboard_update" // 排行榜（单发）
	MsgLegendChanges MessageType = "legend_changes"     // 图例变化

	// 错误
	MsgError MessageType = "error" // 错误消息
)

// --- 客户端请求 Payloads ---

// PingPayload 心跳请求
type PingPayload struct {
	Timestamp int64 `json:"timestamp"` // 客户端时间戳（毫秒）
}

// JoinGamePayload 加入游戏请求
type JoinGamePayload struct {
	PlayerName string `json:"player_name"`
}

// AnswerPayload 提交答案请求
type AnswerPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// --- 服务端响应 Payloads ---

// ConnectedPayload 连接成功响应，附带客户端需要的游戏设置
type ConnectedPayload struct {
	PlayerID            string `json:"player_id"`
	MaxResponseTime     int    `json:"max_response_time"`  // 秒
	TimeBetweenTurns    int    `json:"time_between_turns"` // 秒
	ZoomLevel           int    `json:"zoom_level"`
	CDNURL              string `json:"cdn_url"`
	AllowMultipleAnswer bool   `json:"allow_multiple_answer"`
}

// PongPayload 心跳响应
type PongPayload struct {
	ClientTimestamp int64 `json:"client_timestamp"` // 客户端发送的时间戳
	ServerTimestamp int64 `json:"server_timestamp"` // 服务器时间戳（毫秒）
}

// ColorInformPayload 玩家标记颜色
type ColorInformPayload struct {
	Color string `json:"color"`
}

// NewTurnPayload 新回合通知，只包含目标名称，不泄露坐标
type NewTurnPayload struct {
	City        string `json:"city"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
}

// EndOfTurnPayload 回合结束通知
type EndOfTurnPayload struct {
	CorrectAnswer CorrectAnswer `json:"correct_answer"`
	BestAnswer    *AnswerInfo   `json:"best_answer,omitempty"`   // 至少一人作答时存在
	OtherAnswers  []AnswerInfo  `json:"other_answers,omitempty"` // 至少两人作答时存在
}

// CorrectAnswer 正确答案
type CorrectAnswer struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// AnswerInfo 玩家答案
type AnswerInfo struct {
	SID      string  `json:"sid"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"` // 公里
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Color    string  `json:"color,omitempty"` // 作答人数不超过 6 时才有
}

// PlayerResultsPayload 个人回合成绩
type PlayerResultsPayload struct {
	Rank     int     `json:"rank"`  // 从 1 开始
	Total    int     `json:"total"` // 本回合作答人数
	Distance float64 `json:"distance"`
	Score    int     `json:"score"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// LeaderboardUpdatePayload 排行榜更新
type LeaderboardUpdatePayload struct {
	TopTen      []LeaderboardEntry `json:"top_ten"`
	TotalPlayer int                `json:"total_player"`
	PlayerRank  int                `json:"player_rank"` // 从 0 开始
	PlayerScore int                `json:"player_score"`
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	PlayerName string `json:"player_name"`
	Score      int    `json:"score"`
}

// LegendChangesPayload 图例，键为从 1 开始的槽位
type LegendChangesPayload map[int]LegendSlot

// LegendSlot 图例槽位
type LegendSlot struct {
	PlayerName string `json:"player_name"`
	Color      string `json:"color"`
}

// ErrorPayload 错误响应
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
