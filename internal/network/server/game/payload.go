package game

import (
	"github.com/palemoky/geoquiz/internal/game/round"
	"github.com/palemoky/geoquiz/internal/network/protocol"
)

const (
	// TopTenSize 排行榜公开的条目数
	TopTenSize = 10
	// ColorAnswerLimit 作答人数不超过该值时才给其他答案标注颜色
	ColorAnswerLimit = 6
)

// RankedAnswer 已结束回合中一名作答玩家的排名数据，按名次排列
type RankedAnswer struct {
	Player round.PlayerInfo
	Result round.Result
	Answer round.Answer
}

// AddressedLeaderboard 发给单个玩家的排行榜
type AddressedLeaderboard struct {
	PlayerID string
	Payload  protocol.LeaderboardUpdatePayload
}

// BuildNewTurn 构建新回合通知，不包含坐标
func BuildNewTurn(target round.Target) protocol.NewTurnPayload {
	return protocol.NewTurnPayload{
		City:        target.Name,
		Country:     target.Country,
		CountryCode: target.CountryCode,
	}
}

// BuildEndOfTurn 构建回合结束通知。
// 无人作答时只有正确答案；一人作答时没有 other_answers。
func BuildEndOfTurn(target round.Target, ranked []RankedAnswer) protocol.EndOfTurnPayload {
	payload := protocol.EndOfTurnPayload{
		CorrectAnswer: protocol.CorrectAnswer{
			Name: target.Name,
			Lat:  target.Lat,
			Lng:  target.Lng,
		},
	}
	if len(ranked) == 0 {
		return payload
	}

	best := answerInfo(ranked[0])
	payload.BestAnswer = &best

	if len(ranked) == 1 {
		return payload
	}

	withColor := len(ranked) <= ColorAnswerLimit
	payload.OtherAnswers = make([]protocol.AnswerInfo, 0, len(ranked)-1)
	for _, ra := range ranked[1:] {
		info := answerInfo(ra)
		if withColor {
			info.Color = ra.Player.Color
		}
		payload.OtherAnswers = append(payload.OtherAnswers, info)
	}
	return payload
}

func answerInfo(ra RankedAnswer) protocol.AnswerInfo {
	return protocol.AnswerInfo{
		SID:      ra.Player.ID,
		Name:     ra.Player.Name,
		Distance: ra.Result.Distance,
		Lat:      ra.Answer.Lat,
		Lng:      ra.Answer.Lng,
	}
}

// BuildPlayerResults 构建每名作答玩家的个人成绩，顺序与 ranked 一致
func BuildPlayerResults(ranked []RankedAnswer) []protocol.PlayerResultsPayload {
	results := make([]protocol.PlayerResultsPayload, len(ranked))
	for i, ra := range ranked {
		results[i] = protocol.PlayerResultsPayload{
			Rank:     i + 1,
			Total:    len(ranked),
			Distance: ra.Result.Distance,
			Score:    ra.Result.Score,
			Lat:      ra.Answer.Lat,
			Lng:      ra.Answer.Lng,
		}
	}
	return results
}

// BuildLeaderboard 为每个有成绩的玩家构建排行榜。
// 所有玩家共享同一份前十名和总人数，只有名次与得分不同。
func BuildLeaderboard(scores []round.Score) []AddressedLeaderboard {
	top := len(scores)
	if top > TopTenSize {
		top = TopTenSize
	}
	topTen := make([]protocol.LeaderboardEntry, top)
	for i, s := range scores[:top] {
		topTen[i] = protocol.LeaderboardEntry{PlayerName: s.Player.Name, Score: s.Score}
	}

	updates := make([]AddressedLeaderboard, len(scores))
	for rank, s := range scores {
		updates[rank] = AddressedLeaderboard{
			PlayerID: s.Player.ID,
			Payload: protocol.LeaderboardUpdatePayload{
				TopTen:      topTen,
				TotalPlayer: len(scores),
				PlayerRank:  rank,
				PlayerScore: s.Score,
			},
		}
	}
	return updates
}

// BuildLegend 构建图例，槽位从 1 开始
func BuildLegend(entries []round.LegendEntry) protocol.LegendChangesPayload {
	legend := make(protocol.LegendChangesPayload, len(entries))
	for i, e := range entries {
		legend[i+1] = protocol.LegendSlot{PlayerName: e.PlayerName, Color: e.Color}
	}
	return legend
}
