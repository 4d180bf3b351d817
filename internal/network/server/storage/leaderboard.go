package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/palemoky/geoquiz/internal/game/round"
)

const keyPrefix = "geoquiz:"

// LeaderboardMirror 把每次发布的排行榜镜像到 Redis，供外部查看。
// 只写不读，进程重启后不会恢复。
type LeaderboardMirror struct {
	redis   *redis.Client
	session string
	ttl     time.Duration
}

// NewLeaderboardMirror 创建排行榜镜像，session 区分同一 Redis 上的不同进程
func NewLeaderboardMirror(client *redis.Client, session string, ttl time.Duration) *LeaderboardMirror {
	return &LeaderboardMirror{redis: client, session: session, ttl: ttl}
}

// LeaderboardKey 排行榜 ZSET，成员为玩家 ID
func (m *LeaderboardMirror) LeaderboardKey() string {
	return keyPrefix + m.session + ":leaderboard"
}

// NamesKey 玩家 ID → 昵称
func (m *LeaderboardMirror) NamesKey() string {
	return keyPrefix + m.session + ":names"
}

// TurnKey 最近结束的回合号
func (m *LeaderboardMirror) TurnKey() string {
	return keyPrefix + m.session + ":turn"
}

// Record 用当前排行榜整体替换镜像
func (m *LeaderboardMirror) Record(ctx context.Context, turn int, scores []round.Score) error {
	board, names, turnKey := m.LeaderboardKey(), m.NamesKey(), m.TurnKey()

	_, err := m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, board, names)
		if len(scores) > 0 {
			members := make([]redis.Z, len(scores))
			fields := make(map[string]any, len(scores))
			for i, s := range scores {
				members[i] = redis.Z{Score: float64(s.Score), Member: s.Player.ID}
				fields[s.Player.ID] = s.Player.Name
			}
			pipe.ZAdd(ctx, board, members...)
			pipe.HSet(ctx, names, fields)
			pipe.Expire(ctx, board, m.ttl)
			pipe.Expire(ctx, names, m.ttl)
		}
		pipe.Set(ctx, turnKey, strconv.Itoa(turn), m.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("同步排行榜到 redis 失败: %w", err)
	}
	return nil
}

// Ping 检查 Redis 是否可用
func (m *LeaderboardMirror) Ping(ctx context.Context) error {
	if m == nil {
		return errors.New("leaderboard mirror disabled")
	}
	return m.redis.Ping(ctx).Err()
}
