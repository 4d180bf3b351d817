// Package game drives the turn lifecycle: it opens a turn, waits for answers,
// closes and ranks it, then publishes results, the leaderboard and the legend.
package game

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/palemoky/geoquiz/internal/game/round"
	"github.com/palemoky/geoquiz/internal/logger"
	"github.com/palemoky/geoquiz/internal/network/protocol"
	"github.com/palemoky/geoquiz/internal/network/server/types"
)

var (
	// ErrAlreadyStarted 回合循环已经启动
	ErrAlreadyStarted = errors.New("game master already started")
	// ErrInconsistentTurn 回合状态与预期不符，本回合作废但循环继续
	ErrInconsistentTurn = errors.New("inconsistent turn state")
)

// GameMaster 回合编排器，整个进程只运行一个回合循环
type GameMaster struct {
	state types.RoundState
	out   types.Broadcaster
	sink  types.LeaderboardSink
	log   *zap.Logger

	answerWindow time.Duration
	pause        time.Duration

	started  atomic.Bool
	done     chan struct{}
	lastTurn int
}

// Option 编排器可选项
type Option func(*GameMaster)

// WithLogger 设置日志
func WithLogger(log *zap.Logger) Option {
	return func(gm *GameMaster) { gm.log = logger.OrNop(log) }
}

// WithLeaderboardSink 每次发布排行榜后同步到外部存储
func WithLeaderboardSink(sink types.LeaderboardSink) Option {
	return func(gm *GameMaster) { gm.sink = sink }
}

// NewGameMaster 创建回合编排器
func NewGameMaster(state types.RoundState, out types.Broadcaster, answerWindow, pause time.Duration, opts ...Option) *GameMaster {
	gm := &GameMaster{
		state:        state,
		out:          out,
		log:          zap.NewNop(),
		answerWindow: answerWindow,
		pause:        pause,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(gm)
	}
	return gm
}

// Start 在后台启动回合循环，重复调用返回 ErrAlreadyStarted
func (gm *GameMaster) Start(ctx context.Context) error {
	if !gm.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go gm.loop(ctx)
	return nil
}

// Run 在当前 goroutine 运行回合循环，直到 ctx 取消
func (gm *GameMaster) Run(ctx context.Context) error {
	if !gm.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	gm.loop(ctx)
	return nil
}

// Done 回合循环退出后关闭
func (gm *GameMaster) Done() <-chan struct{} {
	return gm.done
}

func (gm *GameMaster) loop(ctx context.Context) {
	defer close(gm.done)
	gm.log.Info("🎮 回合循环已启动",
		zap.Duration("answer_window", gm.answerWindow),
		zap.Duration("pause", gm.pause))

	for ctx.Err() == nil {
		started := gm.guard("start_turn", func() error {
			turn, err := gm.startTurn()
			if err != nil {
				return err
			}
			gm.lastTurn = turn
			return nil
		})
		if !sleep(ctx, gm.answerWindow) {
			break
		}

		if started {
			gm.guard("end_turn", func() error { return gm.endTurn(gm.lastTurn) })
		}
		gm.guard("leaderboard", func() error { return gm.publishLeaderboard(ctx, gm.lastTurn) })
		gm.guard("legend", func() error { gm.publishLegend(); return nil })

		if !sleep(ctx, gm.pause) {
			break
		}
	}
	gm.log.Info("🛑 回合循环已停止", zap.Int("last_turn", gm.lastTurn))
}

// guard 执行一个阶段，出错或 panic 只影响当前阶段
func (gm *GameMaster) guard(phase string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(gm.log.With(zap.String("phase", phase)), r)
			ok = false
		}
	}()
	if err := fn(); err != nil {
		gm.log.Error("回合阶段失败", zap.String("phase", phase), zap.Int("turn", gm.lastTurn), zap.Error(err))
		return false
	}
	return true
}

// startTurn 开始新回合并广播目标
func (gm *GameMaster) startTurn() (int, error) {
	turn, err := gm.state.StartNewTurn()
	if errors.Is(err, round.ErrTurnStillOpen) {
		gm.log.Error("上一回合未结束，强制结束", zap.Int("turn", turn))
		if endErr := gm.state.EndCurrentTurn(); endErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrInconsistentTurn, endErr)
		}
		turn, err = gm.state.StartNewTurn()
	}
	if err != nil {
		return 0, fmt.Errorf("开始回合失败: %w", err)
	}
	if gm.lastTurn > 0 && turn != gm.lastTurn+1 {
		gm.log.Error("回合号不连续",
			zap.Int("previous", gm.lastTurn),
			zap.Int("turn", turn),
			zap.Error(ErrInconsistentTurn))
	}

	target := gm.state.CurrentTarget()
	gm.log.Debug("开始新回合", zap.Int("turn", turn), zap.String("city", target.Name))
	gm.out.Broadcast(protocol.MustNewMessage(protocol.MsgNewTurn, BuildNewTurn(target)))
	return turn, nil
}

// endTurn 结束回合，广播答案并单独发送个人成绩
func (gm *GameMaster) endTurn(turn int) error {
	gm.log.Debug("结束回合", zap.Int("turn", turn))

	if err := gm.state.EndCurrentTurn(); err != nil {
		return fmt.Errorf("%w: 结束回合 %d: %v", ErrInconsistentTurn, turn, err)
	}
	players, err := gm.state.RankedPlayersForTurn(turn)
	if err != nil {
		return fmt.Errorf("%w: 读取回合 %d 排名: %v", ErrInconsistentTurn, turn, err)
	}

	ranked := make([]RankedAnswer, 0, len(players))
	for _, p := range players {
		result, resErr := gm.state.ResultFor(p.ID, turn)
		answer, ansErr := gm.state.AnswerFor(p.ID, turn)
		if err := errors.Join(resErr, ansErr); err != nil {
			gm.log.Error("排名中的玩家缺少成绩",
				zap.String("player_id", p.ID),
				zap.Int("turn", turn),
				zap.Error(errors.Join(ErrInconsistentTurn, err)))
			continue
		}
		ranked = append(ranked, RankedAnswer{Player: p, Result: result, Answer: answer})
	}

	target := gm.state.CurrentTarget()
	gm.out.Broadcast(protocol.MustNewMessage(protocol.MsgEndOfTurn, BuildEndOfTurn(target, ranked)))

	for i, payload := range BuildPlayerResults(ranked) {
		gm.sendTo(ranked[i].Player.ID, protocol.MustNewMessage(protocol.MsgPlayerResults, payload))
	}
	return nil
}

// publishLeaderboard 给每个有成绩的玩家单独发送排行榜
func (gm *GameMaster) publishLeaderboard(ctx context.Context, turn int) error {
	scores := gm.state.RankedScores()
	gm.log.Debug("更新排行榜", zap.Int("turn", turn), zap.Int("players", len(scores)))

	for _, update := range BuildLeaderboard(scores) {
		gm.sendTo(update.PlayerID, protocol.MustNewMessage(protocol.MsgLeaderboard, update.Payload))
	}

	if gm.sink != nil {
		if err := gm.sink.Record(ctx, turn, scores); err != nil {
			gm.log.Warn("同步排行榜失败", zap.Int("turn", turn), zap.Error(err))
		}
	}
	return nil
}

// publishLegend 图例有变化时广播
func (gm *GameMaster) publishLegend() {
	entries, changed := gm.state.DrainLegend()
	if !changed {
		return
	}
	gm.log.Debug("更新图例", zap.Int("slots", len(entries)))
	gm.out.Broadcast(protocol.MustNewMessage(protocol.MsgLegendChanges, BuildLegend(entries)))
}

// sendTo 单发消息，失败只记录，不影响其他玩家
func (gm *GameMaster) sendTo(playerID string, msg *protocol.Message) {
	if err := gm.out.SendTo(playerID, msg); err != nil {
		gm.log.Warn("单发消息失败",
			zap.String("player_id", playerID),
			zap.String("type", string(msg.Type)),
			zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
