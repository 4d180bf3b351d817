package client

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/palemoky/geoquiz/internal/game/round/catalogue"
	"github.com/palemoky/geoquiz/internal/geo"
	"github.com/palemoky/geoquiz/internal/network/protocol"
)

// BotConfig 机器人行为
type BotConfig struct {
	Name       string        // 为空时使用服务器生成的昵称
	MaxErrorKm float64       // 猜测点与真实位置的最大偏差
	MaxDelay   time.Duration // 收到题目后最多等待多久作答
}

// Bot 自动作答的无界面玩家，用于压测和演示
type Bot struct {
	client *Client
	cfg    BotConfig
	cities map[string]catalogue.City
	rng    *rand.Rand
	log    *zap.Logger
}

// NewBot 创建机器人，cities 用于查找题目城市的坐标
func NewBot(c *Client, cities []catalogue.City, cfg BotConfig, rng *rand.Rand) *Bot {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	known := make(map[string]catalogue.City, len(cities))
	for _, city := range cities {
		known[cityKey(city.Name, city.Country)] = city
	}
	return &Bot{client: c, cfg: cfg, cities: known, rng: rng, log: c.log}
}

func cityKey(name, country string) string {
	return strings.ToLower(name) + "|" + strings.ToLower(country)
}

// Run 加入游戏并在每回合作答，直到 ctx 取消或连接断开
func (b *Bot) Run(ctx context.Context) error {
	if err := b.client.JoinGame(b.cfg.Name); err != nil {
		return err
	}

	for {
		msg, err := b.client.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		switch msg.Type {
		case protocol.MsgColorInform:
			if p, err := protocol.ParsePayload[protocol.ColorInformPayload](msg); err == nil {
				b.log.Info("🤖 已加入游戏", zap.String("player_id", b.client.PlayerID()), zap.String("color", p.Color))
			}
		case protocol.MsgNewTurn:
			p, err := protocol.ParsePayload[protocol.NewTurnPayload](msg)
			if err != nil {
				continue
			}
			lat, lng := b.Guess(p.City, p.Country)
			if !b.wait(ctx) {
				return nil
			}
			if err := b.client.Answer(lat, lng); err != nil {
				return err
			}
		case protocol.MsgPlayerResults:
			if p, err := protocol.ParsePayload[protocol.PlayerResultsPayload](msg); err == nil {
				b.log.Debug("回合成绩", zap.Int("rank", p.Rank), zap.Int("total", p.Total),
					zap.Float64("distance", p.Distance), zap.Int("score", p.Score))
			}
		case protocol.MsgError:
			if p, err := protocol.ParsePayload[protocol.ErrorPayload](msg); err == nil {
				b.log.Warn("服务器返回错误", zap.Int("code", p.Code), zap.String("message", p.Message))
			}
		}
	}
}

// Guess 已知城市在真实位置附近随机偏移，未知城市随机猜一个点
func (b *Bot) Guess(name, country string) (float64, float64) {
	city, ok := b.cities[cityKey(name, country)]
	if !ok {
		return b.rng.Float64()*180 - 90, b.rng.Float64()*360 - 180
	}
	if b.cfg.MaxErrorKm <= 0 {
		return city.Lat, city.Lng
	}
	return geo.Destination(city.Lat, city.Lng, b.rng.Float64()*360, b.rng.Float64()*b.cfg.MaxErrorKm)
}

func (b *Bot) wait(ctx context.Context) bool {
	if b.cfg.MaxDelay <= 0 {
		return true
	}
	timer := time.NewTimer(time.Duration(b.rng.Int64N(int64(b.cfg.MaxDelay))))
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
