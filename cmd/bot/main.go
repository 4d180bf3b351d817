package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/palemoky/geoquiz/internal/game/round/catalogue"
	"github.com/palemoky/geoquiz/internal/logger"
	"github.com/palemoky/geoquiz/internal/network/client"
	"github.com/palemoky/geoquiz/internal/network/protocol/codec"
)

func main() {
	serverAddr := flag.String("server", "localhost:1780", "服务器地址")
	count := flag.Int("bots", 3, "机器人数量")
	wireFormat := flag.String("wire", "json", "线格式: json 或 protobuf")
	maxErrorKm := flag.Float64("error-km", 800, "猜测最大偏差（公里）")
	maxDelay := flag.Duration("delay", 5*time.Second, "收到题目后最长作答延迟")
	cataloguePath := flag.String("catalogue", "", "城市列表，为空时使用内置列表")
	logLevel := flag.String("log-level", "info", "日志级别")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zlog, err := logger.New(*logLevel, true)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	wire, err := codec.ForFormat(*wireFormat)
	if err != nil {
		zlog.Fatal("线格式无效", zap.Error(err))
	}
	cities, err := catalogue.Load(*cataloguePath)
	if err != nil {
		zlog.Fatal("加载城市列表失败", zap.Error(err))
	}

	serverURL := fmt.Sprintf("ws://%s/ws", *serverAddr)
	g, gctx := errgroup.WithContext(ctx)
	for i := range *count {
		name := fmt.Sprintf("bot-%02d", i+1)
		g.Go(func() error {
			blog := zlog.With(zap.String("bot", name))
			c := client.NewClient(serverURL, client.WithCodec(wire), client.WithLogger(blog))
			if err := c.Connect(gctx); err != nil {
				return fmt.Errorf("%s 连接失败: %w", name, err)
			}
			defer c.Close()

			bot := client.NewBot(c, cities, client.BotConfig{
				Name:       name,
				MaxErrorKm: *maxErrorKm,
				MaxDelay:   *maxDelay,
			}, nil)
			return bot.Run(gctx)
		})
	}

	zlog.Info("🤖 机器人已启动", zap.Int("bots", *count), zap.String("server", serverURL))
	if err := g.Wait(); err != nil {
		zlog.Error("机器人退出", zap.Error(err))
	}
}
