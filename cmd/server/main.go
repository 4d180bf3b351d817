package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/palemoky/geoquiz/internal/config"
	"github.com/palemoky/geoquiz/internal/game/round"
	"github.com/palemoky/geoquiz/internal/game/round/catalogue"
	"github.com/palemoky/geoquiz/internal/logger"
	"github.com/palemoky/geoquiz/internal/network/server"
	"github.com/palemoky/geoquiz/internal/network/server/game"
	"github.com/palemoky/geoquiz/internal/network/server/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("服务器异常退出: %v", err)
	}
}

func run(ctx context.Context, configPath string) error {
	// .env 可选
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("加载 .env 失败: %w", err)
	}

	cfg, fallback, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = zlog.Sync() }()
	if fallback {
		zlog.Warn("配置文件不存在，使用默认配置", zap.String("path", configPath))
	}

	// --- 回合状态 ---
	cities, err := catalogue.Load(cfg.Game.CataloguePath)
	if err != nil {
		return fmt.Errorf("加载城市列表失败: %w", err)
	}
	picker, err := catalogue.NewPicker(cities, nil)
	if err != nil {
		return err
	}
	state := round.NewGame(round.Config{
		ScoreMaxDistance:       cfg.Game.ScoreMaxDistance,
		MaxScore:               cfg.Game.MaxScore,
		LeaderboardAnswerCount: cfg.Game.LeaderboardAnswerCount,
		AllowMultipleAnswer:    cfg.Game.MultipleAnswerAllowed(),
	}, picker)
	zlog.Info("🌍 城市列表已加载", zap.Int("cities", picker.Len()))

	serverOpts := []server.Option{server.WithLogger(zlog)}
	masterOpts := []game.Option{game.WithLogger(zlog.Named("master"))}

	// --- Redis（可选）---
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// 镜像失败不影响游戏
			zlog.Warn("redis 连接失败，排行榜镜像暂不可用", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}

		session := uuid.NewString()
		mirror := storage.NewLeaderboardMirror(rdb, session, cfg.Redis.TTLDuration())
		serverOpts = append(serverOpts, server.WithHealthCheck(mirror))
		masterOpts = append(masterOpts, game.WithLeaderboardSink(mirror))
		zlog.Info("🗄️ 排行榜镜像已启用", zap.String("key", mirror.LeaderboardKey()))
	}

	srv, err := server.NewServer(cfg, state, serverOpts...)
	if err != nil {
		return fmt.Errorf("创建服务器失败: %w", err)
	}
	master := game.NewGameMaster(state, srv,
		cfg.Game.MaxResponseTimeDuration(),
		cfg.Game.TimeBetweenTurnsDuration(),
		masterOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		return master.Run(gctx)
	})

	zlog.Info("🎮 猜城市服务器启动中...", zap.String("addr", cfg.Server.Addr()))
	if err := g.Wait(); err != nil {
		return err
	}
	zlog.Info("👋 已退出")
	return nil
}
