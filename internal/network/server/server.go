// Package server accepts WebSocket players, routes their messages to the round
// state and delivers everything the game master publishes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/palemoky/geoquiz/internal/config"
	"github.com/palemoky/geoquiz/internal/logger"
	"github.com/palemoky/geoquiz/internal/network/protocol"
	"github.com/palemoky/geoquiz/internal/network/protocol/codec"
	"github.com/palemoky/geoquiz/internal/network/server/types"
)

// HealthChecker 健康检查依赖，如 Redis 镜像
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server WebSocket 服务器，同时实现 types.Broadcaster
type Server struct {
	config  *config.Config
	log     *zap.Logger
	codec   codec.Codec
	players types.PlayerRegistry
	health  HealthChecker
	handler *Handler

	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 安全组件
	rateLimiter    *RateLimiter
	originChecker  *OriginChecker
	messageLimiter *MessageRateLimiter
	ipFilter       *IPFilter
	banDuration    time.Duration

	// 连接控制
	semaphore chan struct{}
	upgrader  websocket.Upgrader
	http      *http.Server
}

// Option 服务器可选项
type Option func(*Server)

// WithLogger 设置日志
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = logger.OrNop(log) }
}

// WithHealthCheck /health 额外检查的依赖
func WithHealthCheck(hc HealthChecker) Option {
	return func(s *Server) { s.health = hc }
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config, players types.PlayerRegistry, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}
	c, err := codec.ForFormat(cfg.Server.WireFormat)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:  cfg,
		log:     zap.NewNop(),
		codec:   c,
		players: players,
		clients: make(map[string]*Client),
		rateLimiter: NewRateLimiter(
			cfg.Security.RateLimit.MaxPerSecond,
			cfg.Security.RateLimit.MaxPerMinute,
			cfg.Security.RateLimit.BanDurationTime(),
		),
		originChecker:  NewOriginChecker(cfg.Security.AllowedOrigins),
		messageLimiter: NewMessageRateLimiter(cfg.Security.MessageLimit.MaxPerSecond),
		ipFilter:       NewIPFilter(cfg.Security.BlockedIPs...),
		banDuration:    cfg.Security.RateLimit.BanDurationTime(),
		semaphore:      make(chan struct{}, cfg.Server.MaxConnections),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = NewHandler(players, s.log)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.originChecker.Check,
	}

	s.log.Info("🔒 安全配置",
		zap.Int("connect_per_second", cfg.Security.RateLimit.MaxPerSecond),
		zap.Int("message_per_second", cfg.Security.MessageLimit.MaxPerSecond),
		zap.Int("max_connections", cfg.Server.MaxConnections),
		zap.String("wire_format", c.Name()))

	return s, nil
}

// Routes 返回 HTTP 路由
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(s.requestLogger)
		r.Get("/health", s.handleHealth)
		if dir := s.config.Server.StaticDir; dir != "" {
			r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
		}
	})
	return r
}

// Run 监听并服务，ctx 取消后关闭所有连接
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("监听 %s 失败: %w", addr, err)
	}

	s.http = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second, // 防止 Slowloris 攻击
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("🚀 服务器启动", zap.String("url", "ws://"+ln.Addr().String()+"/ws"))
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.closeAll()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = s.http.Shutdown(shutdownCtx)
	s.closeAll()
	s.log.Info("服务器已关闭")
	return err
}

// closeAll 关闭所有客户端连接和后台任务
func (s *Server) closeAll() {
	s.rateLimiter.Stop()

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, client := range s.clients {
		client.Close()
	}
}

// handleWebSocket 处理 WebSocket 连接
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := GetClientIP(r)
	log := s.log.With(zap.String("ip", clientIP))

	// 连接数限制检查
	select {
	case s.semaphore <- struct{}{}:
	default:
		log.Warn("🚫 达到最大连接数限制", zap.Int("max", cap(s.semaphore)))
		http.Error(w, "Server Full", http.StatusServiceUnavailable)
		return
	}
	release := func() { <-s.semaphore }

	if !s.ipFilter.IsAllowed(clientIP) {
		release()
		log.Warn("🚫 IP 被过滤器拒绝")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if !s.originChecker.Check(r) {
		release()
		log.Warn("🚫 来源验证失败", zap.String("origin", r.Header.Get("Origin")))
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	if !s.rateLimiter.Allow(clientIP) {
		release()
		log.Warn("🚫 请求过于频繁")
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		release()
		log.Warn("WebSocket 升级失败", zap.Error(err))
		return
	}

	client := NewClient(s, conn)
	client.IP = clientIP
	s.registerClient(client)

	game := &s.config.Game
	_ = client.SendMessage(protocol.MustNewMessage(protocol.MsgConnected, protocol.ConnectedPayload{
		PlayerID:            client.ID,
		MaxResponseTime:     game.MaxResponseTime,
		TimeBetweenTurns:    game.TimeBetweenTurns,
		ZoomLevel:           game.Zoom(),
		CDNURL:              game.CDNURL,
		AllowMultipleAnswer: game.MultipleAnswerAllowed(),
	}))

	log.Info("✅ 客户端已连接", zap.String("client_id", client.ID))

	go client.WritePump()
	go func() {
		defer release()
		client.ReadPump()
	}()
}

// banIP 临时拉黑 IP，封禁期过后自动解除。配置中的黑名单不受影响。
func (s *Server) banIP(ip string) {
	if ip == "" || !s.ipFilter.IsAllowed(ip) {
		return
	}
	s.ipFilter.Block(ip)
	s.log.Warn("🚫 IP 已被临时封禁", zap.String("ip", ip), zap.Duration("duration", s.banDuration))
	time.AfterFunc(s.banDuration, func() {
		s.ipFilter.Unblock(ip)
		s.log.Info("IP 封禁已解除", zap.String("ip", ip))
	})
}

// handleHealth 健康检查接口
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.log.Warn("健康检查失败", zap.Error(err))
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}

// registerClient 注册客户端
func (s *Server) registerClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[client.ID] = client
}

// unregisterClient 注销客户端，并让玩家离开游戏
func (s *Server) unregisterClient(client *Client) {
	s.clientsMu.Lock()
	_, ok := s.clients[client.ID]
	delete(s.clients, client.ID)
	s.clientsMu.Unlock()

	if !ok {
		return
	}
	client.Close()
	s.messageLimiter.RemoveClient(client.ID)
	left := s.players.RemovePlayer(client.ID)
	s.log.Info("❌ 客户端已断开",
		zap.String("client_id", client.ID),
		zap.String("name", client.GetName()),
		zap.Bool("was_playing", left))
}

// GetOnlineCount 获取在线连接数
func (s *Server) GetOnlineCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Broadcast 广播消息给所有客户端，只编码一次
func (s *Server) Broadcast(msg *protocol.Message) {
	data, err := s.codec.Encode(msg)
	if err != nil {
		s.log.Error("消息编码错误", zap.String("type", string(msg.Type)), zap.Error(err))
		return
	}

	s.clientsMu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
	}
	s.clientsMu.RUnlock()

	for _, client := range clients {
		if err := client.sendRaw(data); err != nil {
			s.log.Debug("广播跳过客户端", zap.String("client_id", client.ID), zap.Error(err))
		}
	}
}

// SendTo 单发消息给指定玩家
func (s *Server) SendTo(playerID string, msg *protocol.Message) error {
	s.clientsMu.RLock()
	client, ok := s.clients[playerID]
	s.clientsMu.RUnlock()
	if !ok {
		return ErrClientNotFound
	}
	return client.SendMessage(msg)
}
