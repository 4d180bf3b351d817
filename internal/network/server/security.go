package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// --- 连接速率限制 ---

// RateLimiter 按 IP 限制建立连接的频率，超限后封禁一段时间
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*connRate

	perSecond   int
	perMinute   int
	banDuration time.Duration

	stop chan struct{}
	once sync.Once
}

type connRate struct {
	second      window
	minute      window
	bannedUntil time.Time
}

// window 固定窗口计数
type window struct {
	start time.Time
	count int
}

func (w *window) hit(now time.Time, size time.Duration) int {
	if now.Sub(w.start) >= size {
		w.start = now
		w.count = 0
	}
	w.count++
	return w.count
}

// NewRateLimiter 创建连接速率限制器，并在后台定期清理过期记录
func NewRateLimiter(perSecond, perMinute int, banDuration time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients:     make(map[string]*connRate),
		perSecond:   perSecond,
		perMinute:   perMinute,
		banDuration: banDuration,
		stop:        make(chan struct{}),
	}
	go rl.cleanupLoop(5 * time.Minute)
	return rl
}

// Allow 记录一次连接请求，返回是否放行
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rate, ok := rl.clients[ip]
	if !ok {
		rate = &connRate{}
		rl.clients[ip] = rate
	}
	if now.Before(rate.bannedUntil) {
		return false
	}

	perSecond := rate.second.hit(now, time.Second)
	perMinute := rate.minute.hit(now, time.Minute)
	if perSecond > rl.perSecond || perMinute > rl.perMinute {
		rate.bannedUntil = now.Add(rl.banDuration)
		return false
	}
	return true
}

// Stop 停止后台清理
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for ip, rate := range rl.clients {
				// 10 分钟无请求且未封禁
				if now.Sub(rate.minute.start) > 10*time.Minute && now.After(rate.bannedUntil) {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// --- 来源验证 ---

// OriginChecker 校验 WebSocket 握手的 Origin，"*" 表示放行所有来源
type OriginChecker struct {
	allowed  map[string]bool
	allowAll bool
}

// NewOriginChecker 创建来源验证器
func NewOriginChecker(origins []string) *OriginChecker {
	oc := &OriginChecker{allowed: make(map[string]bool)}
	for _, origin := range origins {
		if origin == "*" {
			oc.allowAll = true
			return oc
		}
		oc.allowed[strings.ToLower(strings.TrimSuffix(origin, "/"))] = true
	}
	return oc
}

// Check 用作 websocket.Upgrader.CheckOrigin
func (oc *OriginChecker) Check(r *http.Request) bool {
	if oc.allowAll {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// 非浏览器客户端
		return true
	}
	return oc.allowed[strings.ToLower(origin)]
}

// --- IP 黑名单 ---

// IPFilter IP 黑名单
type IPFilter struct {
	mu        sync.RWMutex
	blacklist map[string]bool
}

// NewIPFilter 创建 IP 过滤器
func NewIPFilter(blocked ...string) *IPFilter {
	f := &IPFilter{blacklist: make(map[string]bool, len(blocked))}
	for _, ip := range blocked {
		f.blacklist[strings.TrimSpace(ip)] = true
	}
	return f
}

// Block 加入黑名单
func (f *IPFilter) Block(ip string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blacklist[ip] = true
}

// Unblock 移出黑名单
func (f *IPFilter) Unblock(ip string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blacklist, ip)
}

// IsAllowed IP 是否允许连接
func (f *IPFilter) IsAllowed(ip string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return !f.blacklist[ip]
}

// GetClientIP 获取客户端真实 IP，优先使用代理头
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// --- 消息速率限制 ---

// maxRateWarnings 超速次数超过该值后断开连接
const maxRateWarnings = 5

// MessageRateLimiter 已连接客户端的消息速率限制
type MessageRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*messageRate

	perSecond int
	warnAt    int
}

type messageRate struct {
	window
	warnings int
}

// NewMessageRateLimiter 创建消息速率限制器，达到上限一半时开始警告
func NewMessageRateLimiter(perSecond int) *MessageRateLimiter {
	return &MessageRateLimiter{
		clients:   make(map[string]*messageRate),
		perSecond: perSecond,
		warnAt:    perSecond / 2,
	}
}

// AllowMessage 记录一条消息，返回是否放行以及是否需要警告
func (ml *MessageRateLimiter) AllowMessage(clientID string) (allowed bool, warning bool) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	rate, ok := ml.clients[clientID]
	if !ok {
		rate = &messageRate{}
		ml.clients[clientID] = rate
	}

	count := rate.hit(time.Now(), time.Second)
	switch {
	case count > ml.perSecond:
		rate.warnings++
		return false, true
	case count > ml.warnAt:
		return true, true
	default:
		return true, false
	}
}

// ShouldDisconnect 客户端是否多次超速
func (ml *MessageRateLimiter) ShouldDisconnect(clientID string) bool {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	rate, ok := ml.clients[clientID]
	return ok && rate.warnings > maxRateWarnings
}

// RemoveClient 客户端断开后清理
func (ml *MessageRateLimiter) RemoveClient(clientID string) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	delete(ml.clients, clientID)
}
