package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// 默认值
const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 5000
	defaultMaxConnections = 1000
	defaultWireFormat     = WireFormatJSON
	defaultRedisTTL       = 3600

	defaultMaxResponseTime        = 11
	defaultTimeBetweenTurns       = 10
	defaultLeaderboardAnswerCount = 10
	defaultScoreMaxDistance       = 30000
	defaultMaxScore               = 1000
	defaultZoomLevel              = 2
	defaultCDNURL                 = "static"

	defaultRateLimitPerSecond   = 10
	defaultRateLimitPerMinute   = 60
	defaultRateLimitBanDuration = 60
	defaultMessageLimit         = 20

	defaultLogLevel = "info"

	// maxZoomLevel 客户端最多允许放大的级别
	maxZoomLevel = 2
)

// 传输编码格式
const (
	WireFormatJSON     = "json"
	WireFormatProtobuf = "protobuf"
)

// Config 服务端配置
type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	Game     GameConfig     `yaml:"game" envPrefix:"GAME_"`
	Security SecurityConfig `yaml:"security" envPrefix:"SECURITY_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig WebSocket 服务器配置
type ServerConfig struct {
	Host           string `yaml:"host" env:"HOST"`
	Port           int    `yaml:"port" env:"PORT"`
	MaxConnections int    `yaml:"max_connections" env:"MAX_CONNECTIONS"`
	WireFormat     string `yaml:"wire_format" env:"WIRE_FORMAT"` // json 或 protobuf
	StaticDir      string `yaml:"static_dir" env:"STATIC_DIR"`   // 为空则不提供静态文件
}

// Addr 返回监听地址
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig Redis 配置，Addr 为空时不启用排行榜镜像
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	TTL      int    `yaml:"ttl" env:"TTL"` // 镜像数据过期时间（秒）
}

// Enabled 是否配置了 Redis
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// TTLDuration 返回镜像数据过期时长
func (c *RedisConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// GameConfig 游戏配置
type GameConfig struct {
	MaxResponseTime        int     `yaml:"max_response_time" env:"MAX_RESPONSE_TIME"`               // 答题时间（秒）
	TimeBetweenTurns       int     `yaml:"time_between_turns" env:"TIME_BETWEEN_TURNS"`             // 回合间隔（秒）
	LeaderboardAnswerCount int     `yaml:"leaderboard_answer_count" env:"LEADERBOARD_ANSWER_COUNT"` // 排行榜统计的最近答案数
	ScoreMaxDistance       float64 `yaml:"score_max_distance" env:"SCORE_MAX_DISTANCE"`             // 超过该距离（公里）得分为 0
	MaxScore               int     `yaml:"max_score" env:"MAX_SCORE"`
	AllowMultipleAnswer    *bool   `yaml:"allow_multiple_answer" env:"ALLOW_MULTIPLE_ANSWER"`
	ZoomLevel              *int    `yaml:"zoom_level" env:"ZOOM_LEVEL"`
	CDNURL                 string  `yaml:"cdn_url" env:"CDN_URL"`
	CataloguePath          string  `yaml:"catalogue_path" env:"CATALOGUE_PATH"` // 为空则使用内置城市列表
}

// MaxResponseTimeDuration 返回答题时长
func (c *GameConfig) MaxResponseTimeDuration() time.Duration {
	return time.Duration(c.MaxResponseTime) * time.Second
}

// TimeBetweenTurnsDuration 返回回合间隔时长
func (c *GameConfig) TimeBetweenTurnsDuration() time.Duration {
	return time.Duration(c.TimeBetweenTurns) * time.Second
}

// MultipleAnswerAllowed 是否允许同一回合多次作答
func (c *GameConfig) MultipleAnswerAllowed() bool {
	return c.AllowMultipleAnswer == nil || *c.AllowMultipleAnswer
}

// Zoom 返回客户端缩放级别，限制在 [0, 2]
func (c *GameConfig) Zoom() int {
	if c.ZoomLevel == nil {
		return defaultZoomLevel
	}
	return min(max(*c.ZoomLevel, 0), maxZoomLevel)
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	AllowedOrigins []string           `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	BlockedIPs     []string           `yaml:"blocked_ips" env:"BLOCKED_IPS" envSeparator:","`
	RateLimit      RateLimitConfig    `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	MessageLimit   MessageLimitConfig `yaml:"message_limit" envPrefix:"MESSAGE_LIMIT_"`
}

// RateLimitConfig 连接速率限制
type RateLimitConfig struct {
	MaxPerSecond int `yaml:"max_per_second" env:"MAX_PER_SECOND"`
	MaxPerMinute int `yaml:"max_per_minute" env:"MAX_PER_MINUTE"`
	BanDuration  int `yaml:"ban_duration" env:"BAN_DURATION"` // 封禁时长（秒）
}

// BanDurationTime 返回封禁时长
func (c *RateLimitConfig) BanDurationTime() time.Duration {
	return time.Duration(c.BanDuration) * time.Second
}

// MessageLimitConfig 消息速率限制
type MessageLimitConfig struct {
	MaxPerSecond int `yaml:"max_per_second" env:"MAX_PER_SECOND"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// Load 加载配置文件，环境变量优先于文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault 加载配置文件，文件不存在时使用默认配置（fallback 为 true）。
// 其他错误（格式、环境变量、校验）直接返回，不会退回默认配置。
func LoadOrDefault(path string) (cfg *Config, fallback bool, err error) {
	cfg, err = Load(path)
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}
	cfg, err = Default()
	if err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// Default 返回默认配置（同样应用环境变量并校验）
func Default() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = defaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.MaxConnections == 0 {
		c.Server.MaxConnections = defaultMaxConnections
	}
	if c.Server.WireFormat == "" {
		c.Server.WireFormat = defaultWireFormat
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = defaultRedisTTL
	}
	if c.Game.MaxResponseTime == 0 {
		c.Game.MaxResponseTime = defaultMaxResponseTime
	}
	if c.Game.TimeBetweenTurns == 0 {
		c.Game.TimeBetweenTurns = defaultTimeBetweenTurns
	}
	if c.Game.LeaderboardAnswerCount == 0 {
		c.Game.LeaderboardAnswerCount = defaultLeaderboardAnswerCount
	}
	if c.Game.ScoreMaxDistance == 0 {
		c.Game.ScoreMaxDistance = defaultScoreMaxDistance
	}
	if c.Game.MaxScore == 0 {
		c.Game.MaxScore = defaultMaxScore
	}
	if c.Game.CDNURL == "" {
		c.Game.CDNURL = defaultCDNURL
	}
	if len(c.Security.AllowedOrigins) == 0 {
		c.Security.AllowedOrigins = []string{"*"}
	}
	if c.Security.RateLimit.MaxPerSecond == 0 {
		c.Security.RateLimit.MaxPerSecond = defaultRateLimitPerSecond
	}
	if c.Security.RateLimit.MaxPerMinute == 0 {
		c.Security.RateLimit.MaxPerMinute = defaultRateLimitPerMinute
	}
	if c.Security.RateLimit.BanDuration == 0 {
		c.Security.RateLimit.BanDuration = defaultRateLimitBanDuration
	}
	if c.Security.MessageLimit.MaxPerSecond == 0 {
		c.Security.MessageLimit.MaxPerSecond = defaultMessageLimit
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
}

// Validate 校验配置，零值由 applyDefaults 在此之前填充
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port 无效: %d", c.Server.Port))
	}
	if c.Server.MaxConnections <= 0 {
		errs = append(errs, fmt.Errorf("server.max_connections 必须为正数: %d", c.Server.MaxConnections))
	}
	if c.Server.WireFormat != WireFormatJSON && c.Server.WireFormat != WireFormatProtobuf {
		errs = append(errs, fmt.Errorf("server.wire_format 不支持: %q", c.Server.WireFormat))
	}
	if c.Redis.TTL <= 0 {
		errs = append(errs, fmt.Errorf("redis.ttl 必须为正数: %d", c.Redis.TTL))
	}
	if c.Game.MaxResponseTime <= 0 {
		errs = append(errs, fmt.Errorf("game.max_response_time 必须为正数: %d", c.Game.MaxResponseTime))
	}
	if c.Game.TimeBetweenTurns <= 0 {
		errs = append(errs, fmt.Errorf("game.time_between_turns 必须为正数: %d", c.Game.TimeBetweenTurns))
	}
	if c.Game.LeaderboardAnswerCount <= 0 {
		errs = append(errs, fmt.Errorf("game.leaderboard_answer_count 必须为正数: %d", c.Game.LeaderboardAnswerCount))
	}
	if c.Game.ScoreMaxDistance <= 0 {
		errs = append(errs, fmt.Errorf("game.score_max_distance 必须为正数: %v", c.Game.ScoreMaxDistance))
	}
	if c.Game.MaxScore <= 0 {
		errs = append(errs, fmt.Errorf("game.max_score 必须为正数: %d", c.Game.MaxScore))
	}
	rl := c.Security.RateLimit
	if rl.MaxPerSecond <= 0 || rl.MaxPerMinute <= 0 || rl.BanDuration <= 0 {
		errs = append(errs, fmt.Errorf("security.rate_limit 必须为正数: %+v", rl))
	}
	if c.Security.MessageLimit.MaxPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("security.message_limit.max_per_second 必须为正数: %d", c.Security.MessageLimit.MaxPerSecond))
	}
	return errors.Join(errs...)
}
