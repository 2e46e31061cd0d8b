package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Yehonatan-Bar/ear-fish/pkg/log"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Redis     RedisConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Oracle    OracleConfig
	Log       log.Config
}

type ServerConfig struct {
	Host       string
	Port       int
	InstanceID string `mapstructure:"instance_id"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

type CacheConfig struct {
	TranslationTTL time.Duration `mapstructure:"translation_ttl"`
	DetectionTTL   time.Duration `mapstructure:"detection_ttl"`
	HistoryMax     int           `mapstructure:"history_max"`
}

type RateLimitConfig struct {
	Enabled     bool
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

type OracleConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from ./config/config.yaml (if present) and
// environment variables. Missing file is not an error; env vars alone work.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.instance_id", "default")
	v.SetDefault("websocket.ping_interval", "15s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.op_timeout", "2s")
	v.SetDefault("cache.translation_ttl", "24h")
	v.SetDefault("cache.detection_ttl", "1h")
	v.SetDefault("cache.history_max", 50)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.max_requests", 10)
	v.SetDefault("rate_limit.window", "60s")
	v.SetDefault("oracle.base_url", "http://localhost:9090")
	v.SetDefault("oracle.timeout", "1500ms")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "ear-fish")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.instance_id", "INSTANCE_ID")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("oracle.base_url", "ORACLE_BASE_URL")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 15*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Redis.OpTimeout = parseDuration(v, "redis.op_timeout", 2*time.Second)
	cfg.Cache.TranslationTTL = parseDuration(v, "cache.translation_ttl", 24*time.Hour)
	cfg.Cache.DetectionTTL = parseDuration(v, "cache.detection_ttl", time.Hour)
	cfg.RateLimit.Window = parseDuration(v, "rate_limit.window", 60*time.Second)
	cfg.Oracle.Timeout = parseDuration(v, "oracle.timeout", 1500*time.Millisecond)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
