package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type ChatConfig struct {
	RateLimit       int           `mapstructure:"rate_limit"`
	RateWindow      time.Duration `mapstructure:"rate_window"`
	SizeLimit       int           `mapstructure:"size_limit"`
	ChunkSize       int           `mapstructure:"chunk_size"`
	ChunkingEnabled bool          `mapstructure:"chunking_enabled"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	DedupWindow     time.Duration `mapstructure:"dedup_window"`
	HistoryLimit    int           `mapstructure:"history_limit"`
	BufferLimit     int           `mapstructure:"buffer_limit"`
	BufferTimeout   time.Duration `mapstructure:"buffer_timeout"`
	QueueSize       int           `mapstructure:"queue_size"`
}

type QualityConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// EngineConfig tunes the compatibility adapter. Capability flags whose
// target cannot perform them degrade to no-ops, never error.
type EngineConfig struct {
	ServerURL      string        `mapstructure:"server_url"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	Simulcast      bool          `mapstructure:"simulcast"`
	DynamicBitrate bool          `mapstructure:"dynamic_bitrate"`
}

type Config struct {
	Mode    string        `mapstructure:"mode"`
	Port    int           `mapstructure:"port"`
	Secret  string        `mapstructure:"secret"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Quality QualityConfig `mapstructure:"quality"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)

	v.SetDefault("engine.dial_timeout", "10s")
	v.SetDefault("engine.ping_period", "54s")
	v.SetDefault("engine.read_limit", 32768)
	v.SetDefault("engine.simulcast", false)
	v.SetDefault("engine.dynamic_bitrate", false)

	v.SetDefault("chat.rate_limit", 10)
	v.SetDefault("chat.rate_window", "10s")
	v.SetDefault("chat.size_limit", 1024)
	v.SetDefault("chat.chunk_size", 800)
	v.SetDefault("chat.chunking_enabled", true)
	v.SetDefault("chat.max_attempts", 3)
	v.SetDefault("chat.retry_delay", "1s")
	v.SetDefault("chat.dedup_window", "5s")
	v.SetDefault("chat.history_limit", 200)
	v.SetDefault("chat.buffer_limit", 100)
	v.SetDefault("chat.buffer_timeout", "60s")
	v.SetDefault("chat.queue_size", 128)

	v.SetDefault("quality.interval", "5s")
}
