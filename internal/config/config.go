package config

import (
	"time"

	"github.com/vovakirdan/channelchat/internal/core"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// AdminKeyHash is a bcrypt hash; an empty value disables the admin API.
	AdminKeyHash string `mapstructure:"admin_key_hash" yaml:"admin_key_hash"`

	OutboundQueueSize  int `mapstructure:"outbound_queue_size" yaml:"outbound_queue_size"`
	InboundQueueSize   int `mapstructure:"inbound_queue_size" yaml:"inbound_queue_size"`
	MaxMessageBytes    int `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxFrameBytes      int `mapstructure:"max_frame_bytes" yaml:"max_frame_bytes"`
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	SeedChannels []core.ChannelSeed `mapstructure:"seed_channels" yaml:"seed_channels"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		DatabasePath:       "channelchat.db",
		JWTSecret:          "change-me-in-production",
		JWTIssuer:          "channelchat",
		JWTAudience:        "channelchat-users",
		JWTTTL:             24 * time.Hour,
		OutboundQueueSize:  64,
		InboundQueueSize:   64,
		MaxMessageBytes:    4096,
		MaxFrameBytes:      8192,
		RateLimitPerMinute: 120,
		SeedChannels: []core.ChannelSeed{
			{Name: "general", Topic: "Anything goes"},
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.RateLimitPerMinute != 0 {
		c.RateLimitPerMinute = other.RateLimitPerMinute
	}
}

// HubOptions maps the tuning values onto core options.
func (c *Config) HubOptions() core.Options {
	return core.Options{
		OutboundQueueSize:  c.OutboundQueueSize,
		InboundQueueSize:   c.InboundQueueSize,
		MaxMessageBytes:    c.MaxMessageBytes,
		MaxFrameBytes:      c.MaxFrameBytes,
		RateLimitPerMinute: c.RateLimitPerMinute,
	}
}
