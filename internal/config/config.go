package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type RateLimit struct {
	Count    int           `mapstructure:"count"`
	Interval time.Duration `mapstructure:"interval"`
}

type YouTube struct {
	APIKey string `mapstructure:"api_key"`
	APIURL string `mapstructure:"api_url"`
}

type Vimeo struct {
	OEmbedURL string `mapstructure:"oembed_url"`
}

type Spotify struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	APIURL       string `mapstructure:"api_url"`
	TokenURL     string `mapstructure:"token_url"`
}

type Config struct {
	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	Secret   string `mapstructure:"secret"`
	LogLevel string `mapstructure:"log_level"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`

	HeartbeatPeriod    time.Duration `mapstructure:"heartbeat_period"`
	BackpressurePolicy string        `mapstructure:"backpressure_policy"`

	ResolveTimeout    time.Duration `mapstructure:"resolve_timeout"`
	MaxCollectionSize int           `mapstructure:"max_collection_size"`
	ResolveWorkers    int           `mapstructure:"resolve_workers"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`

	DBPath    string    `mapstructure:"db_path"`
	RateLimit RateLimit `mapstructure:"rate_limit"`

	YouTube YouTube `mapstructure:"youtube"`
	Vimeo   Vimeo   `mapstructure:"vimeo"`
	Spotify Spotify `mapstructure:"spotify"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("heartbeat_period", "5s")
	v.SetDefault("backpressure_policy", "resync")
	v.SetDefault("resolve_timeout", "10s")
	v.SetDefault("max_collection_size", 50)
	v.SetDefault("resolve_workers", 4)
	v.SetDefault("cache_ttl", "6h")
	v.SetDefault("db_path", "./data/together.db")
	v.SetDefault("rate_limit.count", 5)
	v.SetDefault("rate_limit.interval", "10s")
	v.SetDefault("youtube.api_key", "")
	v.SetDefault("youtube.api_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("vimeo.oembed_url", "https://vimeo.com/api/oembed.json")
	v.SetDefault("spotify.client_id", "")
	v.SetDefault("spotify.client_secret", "")
	v.SetDefault("spotify.api_url", "https://api.spotify.com/v1")
	v.SetDefault("spotify.token_url", "https://accounts.spotify.com/api/token")
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of the defaults.
// TOGETHER_* environment variables override both, e.g. TOGETHER_SPOTIFY_CLIENT_ID.
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

	setDefaults(v)
	v.SetEnvPrefix("together")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("db", cfg.DBPath).Msg("config ready")
	return &cfg, nil
}
