package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/yanun0323/errors"
)

// Config is the full streamer runtime configuration.
type Config struct {
	Feed    FeedConfig    `mapstructure:"feed"`
	Symbols []SymbolEntry `mapstructure:"symbols"`
	Store   StoreConfig   `mapstructure:"store"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Fanout  FanoutConfig  `mapstructure:"fanout"`
	Server  ServerConfig  `mapstructure:"server"`
	Profile ProfileConfig `mapstructure:"profile"`
}

type FeedConfig struct {
	WSUrl             string        `mapstructure:"ws_url"`
	APIKey            string        `mapstructure:"api_key"`
	AuthToken         string        `mapstructure:"auth_token"`
	FeedToken         string        `mapstructure:"feed_token"`
	ClientCode        string        `mapstructure:"client_code"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	SubscribeGap      time.Duration `mapstructure:"subscribe_gap"`
	MinUpdateInterval time.Duration `mapstructure:"min_update_interval"`
	ReconnectBase     time.Duration `mapstructure:"reconnect_base"`
	ReconnectMax      time.Duration `mapstructure:"reconnect_max"`
	ReconnectBudget   int           `mapstructure:"reconnect_budget"`
	QueueSize         int           `mapstructure:"queue_size"`
}

type SymbolEntry struct {
	Symbol   string `mapstructure:"symbol"`
	Exchange string `mapstructure:"exchange"`
	Mode     string `mapstructure:"mode"`
	Token    string `mapstructure:"token"` // broker-native numeric feed token
}

type StoreConfig struct {
	Driver        string        `mapstructure:"driver"` // "postgres" or "memory"
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	Database      string        `mapstructure:"database"`
	SSLMode       string        `mapstructure:"ssl_mode"`
	RetentionDays int           `mapstructure:"retention_days"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type FanoutConfig struct {
	Period          time.Duration `mapstructure:"period"`
	MinSendInterval time.Duration `mapstructure:"min_send_interval"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type ProfileConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Server  string `mapstructure:"server"`
}

// Load reads the config file and applies STREAMER_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("STREAMER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("feed.connect_timeout", 30*time.Second)
	v.SetDefault("feed.subscribe_gap", time.Second)
	v.SetDefault("feed.min_update_interval", time.Second)
	v.SetDefault("feed.reconnect_base", 5*time.Second)
	v.SetDefault("feed.reconnect_max", 60*time.Second)
	v.SetDefault("feed.reconnect_budget", 10)
	v.SetDefault("feed.queue_size", 4096)

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.host", "localhost")
	v.SetDefault("store.port", 5432)
	v.SetDefault("store.ssl_mode", "disable")
	v.SetDefault("store.retention_days", 7)
	v.SetDefault("store.sweep_interval", time.Hour)

	v.SetDefault("cache.port", 6379)
	v.SetDefault("cache.ttl", 2*time.Minute)

	v.SetDefault("fanout.period", 500*time.Millisecond)
	v.SetDefault("fanout.min_send_interval", 500*time.Millisecond)

	v.SetDefault("server.addr", ":8090")
}
