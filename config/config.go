package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix is prepended to every configuration key when read from the environment.
const EnvPrefix = "APP"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	DB       DatabaseConfig `mapstructure:"db"`
	Security SecurityConfig `mapstructure:"security"`

	// Account creation limits per source IP.
	MaxIPAccountPerDay  int `mapstructure:"max_ip_account_per_day"`
	MaxIPAccountPerHour int `mapstructure:"max_ip_account_per_hour"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	Debug        bool          `mapstructure:"debug"`
	AdminKey     string        `mapstructure:"admin_key"`
	AdminIPs     []string      `mapstructure:"admin_ips"`
	InfoInterval time.Duration `mapstructure:"info_interval"` // ServerInfo broadcast, 0 disables
}

type DatabaseConfig struct {
	Mode       string `mapstructure:"mode"` // mongo | sqlite | mysql
	URI        string `mapstructure:"uri"`
	Name       string `mapstructure:"name"`
	Collection string `mapstructure:"collection"`

	MinPool        uint64        `mapstructure:"min_pool"`
	MaxPool        uint64        `mapstructure:"max_pool"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type SecurityConfig struct {
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the WebSocket origins that are permitted.
	// An empty slice allows all origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// ExposeCredentials keeps Password and Email in LoginResponse.
	ExposeCredentials bool `mapstructure:"expose_credentials"`
	// TrustedProxies lists the peers whose X-Forwarded-For / X-Real-IP headers
	// are believed. Empty means the TCP peer address is the client IP.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// Load reads config from APP_* environment variables. If envFile exists it is
// loaded first; variables already present in the environment win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.addr", "0.0.0.0:4288")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.admin_key", "")
	v.SetDefault("server.admin_ips", []string{})
	v.SetDefault("server.info_interval", "30s")
	v.SetDefault("db.mode", "mongo")
	v.SetDefault("db.uri", "mongodb://localhost:27017")
	v.SetDefault("db.name", "bondage-club")
	v.SetDefault("db.collection", "Accounts")
	v.SetDefault("db.min_pool", 2)
	v.SetDefault("db.max_pool", 50)
	v.SetDefault("db.connect_timeout", "10s")
	v.SetDefault("db.sqlite_path", "./data/accounts.db")
	v.SetDefault("db.mysql_dsn", "")
	v.SetDefault("db.mysql_max_open", 50)
	v.SetDefault("db.mysql_max_idle", 10)
	v.SetDefault("db.mysql_max_life", "1h")
	v.SetDefault("security.rate_limit_rps", 20)
	v.SetDefault("security.rate_limit_burst", 40)
	v.SetDefault("security.allowed_origins", []string{})
	v.SetDefault("security.expose_credentials", false)
	v.SetDefault("security.trusted_proxies", []string{})
	v.SetDefault("max_ip_account_per_day", 10)
	v.SetDefault("max_ip_account_per_hour", 5)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.Server.AdminIPs = splitList(cfg.Server.AdminIPs)
	cfg.Security.AllowedOrigins = splitList(cfg.Security.AllowedOrigins)
	cfg.Security.TrustedProxies = splitList(cfg.Security.TrustedProxies)
	return cfg, nil
}

// splitList flattens comma separated entries; env values arrive as one string.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
