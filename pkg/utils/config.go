// Package utils holds the process configuration, loaded with viper from
// defaults, an optional YAML file and CARDDASH_* environment variables.
package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"carddash/pkg/database"
)

const (
	configName = "carddash"
	configType = "yaml"
	envPrefix  = "CARDDASH"
)

const (
	DefaultSourceURL     = "https://nebula-collection-api.vercel.app/cards"
	DefaultSourceTimeout = 15 * time.Second
	DefaultHTTPAddr      = ":8080"
	DefaultGRPCAddr      = ":9090"
	DefaultSyncAddr      = ":7070"
	DefaultNotifyAddr    = ":7071"
	DefaultKeep          = 5
	DefaultJWTIssuer     = "carddash"
	DefaultJWTTTL        = 24 * time.Hour
)

var (
	ErrNoSource       = errors.New("source.url or source.file is required")
	ErrInvalidTimeout = errors.New("source.timeout must be positive")
	ErrInvalidKeep    = errors.New("database.keep must not be negative")
	ErrInvalidTTL     = errors.New("auth.jwt_ttl must be positive")
	ErrMissingSecret  = errors.New("auth.jwt_secret is required when auth.admin_password_hash is set")
	ErrNoHTTPAddr     = errors.New("http.addr is required")
	ErrNoDatabasePath = errors.New("database.path is required when database.enabled is set")
)

type Config struct {
	Source    SourceConfig    `mapstructure:"source"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
}

// SourceConfig selects where the collection is fetched from. File wins
// over URL when both are set.
type SourceConfig struct {
	URL     string        `mapstructure:"url"`
	File    string        `mapstructure:"file"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// GRPCConfig: an empty Addr disables the gRPC server.
type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

// SyncConfig: an empty TCPAddr disables the TCP event stream and an empty
// UDPAddr the UDP notifications.
type SyncConfig struct {
	TCPAddr string `mapstructure:"tcp_addr"`
	UDPAddr string `mapstructure:"udp_addr"`
}

type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Keep    int    `mapstructure:"keep"`
}

// AuthConfig: an empty AdminPasswordHash leaves reload unauthenticated.
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer"`
	JWTTTL            time.Duration `mapstructure:"jwt_ttl"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"`
}

type DashboardConfig struct {
	PrimaryFeature   string `mapstructure:"primary_feature"`
	SecondaryFeature string `mapstructure:"secondary_feature"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// LoadConfig reads configuration. If configPath is empty, carddash.yaml is
// searched in the working directory and ~/.carddash; a missing file is not
// an error.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + string(os.PathSeparator) + ".carddash")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("source.url", DefaultSourceURL)
	v.SetDefault("source.file", "")
	v.SetDefault("source.timeout", DefaultSourceTimeout)

	v.SetDefault("http.addr", DefaultHTTPAddr)
	v.SetDefault("grpc.addr", DefaultGRPCAddr)
	v.SetDefault("sync.tcp_addr", DefaultSyncAddr)
	v.SetDefault("sync.udp_addr", DefaultNotifyAddr)

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.path", database.DefaultPath())
	v.SetDefault("database.keep", DefaultKeep)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", DefaultJWTIssuer)
	v.SetDefault("auth.jwt_ttl", DefaultJWTTTL)
	v.SetDefault("auth.admin_password_hash", "")

	v.SetDefault("dashboard.primary_feature", "Ultra Hero")
	v.SetDefault("dashboard.secondary_feature", "Kaiju")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func (c *Config) Validate() error {
	if c.Source.URL == "" && c.Source.File == "" {
		return ErrNoSource
	}
	if c.Source.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.HTTP.Addr == "" {
		return ErrNoHTTPAddr
	}
	if c.Database.Keep < 0 {
		return ErrInvalidKeep
	}
	if c.Database.Enabled && c.Database.Path == "" {
		return ErrNoDatabasePath
	}
	if c.Auth.JWTTTL <= 0 {
		return ErrInvalidTTL
	}
	if c.Auth.AdminPasswordHash != "" && c.Auth.JWTSecret == "" {
		return ErrMissingSecret
	}
	return nil
}
