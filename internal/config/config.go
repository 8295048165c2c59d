// Package config loads service configuration from yaml files and environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/postforge/postforge/internal/database"
)

// Config holds the service configuration.
type Config struct {
	HTTP struct {
		Host            string        `mapstructure:"host"`
		Port            int           `mapstructure:"port"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`

	Database database.Config `mapstructure:"database"`

	JWT struct {
		PrivateKeyPath string        `mapstructure:"private_key_path"`
		PublicKeyPath  string        `mapstructure:"public_key_path"`
		TokenTTL       time.Duration `mapstructure:"token_ttl"`
		Issuer         string        `mapstructure:"issuer"`
	} `mapstructure:"jwt"`

	OAuth struct {
		StateSecret string `mapstructure:"state_secret"`

		LinkedIn struct {
			ClientID     string `mapstructure:"client_id"`
			ClientSecret string `mapstructure:"client_secret"`
			RedirectURL  string `mapstructure:"redirect_url"`
		} `mapstructure:"linkedin"`
	} `mapstructure:"oauth"`

	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	NATS struct {
		Enabled bool   `mapstructure:"enabled"`
		URL     string `mapstructure:"url"`
	} `mapstructure:"nats"`

	Tracing struct {
		Enabled     bool    `mapstructure:"enabled"`
		Endpoint    string  `mapstructure:"endpoint"`
		SampleRatio float64 `mapstructure:"sample_ratio"`
		Insecure    bool    `mapstructure:"insecure"`
	} `mapstructure:"tracing"`

	RateLimit struct {
		Enabled bool          `mapstructure:"enabled"`
		Limit   int64         `mapstructure:"limit"`
		Window  time.Duration `mapstructure:"window"`
	} `mapstructure:"rate_limit"`

	Maintenance struct {
		SweepSchedule string        `mapstructure:"sweep_schedule"`
		ExpiryHorizon time.Duration `mapstructure:"expiry_horizon"`
	} `mapstructure:"maintenance"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// Load reads configuration with defaults, an optional yaml file and
// POSTFORGE_-prefixed environment variables, in increasing precedence.
func Load() (*Config, error) {
	viper.SetConfigName("server")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/postforge")

	setDefaults()

	viper.SetEnvPrefix("POSTFORGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("http.host", "0.0.0.0")
	viper.SetDefault("http.port", 8080)
	viper.SetDefault("http.read_timeout", "10s")
	viper.SetDefault("http.write_timeout", "30s")
	viper.SetDefault("http.shutdown_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postforge")
	viper.SetDefault("database.password", "postforge_secret")
	viper.SetDefault("database.name", "postforge")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	viper.SetDefault("jwt.private_key_path", "./keys/private.pem")
	viper.SetDefault("jwt.public_key_path", "./keys/public.pem")
	viper.SetDefault("jwt.token_ttl", "24h")
	viper.SetDefault("jwt.issuer", "postforge")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")

	viper.SetDefault("nats.enabled", false)
	viper.SetDefault("nats.url", "nats://localhost:4222")

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4317")
	viper.SetDefault("tracing.sample_ratio", 0.1)
	viper.SetDefault("tracing.insecure", true)

	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.limit", 100)
	viper.SetDefault("rate_limit.window", "1m")

	viper.SetDefault("maintenance.sweep_schedule", "0 * * * *")
	viper.SetDefault("maintenance.expiry_horizon", "24h")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
}
