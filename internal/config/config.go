package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App         AppConfig         `yaml:"app"`
	Redis       RedisConfig       `yaml:"redis"`
	Reservation ReservationConfig `yaml:"reservation"`
	Database    DatabaseConfig    `yaml:"database"`
	API         APIConfig         `yaml:"api"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ReservationConfig задает тайминги удержания слотов (в секундах)
type ReservationConfig struct {
	HoldDuration      int `yaml:"hold_duration"`
	ExtensionDuration int `yaml:"extension_duration"`
	MaxExtensions     int `yaml:"max_extensions"`
	WarningThreshold  int `yaml:"warning_threshold"`
	SweepInterval     int `yaml:"sweep_interval"`
}

func (r ReservationConfig) Hold() time.Duration {
	return time.Duration(r.HoldDuration) * time.Second
}

func (r ReservationConfig) Extension() time.Duration {
	return time.Duration(r.ExtensionDuration) * time.Second
}

func (r ReservationConfig) Warning() time.Duration {
	return time.Duration(r.WarningThreshold) * time.Second
}

func (r ReservationConfig) Sweep() time.Duration {
	return time.Duration(r.SweepInterval) * time.Second
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type APIConfig struct {
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool     `yaml:"enabled"`
	HeaderAPIKey string   `yaml:"header_api_key"`
	APIKeys      []string `yaml:"api_keys"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен, ошибки загрузки игнорируются
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Reservation.HoldDuration <= 0 {
		return errors.New("reservation hold_duration must be positive")
	}
	if c.Reservation.ExtensionDuration <= 0 {
		return errors.New("reservation extension_duration must be positive")
	}
	if c.Reservation.ExtensionDuration > c.Reservation.HoldDuration {
		return errors.New("reservation extension_duration must not exceed hold_duration")
	}
	if c.Reservation.MaxExtensions < 0 {
		return errors.New("reservation max_extensions must not be negative")
	}
	if c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api auth is enabled but no api_keys are configured")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "slothold"
	}
	if c.Reservation.HoldDuration == 0 {
		c.Reservation.HoldDuration = 15 * 60
	}
	if c.Reservation.ExtensionDuration == 0 {
		c.Reservation.ExtensionDuration = 5 * 60
	}
	if c.Reservation.MaxExtensions == 0 {
		c.Reservation.MaxExtensions = 1
	}
	if c.Reservation.WarningThreshold == 0 {
		c.Reservation.WarningThreshold = 5 * 60
	}
	if c.Reservation.SweepInterval == 0 {
		c.Reservation.SweepInterval = 60
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/slothold.db"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
}
