package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config содержит всю конфигурацию приложения.
// Каждая секция читается отдельно по полным ключам (SERVER_PORT, REDIS_DB, ...)
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Gateway  GatewayConfig
	Redis    RedisConfig
	Database DatabaseConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Host        string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port        string `envconfig:"SERVER_PORT" default:"8000"`
	Environment string `envconfig:"SERVER_ENV" default:"development"`
}

// UpstreamConfig - настройки сервиса распознавания
type UpstreamConfig struct {
	APIURL  string        `envconfig:"UPSTREAM_API_URL" default:"http://localhost:8080/encode_face"`
	Timeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
}

// GatewayConfig - адрес шлюза для клиентских сессий (websocket, CLI)
type GatewayConfig struct {
	URL string `envconfig:"GATEWAY_URL" default:"http://localhost:8000"`
}

// RedisConfig - настройки Redis. Пустой Addr отключает кэш
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"REDIS_TTL" default:"5m"`
}

// DatabaseConfig - настройки базы аудита. Пустой DSN отключает аудит
type DatabaseConfig struct {
	DSN          string `envconfig:"DATABASE_DSN"`
	MaxOpenConns int    `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns int    `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
}

// legacyUpstreamKey - старое имя UPSTREAM_API_URL
const legacyUpstreamKey = "API_URL"

// Load загружает конфигурацию из переменных окружения
// (.env файл необязателен) с fallback на значения по умолчанию
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	sections := []interface{}{&cfg.Server, &cfg.Upstream, &cfg.Gateway, &cfg.Redis, &cfg.Database}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	if _, ok := os.LookupEnv("UPSTREAM_API_URL"); !ok {
		if legacy := os.Getenv(legacyUpstreamKey); legacy != "" {
			cfg.Upstream.APIURL = legacy
		}
	}
	return &cfg, nil
}

// Addr возвращает адрес для прослушивания
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// IsProduction сообщает, запущен ли сервер в production режиме
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// CacheEnabled - включён ли Redis кэш
func (c *RedisConfig) CacheEnabled() bool {
	return c.Addr != ""
}

// AuditEnabled - включён ли аудит в PostgreSQL
func (c *DatabaseConfig) AuditEnabled() bool {
	return c.DSN != ""
}
