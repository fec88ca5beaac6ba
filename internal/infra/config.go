package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации сервиса мониторинга.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Watcher  WatcherConfig  `mapstructure:"watcher"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Settings SettingsConfig `mapstructure:"settings"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig описывает настройки HTTP-сервера (консоль + /analyze).
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr собирает адрес для http.Server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"` // пусто: health-сервер не поднимаем
}

// RedisConfig описывает подключение к Redis (Pub/Sub сигналов).
// Пустой Addr отключает сигналы: сервис работает полностью в памяти.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig — проверка RS256 токенов для админских ручек.
type AuthConfig struct {
	PublicKeyPath string   `mapstructure:"public_key_path"`
	Issuer        string   `mapstructure:"issuer"` // пусто: iss не проверяется
	AdminRoles    []string `mapstructure:"admin_roles"`
	PublicKey     []byte
}

// WatcherConfig — какие журналы читаем и куда отправляем строки.
type WatcherConfig struct {
	Enabled       bool          `mapstructure:"enabled"` // встроенный watcher в pamd
	AuthLogPath   string        `mapstructure:"auth_log_path"`
	ActionLogPath string        `mapstructure:"action_log_path"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	Endpoint      string        `mapstructure:"endpoint"` // для отдельного процесса cmd/watcher

	// Надежность доставки в HTTP-режиме
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryAttempts  uint          `mapstructure:"retry_attempts"` // 1: без повторов (at-most-once)
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
	CBMaxRequests  uint32        `mapstructure:"cb_max_requests"`
	CBInterval     time.Duration `mapstructure:"cb_interval"`
	CBTimeout      time.Duration `mapstructure:"cb_timeout"`
}

// EngineConfig задает размеры хранилищ и буфер аудита.
type EngineConfig struct {
	EventCapacity      int           `mapstructure:"event_capacity"`
	AlertCapacity      int           `mapstructure:"alert_capacity"`
	AuditBufferSize    int           `mapstructure:"audit_buffer_size"`
	AuditFlushInterval time.Duration `mapstructure:"audit_flush_interval"`
}

type SettingsConfig struct {
	Path string `mapstructure:"path"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// 2. ENV перекрывает файл: WATCHER_POLL_INTERVAL=1s перекроет watcher.poll_interval
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет, работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("auth.admin_roles", []string{"Database Admin", "System Admin"})
	v.SetDefault("auth.issuer", "")

	v.SetDefault("watcher.enabled", true)
	v.SetDefault("watcher.auth_log_path", "auth_activity.log")
	v.SetDefault("watcher.action_log_path", "real_activity.log")
	v.SetDefault("watcher.poll_interval", 3*time.Second)
	v.SetDefault("watcher.endpoint", "http://127.0.0.1:5000/analyze")
	v.SetDefault("watcher.request_timeout", 5*time.Second)
	v.SetDefault("watcher.retry_attempts", 1)
	v.SetDefault("watcher.rate_limit", 100)
	v.SetDefault("watcher.rate_burst", 20)
	v.SetDefault("watcher.cb_max_requests", 3)
	v.SetDefault("watcher.cb_interval", 5*time.Second)
	v.SetDefault("watcher.cb_timeout", 30*time.Second)

	v.SetDefault("engine.event_capacity", 10000)
	v.SetDefault("engine.alert_capacity", 1000)
	v.SetDefault("engine.audit_buffer_size", 1000)
	v.SetDefault("engine.audit_flush_interval", 1*time.Second)

	v.SetDefault("settings.path", "system_settings.json")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
}

// loadKeyResource — ключ берем из ENV (Docker/K8s) или из файла по пути из конфига
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
