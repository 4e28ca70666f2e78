package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Email        EmailConfig
	Verification VerificationConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single', если Addrs пустой.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	// MaxRetries: Максимальное количество попыток переподключения (-1 - бесконечно).
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff: Минимальный интервал между попытками (в миллисекундах).
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`

	// MaxRetryBackoff: Максимальный интервал между попытками (в миллисекундах).
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// EmailConfig содержит настройки почтового провайдера
type EmailConfig struct {
	// Provider: "gmail", "resend" или "noop" (для локальной разработки)
	Provider string `mapstructure:"provider"`
	From     string `mapstructure:"from"`

	Gmail  GmailConfig  `mapstructure:"gmail"`
	Resend ResendConfig `mapstructure:"resend"`
}

// GmailConfig содержит OAuth2 учетные данные для Gmail API
type GmailConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
}

// ResendConfig содержит API ключ Resend
type ResendConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// VerificationConfig содержит настройки OTP-верификации
type VerificationConfig struct {
	// AllowedDomain: разрешенный суффикс студенческой почты, например "@ssn.edu.in"
	AllowedDomain string        `mapstructure:"allowed_domain"`
	OTPTTL        time.Duration `mapstructure:"otp_ttl"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	// Значения по умолчанию
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.readtimeout", 10)
	vip.SetDefault("server.writetimeout", 10)
	vip.SetDefault("email.provider", "gmail")
	vip.SetDefault("verification.allowed_domain", "@ssn.edu.in")
	vip.SetDefault("verification.otp_ttl", 10*time.Minute)
	vip.SetDefault("verification.max_attempts", 5)

	// Привязываем переменные окружения ЯВНО
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("email.provider", "EMAIL_PROVIDER")
	vip.BindEnv("email.from", "EMAIL_FROM")
	vip.BindEnv("email.gmail.client_id", "GMAIL_CLIENT_ID")
	vip.BindEnv("email.gmail.client_secret", "GMAIL_CLIENT_SECRET")
	vip.BindEnv("email.gmail.refresh_token", "GMAIL_REFRESH_TOKEN")
	vip.BindEnv("email.resend.api_key", "RESEND_API_KEY")

	vip.BindEnv("verification.allowed_domain", "VERIFICATION_ALLOWED_DOMAIN")
	vip.BindEnv("verification.otp_ttl", "VERIFICATION_OTP_TTL")
	vip.BindEnv("verification.max_attempts", "VERIFICATION_MAX_ATTEMPTS")

	vip.BindEnv("server.port", "SERVER_PORT")

	// Путь к файлу конфигурации (не страшно, если файла нет — есть BindEnv)
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Логирование конфигурации (только в debug режиме)
	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Email Provider: %s", cfg.Email.Provider)
		log.Printf("Email From: %s", cfg.Email.From)
		log.Printf("Gmail Credentials Set: %t", cfg.Email.Gmail.RefreshToken != "")
		log.Printf("Verification Domain: %s", cfg.Verification.AllowedDomain)
		log.Printf("Verification OTP TTL: %s", cfg.Verification.OTPTTL)
		log.Printf("Verification Max Attempts: %d", cfg.Verification.MaxAttempts)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("-----------------------------------------")
	}

	// Проверка обязательных параметров
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if cfg.Verification.AllowedDomain == "" {
		return nil, fmt.Errorf("verification allowed domain is required (check VERIFICATION_ALLOWED_DOMAIN env var)")
	}
	switch cfg.Email.Provider {
	case "gmail":
		if cfg.Email.Gmail.ClientID == "" || cfg.Email.Gmail.ClientSecret == "" || cfg.Email.Gmail.RefreshToken == "" {
			return nil, fmt.Errorf("gmail provider requires GMAIL_CLIENT_ID, GMAIL_CLIENT_SECRET and GMAIL_REFRESH_TOKEN")
		}
		if cfg.Email.From == "" {
			return nil, fmt.Errorf("email from address is required (check EMAIL_FROM env var)")
		}
	case "resend":
		if cfg.Email.Resend.APIKey == "" {
			return nil, fmt.Errorf("resend provider requires RESEND_API_KEY")
		}
		if cfg.Email.From == "" {
			return nil, fmt.Errorf("email from address is required (check EMAIL_FROM env var)")
		}
	case "noop":
		// Провайдер-заглушка для локальной разработки, учетные данные не нужны
	default:
		return nil, fmt.Errorf("unsupported email provider: %s", cfg.Email.Provider)
	}

	return &cfg, nil
}
