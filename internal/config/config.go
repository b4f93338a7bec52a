package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// 不安全的默认值列表 (生产环境不应使用)
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"internal-secret":                      true,
	"": true,
}

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Hetzner      HetznerConfig
	Stripe       StripeConfig
	Encryption   EncryptionConfig
	Orchestrator OrchestratorConfig

	// InternalSecret guards the admin reconciliation endpoints, which are
	// only reachable from other services inside the platform
	InternalSecret string
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Schema   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

type HetznerConfig struct {
	APIToken string
	Location string
	Image    string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	AppBaseURL    string
}

type EncryptionConfig struct {
	Key string
}

type OrchestratorConfig struct {
	TriggerSecret string
	BatchSize     int
	PollInterval  time.Duration
	MaxPollTries  int
}

func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8006"),
			Mode: getEnv("GIN_MODE", "release"), // 默认为 release 模式
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "saas_user"),
			Password: getEnv("DB_PASSWORD", "saas_pass"),
			DBName:   getEnv("DB_NAME", "saas_db"),
			Schema:   getEnv("DB_SCHEMA", "provisioning"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
		},
		Hetzner: HetznerConfig{
			APIToken: getEnv("HETZNER_API_TOKEN", ""),
			Location: getEnv("HETZNER_LOCATION", "nbg1"),
			Image:    getEnv("HETZNER_IMAGE", "ubuntu-24.04"),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			AppBaseURL:    getEnv("APP_BASE_URL", "http://localhost:3000"),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Orchestrator: OrchestratorConfig{
			TriggerSecret: getEnv("CRON_SECRET", ""),
			BatchSize:     getEnvInt("PROVISION_BATCH_SIZE", 5),
			PollInterval:  time.Duration(getEnvInt("PROVISION_POLL_INTERVAL_SECONDS", 10)) * time.Second,
			MaxPollTries:  getEnvInt("PROVISION_MAX_POLL_TRIES", 30),
		},
		InternalSecret: getEnv("INTERNAL_SECRET", "internal-secret"),
	}

	// 日志脱敏: 不记录敏感配置
	log.Printf("[config] Provisioning Service loaded: port=%s db=%s/%s.%s location=%s",
		cfg.Server.Port, cfg.Database.Host, cfg.Database.DBName, cfg.Database.Schema, cfg.Hetzner.Location)

	return cfg
}

// Validate 验证配置有效性，生产环境必须设置安全的密钥
func (c *Config) Validate() error {
	// 检查 JWT 密钥
	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}
	if c.Hetzner.APIToken == "" {
		return fmt.Errorf("HETZNER_API_TOKEN must be set")
	}
	if c.Stripe.SecretKey == "" || c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET must be set")
	}
	if len(c.Encryption.Key) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes")
	}
	// 检查内部服务密钥
	if insecureDefaults[c.InternalSecret] {
		return fmt.Errorf("INTERNAL_SECRET must be set to a secure value")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
