package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/access-compliance/internal/logging"
)

// Config captures the file and environment driven settings of the compliance service.
type Config struct {
	HTTPPort     int          `yaml:"http_port"`
	SQLiteDSN    string       `yaml:"sqlite_dsn"`
	Timezone     string       `yaml:"timezone"`
	LogLevel     string       `yaml:"log_level"`
	SeedDemoData bool         `yaml:"seed_demo_data"`
	Auth         AuthConfig   `yaml:"auth"`
	Redis        RedisConfig  `yaml:"redis"`
	SMTP         SMTPConfig   `yaml:"smtp"`
	SMS          SMSConfig    `yaml:"sms"`
	Notify       NotifyConfig `yaml:"notify"`

	// Location and Level are resolved from Timezone and LogLevel.
	Location *time.Location `yaml:"-"`
	Level    slog.Level     `yaml:"-"`
}

type AuthConfig struct {
	RequireAuth bool   `yaml:"require_auth"`
	APIKey      string `yaml:"api_key"`
	APIKeyHash  string `yaml:"api_key_hash"`
}

// RedisConfig is optional. An empty Addr keeps card locks in process and
// disables the ledger channel.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	CardLockTTL time.Duration `yaml:"card_lock_ttl"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// SMS providers.
const (
	SMSProviderSMSAPI = "smsapi"
	SMSProviderTwilio = "twilio"
	SMSProviderLog    = "log"
)

type SMSConfig struct {
	Provider string `yaml:"provider"`
	Token    string `yaml:"token"`
	From     string `yaml:"from"`
	Endpoint string `yaml:"endpoint"`
}

type NotifyConfig struct {
	PerMinute int           `yaml:"per_minute"`
	Burst     int           `yaml:"burst"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when neither a file nor the
// environment override a value.
func Default() Config {
	return Config{
		HTTPPort:  8080,
		SQLiteDSN: "compliance.db",
		Timezone:  "Local",
		LogLevel:  "info",
		Auth:      AuthConfig{RequireAuth: true},
		Redis:     RedisConfig{CardLockTTL: 5 * time.Second},
		SMTP:      SMTPConfig{Port: 587},
		SMS:       SMSConfig{Provider: SMSProviderLog},
		Notify:    NotifyConfig{PerMinute: 6, Burst: 3, Timeout: 15 * time.Second},
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// COMPLIANCE_CONFIG_FILE and finally the COMPLIANCE_* environment variables.
//
// Missing and invalid entries are collected and reported together with
// localized messages.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("COMPLIANCE_CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("設定ファイルを読み込めません: %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("設定ファイルの形式が不正です: %s: %w", path, err)
		}
	}

	env := envReader{}
	env.int("COMPLIANCE_HTTP_PORT", &cfg.HTTPPort)
	env.string("COMPLIANCE_SQLITE_DSN", &cfg.SQLiteDSN)
	env.string("COMPLIANCE_TIMEZONE", &cfg.Timezone)
	env.string("COMPLIANCE_LOG_LEVEL", &cfg.LogLevel)
	env.bool("COMPLIANCE_SEED_DEMO_DATA", &cfg.SeedDemoData)

	env.bool("COMPLIANCE_REQUIRE_AUTH", &cfg.Auth.RequireAuth)
	env.string("COMPLIANCE_API_KEY", &cfg.Auth.APIKey)
	env.string("COMPLIANCE_API_KEY_HASH", &cfg.Auth.APIKeyHash)

	env.string("COMPLIANCE_REDIS_ADDR", &cfg.Redis.Addr)
	env.string("COMPLIANCE_REDIS_PASSWORD", &cfg.Redis.Password)
	env.int("COMPLIANCE_REDIS_DB", &cfg.Redis.DB)
	env.duration("COMPLIANCE_CARD_LOCK_TTL", &cfg.Redis.CardLockTTL)

	env.string("COMPLIANCE_SMTP_HOST", &cfg.SMTP.Host)
	env.int("COMPLIANCE_SMTP_PORT", &cfg.SMTP.Port)
	env.string("COMPLIANCE_SMTP_FROM", &cfg.SMTP.From)
	env.string("COMPLIANCE_SMTP_USER", &cfg.SMTP.User)
	env.string("COMPLIANCE_SMTP_PASSWORD", &cfg.SMTP.Password)

	env.string("COMPLIANCE_SMS_PROVIDER", &cfg.SMS.Provider)
	env.string("COMPLIANCE_SMS_TOKEN", &cfg.SMS.Token)
	env.string("COMPLIANCE_SMS_FROM", &cfg.SMS.From)
	env.string("COMPLIANCE_SMS_ENDPOINT", &cfg.SMS.Endpoint)

	env.int("COMPLIANCE_NOTIFY_PER_MINUTE", &cfg.Notify.PerMinute)
	env.int("COMPLIANCE_NOTIFY_BURST", &cfg.Notify.Burst)
	env.duration("COMPLIANCE_NOTIFY_TIMEOUT", &cfg.Notify.Timeout)

	missing, invalid := cfg.validate()
	invalid = append(env.invalid, invalid...)

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// validate resolves derived fields and reports problems by variable name.
func (c *Config) validate() (missing, invalid []string) {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		invalid = append(invalid, "COMPLIANCE_HTTP_PORT")
	}
	if strings.TrimSpace(c.SQLiteDSN) == "" {
		missing = append(missing, "COMPLIANCE_SQLITE_DSN")
	}

	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		invalid = append(invalid, "COMPLIANCE_TIMEZONE")
	} else {
		c.Location = loc
	}

	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		invalid = append(invalid, "COMPLIANCE_LOG_LEVEL")
	} else {
		c.Level = level
	}

	c.Auth.APIKey = strings.TrimSpace(c.Auth.APIKey)
	c.Auth.APIKeyHash = strings.TrimSpace(c.Auth.APIKeyHash)
	if c.Auth.RequireAuth && c.Auth.APIKey == "" && c.Auth.APIKeyHash == "" {
		missing = append(missing, "COMPLIANCE_API_KEY")
	}
	if c.Auth.APIKeyHash != "" && !strings.HasPrefix(c.Auth.APIKeyHash, "$argon2id$") {
		invalid = append(invalid, "COMPLIANCE_API_KEY_HASH")
	}

	if c.Redis.DB < 0 {
		invalid = append(invalid, "COMPLIANCE_REDIS_DB")
	}
	if c.Redis.CardLockTTL <= 0 {
		invalid = append(invalid, "COMPLIANCE_CARD_LOCK_TTL")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		invalid = append(invalid, "COMPLIANCE_SMTP_PORT")
	}

	c.SMS.Provider = strings.ToLower(strings.TrimSpace(c.SMS.Provider))
	switch c.SMS.Provider {
	case SMSProviderSMSAPI, SMSProviderTwilio, SMSProviderLog:
	default:
		invalid = append(invalid, "COMPLIANCE_SMS_PROVIDER")
	}

	if c.Notify.PerMinute < 0 {
		invalid = append(invalid, "COMPLIANCE_NOTIFY_PER_MINUTE")
	}
	if c.Notify.Burst <= 0 {
		invalid = append(invalid, "COMPLIANCE_NOTIFY_BURST")
	}
	if c.Notify.Timeout <= 0 {
		invalid = append(invalid, "COMPLIANCE_NOTIFY_TIMEOUT")
	}
	return missing, invalid
}

// envReader overrides a field when its variable is set and remembers
// variables whose value could not be parsed.
type envReader struct {
	invalid []string
}

func (e *envReader) lookup(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

func (e *envReader) string(key string, dst *string) {
	if value, ok := e.lookup(key); ok {
		*dst = value
	}
}

func (e *envReader) int(key string, dst *int) {
	value, ok := e.lookup(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		e.invalid = append(e.invalid, key)
		return
	}
	*dst = parsed
}

func (e *envReader) bool(key string, dst *bool) {
	value, ok := e.lookup(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		e.invalid = append(e.invalid, key)
		return
	}
	*dst = parsed
}

func (e *envReader) duration(key string, dst *time.Duration) {
	value, ok := e.lookup(key)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		e.invalid = append(e.invalid, key)
		return
	}
	*dst = parsed
}
