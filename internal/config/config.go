package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Transport names accepted by BOT_TRANSPORT.
const (
	TransportTelegram = "telegram"
	TransportWhatsApp = "whatsapp"
)

// Config holds process configuration for both the facade and the bot.
type Config struct {
	AppEnv           string
	LogLevel         string
	LogFormat        string
	MetricsNamespace string

	HTTPListenAddr    string
	BotHTTPListenAddr string
	PublicBasePath    string

	CRMBaseURL string
	CRMAPIKey  string
	CRMTimeout time.Duration

	BotTransport     string
	BotToken         string
	WhatsAppStore    string
	WhatsAppLogLevel string
	FacadeBaseURL    string
	FacadeTimeout    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool
	SessionTTL    time.Duration

	JournalDSN string
}

// Load reads configuration from the environment. Call godotenv.Load first to pick up a .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		AppEnv:           v.GetString("app_env"),
		LogLevel:         v.GetString("log_level"),
		LogFormat:        v.GetString("log_format"),
		MetricsNamespace: v.GetString("metrics_namespace"),

		HTTPListenAddr:    v.GetString("http_listen_addr"),
		BotHTTPListenAddr: v.GetString("bot_http_listen_addr"),
		PublicBasePath:    v.GetString("http_base_path"),

		CRMBaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("crm_base_url")), "/"),
		CRMAPIKey:  strings.TrimSpace(v.GetString("crm_api_key")),
		CRMTimeout: v.GetDuration("crm_timeout"),

		BotTransport:     strings.ToLower(strings.TrimSpace(v.GetString("bot_transport"))),
		BotToken:         strings.TrimSpace(v.GetString("bot_token")),
		WhatsAppStore:    v.GetString("whatsapp_store_path"),
		WhatsAppLogLevel: v.GetString("whatsapp_log_level"),
		FacadeBaseURL:    strings.TrimRight(strings.TrimSpace(v.GetString("facade_base_url")), "/"),
		FacadeTimeout:    v.GetDuration("facade_timeout"),

		RedisAddr:     strings.TrimSpace(v.GetString("redis_addr")),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),
		RedisTLS:      v.GetBool("redis_tls"),
		SessionTTL:    v.GetDuration("session_ttl"),

		JournalDSN: strings.TrimSpace(v.GetString("journal_dsn")),
	}

	if cfg.CRMTimeout <= 0 {
		return nil, fmt.Errorf("CRM_TIMEOUT must be positive")
	}
	if cfg.FacadeTimeout <= 0 {
		return nil, fmt.Errorf("FACADE_TIMEOUT must be positive")
	}
	if cfg.SessionTTL < 0 {
		return nil, fmt.Errorf("SESSION_TTL must not be negative")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("metrics_namespace", "crmbot")
	v.SetDefault("http_listen_addr", ":8000")
	v.SetDefault("bot_http_listen_addr", ":8081")
	v.SetDefault("http_base_path", "")
	v.SetDefault("crm_base_url", "")
	v.SetDefault("crm_api_key", "")
	v.SetDefault("crm_timeout", "30s")
	v.SetDefault("bot_transport", TransportTelegram)
	v.SetDefault("bot_token", "")
	v.SetDefault("whatsapp_store_path", "data/whatsapp.db")
	v.SetDefault("whatsapp_log_level", "WARN")
	v.SetDefault("facade_base_url", "http://localhost:8000/api/v1")
	v.SetDefault("facade_timeout", "30s")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_tls", false)
	v.SetDefault("session_ttl", "0s")
	v.SetDefault("journal_dsn", "")
}

// ValidateFacade checks the settings the facade process cannot run without.
func (c *Config) ValidateFacade() error {
	var errs []error
	if c.CRMBaseURL == "" {
		errs = append(errs, errors.New("CRM_BASE_URL is required"))
	}
	if c.CRMAPIKey == "" {
		errs = append(errs, errors.New("CRM_API_KEY is required"))
	}
	return errors.Join(errs...)
}

// ValidateBot checks the settings the bot process cannot run without.
func (c *Config) ValidateBot() error {
	var errs []error
	if c.FacadeBaseURL == "" {
		errs = append(errs, errors.New("FACADE_BASE_URL is required"))
	}
	switch c.BotTransport {
	case TransportTelegram:
		if c.BotToken == "" {
			errs = append(errs, errors.New("BOT_TOKEN is required for the telegram transport"))
		}
	case TransportWhatsApp:
		if strings.TrimSpace(c.WhatsAppStore) == "" {
			errs = append(errs, errors.New("WHATSAPP_STORE_PATH is required for the whatsapp transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BOT_TRANSPORT %q", c.BotTransport))
	}
	return errors.Join(errs...)
}
