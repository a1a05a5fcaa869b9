package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseURL       string
	RedisURL          string
	NATSUrl           string
	JWTSecret         string
	ReviewWindow      time.Duration
	SchedulerInterval time.Duration
	DedupeTTL         time.Duration
	AnalyticsCacheTTL time.Duration
	UrgentTermsFile   string
	AIProvider        string
	OpenAIAPIKey      string
	AnthropicAPIKey   string
	SendgridAPIKey    string
	MailFromName      string
	MailFromEmail     string
	MailSubject       string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("C2C")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Concern2Care API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("review.window", "30m")
	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("intake.dedupe_ttl", "5m")
	v.SetDefault("analytics.cache_ttl", "1m")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("mail.from_name", "Concern2Care")
	v.SetDefault("mail.subject", "Intervention strategies for your referral")

	reviewWindow, err := parseDuration(v, "review.window", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	schedulerInterval, err := parseDuration(v, "scheduler.interval", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	dedupeTTL, err := parseDuration(v, "intake.dedupe_ttl", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	analyticsTTL, err := parseDuration(v, "analytics.cache_ttl", time.Minute)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSUrl:           v.GetString("nats.url"),
		JWTSecret:         v.GetString("jwt.secret"),
		ReviewWindow:      reviewWindow,
		SchedulerInterval: schedulerInterval,
		DedupeTTL:         dedupeTTL,
		AnalyticsCacheTTL: analyticsTTL,
		UrgentTermsFile:   v.GetString("classifier.terms_file"),
		AIProvider:        strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:      v.GetString("openai_api_key"),
		AnthropicAPIKey:   v.GetString("anthropic_api_key"),
		SendgridAPIKey:    v.GetString("sendgrid_api_key"),
		MailFromName:      v.GetString("mail.from_name"),
		MailFromEmail:     v.GetString("mail.from_email"),
		MailSubject:       v.GetString("mail.subject"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.ReviewWindow <= 0 {
		return Config{}, fmt.Errorf("review window must be positive")
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
