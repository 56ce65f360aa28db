package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from various sources with priority order:
// 1. Environment variables
// 2. Configuration file (config.yaml)
// 3. Default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/vigil/")
	v.AddConfigPath("./configs/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("VIGIL")

	setDefaults(v)

	// Config file is optional; env vars and defaults are enough to run.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	overrideWithEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets reasonable default values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	// Engine defaults
	v.SetDefault("engine.max_alerts_per_hour", 10)
	v.SetDefault("engine.retention_period", 24*time.Hour)
	v.SetDefault("engine.cleanup_interval", 5*time.Minute)
	v.SetDefault("engine.correlation_window", 5*time.Minute)
	v.SetDefault("engine.max_correlations", 10)
	v.SetDefault("engine.max_escalation_level", 3)
	v.SetDefault("engine.escalation_severity", "critical")
	v.SetDefault("engine.rules_path", "/etc/vigil/alert-rules.yaml")
	v.SetDefault("engine.snapshot_interval", 0)

	// Cache defaults (Valkey)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl", 300) // 5 minutes
	v.SetDefault("cache.db", 0)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("cors.exposed_headers", []string{"X-Rate-Limit-Remaining"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 3600)

	// Channel defaults
	v.SetDefault("channels.slack.enabled", false)
	v.SetDefault("channels.ms_teams.enabled", false)
	v.SetDefault("channels.email.enabled", false)
	v.SetDefault("channels.email.smtp_port", 587)

	// WebSocket defaults
	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.max_connections", 1000)
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.ping_interval", 30)

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
}

// overrideWithEnvVars explicitly handles environment variable overrides
func overrideWithEnvVars(v *viper.Viper) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("port", p)
		}
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		v.Set("environment", env)
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		v.Set("log_level", logLevel)
	}

	if rulesPath := os.Getenv("ALERT_RULES_PATH"); rulesPath != "" {
		v.Set("engine.rules_path", rulesPath)
	}

	if maxPerHour := os.Getenv("MAX_ALERTS_PER_HOUR"); maxPerHour != "" {
		if n, err := strconv.Atoi(maxPerHour); err == nil {
			v.Set("engine.max_alerts_per_hour", n)
		}
	}

	// Valkey cache
	if cacheAddr := os.Getenv("VALKEY_ADDR"); cacheAddr != "" {
		v.Set("cache.addr", strings.TrimSpace(cacheAddr))
		v.Set("cache.enabled", true)
	}

	if cacheTTL := os.Getenv("CACHE_TTL"); cacheTTL != "" {
		if ttl, err := strconv.Atoi(cacheTTL); err == nil {
			v.Set("cache.ttl", ttl)
		}
	}

	// Channel integrations
	if slackWebhook := os.Getenv("SLACK_WEBHOOK_URL"); slackWebhook != "" {
		v.Set("channels.slack.webhook_url", slackWebhook)
		v.Set("channels.slack.enabled", true)
	}

	if teamsWebhook := os.Getenv("TEAMS_WEBHOOK_URL"); teamsWebhook != "" {
		v.Set("channels.ms_teams.webhook_url", teamsWebhook)
		v.Set("channels.ms_teams.enabled", true)
	}

	if smtpHost := os.Getenv("SMTP_HOST"); smtpHost != "" {
		v.Set("channels.email.smtp_host", smtpHost)
		v.Set("channels.email.enabled", true)
	}

	// Tracing
	if otlp := os.Getenv("OTLP_ENDPOINT"); otlp != "" {
		v.Set("tracing.otlp_endpoint", otlp)
		v.Set("tracing.enabled", true)
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", config.Port)
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	validEnvironments := []string{"development", "staging", "production", "test"}
	if !contains(validEnvironments, config.Environment) {
		return fmt.Errorf("invalid environment: %s", config.Environment)
	}

	if config.Engine.MaxAlertsPerHour < 1 {
		return fmt.Errorf("engine.max_alerts_per_hour must be at least 1")
	}

	if config.Engine.RetentionPeriod <= 0 {
		return fmt.Errorf("engine.retention_period must be positive")
	}

	if config.Engine.CleanupInterval <= 0 {
		return fmt.Errorf("engine.cleanup_interval must be positive")
	}

	if config.Engine.MaxEscalationLevel < 0 {
		return fmt.Errorf("engine.max_escalation_level must not be negative")
	}

	validSeverities := []string{"critical", "warning", "info"}
	if !contains(validSeverities, config.Engine.EscalationSeverity) {
		return fmt.Errorf("invalid escalation severity: %s", config.Engine.EscalationSeverity)
	}

	if config.Cache.Enabled && config.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required when cache is enabled")
	}

	if config.Cache.TTL < 1 {
		return fmt.Errorf("cache TTL must be at least 1 second")
	}

	if config.Tracing.Enabled && config.Tracing.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when tracing is enabled")
	}

	return nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
