package config

import "time"

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Engine     EngineConfig     `mapstructure:"engine" yaml:"engine"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	CORS       CORSConfig       `mapstructure:"cors" yaml:"cors"`
	Channels   ChannelsConfig   `mapstructure:"channels" yaml:"channels"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket" yaml:"websocket"`
	Monitoring MonitoringConfig `mapstructure:"monitoring" yaml:"monitoring"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
}

// EngineConfig tunes the alert pipeline: suppression quotas, correlation
// windows, escalation depth, and retention.
type EngineConfig struct {
	// MaxAlertsPerHour caps occurrences per (name, severity) pair per clock hour.
	MaxAlertsPerHour int `mapstructure:"max_alerts_per_hour" yaml:"max_alerts_per_hour"`

	// RetentionPeriod bounds history entries and resolved alerts. Active
	// (firing/acknowledged) alerts are never pruned regardless of age.
	RetentionPeriod time.Duration `mapstructure:"retention_period" yaml:"retention_period"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`

	// CorrelationWindow is the sliding buffer span considered for grouping.
	CorrelationWindow time.Duration `mapstructure:"correlation_window" yaml:"correlation_window"`
	MaxCorrelations   int           `mapstructure:"max_correlations" yaml:"max_correlations"`

	// MaxEscalationLevel bounds escalation depth regardless of policy length.
	MaxEscalationLevel int `mapstructure:"max_escalation_level" yaml:"max_escalation_level"`
	// EscalationSeverity is the minimum severity that enters the escalation
	// state machine at all.
	EscalationSeverity string `mapstructure:"escalation_severity" yaml:"escalation_severity"`

	// RulesPath points at the YAML file holding suppression rules,
	// correlation rules, and escalation policies.
	RulesPath string `mapstructure:"rules_path" yaml:"rules_path"`

	// SnapshotInterval controls best-effort engine state snapshots to the
	// cache. Zero disables snapshotting.
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval" yaml:"snapshot_interval"`
}

// CacheConfig handles Valkey configuration.
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	TTL      int    `mapstructure:"ttl" yaml:"ttl"` // seconds
}

// CORSConfig handles Cross-Origin Resource Sharing for UI consumers.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// ChannelsConfig holds the built-in notification channel adapters. Further
// adapters register themselves against the channel registry at startup.
type ChannelsConfig struct {
	Slack   SlackConfig   `mapstructure:"slack" yaml:"slack"`
	MSTeams MSTeamsConfig `mapstructure:"ms_teams" yaml:"ms_teams"`
	Email   EmailConfig   `mapstructure:"email" yaml:"email"`
}

type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	Channel    string `mapstructure:"channel" yaml:"channel"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
}

type MSTeamsConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
}

type EmailConfig struct {
	SMTPHost    string   `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort    int      `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username    string   `mapstructure:"username" yaml:"username"`
	Password    string   `mapstructure:"password" yaml:"password"`
	FromAddress string   `mapstructure:"from_address" yaml:"from_address"`
	Recipients  []string `mapstructure:"recipients" yaml:"recipients"`
	Enabled     bool     `mapstructure:"enabled" yaml:"enabled"`
}

// WebSocketConfig handles the lifecycle-event streaming endpoint.
type WebSocketConfig struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled"`
	MaxConnections  int  `mapstructure:"max_connections" yaml:"max_connections"`
	ReadBufferSize  int  `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int  `mapstructure:"write_buffer_size" yaml:"write_buffer_size"`
	PingInterval    int  `mapstructure:"ping_interval" yaml:"ping_interval"` // seconds
}

// MonitoringConfig handles self-monitoring configuration.
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path"`
}

// TracingConfig handles OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
}
