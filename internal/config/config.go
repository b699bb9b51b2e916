package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the dashboard client
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Backend API configuration
	APIBaseURL   string
	SessionToken string
	UserID       string

	// Live push channel configuration
	PushURL           string
	ReconnectAttempts int
	ReconnectDelaySec int
	AlertHistoryLimit int

	// Mention fetching
	PageLimit int

	// Scheduler sweep (cron expression with seconds field)
	SweepSchedule string

	// Influence scoring weights and caps (defaults match the standard
	// 40/30/20/10 composite; override per deployment)
	ReachWeight      float64
	EngagementWeight float64
	VolumeWeight     float64
	SentimentWeight  float64
	ReachCap         float64
	EngagementCap    float64
	VolumeCap        float64
	TierElite        int
	TierTop          int
	TierRising       int

	// Extra source aliases, "alias=canonical" pairs
	SourceAliases map[string]string

	// Filter persistence
	FilterDBPath    string
	FilterKeyPrefix string

	// Azure Storage snapshot archive (optional)
	StorageAccount   string
	StorageContainer string

	// Critical alert forwarding (optional)
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		APIBaseURL:   getEnv("API_BASE_URL", ""),
		SessionToken: getEnv("API_SESSION_TOKEN", ""),
		UserID:       getEnv("DASHBOARD_USER_ID", ""),

		PushURL:           getEnv("PUSH_URL", ""),
		ReconnectAttempts: getIntEnv("PUSH_RECONNECT_ATTEMPTS", 5),
		ReconnectDelaySec: getIntEnv("PUSH_RECONNECT_DELAY_SECONDS", 1),
		AlertHistoryLimit: getIntEnv("ALERT_HISTORY_LIMIT", 100),

		PageLimit: getIntEnv("MENTIONS_PAGE_LIMIT", 20),

		SweepSchedule: getEnv("SWEEP_SCHEDULE", "0 * * * * *"),

		ReachWeight:      getFloatEnv("SCORE_REACH_WEIGHT", 40),
		EngagementWeight: getFloatEnv("SCORE_ENGAGEMENT_WEIGHT", 30),
		VolumeWeight:     getFloatEnv("SCORE_VOLUME_WEIGHT", 20),
		SentimentWeight:  getFloatEnv("SCORE_SENTIMENT_WEIGHT", 10),
		ReachCap:         getFloatEnv("SCORE_REACH_CAP", 100000),
		EngagementCap:    getFloatEnv("SCORE_ENGAGEMENT_CAP", 1000),
		VolumeCap:        getFloatEnv("SCORE_VOLUME_CAP", 10),
		TierElite:        getIntEnv("TIER_ELITE_MIN", 80),
		TierTop:          getIntEnv("TIER_TOP_MIN", 60),
		TierRising:       getIntEnv("TIER_RISING_MIN", 40),

		SourceAliases: getMapEnv("SOURCE_ALIASES"),

		FilterDBPath:    getEnv("FILTER_DB_PATH", "dashboard-filters.db"),
		FilterKeyPrefix: getEnv("FILTER_KEY_PREFIX", "mention_filters"),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "mention-snapshots"),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}

	if c.PageLimit <= 0 {
		return fmt.Errorf("MENTIONS_PAGE_LIMIT must be positive")
	}

	if c.AlertHistoryLimit <= 0 {
		return fmt.Errorf("ALERT_HISTORY_LIMIT must be positive")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getMapEnv(key string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(os.Getenv(key), ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		alias := strings.TrimSpace(parts[0])
		canonical := strings.TrimSpace(parts[1])
		if alias != "" && canonical != "" {
			result[alias] = canonical
		}
	}
	return result
}
