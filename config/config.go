package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	StatusPlaying   = "playing"
	StatusListening = "listening"
	StatusWatching  = "watching"
)

// DefaultPingResponses is used when the guild file has no ping_responses key.
var DefaultPingResponses = []string{
	"Ping'chu!",
	"Who pinged me?",
	"I'm counting, don't worry.",
	"Pong.",
}

type AppConfig struct {
	DiscordBotToken       string
	DatabaseDriver        string
	DatabaseURL           string
	DatabaseSchema        string
	Port                  string
	CORSAllowedOrigins    string
	Environment           string
	LogLevel              string
	SlackAlertWebhookURL  string
	ServerLogsURL         string
	MaxConcurrentMessages int
	GuildConfigPath       string

	Guilds *GuildConfig

	// Warnings collects non-fatal problems found while loading, logged once the logger exists.
	Warnings []string
}

type AllowedServer struct {
	LogChannel string `koanf:"log_channel"`
}

// GuildConfig is the per-deployment bot file: presence, canned replies and the guild allow-list.
type GuildConfig struct {
	Status         string                   `koanf:"status"`
	StatusType     string                   `koanf:"status_type"`
	PingResponses  []string                 `koanf:"ping_responses"`
	AllowedServers map[string]AllowedServer `koanf:"allowed_servers"`

	// FromDefaults is set when the guild file does not exist.
	FromDefaults bool `koanf:"-"`
}

// IsAllowed reports whether messages from the guild should be tracked.
func (c *GuildConfig) IsAllowed(guildID string) bool {
	_, ok := c.AllowedServers[guildID]
	return ok
}

// LogChannels maps each allowed guild to its configured log channel.
func (c *GuildConfig) LogChannels() map[string]string {
	channels := make(map[string]string, len(c.AllowedServers))
	for guildID, server := range c.AllowedServers {
		if server.LogChannel != "" {
			channels[guildID] = server.LogChannel
		}
	}
	return channels
}

func LoadConfig() (*AppConfig, error) {
	var warnings []string
	if err := godotenv.Load(); err != nil {
		warnings = append(warnings, "could not load .env file, continuing with system env vars")
	}

	botToken, err := getEnvRequired("DISCORD_BOT_TOKEN")
	if err != nil {
		return nil, err
	}

	driver := getEnvWithDefault("DB_DRIVER", "sqlite")
	defaultSchema := "public"
	defaultURL := ""
	switch driver {
	case "sqlite":
		defaultSchema = "main"
		defaultURL = ".data/pingwatch.db"
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	databaseURL := getEnvWithDefault("DB_URL", defaultURL)
	if driver == "postgres" && databaseURL == "" {
		return nil, fmt.Errorf("DB_URL is not set")
	}

	maxConcurrent, err := getEnvInt("MAX_CONCURRENT_MESSAGES", 16)
	if err != nil {
		return nil, err
	}

	config := &AppConfig{
		DiscordBotToken:       botToken,
		DatabaseDriver:        driver,
		DatabaseURL:           databaseURL,
		DatabaseSchema:        getEnvWithDefault("DB_SCHEMA", defaultSchema),
		Port:                  getEnvWithDefault("PORT", "8080"),
		CORSAllowedOrigins:    getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*"),
		Environment:           getEnvWithDefault("ENVIRONMENT", "dev"),
		LogLevel:              getEnvWithDefault("LOG_LEVEL", "info"),
		SlackAlertWebhookURL:  os.Getenv("SLACK_ALERT_WEBHOOK_URL"),
		ServerLogsURL:         os.Getenv("SERVER_LOGS_URL"),
		MaxConcurrentMessages: maxConcurrent,
		GuildConfigPath:       getEnvWithDefault("PINGWATCH_CONFIG", ".data/config.toml"),
	}

	guilds, err := LoadGuildConfig(config.GuildConfigPath)
	if err != nil {
		return nil, err
	}
	config.Guilds = guilds

	if guilds.FromDefaults {
		warnings = append(warnings, fmt.Sprintf("guild config %s not found, using defaults", config.GuildConfigPath))
	}
	if config.SlackAlertWebhookURL == "" {
		warnings = append(warnings, "SLACK_ALERT_WEBHOOK_URL not set, error alerts will only be logged")
	}
	if len(guilds.AllowedServers) == 0 {
		warnings = append(warnings, "no allowed_servers configured, every message will be ignored")
	}
	config.Warnings = warnings

	return config, nil
}

// LoadGuildConfig reads the TOML guild file. A missing file yields the defaults.
func LoadGuildConfig(path string) (*GuildConfig, error) {
	k := koanf.New(".")
	missing := false
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load guild config %s: %w", path, err)
		}
		missing = true
	}

	var cfg GuildConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode guild config: %w", err)
	}
	cfg.FromDefaults = missing

	if !k.Exists("ping_responses") {
		cfg.PingResponses = append([]string(nil), DefaultPingResponses...)
	}
	if cfg.StatusType == "" {
		cfg.StatusType = StatusPlaying
	}
	cfg.StatusType = strings.ToLower(cfg.StatusType)
	switch cfg.StatusType {
	case StatusPlaying, StatusListening, StatusWatching:
	default:
		return nil, fmt.Errorf("invalid status_type %q: must be playing, listening or watching", cfg.StatusType)
	}
	if cfg.AllowedServers == nil {
		cfg.AllowedServers = map[string]AllowedServer{}
	}

	return &cfg, nil
}

func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set", key)
	}
	return value, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, value)
	}
	return n, nil
}
