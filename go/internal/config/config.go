package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type DiscordConfig struct {
	Token        string `yaml:"token"`
	GuildID      string `yaml:"guild_id"`
	CategoryID   string `yaml:"category_id"`
	CategoryName string `yaml:"category_name"`
	StaffRole    string `yaml:"staff_role"`
}

type RacesConfig struct {
	CommandPrefix  string        `yaml:"command_prefix"`
	DefaultGoal    string        `yaml:"default_goal"`
	MaxActive      int           `yaml:"max_active"`
	AutoCloseAfter time.Duration `yaml:"auto_close_after"`
}

type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
	QueueSize     int    `yaml:"queue_size"`
	Workers       int    `yaml:"workers"`
}

type GatewayConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the bot configuration. Values come from defaults, then the
// optional yaml file, then the environment.
type Config struct {
	Discord DiscordConfig `yaml:"discord"`
	Races   RacesConfig   `yaml:"races"`
	Events  EventsConfig  `yaml:"events"`
	Gateway GatewayConfig `yaml:"gateway"`
	Log     LogConfig     `yaml:"log"`
}

func Default() Config {
	return Config{
		Discord: DiscordConfig{
			CategoryName: "Race Rooms",
			StaffRole:    "SPRINT Staff",
		},
		Races: RacesConfig{
			CommandPrefix:  ".",
			DefaultGoal:    "F5 Null Normal Mild",
			MaxActive:      40,
			AutoCloseAfter: 5 * time.Minute,
		},
		Events: EventsConfig{
			Stream:        "RACE_EVENTS",
			SubjectPrefix: "race.events",
			QueueSize:     1000,
			Workers:       2,
		},
		Gateway: GatewayConfig{
			Addr:           ":8081",
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.Discord.Token = getEnv("DISCORD_TOKEN", c.Discord.Token)
	c.Discord.GuildID = getEnv("DISCORD_GUILD_ID", c.Discord.GuildID)
	c.Discord.CategoryID = getEnv("RACE_CATEGORY_ID", c.Discord.CategoryID)
	c.Discord.StaffRole = getEnv("STAFF_ROLE", c.Discord.StaffRole)

	c.Races.CommandPrefix = getEnv("COMMAND_PREFIX", c.Races.CommandPrefix)
	c.Races.DefaultGoal = getEnv("DEFAULT_GOAL", c.Races.DefaultGoal)
	c.Races.MaxActive = getEnvAsInt("MAX_RACES", c.Races.MaxActive)

	d, err := getEnvAsDuration("RACE_AUTO_CLOSE_AFTER", c.Races.AutoCloseAfter)
	if err != nil {
		return err
	}
	c.Races.AutoCloseAfter = d

	c.Events.NATSURL = getEnv("NATS_URL", c.Events.NATSURL)
	c.Events.Stream = getEnv("RACE_EVENTS_STREAM", c.Events.Stream)

	c.Gateway.Addr = getEnv("GATEWAY_ADDR", c.Gateway.Addr)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Discord.Token == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is required"))
	}
	if c.Discord.GuildID == "" {
		errs = append(errs, errors.New("DISCORD_GUILD_ID is required"))
	}
	if c.Discord.CategoryID == "" && c.Discord.CategoryName == "" {
		errs = append(errs, errors.New("a race category id or name is required"))
	}
	if c.Races.CommandPrefix == "" {
		errs = append(errs, errors.New("command prefix must not be empty"))
	}
	if c.Races.MaxActive < 1 {
		errs = append(errs, fmt.Errorf("max active races must be positive, got %d", c.Races.MaxActive))
	}
	if c.Races.AutoCloseAfter <= 0 {
		errs = append(errs, fmt.Errorf("auto close delay must be positive, got %s", c.Races.AutoCloseAfter))
	}
	if c.Events.Workers < 1 || c.Events.QueueSize < 1 {
		errs = append(errs, errors.New("event queue size and workers must be positive"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RelayConfig configures the GELF log relay.
type RelayConfig struct {
	Port        int
	Application string
	NATSURL     string
	Subject     string
	MetricsAddr string
	Log         LogConfig
}

func LoadRelay() (*RelayConfig, error) {
	cfg := &RelayConfig{
		Port:        getEnvAsInt("PORT", 12201),
		Application: getEnv("APPLICATION", "sprint-racebot"),
		NATSURL:     getEnv("NATS_URL", ""),
		Subject:     getEnv("TELEMETRY_SUBJECT", "telemetry.logs"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9102"),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or a plain number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
