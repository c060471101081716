package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	TransportTelegram = "telegram"
	TransportDiscord  = "discord"

	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Transport   string            `mapstructure:"transport"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Discord     DiscordConfig     `mapstructure:"discord"`
	Database    DatabaseConfig    `mapstructure:"database"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
	Bot         BotConfig         `mapstructure:"bot"`
	Log         LogConfig         `mapstructure:"log"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
	// OwnerID is the Telegram user whose messages teach the style.
	OwnerID int64 `mapstructure:"owner_id"`
}

type DiscordConfig struct {
	Token   string `mapstructure:"token"`
	OwnerID string `mapstructure:"owner_id"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OpenAIConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	Model             string  `mapstructure:"model"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
}

type BotConfig struct {
	ChatsConfigPath string        `mapstructure:"chats_config_path"`
	PromptsPath     string        `mapstructure:"prompts_path"`
	CommandPrefix   string        `mapstructure:"command_prefix"`
	Debounce        time.Duration `mapstructure:"debounce"`
	SpecialDebounce time.Duration `mapstructure:"special_debounce"`
	DedupWindow     time.Duration `mapstructure:"dedup_window"`
	HistoryLimit    int           `mapstructure:"history_limit"`
	HistoryMaxAge   time.Duration `mapstructure:"history_max_age"`
	LearnBatch      int64         `mapstructure:"learn_batch"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type MaintenanceConfig struct {
	Schedule      string `mapstructure:"schedule"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Retention is the history retention window; zero disables pruning.
func (m MaintenanceConfig) Retention() time.Duration {
	return time.Duration(m.RetentionDays) * 24 * time.Hour
}

// StorageDriver resolves the legacy use_in_memory flag.
func (d DatabaseConfig) StorageDriver() string {
	if d.UseInMemory {
		return DriverMemory
	}
	return d.Driver
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Driver:   DriverPostgres,
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transport", TransportTelegram)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/mimic.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 300)
	v.SetDefault("openai.temperature", 0.9)
	v.SetDefault("openai.requests_per_minute", 20)

	v.SetDefault("bot.chats_config_path", "config/chats.json")
	v.SetDefault("bot.command_prefix", "!")
	v.SetDefault("bot.debounce", 30*time.Second)
	v.SetDefault("bot.special_debounce", 15*time.Second)
	v.SetDefault("bot.dedup_window", 10*time.Second)
	v.SetDefault("bot.history_limit", 10)
	v.SetDefault("bot.history_max_age", time.Hour)
	v.SetDefault("bot.learn_batch", 50)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("maintenance.schedule", "0 4 * * *")
	v.SetDefault("maintenance.retention_days", 30)
}

// LoadConfig reads the YAML file at path. A missing file is not an error;
// defaults and environment variables are used instead.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if token := v.GetString("DISCORD_TOKEN"); token != "" {
		config.Discord.Token = token
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	return &config, nil
}

// Validate checks the credentials needed to start.
func (c *Config) Validate() error {
	var errs []error

	switch c.Transport {
	case TransportTelegram:
		if c.Telegram.Token == "" {
			errs = append(errs, errors.New("telegram.token is required"))
		}
		if c.Telegram.OwnerID == 0 {
			errs = append(errs, errors.New("telegram.owner_id is required"))
		}
	case TransportDiscord:
		if c.Discord.Token == "" {
			errs = append(errs, errors.New("discord.token is required"))
		}
		if c.Discord.OwnerID == "" {
			errs = append(errs, errors.New("discord.owner_id is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}

	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("openai.api_key is required"))
	}

	switch c.Database.StorageDriver() {
	case DriverMemory:
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			errs = append(errs, errors.New("database.host and database.dbname are required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	return errors.Join(errs...)
}
