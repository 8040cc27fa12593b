package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// RoleReaction binds one emoji on the role message to a guild role.
type RoleReaction struct {
	Name    string `mapstructure:"name"`
	EmojiID string `mapstructure:"emoji_id"`
	RoleID  string `mapstructure:"role_id"`
	Label   string `mapstructure:"label"`
}

// ReactionRoles describes the message members react to for self-assigned roles.
type ReactionRoles struct {
	ChannelID string         `mapstructure:"channel_id"`
	MessageID string         `mapstructure:"message_id"`
	Title     string         `mapstructure:"title"`
	Roles     []RoleReaction `mapstructure:"roles"`
}

// Database holds the connection settings. Driver is "sqlite" or "mysql".
type Database struct {
	Driver   string
	Path     string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN returns the driver-specific data source name.
func (d Database) DSN() string {
	if d.Driver == "mysql" {
		port := d.Port
		if port == "" {
			port = "3306"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, port, d.Name)
	}
	return d.Path
}

// Config holds the application configuration loaded from the environment and
// the static settings file.
type Config struct {
	DiscordKey string
	DB         Database
	StatusAddr string

	Prefix            string
	AdminIDs          []string
	DebugChannelID    string
	ClipChannelID     string
	SweepInterval     time.Duration
	MovieCooldownDays int
	ClipDeleteAfter   time.Duration
	ReactionRoles     ReactionRoles
	SwearWords        []string
}

const defaultSettingsFile = "config.yaml"

// Load reads environment variables (optionally from the .env file at envPath)
// and the static settings file at settingsPath.
// If envPath is empty, .env in the working directory is loaded when present.
// If settingsPath is empty, config.yaml in the working directory is read when
// present; an explicit settingsPath that cannot be read is an error.
// DISCORD_KEY (or BOT_TOKEN) must be set.
func Load(envPath, settingsPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	discordKey := os.Getenv("DISCORD_KEY")
	if discordKey == "" {
		discordKey = os.Getenv("BOT_TOKEN")
	}
	if discordKey == "" {
		return nil, fmt.Errorf("DISCORD_KEY is not set (set it in your environment or use -env path to a .env file)")
	}

	v, err := readSettings(settingsPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DiscordKey:        discordKey,
		DB:                databaseFromEnv(),
		StatusAddr:        os.Getenv("STATUS_ADDR"),
		Prefix:            v.GetString("prefix"),
		AdminIDs:          cleanList(v.GetStringSlice("admin_ids")),
		DebugChannelID:    v.GetString("debug_channel_id"),
		ClipChannelID:     v.GetString("clip_channel_id"),
		SweepInterval:     v.GetDuration("sweep_interval"),
		MovieCooldownDays: v.GetInt("movie_cooldown_days"),
		ClipDeleteAfter:   v.GetDuration("clip_delete_after"),
		SwearWords:        cleanList(v.GetStringSlice("swear_words")),
	}
	if err := v.UnmarshalKey("reaction_roles", &cfg.ReactionRoles); err != nil {
		return nil, fmt.Errorf("error parsing reaction_roles: %w", err)
	}

	// Environment wins over the settings file.
	if ids := os.Getenv("ADMIN_IDS"); ids != "" {
		cfg.AdminIDs = cleanList(strings.Split(ids, ","))
	}
	if ch := os.Getenv("DEBUG_CHANNEL_ID"); ch != "" {
		cfg.DebugChannelID = ch
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Second
	}
	return cfg, nil
}

func readSettings(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("prefix", "!")
	v.SetDefault("sweep_interval", "10s")
	v.SetDefault("movie_cooldown_days", 182)
	v.SetDefault("clip_delete_after", "6h")
	v.SetDefault("reaction_roles.title", "Roles: Game Updates")

	explicit := path != ""
	if !explicit {
		path = defaultSettingsFile
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return v, nil
		}
		return nil, fmt.Errorf("error reading settings file %s: %w", path, err)
	}
	return v, nil
}

func databaseFromEnv() Database {
	db := Database{
		Driver:   strings.ToLower(os.Getenv("DB_DRIVER")),
		Path:     os.Getenv("DB_PATH"),
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     os.Getenv("DB_NAME"),
	}
	if db.Driver == "" {
		db.Driver = "sqlite"
	}
	if db.Path == "" {
		db.Path = "database.db"
	}
	return db
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
