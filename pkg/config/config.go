// Package config loads the bot configuration from defaults, an optional
// config file, .env files and PHYSBOT_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/physum/physbot/pkg/util"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// discord.token -> PHYSBOT_DISCORD_TOKEN.
const EnvPrefix = "PHYSBOT"

const (
	DefaultLogLevel     = "info"
	DefaultLogMaxSizeMB = 20
	DefaultLogBackups   = 5
	DefaultLogMaxAge    = 28
	DefaultStatus       = "helping the Physum"
)

type Config struct {
	Discord    DiscordConfig    `mapstructure:"discord"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	Control    ControlConfig    `mapstructure:"control"`
	Moderation ModerationConfig `mapstructure:"moderation"`
}

type DiscordConfig struct {
	Token string `mapstructure:"token"`
	// GuildID scopes slash command registration to one guild. Empty registers globally.
	GuildID string `mapstructure:"guild_id"`
	Status  string `mapstructure:"status"`
	// Theme names the embed color theme.
	Theme string `mapstructure:"theme"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	NoColor    bool   `mapstructure:"no_color"`
}

type ControlConfig struct {
	// Listen is the health/metrics server address. Empty disables it.
	Listen string `mapstructure:"listen"`
}

type ModerationConfig struct {
	// Enabled turns on the deleted/edited message log.
	Enabled bool `mapstructure:"enabled"`
}

var ErrMissingToken = errors.New("discord token is not configured (set " + EnvPrefix + "_DISCORD_TOKEN)")

// SetDefaults registers every key with its default so that environment
// variables are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.guild_id", "")
	v.SetDefault("discord.status", DefaultStatus)
	v.SetDefault("discord.theme", "default")

	v.SetDefault("database.path", util.DefaultDatabasePath())

	v.SetDefault("log.dir", util.LogDir())
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.max_size_mb", DefaultLogMaxSizeMB)
	v.SetDefault("log.max_backups", DefaultLogBackups)
	v.SetDefault("log.max_age_days", DefaultLogMaxAge)
	v.SetDefault("log.no_color", false)

	v.SetDefault("control.listen", "")
	v.SetDefault("moderation.enabled", true)
}

// Load reads configuration into a Config. An empty configFile falls back to
// util.DefaultConfigFile when it exists; envFiles are loaded before the
// default .env locations.
func Load(v *viper.Viper, configFile string, envFiles ...string) (*Config, error) {
	util.LoadDotEnv(envFiles...)

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		if _, err := os.Stat(util.DefaultConfigFile()); err == nil {
			configFile = util.DefaultConfigFile()
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Discord.Token = strings.TrimSpace(cfg.Discord.Token)
	return &cfg, nil
}

// Validate checks the settings needed to connect to Discord.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return ErrMissingToken
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path is empty")
	}
	return nil
}
