package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Editor  EditorConfig  `mapstructure:"editor"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	Production  bool     `mapstructure:"production"`
	CorsOrigins []string `mapstructure:"cors_origins"`
}

// RemoteConfig points at the project store of record
type RemoteConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	ProjectID      string `mapstructure:"project_id"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// EditorConfig tunes gesture and persistence behavior
type EditorConfig struct {
	SnapThreshold      float64 `mapstructure:"snap_threshold"`
	AutosaveDebounceMs int     `mapstructure:"autosave_debounce_ms"`
	RowHeight          float64 `mapstructure:"row_height"`
	PixelsPerSecond    float64 `mapstructure:"pixels_per_second"`
}

type StorageConfig struct {
	DraftDir string `mapstructure:"draft_dir"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// RemoteTimeout returns the project API timeout as a duration
func (c RemoteConfig) RemoteTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AutosaveDelay returns the debounce window as a duration
func (c EditorConfig) AutosaveDelay() time.Duration {
	return time.Duration(c.AutosaveDebounceMs) * time.Millisecond
}

func Load(configPath string) (*Config, error) {
	// .env values never override variables already set in the environment
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/framefold/")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".framefold"))
	}

	v.SetEnvPrefix("FRAMEFOLD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Storage.DraftDir == "" {
		cfg.Storage.DraftDir = "/var/framefold/drafts"
	}
	cfg.Storage.DraftDir = os.ExpandEnv(cfg.Storage.DraftDir)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.production", false)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Remote defaults
	v.SetDefault("remote.base_url", "http://localhost:8000")
	v.SetDefault("remote.timeout_seconds", 30)

	// Editor defaults
	v.SetDefault("editor.snap_threshold", 0.5)
	v.SetDefault("editor.autosave_debounce_ms", 1000)
	v.SetDefault("editor.row_height", 40)
	v.SetDefault("editor.pixels_per_second", 50)

	// Storage defaults
	v.SetDefault("storage.draft_dir", "/var/framefold/drafts")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("log.compress", true)
}
