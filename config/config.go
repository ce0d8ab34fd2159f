// Package config loads application configuration from config.yaml and
// QUICKNOTE_* environment variables via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration object.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Media    MediaConfig    `mapstructure:"media"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Backup   BackupConfig   `mapstructure:"backup"`
}

// ServerConfig configures the HTTP trigger surface.
type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// DatabaseConfig configures the local note store.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// MediaConfig configures local attachment storage.
type MediaConfig struct {
	RootPath string `mapstructure:"root_path"`
}

// SyncConfig configures the sync manager.
type SyncConfig struct {
	// AutoSyncInterval is the auto-sync timer period in minutes. Zero
	// disables the timer.
	AutoSyncInterval int `mapstructure:"auto_sync_interval"`
	// NetworkTimeout is the upper bound for a single remote call, seconds.
	NetworkTimeout int `mapstructure:"network_timeout"`
}

// BackupConfig configures export/import paths.
type BackupConfig struct {
	// ExportDir is where export archives are written.
	ExportDir string `mapstructure:"export_dir"`
	// ShareDir is the outbox directory ShareBackupFile hands files to.
	ShareDir string `mapstructure:"share_dir"`
}

// AutoSyncPeriod returns the auto-sync interval as a duration.
func (c SyncConfig) AutoSyncPeriod() time.Duration {
	return time.Duration(c.AutoSyncInterval) * time.Minute
}

// NetworkTimeoutDuration returns the per-call network timeout as a duration.
func (c SyncConfig) NetworkTimeoutDuration() time.Duration {
	return time.Duration(c.NetworkTimeout) * time.Second
}

// Load reads configuration from the working directory, applying defaults and
// environment overrides.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("QUICKNOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/quicknote.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 3600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "logs/quicknote.log")

	v.SetDefault("media.root_path", "data/media")

	v.SetDefault("sync.auto_sync_interval", 30)
	v.SetDefault("sync.network_timeout", 60)

	v.SetDefault("backup.export_dir", "data/exports")
	v.SetDefault("backup.share_dir", "data/share")
}
