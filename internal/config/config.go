// Package config loads gitpulse settings from YAML files, .env files, and
// environment variables, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime settings.
type Config struct {
	Storage  StorageConfig     `yaml:"storage" mapstructure:"storage"`
	Analysis AnalysisConfig    `yaml:"analysis" mapstructure:"analysis"`
	Cache    CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Projects map[string]string `yaml:"projects" mapstructure:"projects"` // project id -> repo path
}

type StorageConfig struct {
	Type        string `yaml:"type" mapstructure:"type"` // "sqlite", "postgres"
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	LocalPath   string `yaml:"local_path" mapstructure:"local_path"`
}

type AnalysisConfig struct {
	WindowDays int `yaml:"window_days" mapstructure:"window_days"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Path    string        `yaml:"path" mapstructure:"path"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".gitpulse", "gitpulse.db"),
		},
		Analysis: AnalysisConfig{
			WindowDays: 90,
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    filepath.Join(homeDir, ".gitpulse", "history.cache"),
			TTL:     24 * time.Hour,
		},
		Projects: map[string]string{},
	}
}

// Load reads configuration. path may be empty, in which case the standard
// locations (.gitpulse/, ., ~/.gitpulse/) are searched. A missing config file
// is not an error; defaults apply.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("analysis", cfg.Analysis)
	v.SetDefault("cache", cfg.Cache)

	v.SetEnvPrefix("GITPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".gitpulse")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".gitpulse"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	for id, repoPath := range cfg.Projects {
		cfg.Projects[id] = expandPath(repoPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("storage.local_path is required for sqlite storage")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q (want sqlite or postgres)", c.Storage.Type)
	}

	if c.Analysis.WindowDays < 1 {
		return fmt.Errorf("analysis.window_days must be at least 1, got %d", c.Analysis.WindowDays)
	}
	return nil
}

// loadEnvFiles loads .env files in order of precedence. Missing files are
// fine; these only exist in development setups.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".gitpulse", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

func applyEnvOverrides(cfg *Config) {
	if storageType := os.Getenv("GITPULSE_STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("GITPULSE_POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if path := os.Getenv("GITPULSE_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}
	if days := os.Getenv("GITPULSE_WINDOW_DAYS"); days != "" {
		if n, err := strconv.Atoi(days); err == nil {
			cfg.Analysis.WindowDays = n
		}
	}
	if path := os.Getenv("GITPULSE_CACHE_PATH"); path != "" {
		cfg.Cache.Path = expandPath(path)
	}
	if ttl := os.Getenv("GITPULSE_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.Cache.TTL = d
		}
	}
}

// expandPath resolves a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}
