package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the downloader
type Config struct {
	// Twitter API credentials
	Twitter TwitterConfig `yaml:"twitter" json:"twitter"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// PhotoPrism integration settings
	PhotoPrism PhotoPrismConfig `yaml:"photoprism" json:"photoprism"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// TwitterConfig holds the OAuth 1.0a credential pairs
type TwitterConfig struct {
	ConsumerKey       string        `yaml:"consumer_key" json:"consumer_key"`
	ConsumerSecret    string        `yaml:"consumer_secret" json:"consumer_secret"`
	AccessToken       string        `yaml:"access_token" json:"access_token"`
	AccessTokenSecret string        `yaml:"access_token_secret" json:"access_token_secret"`
	APITimeout        time.Duration `yaml:"api_timeout" json:"api_timeout"`
}

// DownloadConfig holds download and blacklist settings
type DownloadConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	// BlacklistFile is the line-oriented exclusion list, one tweet ID per line
	BlacklistFile string `yaml:"blacklist_file" json:"blacklist_file"`
	// TagsFile maps author handles to PhotoPrism label slugs
	TagsFile string `yaml:"tags_file" json:"tags_file"`
	// CreateDirAfterFiles is the per-author file count after which new
	// downloads go into a per-author subdirectory
	CreateDirAfterFiles int           `yaml:"create_dir_after_files" json:"create_dir_after_files"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries          int           `yaml:"max_retries" json:"max_retries"`
}

// RateLimitConfig holds client-side pacing configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// PhotoPrismConfig holds settings for the optional PhotoPrism integration
type PhotoPrismConfig struct {
	DatabasePath     string `yaml:"database_path" json:"database_path"`
	RecentAlbum      string `yaml:"recent_album" json:"recent_album"`
	RecentMediaHours int    `yaml:"recent_media_hours" json:"recent_media_hours"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Twitter: TwitterConfig{
			APITimeout: 15 * time.Second,
		},
		Download: DownloadConfig{
			Directory:           "./downloads",
			BlacklistFile:       "blacklist.txt",
			TagsFile:            "tags.yaml",
			CreateDirAfterFiles: 10,
			Timeout:             30 * time.Second,
			MaxRetries:          5,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		PhotoPrism: PhotoPrismConfig{
			RecentAlbum:      "recent",
			RecentMediaHours: 24,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("TWDL_CONSUMER_KEY"); v != "" {
		c.Twitter.ConsumerKey = v
	}
	if v := os.Getenv("TWDL_CONSUMER_SECRET"); v != "" {
		c.Twitter.ConsumerSecret = v
	}
	if v := os.Getenv("TWDL_ACCESS_TOKEN"); v != "" {
		c.Twitter.AccessToken = v
	}
	if v := os.Getenv("TWDL_ACCESS_TOKEN_SECRET"); v != "" {
		c.Twitter.AccessTokenSecret = v
	}
	if v := os.Getenv("TWDL_DOWNLOAD_DIR"); v != "" {
		c.Download.Directory = v
	}
	if v := os.Getenv("TWDL_BLACKLIST_FILE"); v != "" {
		c.Download.BlacklistFile = v
	}
	if v := os.Getenv("TWDL_TAGS_FILE"); v != "" {
		c.Download.TagsFile = v
	}
	if v := os.Getenv("TWDL_REQUESTS_PER_MINUTE"); v != "" {
		var val int
		fmt.Sscanf(v, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if v := os.Getenv("TWDL_PHOTOPRISM_DB"); v != "" {
		c.PhotoPrism.DatabasePath = v
	}
	if v := os.Getenv("TWDL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".twdl.yaml",
		".twdl.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "twdl", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "twdl", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".twdl.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Download.Directory == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if c.Download.BlacklistFile == "" {
		errs = append(errs, errors.New("blacklist file path is required"))
	}
	if c.Download.CreateDirAfterFiles <= 0 {
		errs = append(errs, errors.New("create_dir_after_files must be positive"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ValidateCredentials checks that all four Twitter tokens are present.
// Kept separate from Validate because tokens may still arrive from the
// credential store after the file/env phases.
func (c *Config) ValidateCredentials() error {
	var errs []error

	if c.Twitter.ConsumerKey == "" {
		errs = append(errs, errors.New("Twitter consumer key is required"))
	}
	if c.Twitter.ConsumerSecret == "" {
		errs = append(errs, errors.New("Twitter consumer secret is required"))
	}
	if c.Twitter.AccessToken == "" {
		errs = append(errs, errors.New("Twitter access token is required"))
	}
	if c.Twitter.AccessTokenSecret == "" {
		errs = append(errs, errors.New("Twitter access token secret is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dir, ok := flags["output"].(string); ok && dir != "" {
		c.Download.Directory = dir
	}
	if blacklist, ok := flags["blacklist-file"].(string); ok && blacklist != "" {
		c.Download.BlacklistFile = blacklist
	}
	if threshold, ok := flags["create-dir-after-files"].(int); ok && threshold > 0 {
		c.Download.CreateDirAfterFiles = threshold
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".twdl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
