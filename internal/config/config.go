// Package config loads scanprobe's YAML configuration. Every setting has a
// default, so a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/scanprobe/internal/db"
	"github.com/anstrom/scanprobe/internal/errors"
	"github.com/anstrom/scanprobe/internal/logging"
	"github.com/anstrom/scanprobe/internal/scanning"
	"github.com/anstrom/scanprobe/internal/workers"
)

const (
	configDirPerm  = 0755
	configFilePerm = 0644
)

// Config represents the complete scanprobe configuration
type Config struct {
	// Scanning configuration
	Scanning ScanningConfig `yaml:"scanning" json:"scanning"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics export
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Database configuration, only used when storing results
	Database db.Config `yaml:"database" json:"database"`
}

// ScanningConfig holds scan engine settings
type ScanningConfig struct {
	// Number of concurrent workers per scan
	WorkerPoolSize int `yaml:"worker_pool_size" json:"worker_pool_size" validate:"min=1,max=10000"`

	// Read timeout for banner capture
	BannerTimeout time.Duration `yaml:"banner_timeout" json:"banner_timeout" validate:"gt=0"`

	// Maximum banner bytes read per port
	BannerMaxBytes int `yaml:"banner_max_bytes" json:"banner_max_bytes" validate:"min=1,max=65536"`

	// Capture banners from open ports
	GrabBanners bool `yaml:"grab_banners" json:"grab_banners"`

	// Port dialed by the pre-scan reachability check
	ReachabilityPort int `yaml:"reachability_port" json:"reachability_port" validate:"min=1,max=65535"`

	// Timeout of the reachability check
	ReachabilityTimeout time.Duration `yaml:"reachability_timeout" json:"reachability_timeout" validate:"gt=0"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`

	// Log output (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig holds metrics export settings
type MetricsConfig struct {
	// Node exporter textfile written after each scan; empty disables export
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"`
}

var validate = newValidator()

// newValidator reports fields by their YAML names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	banner := scanning.DefaultBannerConfig()
	return &Config{
		Scanning: ScanningConfig{
			WorkerPoolSize:      workers.DefaultSize,
			BannerTimeout:       banner.Timeout,
			BannerMaxBytes:      banner.MaxBytes,
			GrabBanners:         true,
			ReachabilityPort:    80,
			ReachabilityTimeout: time.Second,
		},
		Logging: LoggingConfig{
			Level:  string(logging.LevelWarn),
			Format: string(logging.FormatText),
			Output: "stderr",
		},
		Database: db.DefaultConfig(),
	}
}

// Load loads configuration from a file, falling back to defaults when the
// file does not exist
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		return config, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "Failed to read config file", err)
	}

	// JSON is a subset of YAML, so one decoder serves both.
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration,
			fmt.Sprintf("Failed to parse config file %s", filepath.Base(path)), err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), configDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, configFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return errors.WrapConfigError(errors.CodeValidation, "Invalid configuration", err)
	}

	fe := verrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	cfgErr := errors.ErrConfigInvalid(field, fe.Value())
	cfgErr.Message = fmt.Sprintf("Invalid configuration value for %s (%s)", field, fe.Tag())
	cfgErr.Cause = err
	return cfgErr
}

// LoggingConfig converts the logging section for the logging package.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:     logging.LogLevel(c.Logging.Level),
		Format:    logging.LogFormat(c.Logging.Format),
		Output:    c.Logging.Output,
		AddSource: c.Logging.Level == string(logging.LevelDebug),
	}
}

// ScanOptions converts the scanning section into scanner options. Output,
// recorder and store are left for the caller to set.
func (c *Config) ScanOptions() scanning.Options {
	opts := scanning.DefaultOptions()
	opts.Workers = c.Scanning.WorkerPoolSize
	opts.ReachabilityPort = uint16(c.Scanning.ReachabilityPort)
	opts.ReachabilityTimeout = c.Scanning.ReachabilityTimeout
	opts.Banner = scanning.BannerConfig{
		Timeout:  c.Scanning.BannerTimeout,
		MaxBytes: c.Scanning.BannerMaxBytes,
	}
	opts.GrabBanners = c.Scanning.GrabBanners
	return opts
}
