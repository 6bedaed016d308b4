// Package config loads the tool's YAML configuration.
//
//	aspects_dir: ./aspects
//	source_dir: ./generated
//	log:
//	  level: info
//	  format: console
//	report:
//	  log_path: /var/log/contractweave/violations.log
//	  console: true
//	store:
//	  path: ./contractweave.db
//
// Every field is optional; Default supplies the missing values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the tool configuration.
type Config struct {
	// AspectsDir holds the CUE aspect definitions.
	AspectsDir string `yaml:"aspects_dir" validate:"required"`

	// SourceDir receives generated guard sources when set.
	SourceDir string `yaml:"source_dir"`

	Log    LogConfig    `yaml:"log"`
	Report ReportConfig `yaml:"report"`
	Store  StoreConfig  `yaml:"store"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// ReportConfig configures violation reporting.
type ReportConfig struct {
	// LogPath is the violation log file. Empty means the default path.
	LogPath string `yaml:"log_path"`

	// DisableFile turns the violation log file off.
	DisableFile bool `yaml:"disable_file"`

	// Console echoes violation bursts to stderr.
	Console bool `yaml:"console"`
}

// StoreConfig configures the SQLite journal.
type StoreConfig struct {
	// Path is the database file. Empty disables the journal.
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		AspectsDir: "aspects",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Report: ReportConfig{
			Console: true,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads path over the defaults. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q check", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
