// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// legacyConfigPath is the path to the configuration file used in previous versions.
	legacyConfigPath = "config.json"
	// defaultRequestTimeout is the default timeout for HTTP requests to the backend.
	defaultRequestTimeout = 600 * time.Second
	// DefaultOutputDir holds sweep artifacts when neither the flag nor the
	// environment provides a location.
	DefaultOutputDir = "results/role_assume_ablation"
	// OutputDirEnv overrides DefaultOutputDir when set (e.g. a mounted drive).
	OutputDirEnv = "NUMLEAK_OUTPUT_DIR"
)

// Config represents the top-level application configuration.
type Config struct {
	Host            Host    `json:"host"`
	Debug           bool    `json:"debug"`
	Seed            int64   `json:"seed"`
	Temperature     float64 `json:"temperature"`
	BatchSize       int     `json:"batchSize"`
	MaxNewTokens    int     `json:"maxNewTokens"`
	TimeoutSeconds  int     `json:"timeout,omitempty"`
	LogFile         string  `json:"logFile,omitempty"`
	OutputDir       string  `json:"outputDir,omitempty"`
	ResponderBinary string  `json:"responderBinary,omitempty"`
	TargetLexeme    string  `json:"targetLexeme,omitempty"`
	ConfigPath      string  `json:"-"`
}

// Host represents the generation backend endpoint.
type Host struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Type  string `json:"type"`
	Model string `json:"model"`
}

// RequestTimeout returns the timeout duration for HTTP requests, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "numleak.log"
}

// ResponderBinaryPath returns the resolved roleplay responder binary path.
func (c Config) ResponderBinaryPath() string {
	if b := strings.TrimSpace(c.ResponderBinary); b != "" {
		return b
	}
	return "dist/numleak-responder"
}

// Lexeme returns the configured target lexeme, defaulting to "owl".
func (c Config) Lexeme() string {
	if l := strings.TrimSpace(c.TargetLexeme); l != "" {
		return l
	}
	return "owl"
}

// DefaultTemperature returns the configured sampling temperature, defaulting
// to 0.1 when the config omits it.
func (c Config) DefaultTemperature() float64 {
	if c.Temperature > 0 {
		return c.Temperature
	}
	return 0.1
}

// DefaultBatchSize returns the configured generation batch size, minimum 1.
func (c Config) DefaultBatchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return 1
}

// ResolveOutputDir resolves the sweep output directory exactly once:
// override flag first, then the environment, then the packaged default.
// Callers must hold the result for the remainder of the run rather than
// re-reading the environment.
func ResolveOutputDir(override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	if env := strings.TrimSpace(os.Getenv(OutputDirEnv)); env != "" {
		return env
	}
	return DefaultOutputDir
}

// Load reads the application configuration from the specified path, with fallback to a legacy path.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := loadFromPath(path)
	if err == nil {
		if config.Host.URL == "" {
			return Config{}, errors.New("config must define a backend host URL")
		}
		config.ConfigPath = path
		return config, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		if path == DefaultConfigPath {
			config, legacyErr := loadFromPath(legacyConfigPath)
			if legacyErr == nil {
				if config.Host.URL == "" {
					return Config{}, errors.New("config must define a backend host URL")
				}
				config.ConfigPath = legacyConfigPath
				return config, nil
			}
			if errors.Is(legacyErr, os.ErrNotExist) {
				return Config{}, fmt.Errorf("no configuration file found (searched %q and %q)", DefaultConfigPath, legacyConfigPath)
			}
			return Config{}, fmt.Errorf("could not read config file %q: %w", legacyConfigPath, legacyErr)
		}
		return Config{}, fmt.Errorf("no configuration file found at %q", path)
	}

	return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
}

// loadFromPath is a helper function that loads the configuration from a specific file path.
func loadFromPath(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return Config{}, err
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = int(defaultRequestTimeout.Seconds())
	}

	return config, nil
}
