package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the tabsynth API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Storage  StorageConfig  `yaml:"storage"`
	Sampler  SamplerConfig  `yaml:"sampler"`
	Model    ModelConfig    `yaml:"model"`
	FieldGen FieldGenConfig `yaml:"fieldgen"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
}

// StorageConfig holds dataset artifact storage settings.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// SamplerConfig bounds the constrained resampling loop.
type SamplerConfig struct {
	MaxRounds        int `yaml:"max_rounds"`
	MaxSampledFactor int `yaml:"max_sampled_factor"` // cap = factor * requested rows
	MaxDurationSec   int `yaml:"max_duration_sec"`   // 0 = no wall-clock budget
}

// ModelConfig selects and configures generative model backends.
type ModelConfig struct {
	DefaultBackend string    `yaml:"default_backend"` // empirical, llm
	Seed           uint64    `yaml:"seed"`            // 0 = nondeterministic
	LLM            LLMConfig `yaml:"llm"`
}

// LLMConfig holds the OpenAI-compatible backend settings.
type LLMConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Provider       string  `yaml:"provider"`
	Temperature    float64 `yaml:"temperature"`
	MaxExampleRows int     `yaml:"max_example_rows"`
}

// FieldGenConfig holds rule-based generator settings.
type FieldGenConfig struct {
	MaxRecords int    `yaml:"max_records"`
	Seed       uint64 `yaml:"seed"` // 0 = nondeterministic
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 32
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Sampler.MaxRounds <= 0 {
		c.Sampler.MaxRounds = 25
	}
	if c.Sampler.MaxSampledFactor <= 0 {
		c.Sampler.MaxSampledFactor = 100
	}
	if c.Model.DefaultBackend == "" {
		c.Model.DefaultBackend = "empirical"
	}
	if c.Model.LLM.MaxExampleRows <= 0 {
		c.Model.LLM.MaxExampleRows = 20
	}
	if c.Model.LLM.Temperature <= 0 {
		c.Model.LLM.Temperature = 1.0
	}
	if c.FieldGen.MaxRecords <= 0 {
		c.FieldGen.MaxRecords = 50000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Model.DefaultBackend {
	case "empirical", "llm":
		// ok
	default:
		return fmt.Errorf("model.default_backend must be \"empirical\" or \"llm\", got %q",
			c.Model.DefaultBackend)
	}
	if c.Model.DefaultBackend == "llm" && c.Model.LLM.Model == "" {
		return fmt.Errorf("model.llm.model is required when the llm backend is the default")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
