// Package config loads the agent configuration: defaults, then an
// optional YAML file, then environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full agent configuration.
type Config struct {
	Ollama       OllamaConfig       `yaml:"ollama"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Session      SessionConfig      `yaml:"session"`
	Store        StoreConfig        `yaml:"store"`
	Personality  PersonalityConfig  `yaml:"personality"`
	Files        FilesConfig        `yaml:"files"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// OllamaConfig locates and tunes the model endpoint.
type OllamaConfig struct {
	Host        string  `yaml:"host"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	NumCtx      int     `yaml:"num_ctx"`
	NumPredict  int     `yaml:"num_predict"`
}

type OrchestratorConfig struct {
	// Timeout bounds one turn's execution phase. Zero disables it.
	Timeout     time.Duration `yaml:"timeout"`
	MaxParallel int           `yaml:"max_parallel"`
}

type SessionConfig struct {
	Window int `yaml:"window"`
}

type StoreConfig struct {
	// Path of the transcript database. Empty disables persistence.
	Path string `yaml:"path"`
}

type PersonalityConfig struct {
	// Path of the persona YAML. Empty uses the built-in persona.
	Path string `yaml:"path"`
	// Watch reloads the persona when the file changes.
	Watch bool `yaml:"watch"`
}

type FilesConfig struct {
	// Root confines file operations. Empty disables the file router.
	Root string `yaml:"root"`
}

type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Ollama: OllamaConfig{
			Host:        "http://127.0.0.1:11434",
			Model:       "qwen3:8b",
			Temperature: 0.7,
			NumCtx:      8192,
		},
		Orchestrator: OrchestratorConfig{
			Timeout:     2 * time.Minute,
			MaxParallel: 4,
		},
		Session: SessionConfig{Window: 20},
	}
}

// Load builds the effective configuration. A missing file at the default
// location is fine; an explicitly requested file must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// no file, defaults apply
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// DefaultPath is where Load looks when no --config flag is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "maestro.yaml"
	}
	return filepath.Join(home, ".maestro", "config.yaml")
}

// applyEnv layers MAESTRO_* environment overrides on top of file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MAESTRO_OLLAMA_HOST"); v != "" {
		cfg.Ollama.Host = v
	}
	if v := os.Getenv("MAESTRO_MODEL"); v != "" {
		cfg.Ollama.Model = v
	}
	if v := os.Getenv("MAESTRO_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Orchestrator.Timeout = d
		}
	}
	if v := os.Getenv("MAESTRO_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.Debug = b
		}
	}
}
