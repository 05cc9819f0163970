// Package config loads and validates the YAML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file, applying defaults before
// validation. ${VAR} references are expanded from the environment so secrets
// like the server password stay out of the file.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	expanded := expandEnvVars(string(data))

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", absPath, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR} references with environment values. Unset
// variables expand to empty so validation can report the missing field.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// Validate checks the configuration for structural problems.
func Validate(cfg *Config) error {
	if cfg.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", cfg.Server.Timeout)
	}
	if cfg.Identity.Nick == "" {
		return fmt.Errorf("identity.nick is required")
	}
	if strings.ContainsAny(cfg.Identity.Nick, " \r\n") {
		return fmt.Errorf("identity.nick %q contains whitespace", cfg.Identity.Nick)
	}
	if cfg.Handlers.CommandPrefix == "" {
		return fmt.Errorf("handlers.command_prefix is required")
	}
	if cfg.Workers.Min < 1 {
		return fmt.Errorf("workers.min must be at least 1, got %d", cfg.Workers.Min)
	}
	if cfg.Workers.Max < cfg.Workers.Min {
		return fmt.Errorf("workers.max (%d) must be >= workers.min (%d)", cfg.Workers.Max, cfg.Workers.Min)
	}
	for i, ch := range cfg.Channels {
		if !strings.HasPrefix(ch, "#") && !strings.HasPrefix(ch, "&") {
			return fmt.Errorf("channels[%d]: %q is not a channel name", i, ch)
		}
	}
	if cfg.API.Enabled {
		if cfg.API.Listen == "" {
			return fmt.Errorf("api.listen is required when api.enabled is true")
		}
		if cfg.API.Auth.APIKey == "" {
			return fmt.Errorf("api.auth.api_key is required when api.enabled is true")
		}
	}
	switch strings.ToUpper(cfg.Service.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("service.log_level %q is not one of debug, info, warn, error", cfg.Service.LogLevel)
	}
	return nil
}
