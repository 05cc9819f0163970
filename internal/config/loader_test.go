package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `service:
  name: kaa
  log_level: debug
server:
  host: irc.libera.chat
  port: 6697
  ssl: true
  timeout: 5m
identity:
  nick: kaa
  realname: kaa the bot
channels:
  - "#kaa"
  - "#kaa-dev"
handlers:
  dir: ./handlers
  command_prefix: "."
workers:
  min: 2
  max: 5
state:
  path: ./data/state.db
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "irc.libera.chat", cfg.Server.Host)
	assert.Equal(t, 6697, cfg.Server.Port)
	assert.True(t, cfg.Server.SSL)
	assert.Equal(t, 5*time.Minute, cfg.Server.Timeout)
	assert.Equal(t, []string{"#kaa", "#kaa-dev"}, cfg.Channels)
	assert.Equal(t, 2, cfg.Workers.Min)
	assert.Equal(t, 5, cfg.Workers.Max)
}

func TestLoad_DefaultsFillUnsetFields(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  host: irc.example.org\n"))
	require.NoError(t, err)

	assert.Equal(t, 6667, cfg.Server.Port)
	assert.Equal(t, 300*time.Second, cfg.Server.Timeout)
	assert.Equal(t, ".", cfg.Handlers.CommandPrefix)
	assert.Equal(t, 3, cfg.Workers.Min)
	assert.Equal(t, 7, cfg.Workers.Max)
	assert.Equal(t, "kaa", cfg.Identity.Nick)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("KAA_TEST_PASSWORD", "hunter2")
	cfg, err := Load(writeConfig(t, "server:\n  host: irc.example.org\n  password: ${KAA_TEST_PASSWORD}\n"))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Server.Password)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "config file not found")
}

func TestValidate_RejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Server.Host = "" },
			wantErr: "server.host",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Server.Timeout = 0 },
			wantErr: "server.timeout",
		},
		{
			name:    "empty nick",
			mutate:  func(c *Config) { c.Identity.Nick = "" },
			wantErr: "identity.nick",
		},
		{
			name:    "nick with space",
			mutate:  func(c *Config) { c.Identity.Nick = "ka a" },
			wantErr: "whitespace",
		},
		{
			name:    "empty prefix",
			mutate:  func(c *Config) { c.Handlers.CommandPrefix = "" },
			wantErr: "command_prefix",
		},
		{
			name:    "workers min zero",
			mutate:  func(c *Config) { c.Workers.Min = 0 },
			wantErr: "workers.min",
		},
		{
			name:    "workers max below min",
			mutate:  func(c *Config) { c.Workers.Min = 5; c.Workers.Max = 2 },
			wantErr: "workers.max",
		},
		{
			name:    "bad channel name",
			mutate:  func(c *Config) { c.Channels = []string{"kaa"} },
			wantErr: "not a channel name",
		},
		{
			name:    "api enabled without key",
			mutate:  func(c *Config) { c.API.Enabled = true },
			wantErr: "api.auth.api_key",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Service.LogLevel = "verbose" },
			wantErr: "log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Server.Host = "irc.example.org"
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
