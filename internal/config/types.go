package config

import "time"

// Config represents the complete kaa configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Server   ServerConfig   `yaml:"server"`
	Identity IdentityConfig `yaml:"identity"`
	Channels []string       `yaml:"channels"`
	Handlers HandlersConfig `yaml:"handlers"`
	Workers  WorkersConfig  `yaml:"workers"`
	State    StateConfig    `yaml:"state"`
	API      APIConfig      `yaml:"api,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// ServerConfig defines the IRC server connection.
type ServerConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password,omitempty"`
	SSL      bool          `yaml:"ssl"`
	Timeout  time.Duration `yaml:"timeout"`
}

// IdentityConfig defines how the bot presents itself.
type IdentityConfig struct {
	Nick     string `yaml:"nick"`
	Realname string `yaml:"realname"`
}

// HandlersConfig defines where handler scripts live and how commands are
// recognized.
type HandlersConfig struct {
	Dir           string `yaml:"dir"`
	CommandPrefix string `yaml:"command_prefix"`
	Watch         bool   `yaml:"watch"`
}

// WorkersConfig bounds the invocation pool.
type WorkersConfig struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// StateConfig defines state storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP status API settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "kaa",
			LogLevel: "info",
		},
		Server: ServerConfig{
			Port:    6667,
			Timeout: 300 * time.Second,
		},
		Identity: IdentityConfig{
			Nick:     "kaa",
			Realname: "kaa",
		},
		Handlers: HandlersConfig{
			Dir:           "./handlers",
			CommandPrefix: ".",
			Watch:         true,
		},
		Workers: WorkersConfig{
			Min: 3,
			Max: 7,
		},
		State: StateConfig{
			Path: "./data/state.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
	}
}
