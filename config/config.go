package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Docker  DockerConfig  `mapstructure:"docker"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
	APIAddr   string `mapstructure:"api_addr"`
}

// DockerConfig holds the container daemon connection settings
type DockerConfig struct {
	Socket            string        `mapstructure:"socket"`
	APIVersion        string        `mapstructure:"api_version"`
	StreamReadTimeout time.Duration `mapstructure:"stream_read_timeout"`
	CleanupTimeout    time.Duration `mapstructure:"cleanup_timeout"`
}

// SandboxConfig holds the container creation defaults applied to every run
type SandboxConfig struct {
	Backend          string `mapstructure:"backend"`
	Memory           string `mapstructure:"memory"`
	PidsLimit        int64  `mapstructure:"pids_limit"`
	NetworkDisabled  bool   `mapstructure:"network_disabled"`
	ReadonlyRootfs   bool   `mapstructure:"readonly_rootfs"`
	User             string `mapstructure:"user"`
	RemoveContainers bool   `mapstructure:"remove_containers"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// Default socket paths per backend
const (
	DockerSocket = "/var/run/docker.sock"
	PodmanSocket = "/run/podman/podman.sock"
)

// New loads and validates the application configuration
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	return load(v)
}

// Load reads the configuration from an explicit file path
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("DOCKER_RUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Docker.Socket == "" {
		config.Docker.Socket = config.DefaultSocket()
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "api")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.api_addr", ":8088")

	v.SetDefault("docker.socket", "")
	v.SetDefault("docker.api_version", "1.41")
	v.SetDefault("docker.stream_read_timeout", 250*time.Millisecond)
	v.SetDefault("docker.cleanup_timeout", 10*time.Second)

	v.SetDefault("sandbox.backend", "docker")
	v.SetDefault("sandbox.memory", "256m")
	v.SetDefault("sandbox.pids_limit", 128)
	v.SetDefault("sandbox.network_disabled", true)
	v.SetDefault("sandbox.readonly_rootfs", true)
	v.SetDefault("sandbox.user", "nobody")
	v.SetDefault("sandbox.remove_containers", true)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	switch c.Server.Transport {
	case "stdio", "http", "api":
	default:
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio', 'http' or 'api'", c.Server.Transport)
	}

	if c.Docker.StreamReadTimeout <= 0 {
		return fmt.Errorf("docker.stream_read_timeout must be positive, got: %s", c.Docker.StreamReadTimeout)
	}

	if c.Docker.CleanupTimeout <= 0 {
		return fmt.Errorf("docker.cleanup_timeout must be positive, got: %s", c.Docker.CleanupTimeout)
	}

	if c.Sandbox.Backend != "docker" && c.Sandbox.Backend != "podman" {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if _, err := c.MemoryBytes(); err != nil {
		return err
	}

	if c.Sandbox.PidsLimit < 0 {
		return fmt.Errorf("sandbox.pids_limit must not be negative, got: %d", c.Sandbox.PidsLimit)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
		"dpanic": true, "panic": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// DefaultSocket returns the daemon socket path for the configured backend
func (c *Config) DefaultSocket() string {
	if c.Sandbox.Backend == "podman" {
		return PodmanSocket
	}
	return DockerSocket
}

// MemoryBytes parses sandbox.memory ("256m", "1g") into bytes. Empty means unlimited.
func (c *Config) MemoryBytes() (int64, error) {
	if c.Sandbox.Memory == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(c.Sandbox.Memory)
	if err != nil {
		return 0, fmt.Errorf("invalid sandbox.memory %q: %w", c.Sandbox.Memory, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("sandbox.memory must be positive, got: %s", c.Sandbox.Memory)
	}
	return n, nil
}
