package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: "api",
			HTTPPort:  8080,
			APIAddr:   ":8088",
		},
		Docker: DockerConfig{
			Socket:            DockerSocket,
			APIVersion:        "1.41",
			StreamReadTimeout: 250 * time.Millisecond,
			CleanupTimeout:    10 * time.Second,
		},
		Sandbox: SandboxConfig{
			Backend:          "docker",
			Memory:           "256m",
			PidsLimit:        64,
			NetworkDisabled:  true,
			ReadonlyRootfs:   true,
			User:             "nobody",
			RemoveContainers: true,
		},
		Logging: LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		err := validConfig().validate()
		require.NoError(t, err)
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"InvalidServerTransport", func(c *Config) { c.Server.Transport = "invalid" }, "invalid server.transport"},
		{"ZeroStreamReadTimeout", func(c *Config) { c.Docker.StreamReadTimeout = 0 }, "docker.stream_read_timeout must be positive"},
		{"ZeroCleanupTimeout", func(c *Config) { c.Docker.CleanupTimeout = 0 }, "docker.cleanup_timeout must be positive"},
		{"UnsupportedBackend", func(c *Config) { c.Sandbox.Backend = "local" }, "unsupported sandbox.backend"},
		{"InvalidMemory", func(c *Config) { c.Sandbox.Memory = "lots" }, "invalid sandbox.memory"},
		{"NegativePidsLimit", func(c *Config) { c.Sandbox.PidsLimit = -1 }, "sandbox.pids_limit must not be negative"},
		{"InvalidLoggingMode", func(c *Config) { c.Logging.Mode = "invalid_mode" }, "invalid logging.mode"},
		{"InvalidLogLevel", func(c *Config) { c.Logging.Level = "invalid_level" }, "invalid logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMemoryBytes(t *testing.T) {
	cfg := validConfig()

	cfg.Sandbox.Memory = "256m"
	n, err := cfg.MemoryBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(256*1024*1024), n)

	cfg.Sandbox.Memory = ""
	n, err = cfg.MemoryBytes()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDefaultSocket(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, DockerSocket, cfg.DefaultSocket())

	cfg.Sandbox.Backend = "podman"
	assert.Equal(t, PodmanSocket, cfg.DefaultSocket())
}

func TestLoad(t *testing.T) {
	t.Run("FileOverridesDefaults", func(t *testing.T) {
		doc := map[string]any{
			"server": map[string]any{"transport": "http", "http_port": 9090},
			"docker": map[string]any{"stream_read_timeout": "100ms"},
			"sandbox": map[string]any{
				"backend": "podman",
				"memory":  "1g",
			},
			"logging": map[string]any{"mode": "development", "level": "debug"},
		}
		data, err := yaml.Marshal(doc)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, data, 0600))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "http", cfg.Server.Transport)
		assert.Equal(t, 9090, cfg.Server.HTTPPort)
		assert.Equal(t, 100*time.Millisecond, cfg.Docker.StreamReadTimeout)
		assert.Equal(t, 10*time.Second, cfg.Docker.CleanupTimeout)
		assert.Equal(t, PodmanSocket, cfg.Docker.Socket)
		assert.Equal(t, "1g", cfg.Sandbox.Memory)
		assert.True(t, cfg.Sandbox.RemoveContainers)
		assert.Equal(t, "development", cfg.Logging.Mode)
	})

	t.Run("InvalidFileContents", func(t *testing.T) {
		data, err := yaml.Marshal(map[string]any{
			"logging": map[string]any{"mode": "verbose"},
		})
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, data, 0600))

		_, err = Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging.mode")
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}
