package sandbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/johnnyeric/docker-run/config"
	"github.com/johnnyeric/docker-run/daemon"
)

// NewRunner creates the runner for the configured backend. Docker and Podman
// both serve the Engine API on a unix socket and differ only in its path.
func NewRunner(logger *zap.Logger, cfg *config.Config) (Runner, error) {
	switch cfg.Sandbox.Backend {
	case "docker", "podman":
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}

	socket := cfg.Docker.Socket
	if socket == "" {
		socket = cfg.DefaultSocket()
	}

	runnerConfig := Config{
		StreamReadTimeout: cfg.Docker.StreamReadTimeout,
		CleanupTimeout:    cfg.Docker.CleanupTimeout,
		RemoveContainers:  cfg.Sandbox.RemoveContainers,
	}

	logger.Info("sandbox runner configured",
		zap.String("backend", cfg.Sandbox.Backend),
		zap.String("socket", socket),
		zap.String("api_version", cfg.Docker.APIVersion),
		zap.Duration("stream_read_timeout", runnerConfig.StreamReadTimeout))

	connector := NewDaemonConnector(daemon.NewDialer(logger, socket, cfg.Docker.APIVersion))
	return NewDockerRunner(logger, &runnerConfig, connector), nil
}

// ContainerDefaults converts the sandbox section into container creation defaults
func ContainerDefaults(cfg *config.Config) (daemon.Defaults, error) {
	memory, err := cfg.MemoryBytes()
	if err != nil {
		return daemon.Defaults{}, err
	}
	return daemon.Defaults{
		Memory:          memory,
		PidsLimit:       cfg.Sandbox.PidsLimit,
		NetworkDisabled: cfg.Sandbox.NetworkDisabled,
		ReadonlyRootfs:  cfg.Sandbox.ReadonlyRootfs,
		User:            cfg.Sandbox.User,
	}, nil
}

// DaemonConnector adapts daemon.Dialer to Connector
type DaemonConnector struct {
	dialer *daemon.Dialer
}

// NewDaemonConnector wraps dialer
func NewDaemonConnector(dialer *daemon.Dialer) *DaemonConnector {
	return &DaemonConnector{dialer: dialer}
}

// Connect opens a daemon session
func (c *DaemonConnector) Connect(ctx context.Context) (Session, error) {
	conn, err := c.dialer.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return daemonSession{Conn: conn}, nil
}

type daemonSession struct {
	*daemon.Conn
}

func (s daemonSession) AttachContainer(ctx context.Context, id string) (AttachedStream, error) {
	stream, err := s.Conn.AttachContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
