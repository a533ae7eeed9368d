package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"go.uber.org/zap"
)

// ConnectError reports that the daemon socket could not be reached.
type ConnectError struct {
	Socket string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to daemon at %s: %v", e.Socket, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TimeoutConfigError reports that the socket rejected a read timeout.
type TimeoutConfigError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutConfigError) Error() string {
	return fmt.Sprintf("failed to set stream read timeout %s: %v", e.Timeout, e.Err)
}

func (e *TimeoutConfigError) Unwrap() error { return e.Err }

// AttachError reports a failed attach handshake.
type AttachError struct {
	ContainerID string
	Err         error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("failed to attach to container %s: %v", e.ContainerID, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }

// Dialer opens per-run sessions to the container daemon over a unix socket.
type Dialer struct {
	logger     *zap.Logger
	socket     string
	apiVersion string
}

// NewDialer returns a Dialer for the socket at path. An empty apiVersion
// negotiates the version with the daemon on connect.
func NewDialer(logger *zap.Logger, path, apiVersion string) *Dialer {
	return &Dialer{
		logger:     logger,
		socket:     path,
		apiVersion: apiVersion,
	}
}

// Socket returns the socket path.
func (d *Dialer) Socket() string {
	return d.socket
}

// Connect opens a session and verifies the daemon answers.
func (d *Dialer) Connect(ctx context.Context) (*Conn, error) {
	opts := []client.Opt{client.WithHost("unix://" + d.socket)}
	if d.apiVersion != "" {
		opts = append(opts, client.WithVersion(d.apiVersion))
	} else {
		opts = append(opts, client.WithAPIVersionNegotiation())
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, &ConnectError{Socket: d.socket, Err: err}
	}

	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, &ConnectError{Socket: d.socket, Err: err}
	}

	return &Conn{logger: d.logger, cli: cli}, nil
}

// Conn is one live session with the daemon. It must be closed.
type Conn struct {
	logger *zap.Logger
	cli    *client.Client
}

// CreateContainer creates a container and returns the daemon-assigned id.
func (c *Conn) CreateContainer(ctx context.Context, cfg ContainerConfig, name string) (string, error) {
	if cfg.Config == nil {
		return "", errors.New("container config is required")
	}

	resp, err := c.cli.ContainerCreate(ctx, cfg.Config, cfg.HostConfig, nil, nil, name)
	if err != nil {
		return "", err
	}
	for _, w := range resp.Warnings {
		c.logger.Warn("daemon warning on container create",
			zap.String("container", resp.ID),
			zap.String("warning", w))
	}
	return resp.ID, nil
}

// StartContainer starts a created container.
func (c *Conn) StartContainer(ctx context.Context, id string) error {
	return c.cli.ContainerStart(ctx, id, container.StartOptions{})
}

// AttachContainer upgrades a request into a raw duplex stream bound to the
// container's stdin, stdout and stderr.
func (c *Conn) AttachContainer(ctx context.Context, id string) (*Stream, error) {
	resp, err := c.cli.ContainerAttach(ctx, id, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return nil, &AttachError{ContainerID: id, Err: err}
	}
	return NewStream(resp), nil
}

// RemoveContainer force-removes a container, killing it if still running.
func (c *Conn) RemoveContainer(ctx context.Context, id string) error {
	return c.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
}

// Close releases the session's connections.
func (c *Conn) Close() error {
	return c.cli.Close()
}

// Stream is the hijacked connection obtained by attach. Writes go to the
// container's stdin; reads yield multiplexed frames.
type Stream struct {
	resp        types.HijackedResponse
	readTimeout time.Duration
}

// NewStream wraps an attach response.
func NewStream(resp types.HijackedResponse) *Stream {
	return &Stream{resp: resp}
}

// SetReadTimeout bounds every subsequent read on the stream by d.
func (s *Stream) SetReadTimeout(d time.Duration) error {
	if d <= 0 {
		return &TimeoutConfigError{Timeout: d, Err: errors.New("timeout must be positive")}
	}
	if err := s.resp.Conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return &TimeoutConfigError{Timeout: d, Err: err}
	}
	s.readTimeout = d
	return nil
}

// SetWriteDeadline bounds writes to the container's stdin.
func (s *Stream) SetWriteDeadline(t time.Time) error {
	return s.resp.Conn.SetWriteDeadline(t)
}

func (s *Stream) Write(p []byte) (int, error) {
	return s.resp.Conn.Write(p)
}

// CloseWrite half-closes the connection so the container sees EOF on stdin.
func (s *Stream) CloseWrite() error {
	return s.resp.CloseWrite()
}

// Reader returns the output side of the stream. Each read is bounded by the
// configured read timeout and may fail with a timeout error.
func (s *Stream) Reader() io.Reader {
	return &timeoutReader{stream: s}
}

func (s *Stream) Close() error {
	return s.resp.Conn.Close()
}

type timeoutReader struct {
	stream *Stream
}

func (t *timeoutReader) Read(p []byte) (int, error) {
	s := t.stream
	if s.readTimeout > 0 {
		if err := s.resp.Conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return 0, err
		}
	}
	return s.resp.Reader.Read(p)
}
