package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnnyeric/docker-run/daemon"
	"github.com/johnnyeric/docker-run/logger"
)

// Config holds configuration for the Docker runner
type Config struct {
	// StreamReadTimeout bounds every read on the attached stream. It is the
	// polling interval of the execution deadline.
	StreamReadTimeout time.Duration
	CleanupTimeout    time.Duration
	RemoveContainers  bool
}

// maxStderrMessage caps the stderr text carried in a coderunner.stderr error
const maxStderrMessage = 4096

// DockerRunner implements Runner against a container daemon
type DockerRunner struct {
	logger    *zap.Logger
	config    *Config
	connector Connector
	newName   func() string
}

// DockerRunnerOption defines a functional option for DockerRunner
type DockerRunnerOption func(*DockerRunner)

// WithContainerNamer overrides how container names are generated
func WithContainerNamer(newName func() string) DockerRunnerOption {
	return func(d *DockerRunner) {
		d.newName = newName
	}
}

// NewDockerRunner creates a new DockerRunner
func NewDockerRunner(logger *zap.Logger, config *Config, connector Connector, opts ...DockerRunnerOption) *DockerRunner {
	runner := &DockerRunner{
		logger:    logger,
		config:    config,
		connector: connector,
		newName:   func() string { return "docker-run-" + uuid.NewString() },
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Run executes one request in a fresh container. The lifecycle is strictly
// ordered and stops at the first failure; nothing is retried.
//
//nolint:funlen // one step per lifecycle state
func (d *DockerRunner) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	name := d.newName()
	log := logger.ForRun(d.logger, name, req.ContainerConfig.Image())
	state := StateInit

	fail := func(kind ErrorKind, err error) (RunResult, error) {
		runErr := newError(kind, state, err)
		log.Info("run failed",
			zap.String(logger.FieldCode, runErr.Code()),
			zap.Stringer(logger.FieldState, state),
			zap.Error(err))
		return RunResult{}, runErr
	}

	session, err := d.connector.Connect(ctx)
	if err != nil {
		return fail(ErrConnect, err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Warn("failed to close daemon session", zap.Error(closeErr))
		}
	}()
	state = StateConnected

	id, err := session.CreateContainer(ctx, req.ContainerConfig, name)
	if err != nil {
		return fail(ErrCreate, err)
	}
	log = logger.WithContainer(log, id)
	defer d.cleanup(session, id, log)
	state = StateContainerCreated

	if err := session.StartContainer(ctx, id); err != nil {
		return fail(ErrStart, err)
	}
	state = StateContainerStarted

	stream, err := session.AttachContainer(ctx, id)
	if err != nil {
		return fail(ErrAttach, err)
	}
	defer func() {
		_ = stream.Close()
	}()

	deadline := daemon.NewDeadline(req.Limits.MaxExecutionTime)
	if err := stream.SetReadTimeout(d.pollInterval(req.Limits.MaxExecutionTime)); err != nil {
		return fail(ErrStreamTimeout, err)
	}
	state = StateAttached

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return fail(ErrSerialize, err)
	}
	if err := d.writePayload(stream, payload, deadline); err != nil {
		if daemon.IsStreamErrorKind(err, daemon.KindMaxExecutionTime) {
			return fail(ErrStream, err)
		}
		return fail(ErrWrite, err)
	}
	state = StatePayloadSent

	out, err := daemon.Demultiplex(ctx, stream.Reader(), req.Limits.MaxOutputSize, deadline)
	if len(out.Stderr) > 0 {
		log.Debug("container wrote to stderr", zap.ByteString("stderr", truncate(out.Stderr, maxStderrMessage)))
	}
	if err != nil {
		if daemon.IsStreamErrorKind(err, daemon.KindStdinUnexpected) {
			return fail(ErrStdinUnexpected, err)
		}
		return fail(ErrStream, err)
	}
	state = StateStreamDrained

	result, err := DecodeResult(out.Stdout)
	if err != nil {
		if stderr := strings.TrimSpace(string(out.Stderr)); stderr != "" {
			return fail(ErrStderr, errors.New(string(truncate([]byte(stderr), maxStderrMessage))))
		}
		return fail(ErrDecode, err)
	}
	if len(out.Stderr) > 0 {
		log.Warn("run succeeded with stderr output", zap.Int("stderr_len", len(out.Stderr)))
	}
	state = StateResult

	log.Info("run completed",
		zap.Duration("elapsed", deadline.Elapsed()),
		zap.Int("stdout_len", len(out.Stdout)))

	return result, nil
}

// writePayload sends the payload and half-closes stdin. The write is bounded
// by the time left on the deadline, since a container that never reads stdin
// would otherwise block it forever.
func (d *DockerRunner) writePayload(stream AttachedStream, payload []byte, deadline *daemon.Deadline) error {
	if err := stream.SetWriteDeadline(time.Now().Add(deadline.Remaining())); err != nil {
		return err
	}
	if _, err := stream.Write(payload); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return &daemon.StreamError{Kind: daemon.KindMaxExecutionTime, Limit: deadline.Limit().String()}
		}
		return err
	}
	if err := stream.SetWriteDeadline(time.Time{}); err != nil {
		return err
	}
	return stream.CloseWrite()
}

// pollInterval is the per-read timeout: the configured value, or half the
// execution limit when the configured value is not strictly below it.
func (d *DockerRunner) pollInterval(limit time.Duration) time.Duration {
	interval := d.config.StreamReadTimeout
	if limit > 0 && limit <= interval {
		interval = max(limit/2, time.Nanosecond)
	}
	return interval
}

// cleanup force-removes the container on every exit path once it exists.
// It runs on a fresh context so a cancelled request still releases it.
func (d *DockerRunner) cleanup(session Session, id string, log *zap.Logger) {
	if !d.config.RemoveContainers {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.config.CleanupTimeout)
	defer cancel()

	if err := session.RemoveContainer(ctx, id); err != nil {
		log.Warn("failed to remove container", zap.Error(err))
		return
	}
	log.Debug("container removed")
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
