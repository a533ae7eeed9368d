package sandbox

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/johnnyeric/docker-run/daemon"
)

// Limits are hard ceilings for one run
type Limits struct {
	MaxExecutionTime time.Duration
	MaxOutputSize    int
}

// RunRequest represents the parameters for one sandboxed run
type RunRequest struct {
	ContainerConfig daemon.ContainerConfig
	Payload         map[string]any
	Limits          Limits
}

// RunResult is the JSON value the sandboxed process wrote to stdout
type RunResult struct {
	Value any
}

// MarshalJSON encodes the result as the bare value.
func (r RunResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value)
}

// Runner executes one RunRequest in a fresh container
type Runner interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// Connector opens a daemon session for a single run
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// Session is a live daemon connection owned by one run
type Session interface {
	CreateContainer(ctx context.Context, cfg daemon.ContainerConfig, name string) (string, error)
	StartContainer(ctx context.Context, id string) error
	AttachContainer(ctx context.Context, id string) (AttachedStream, error)
	RemoveContainer(ctx context.Context, id string) error
	Close() error
}

// AttachedStream is the duplex stream bound to a container's standard I/O
type AttachedStream interface {
	io.Writer
	SetReadTimeout(d time.Duration) error
	SetWriteDeadline(t time.Time) error
	CloseWrite() error
	Reader() io.Reader
	Close() error
}
