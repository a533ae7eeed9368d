package sandbox

import (
	"errors"
	"fmt"

	"github.com/johnnyeric/docker-run/daemon"
)

// Stable error codes reported to callers
const (
	CodeConnect          = "docker.connect"
	CodeUnixSocket       = "docker.unixsocket"
	CodeCreate           = "docker.container.create"
	CodeStart            = "docker.container.start"
	CodeAttach           = "docker.container.attach"
	CodeSerializePayload = "docker.container.stream.payload.serialize"
	CodeStreamRead       = "docker.container.stream.read"
	CodeUnknownStream    = "docker.container.stream.type.unknown"
	CodeStdin            = "coderunner.stdin"
	CodeStderr           = "coderunner.stderr"
	CodeStdoutDecode     = "coderunner.stdout.decode"
	CodeExecutionTime    = "limits.execution_time"
	CodeReadSize         = "limits.read.size"
)

// ErrorKind is the terminal failure variant of one lifecycle state
type ErrorKind int

const (
	ErrConnect ErrorKind = iota + 1
	ErrCreate
	ErrStart
	ErrAttach
	ErrStreamTimeout
	ErrSerialize
	ErrWrite
	ErrStream
	ErrStdinUnexpected
	ErrStderr
	ErrDecode
)

// State is a lifecycle state of a run, in order
type State int

const (
	StateInit State = iota
	StateConnected
	StateContainerCreated
	StateContainerStarted
	StateAttached
	StatePayloadSent
	StateStreamDrained
	StateResult
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnected:
		return "connected"
	case StateContainerCreated:
		return "container_created"
	case StateContainerStarted:
		return "container_started"
	case StateAttached:
		return "attached"
	case StatePayloadSent:
		return "payload_sent"
	case StateStreamDrained:
		return "stream_drained"
	case StateResult:
		return "result"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Error is a failed run. Code is derived from Kind and, for stream failures,
// from the underlying frame error.
type Error struct {
	Kind  ErrorKind
	State State
	Err   error
}

func newError(kind ErrorKind, state State, err error) *Error {
	return &Error{Kind: kind, State: state, Err: err}
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrConnect:
		return fmt.Sprintf("Failed to connect to docker: %v", e.Err)
	case ErrStreamTimeout:
		return fmt.Sprintf("Failed to set stream timeout: %v", e.Err)
	case ErrCreate:
		return fmt.Sprintf("Failed to create container: %v", e.Err)
	case ErrStart:
		return fmt.Sprintf("Failed to start container: %v", e.Err)
	case ErrAttach:
		return fmt.Sprintf("Failed to attach to container: %v", e.Err)
	case ErrSerialize:
		return fmt.Sprintf("Failed to serialize payload: %v", e.Err)
	case ErrWrite:
		return fmt.Sprintf("Failed to write payload to container: %v", e.Err)
	case ErrStream:
		return fmt.Sprintf("Failed while reading stream: %v", e.Err)
	case ErrStdinUnexpected:
		return fmt.Sprintf("Code runner returned unexpected stdin: %v", e.Err)
	case ErrStderr:
		return fmt.Sprintf("Code runner failed with stderr: %v", e.Err)
	case ErrDecode:
		return fmt.Sprintf("Failed to decode stdout: %v", e.Err)
	default:
		return fmt.Sprintf("run failed: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the stable machine-readable error code.
func (e *Error) Code() string {
	switch e.Kind {
	case ErrConnect:
		return CodeConnect
	case ErrStreamTimeout:
		return CodeUnixSocket
	case ErrCreate:
		return CodeCreate
	case ErrStart:
		return CodeStart
	case ErrAttach:
		return CodeAttach
	case ErrSerialize:
		return CodeSerializePayload
	case ErrWrite:
		// stdin write failures share the stream code
		return CodeStreamRead
	case ErrStream:
		return streamCode(e.Err)
	case ErrStdinUnexpected:
		return CodeStdin
	case ErrStderr:
		return CodeStderr
	case ErrDecode:
		return CodeStdoutDecode
	default:
		return CodeStreamRead
	}
}

func streamCode(err error) string {
	var se *daemon.StreamError
	if !errors.As(err, &se) {
		return CodeStreamRead
	}
	switch se.Kind {
	case daemon.KindUnknownStreamType:
		return CodeUnknownStream
	case daemon.KindMaxExecutionTime:
		return CodeExecutionTime
	case daemon.KindMaxReadSize:
		return CodeReadSize
	case daemon.KindStdinUnexpected:
		return CodeStdin
	default:
		return CodeStreamRead
	}
}

// ErrorCode returns the stable code for err, or "" if err is not a run error.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return ""
}
