package daemon

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the size of a multiplexed frame header:
// [stream type][0][0][0][payload length uint32 big-endian]
const HeaderSize = 8

// StreamType identifies which standard stream a frame carries.
type StreamType byte

const (
	StreamStdin  StreamType = 0
	StreamStdout StreamType = 1
	StreamStderr StreamType = 2

	// StreamUnknown is never sent by the daemon; it tags any other type byte.
	StreamUnknown StreamType = 0xff
)

// ParseStreamType maps a raw header byte onto the recognized stream types.
func ParseStreamType(b byte) StreamType {
	switch StreamType(b) {
	case StreamStdin, StreamStdout, StreamStderr:
		return StreamType(b)
	default:
		return StreamUnknown
	}
}

func (t StreamType) String() string {
	switch t {
	case StreamStdin:
		return "stdin"
	case StreamStdout:
		return "stdout"
	case StreamStderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// Frame is one header-plus-payload unit of the attached output stream.
type Frame struct {
	Type    StreamType
	Payload []byte
}

// StreamErrorKind classifies a failure while draining the attached stream.
type StreamErrorKind int

const (
	KindRead StreamErrorKind = iota
	KindReadStreamType
	KindUnknownStreamType
	KindReadStreamLength
	KindInvalidStreamLength
	KindStdinUnexpected
	KindMaxExecutionTime
	KindMaxReadSize
)

func (k StreamErrorKind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindReadStreamType:
		return "read stream type"
	case KindUnknownStreamType:
		return "unknown stream type"
	case KindReadStreamLength:
		return "read stream length"
	case KindInvalidStreamLength:
		return "invalid stream length"
	case KindStdinUnexpected:
		return "unexpected stdin frame"
	case KindMaxExecutionTime:
		return "max execution time"
	case KindMaxReadSize:
		return "max read size"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// StreamError is returned by FrameReader, Demultiplex and Deadline.
type StreamError struct {
	Kind StreamErrorKind
	Err  error

	// TypeByte is the raw header byte for KindUnknownStreamType.
	TypeByte byte
	// Length is the declared payload length, when one was read.
	Length uint32
	// Limit is the ceiling that was crossed for the limit kinds.
	Limit string
}

func (e *StreamError) Error() string {
	switch e.Kind {
	case KindUnknownStreamType:
		return fmt.Sprintf("unknown stream type %d", e.TypeByte)
	case KindInvalidStreamLength:
		return fmt.Sprintf("stream ended before declared length %d: %v", e.Length, e.Err)
	case KindStdinUnexpected:
		return "received unexpected stdin frame on output stream"
	case KindMaxExecutionTime:
		return fmt.Sprintf("max execution time of %s exceeded", e.Limit)
	case KindMaxReadSize:
		return fmt.Sprintf("max output size of %s bytes exceeded by frame of %d bytes", e.Limit, e.Length)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// IsStreamErrorKind reports whether err carries a StreamError of the given kind.
func IsStreamErrorKind(err error, kind StreamErrorKind) bool {
	var se *StreamError
	return errors.As(err, &se) && se.Kind == kind
}

// streamError wraps err with kind unless it already is a StreamError, so that
// deadline and cancellation failures raised inside a read keep their kind.
func streamError(kind StreamErrorKind, err error) error {
	var se *StreamError
	if errors.As(err, &se) {
		return se
	}
	return &StreamError{Kind: kind, Err: err}
}

// FrameReader decodes the daemon's multiplexed stream one frame at a time.
// The output ceiling is enforced per stream type against the declared length,
// before any payload byte is read. Errors are sticky.
type FrameReader struct {
	r       io.Reader
	header  [HeaderSize]byte
	maxSize uint64
	totals  map[StreamType]uint64
	err     error
}

// NewFrameReader returns a reader over r enforcing maxSize bytes per output stream.
func NewFrameReader(r io.Reader, maxSize int) *FrameReader {
	if maxSize < 0 {
		maxSize = 0
	}
	return &FrameReader{
		r:       r,
		maxSize: uint64(maxSize),
		totals:  make(map[StreamType]uint64, 2),
	}
}

// Next returns the next frame, or io.EOF when the stream ended cleanly on a
// frame boundary.
func (fr *FrameReader) Next() (Frame, error) {
	if fr.err != nil {
		return Frame{}, fr.err
	}
	frame, err := fr.next()
	if err != nil {
		fr.err = err
	}
	return frame, err
}

func (fr *FrameReader) next() (Frame, error) {
	if _, err := io.ReadFull(fr.r, fr.header[:1]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, streamError(KindReadStreamType, err)
	}

	typ := ParseStreamType(fr.header[0])
	if typ == StreamUnknown {
		return Frame{}, &StreamError{Kind: KindUnknownStreamType, TypeByte: fr.header[0]}
	}

	if _, err := io.ReadFull(fr.r, fr.header[1:]); err != nil {
		return Frame{}, streamError(KindReadStreamLength, err)
	}
	length := binary.BigEndian.Uint32(fr.header[4:])

	if typ == StreamStdin {
		return Frame{}, &StreamError{Kind: KindStdinUnexpected, Length: length}
	}

	if fr.totals[typ]+uint64(length) > fr.maxSize {
		return Frame{}, &StreamError{
			Kind:   KindMaxReadSize,
			Length: length,
			Limit:  fmt.Sprint(fr.maxSize),
		}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, &StreamError{Kind: KindInvalidStreamLength, Err: err, Length: length}
		}
		return Frame{}, streamError(KindRead, err)
	}
	fr.totals[typ] += uint64(length)

	return Frame{Type: typ, Payload: payload}, nil
}

// Output holds the demultiplexed stream contents.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Demultiplex drains r until clean EOF, routing stdout and stderr frames into
// separate accumulators. The deadline is checked once per frame and after every
// read that times out. On error, Output holds what was committed so far.
func Demultiplex(ctx context.Context, r io.Reader, maxSize int, deadline *Deadline) (Output, error) {
	fr := NewFrameReader(deadline.Reader(ctx, r), maxSize)

	var stdout, stderr bytes.Buffer
	for {
		if err := deadline.Check(ctx); err != nil {
			return Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, err
		}

		frame, err := fr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, err
		}

		switch frame.Type {
		case StreamStdout:
			stdout.Write(frame.Payload)
		case StreamStderr:
			stderr.Write(frame.Payload)
		}
	}

	return Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
}
