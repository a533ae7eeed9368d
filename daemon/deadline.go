package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// Deadline tracks cumulative wall-clock time of a run against its limit.
//
// It never interrupts a blocking read. Reads on the attached stream carry a
// short timeout, and every timed-out read hands control back here, so expiry
// is observed at most one read-timeout interval late.
type Deadline struct {
	start time.Time
	limit time.Duration
	now   func() time.Time
}

// NewDeadline starts the clock now.
func NewDeadline(limit time.Duration) *Deadline {
	return newDeadlineAt(time.Now, limit)
}

func newDeadlineAt(now func() time.Time, limit time.Duration) *Deadline {
	return &Deadline{start: now(), limit: limit, now: now}
}

// Limit returns the configured maximum execution time.
func (d *Deadline) Limit() time.Duration {
	return d.limit
}

// Elapsed returns the time since the clock started.
func (d *Deadline) Elapsed() time.Duration {
	return d.now().Sub(d.start)
}

// Remaining returns the time left before expiry, never negative.
func (d *Deadline) Remaining() time.Duration {
	if r := d.limit - d.Elapsed(); r > 0 {
		return r
	}
	return 0
}

// Check fails with KindMaxExecutionTime once elapsed time exceeds the limit,
// and with KindRead if ctx was cancelled.
func (d *Deadline) Check(ctx context.Context) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return &StreamError{Kind: KindRead, Err: err}
		}
	}
	if d.Elapsed() > d.limit {
		return &StreamError{Kind: KindMaxExecutionTime, Limit: d.limit.String()}
	}
	return nil
}

// Reader wraps r so that read timeouts are retried instead of being reported,
// and the deadline is checked after every read.
func (d *Deadline) Reader(ctx context.Context, r io.Reader) io.Reader {
	return &pollingReader{ctx: ctx, r: r, deadline: d}
}

type pollingReader struct {
	ctx      context.Context
	r        io.Reader
	deadline *Deadline
}

// Read checks the deadline after every underlying read, so a payload that
// trickles in faster than the read timeout cannot outlive the limit.
func (p *pollingReader) Read(b []byte) (int, error) {
	for {
		n, err := p.r.Read(b)
		if cerr := p.deadline.Check(p.ctx); cerr != nil {
			return n, cerr
		}
		if !isTimeout(err) {
			return n, err
		}
		if n > 0 {
			return n, nil
		}
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
