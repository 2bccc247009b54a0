package streaming

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"media-viewer-engine/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a chunk could not be written before its
	// deadline, typically because the client stopped reading.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the request context ended before the
	// body was written.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamClosed indicates a write after Close.
	ErrStreamClosed = errors.New("stream closed")
)

const progressStep = 1 << 20

// Config configures a TimeoutWriter.
type Config struct {
	// WriteTimeout bounds each chunk. Zero disables deadlines.
	WriteTimeout time.Duration
	// ChunkSize splits larger writes. Zero writes as received.
	ChunkSize int
	// OnProgress, when set, is called each time another MiB is written.
	OnProgress func(bytesWritten int64, duration time.Duration)
}

// DefaultConfig returns the defaults used for blob downloads.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		ChunkSize:    256 * 1024,
	}
}

// TimeoutWriter is an http.ResponseWriter whose body writes are chunked
// and deadline-bound.
type TimeoutWriter struct {
	http.ResponseWriter
	ctx    context.Context
	rc     *http.ResponseController
	config Config
	start  time.Time

	mu           sync.Mutex
	bytesWritten int64
	closed       bool
	// deadlines is cleared the first time the writer reports that it
	// cannot set one.
	deadlines bool
}

// NewTimeoutWriter wraps w. ctx is normally the request context.
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config Config) *TimeoutWriter {
	return &TimeoutWriter{
		ResponseWriter: w,
		ctx:            ctx,
		rc:             http.NewResponseController(w),
		config:         config,
		start:          time.Now(),
		deadlines:      config.WriteTimeout > 0,
	}
}

// Write writes p chunk by chunk, renewing the deadline before each one.
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamClosed
	}

	total := 0
	for len(p) > 0 {
		if err := tw.ctx.Err(); err != nil {
			return total, fmt.Errorf("%w: %v", ErrClientGone, err)
		}

		n := len(p)
		if tw.config.ChunkSize > 0 && n > tw.config.ChunkSize {
			n = tw.config.ChunkSize
		}
		tw.renewDeadline()
		written, err := tw.ResponseWriter.Write(p[:n])
		total += written
		tw.record(written)
		if err != nil {
			return total, tw.classify(err)
		}
		p = p[n:]
	}
	return total, nil
}

func (tw *TimeoutWriter) renewDeadline() {
	tw.mu.Lock()
	enabled := tw.deadlines
	tw.mu.Unlock()
	if !enabled {
		return
	}
	if err := tw.rc.SetWriteDeadline(time.Now().Add(tw.config.WriteTimeout)); err != nil {
		tw.mu.Lock()
		tw.deadlines = false
		tw.mu.Unlock()
	}
}

func (tw *TimeoutWriter) record(n int) {
	if n <= 0 {
		return
	}
	tw.mu.Lock()
	before := tw.bytesWritten
	tw.bytesWritten += int64(n)
	after := tw.bytesWritten
	tw.mu.Unlock()

	if tw.config.OnProgress != nil && after/progressStep > before/progressStep {
		tw.config.OnProgress(after, time.Since(tw.start))
	}
}

func (tw *TimeoutWriter) classify(err error) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrWriteTimeout, err)
	case tw.ctx.Err() != nil:
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	default:
		return err
	}
}

// Flush sends buffered data to the client if the writer supports it.
func (tw *TimeoutWriter) Flush() {
	_ = tw.rc.Flush()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (tw *TimeoutWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

// Close clears the write deadline so the connection can be reused.
// Further writes fail with ErrStreamClosed.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	if tw.closed {
		tw.mu.Unlock()
		return nil
	}
	tw.closed = true
	deadlines := tw.deadlines
	written := tw.bytesWritten
	tw.mu.Unlock()

	if deadlines {
		_ = tw.rc.SetWriteDeadline(time.Time{})
	}
	logging.Debug("Stream completed: %d bytes in %v", written, time.Since(tw.start))
	return nil
}

// Stats returns the bytes written so far and the time since creation.
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.start)
}
