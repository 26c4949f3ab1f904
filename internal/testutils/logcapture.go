package testutils

import (
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
)

// DefaultLogCaptureSize bounds captured log output per test
const DefaultLogCaptureSize = 64 * 1024

// LogCapture is a bounded io.Writer for logrus output.
// Once full, further writes are dropped rather than failing the logger.
type LogCapture struct {
	mu  sync.Mutex
	buf *ringbuffer.RingBuffer
}

// NewLogCapture creates a capture buffer of size bytes
func NewLogCapture(size int) *LogCapture {
	if size <= 0 {
		size = DefaultLogCaptureSize
	}
	return &LogCapture{buf: ringbuffer.New(size)}
}

// Write implements io.Writer
func (c *LogCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.buf.Write(p); err != nil && !errors.Is(err, ringbuffer.ErrIsFull) && !errors.Is(err, ringbuffer.ErrTooMuchDataToWrite) {
		return 0, err
	}
	return len(p), nil
}

// String drains and returns everything captured so far
func (c *LogCapture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.buf.Length()
	if n == 0 {
		return ""
	}
	out := make([]byte, n)
	read, err := c.buf.Read(out)
	if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
		return ""
	}
	return string(out[:read])
}

// Lines drains the capture and splits it into non-empty lines
func (c *LogCapture) Lines() []string {
	var lines []string
	for _, l := range strings.Split(c.String(), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// NewCapturedLogger returns a debug-level logger writing into a fresh LogCapture
func NewCapturedLogger() (*logrus.Logger, *LogCapture) {
	capture := NewLogCapture(DefaultLogCaptureSize)
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetOutput(capture)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return logger, capture
}
