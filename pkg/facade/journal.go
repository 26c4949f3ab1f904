package facade

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/srg/previewsim/internal/invoke"
)

// DefaultJournalSize is the number of invocations kept when no size is given
const DefaultJournalSize uint32 = 256

// MaxJournalSize guards against accidental misconfiguration
const MaxJournalSize uint32 = 1024 * 1024

// Entry records one delivered invocation
type Entry struct {
	API  string
	Mode invoke.ModeKind
	Err  error
	At   time.Time
}

func (e Entry) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s] error: %v", e.API, e.Mode, e.Err)
	}
	return fmt.Sprintf("%s [%s] ok", e.API, e.Mode)
}

// JournalMetrics are lock-free counters kept next to the journal
type JournalMetrics struct {
	Recorded    int64
	Overwritten int64
}

// Journal is a bounded, overwrite-oldest log of invocations.
// All methods are thread-safe.
type Journal struct {
	buffer      mpmc.RichOverlappedRingBuffer[Entry]
	recorded    atomic.Int64
	overwritten atomic.Int64
}

// NewJournal creates a journal holding up to size entries
func NewJournal(size uint32) (*Journal, error) {
	if size == 0 {
		return nil, fmt.Errorf("journal size must be > 0")
	}
	if size > MaxJournalSize {
		return nil, fmt.Errorf("journal size %d exceeds maximum %d", size, MaxJournalSize)
	}
	return &Journal{
		buffer: mpmc.NewOverlappedRingBuffer[Entry](size),
	}, nil
}

// Record appends e, dropping the oldest entry when full
func (j *Journal) Record(e Entry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	overwrites, err := j.buffer.EnqueueM(e)
	if err != nil {
		return
	}
	j.overwritten.Add(int64(overwrites))
	j.recorded.Add(1)
}

// Drain removes and returns every buffered entry, oldest first
func (j *Journal) Drain() []Entry {
	var entries []Entry
	for !j.buffer.IsEmpty() {
		e, err := j.buffer.Dequeue()
		if err != nil {
			break
		}
		entries = append(entries, e)
	}
	return entries
}

// Metrics returns a snapshot of the journal counters
func (j *Journal) Metrics() JournalMetrics {
	return JournalMetrics{
		Recorded:    j.recorded.Load(),
		Overwritten: j.overwritten.Load(),
	}
}
