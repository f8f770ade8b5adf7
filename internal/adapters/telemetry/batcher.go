package telemetry

import (
	"bytes"
	"sync"
	"time"

	"go.trai.ch/zerr"
)

const (
	// DefaultBatchSize is the number of buffered bytes that forces a flush.
	DefaultBatchSize = 4096
	// DefaultBatchInterval is the longest a complete line waits before it is flushed.
	DefaultBatchInterval = 100 * time.Millisecond
)

// errBatcherClosed is returned by Write after Close.
var errBatcherClosed = zerr.New("batcher is closed")

// LineBatcher groups written output into chunks of whole lines.
//
// A chunk is emitted when the buffer reaches the size limit, when the interval
// elapses, or on Flush and Close. Only complete lines are emitted except when
// the buffer is full or the batcher closes. It is safe for concurrent use.
type LineBatcher struct {
	size     int
	interval time.Duration
	emit     func([]byte)

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
	done   chan struct{}
}

// NewLineBatcher starts a LineBatcher calling emit for every chunk.
// Non-positive limits select the defaults. Close must be called to stop the
// background flusher.
func NewLineBatcher(size int, interval time.Duration, emit func([]byte)) *LineBatcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if interval <= 0 {
		interval = DefaultBatchInterval
	}
	b := &LineBatcher{
		size:     size,
		interval: interval,
		emit:     emit,
		done:     make(chan struct{}),
	}
	go b.loop()
	return b
}

// Write buffers p.
func (b *LineBatcher) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errBatcherClosed
	}
	b.buf.Write(p)
	if b.buf.Len() >= b.size {
		b.emitLocked(b.buf.Len())
	}
	return len(p), nil
}

// Flush emits every complete buffered line.
func (b *LineBatcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLinesLocked()
}

// Close stops the background flusher and emits everything still buffered,
// including a trailing partial line.
func (b *LineBatcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	b.emitLocked(b.buf.Len())
	return nil
}

func (b *LineBatcher) loop() {
	t := time.NewTicker(b.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			b.Flush()
		case <-b.done:
			return
		}
	}
}

func (b *LineBatcher) flushLinesLocked() {
	if i := bytes.LastIndexByte(b.buf.Bytes(), '\n'); i >= 0 {
		b.emitLocked(i + 1)
	}
}

// emitLocked must be called with mu held.
func (b *LineBatcher) emitLocked(n int) {
	if n == 0 {
		return
	}
	chunk := bytes.Clone(b.buf.Next(n))
	if b.emit != nil {
		b.emit(chunk)
	}
}
