package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"time"
)

var errWriterClosed = errors.New("logger: writer closed")

// flushEvery bounds how long a line may sit in the buffer.
const flushEvery = 250 * time.Millisecond

// asyncWriter moves formatting off the write path: lines are queued and a
// single goroutine copies them into a buffered fan-out of every sink.
type asyncWriter struct {
	lines   chan []byte
	flushes chan chan error
	stopped chan struct{}

	// mu orders Write against Close so nothing is sent on a closed channel.
	mu     sync.RWMutex
	closed bool
	once   sync.Once

	out *bufio.Writer

	errMu sync.Mutex
	err   error
}

func newAsyncWriter(sinks []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	live := sinks[:0:0]
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	w := &asyncWriter{
		lines:   make(chan []byte, 256),
		flushes: make(chan chan error),
		stopped: make(chan struct{}),
		out:     bufio.NewWriterSize(io.MultiWriter(live...), bufSize),
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.stopped)
	tick := time.NewTicker(flushEvery)
	defer tick.Stop()
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.record(w.out.Flush())
				return
			}
			if _, err := w.out.Write(line); err != nil {
				w.record(err)
			}
		case <-tick.C:
			if w.out.Buffered() > 0 {
				w.record(w.out.Flush())
			}
		case ack := <-w.flushes:
			w.drain()
			err := w.out.Flush()
			w.record(err)
			ack <- err
		}
	}
}

// drain writes lines already queued so a flush covers everything sent before it.
func (w *asyncWriter) drain() {
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return
			}
			if _, err := w.out.Write(line); err != nil {
				w.record(err)
			}
		default:
			return
		}
	}
}

// Write queues a copy of p. It blocks while the queue is full rather than drop lines.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.failure(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	line := append([]byte(nil), p...)
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.lines <- line
	return nil
}

// Flush waits until every queued line has reached the sinks.
func (w *asyncWriter) Flush() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return w.failure()
	}
	ack := make(chan error, 1)
	w.flushes <- ack
	return <-ack
}

// Close drains the queue and returns the first write error, if any.
func (w *asyncWriter) Close() error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.lines)
		w.mu.Unlock()
	})
	<-w.stopped
	return w.failure()
}

func (w *asyncWriter) record(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

func (w *asyncWriter) failure() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}
