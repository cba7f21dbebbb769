package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// errWriterClosed is returned for records produced after Shutdown, e.g. by delay
// timers that fire while the process exits.
var errWriterClosed = errors.New("logger: writer closed")

// output is one log destination. errorsOnly outputs receive error-level lines only.
type output struct {
	w          io.Writer
	errorsOnly bool
}

type line struct {
	data    []byte
	isError bool
}

type sink struct {
	buf        *bufio.Writer
	errorsOnly bool
}

// asyncWriter fans log lines out to its outputs from a single goroutine. Buffers
// are flushed whenever the queue drains.
type asyncWriter struct {
	// closeMu guards queue against sends after close.
	closeMu sync.RWMutex
	closed  bool
	once    sync.Once

	queue    chan line
	flushReq chan chan error
	done     chan struct{}

	sinks []sink

	errMu    sync.Mutex
	writeErr error
}

func newAsyncWriter(outputs []output, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		queue:    make(chan line, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
	}
	for _, o := range outputs {
		if o.w == nil {
			continue
		}
		w.sinks = append(w.sinks, sink{buf: bufio.NewWriterSize(o.w, bufSize), errorsOnly: o.errorsOnly})
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case l, ok := <-w.queue:
			if !ok {
				w.setErr(w.flushAll())
				return
			}
			w.setErr(w.writeLine(l))
			if len(w.queue) == 0 {
				w.setErr(w.flushAll())
			}
		case ack := <-w.flushReq:
			ack <- w.flushAll()
		}
	}
}

// Write queues a copy of p. isError routes it to errorsOnly outputs as well. When
// the queue is full the caller blocks rather than losing the line.
func (w *asyncWriter) Write(p []byte, isError bool) error {
	if err := w.err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	l := line{data: append([]byte(nil), p...), isError: isError}

	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.queue <- l
	return nil
}

// Flush waits until every queued line has reached the outputs.
func (w *asyncWriter) Flush() error {
	if err := w.err(); err != nil {
		return err
	}
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return nil
	}
	ack := make(chan error, 1)
	w.flushReq <- ack
	return <-ack
}

// Close drains the queue and reports the first write error.
func (w *asyncWriter) Close() error {
	w.once.Do(func() {
		w.closeMu.Lock()
		w.closed = true
		close(w.queue)
		w.closeMu.Unlock()
	})
	<-w.done
	return w.err()
}

func (w *asyncWriter) writeLine(l line) error {
	for _, s := range w.sinks {
		if s.errorsOnly && !l.isError {
			continue
		}
		if _, err := s.buf.Write(l.data); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushAll() error {
	var errs []error
	for _, s := range w.sinks {
		if err := s.buf.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.writeErr
}

func (w *asyncWriter) setErr(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.writeErr == nil {
		w.writeErr = err
	}
}
