package logger

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAsyncWriterFanOut(t *testing.T) {
	a, b := &lockedBuffer{}, &lockedBuffer{}
	w := newAsyncWriter([]output{{w: a}, {w: b}}, 0)
	if err := w.Write([]byte("one\n"), false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if a.String() != "one\n" || b.String() != "one\n" {
		t.Fatalf("unexpected sinks: %q %q", a.String(), b.String())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestAsyncWriterAfterClose(t *testing.T) {
	w := newAsyncWriter([]output{{w: &lockedBuffer{}}}, 0)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Write([]byte("late\n"), false); !errors.Is(err, errWriterClosed) {
		t.Fatalf("expected errWriterClosed, got %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestAsyncWriterErrorsOnlyOutput(t *testing.T) {
	all, errs := &lockedBuffer{}, &lockedBuffer{}
	w := newAsyncWriter([]output{{w: all}, {w: errs, errorsOnly: true}}, 0)
	if err := w.Write([]byte("info\n"), false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write([]byte("error\n"), true); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if all.String() != "info\nerror\n" {
		t.Fatalf("unexpected main output %q", all.String())
	}
	if errs.String() != "error\n" {
		t.Fatalf("unexpected errors output %q", errs.String())
	}
}
