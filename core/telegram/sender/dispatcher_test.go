package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/flowbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	done := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "send.test", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		close(done)
		return nil
	}))
	<-done
	d.Close()
	assert.EqualValues(t, 3, calls.Load())
}

func TestDispatcherDoesNotRetryClientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "send.test", "sendMessage", func() error {
		calls.Add(1)
		return tele.NewError(400, "Bad Request: chat not found")
	}))
	d.Close()
	assert.EqualValues(t, 1, calls.Load())
}

func TestDispatcherKeepsChatOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4, QueueSize: 32})
	ctx := logger.WithUpdateMeta(context.Background(), 1, 42, -100500)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 20; i++ {
		i := i
		require.NoError(t, d.Enqueue(ctx, "relay.copy", "copyMessage", func() error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}))
	}
	d.Close()

	require.Len(t, got, 20)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestDispatcherDoFallsBackInline(t *testing.T) {
	var nilDispatcher *Dispatcher
	ran := false
	require.NoError(t, nilDispatcher.Do(context.Background(), "a", "b", func() error { ran = true; return nil }))
	assert.True(t, ran)

	d := NewDispatcher(Options{Workers: 1})
	d.Close()
	assert.ErrorIs(t, d.Enqueue(context.Background(), "a", "b", func() error { return nil }), ErrQueueClosed)

	ran = false
	require.NoError(t, d.Do(context.Background(), "a", "b", func() error { ran = true; return nil }))
	assert.True(t, ran, "closed dispatcher runs inline")
	d.Close()
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "a", "b", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "a", "b", func() error { return nil }))
	assert.ErrorIs(t, d.Enqueue(context.Background(), "a", "b", func() error { return nil }), ErrQueueFull)
	close(release)
	d.Close()
}

func TestClassifyAndSanitize(t *testing.T) {
	assert.Equal(t, "timeout", classifyError(context.DeadlineExceeded))
	assert.Equal(t, "dial", classifyError(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.Equal(t, "http_4xx", classifyError(tele.NewError(403, "Forbidden: bot was blocked by the user")))
	assert.Equal(t, "http_5xx", classifyError(tele.NewError(502, "Bad Gateway")))
	assert.Equal(t, "unknown", classifyError(errors.New("odd")))

	err := errors.New(`Post "https://api.telegram.org/bot123456:AAE-x_y/sendMessage": EOF`)
	assert.Equal(t, `Post "https://api.telegram.org/bot<redacted>/sendMessage": EOF`, SanitizeError(err))
	assert.NotContains(t, ErrAttr(err).Value.String(), "123456")
	assert.Equal(t, "", ErrAttr(nil).Key)
}
