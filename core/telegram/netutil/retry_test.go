package netutil

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetry(t *testing.T) {
	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(errors.New("bad request")))
	assert.True(t, ShouldRetry(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.True(t, ShouldRetry(timeoutErr{}))
	assert.True(t, ShouldRetry(tele.FloodError{RetryAfter: 3}))
	assert.True(t, ShouldRetry(&tele.Error{Code: 502, Description: "bad gateway"}))
	assert.False(t, ShouldRetry(&tele.Error{Code: 400, Description: "chat not found"}))
}

func TestRetryDelay(t *testing.T) {
	backoff := 100 * time.Millisecond
	assert.Equal(t, 200*time.Millisecond, RetryDelay(errors.New("x"), 2, backoff))
	assert.Equal(t, 3*time.Second, RetryDelay(tele.FloodError{RetryAfter: 3}, 1, backoff))
	assert.Equal(t, MaxFloodWait, RetryDelay(tele.FloodError{RetryAfter: 3600}, 1, backoff))
}
