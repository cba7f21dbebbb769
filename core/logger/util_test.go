package logger

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestErrAttr(t *testing.T) {
	if a := Err(nil); a.Key != "" {
		t.Fatalf("nil error should yield an empty attr, got %q", a.Key)
	}
	a := Err(errors.New("boom"))
	if a.Key != "err" || a.Value.String() != "boom" {
		t.Fatalf("unexpected attr %v", a)
	}
	long := Err(errors.New(strings.Repeat("x", 1000)))
	if got := len(long.Value.String()); got > errLimit+3 {
		t.Fatalf("error text not bounded: %d", got)
	}
}

func TestDurationField(t *testing.T) {
	cases := map[string]string{
		"duration":         "duration_ms",
		"startup_duration": "startup_duration_ms",
		"delay":            "delay_ms",
		"elapsed_ms":       "elapsed_ms",
	}
	for in, want := range cases {
		key, val, ok := durationField(in, 1500*time.Microsecond)
		if !ok || key != want || val != int64(2) {
			t.Fatalf("%s: got %s=%v", in, key, val)
		}
	}
}
