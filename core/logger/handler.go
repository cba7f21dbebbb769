package logger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

var errNoWriter = errors.New("logger: writer not initialized")

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler writes one flat JSON or key=value line per record, with fixed
// leading keys and correlation fields taken from the context.
type structuredHandler struct {
	cfg    handlerConfig
	bound  record
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = defaultKeyOrder
	}
	return &structuredHandler{cfg: cfg, bound: record{}}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errNoWriter
	}
	rec := h.bound.clone()
	rec["ts"] = r.Time.UTC().Truncate(time.Millisecond).Format(timeFormatMillis)
	rec["level"] = levelName(r.Level)
	r.Attrs(func(a slog.Attr) bool {
		rec.add(h.prefix, a)
		return true
	})
	metaFrom(ctx).fill(rec)
	rec.finish(r.Message, h.cfg.format == formatJSON)

	var out []byte
	if h.cfg.format == formatJSON {
		var err error
		if out, err = encodeJSON(rec, h.cfg.keyOrder); err != nil {
			return err
		}
	} else {
		out = encodeKV(rec, h.cfg.keyOrder)
	}
	return h.cfg.writer.Write(out, r.Level >= slog.LevelError)
}

// WithAttrs binds attrs under the current group prefix; groups opened later do not
// apply to them.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.bound = h.bound.clone()
	for _, a := range attrs {
		clone.bound.add(h.prefix, a)
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	name = strings.TrimSpace(name)
	if name == "" {
		return h
	}
	clone := *h
	if h.prefix == "" {
		clone.prefix = name
	} else {
		clone.prefix = h.prefix + "." + name
	}
	return &clone
}
