package logger

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// record is one log line being assembled. Group attributes are flattened into
// dotted keys.
type record map[string]any

func (r record) setDefault(key string, v any) {
	if _, ok := r[key]; !ok {
		r[key] = v
	}
}

func (r record) str(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (r record) clone() record {
	out := make(record, len(r)+16)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// add flattens a under prefix and stores every leaf that renders to a value.
func (r record) add(prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			r.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := fieldValue(key, v); ok {
		r[k] = val
	}
}

// fieldValue converts an attribute value into what the encoders write. Durations
// become integer milliseconds under a key ending in _ms.
func fieldValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationField(key, v.Duration())
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return "", nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return durationField(key, x)
	case fmt.Stringer:
		return key, x.String(), true
	case string:
		return key, strings.TrimSpace(x), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationField renders d in milliseconds under a key ending in _ms.
func durationField(key string, d time.Duration) (string, any, bool) {
	if !strings.HasSuffix(key, "_ms") {
		key += "_ms"
	}
	return key, RoundMS(d).Milliseconds(), true
}

// finish fills event and component, compacts the rid, normalizes enumerated
// fields and drops empty values. keepFullRID keeps the raw rid as rid_full.
func (r record) finish(message string, keepFullRID bool) {
	if r.str("event") == "" {
		if message == "" {
			message = "unknown"
		}
		r["event"] = message
	}
	if r.str("component") == "" {
		r["component"] = "app"
	}
	if rid := r.str("rid"); rid != "" {
		if compact := CompactRID(rid); compact != rid {
			if keepFullRID {
				r.setDefault("rid_full", rid)
			}
			r["rid"] = compact
		}
	}
	for key, e := range enumFields {
		raw := r.str(key)
		if raw == "" {
			continue
		}
		if v, ok := e.values[strings.ToLower(strings.TrimSpace(raw))]; ok {
			r[key] = v
		} else if e.dropUnknown {
			delete(r, key)
		}
	}
	for k, v := range r {
		if v == nil || r.str(k) == "" {
			delete(r, k)
		}
	}
}
