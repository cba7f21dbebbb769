package logger

import "log/slog"

// levelName renders a slog level in the upper-case form the log schema uses.
func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

// enumField restricts a field to known values; unknown values are kept as given
// unless dropUnknown is set.
type enumField struct {
	values      map[string]string
	dropUnknown bool
}

var enumFields = map[string]enumField{
	"status": {values: map[string]string{
		"ok":           "ok",
		"fail":         "fail",
		"skip":         "skip",
		"retry":        "retry",
		"rate_limited": "rate_limited",
		"cancelled":    "cancelled",
	}},
	// outcome carries both handler summaries and engine results.
	"outcome": {dropUnknown: true, values: map[string]string{
		"ok":           "ok",
		"fail":         "fail",
		"failed":       "fail",
		"ignored":      "ignored",
		"cancelled":    "cancelled",
		"rate_limited": "rate_limited",
	}},
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"topic_id",
	"target_user_id",
	"handler",
	"flow",
	"step",
	"step_id",
	"step_type",
	"dest",
	"op",
	"cb_key",
	"outcome",
	"reason",
	"duration_ms",
	"messages",
	"kb",
	"count",
	"hops",
	"payload",
	"driver",
	"mode",
	"err",
	"err_code",
	"cause",
	"attempt",
	"attempts",
	"backoff_ms",
	"rate_limited",
}
