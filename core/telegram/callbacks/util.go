package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// uniqueMarker starts callback data produced by buttons with a Unique.
const uniqueMarker = "\f"

// ParseCallbackData splits Telebot's \f<unique>|<payload> encoding. Data without the
// marker carries no unique and is returned whole as the payload.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	if !strings.HasPrefix(cb.Data, uniqueMarker) {
		return "", cb.Data
	}
	parts := strings.SplitN(strings.TrimPrefix(cb.Data, uniqueMarker), "|", 2)
	unique := strings.TrimSpace(parts[0])
	payload := ""
	if len(parts) == 2 {
		payload = parts[1]
	}
	return unique, payload
}
