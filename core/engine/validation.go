package engine

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/flowbot/core/flow"
)

const defaultValidationError = "Invalid input, please try again."

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// numberPattern admits plain decimal literals with an optional exponent.
var numberPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var flexibleDateLayouts = []string{
	"2006-01-02 15:04",
	"2006-1-2 15:04",
	"2006-01-02",
	"2006-1-2",
	"02.01.2006 15:04",
	"2.1.2006 15:04",
	"02.01.2006",
	"2.1.2006",
}

// ParseFlexibleDate accepts ISO and dotted day-first dates, optionally with a time.
func ParseFlexibleDate(input string) (time.Time, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range flexibleDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ValidateInput checks an answer against a wait_input validation. A nil validation
// and unknown types accept everything.
func ValidateInput(v *flow.Validation, input string) bool {
	if v == nil {
		return true
	}
	trimmed := strings.TrimSpace(input)
	switch v.Type {
	case flow.ValidateText:
		return trimmed != ""
	case flow.ValidateNumber:
		if !numberPattern.MatchString(trimmed) {
			return false
		}
		n, err := strconv.ParseFloat(trimmed, 64)
		return err == nil && !math.IsInf(n, 0)
	case flow.ValidateEmail:
		return emailPattern.MatchString(trimmed)
	case flow.ValidateDate:
		_, ok := ParseFlexibleDate(trimmed)
		return ok
	default:
		return true
	}
}

func validationMessage(v *flow.Validation) string {
	if v != nil && v.ErrorMessage != "" {
		return v.ErrorMessage
	}
	return defaultValidationError
}
