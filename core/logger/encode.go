package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// keys returns the record keys: those listed in order first, the rest sorted.
func (r record) keys(order []string) []string {
	out := make([]string, 0, len(r))
	listed := make(map[string]struct{}, len(order))
	for _, k := range order {
		if _, ok := r[k]; ok {
			if _, dup := listed[k]; !dup {
				out = append(out, k)
			}
		}
		listed[k] = struct{}{}
	}
	head := len(out)
	for k := range r {
		if _, ok := listed[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out[head:])
	return out
}

func encodeJSON(r record, order []string) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range r.keys(order) {
		val, err := json.Marshal(r[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteString("}\n")
	return b.Bytes(), nil
}

func encodeKV(r record, order []string) []byte {
	var b bytes.Buffer
	for i, k := range r.keys(order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(kvValue(r[k]))
	}
	b.WriteByte('\n')
	return b.Bytes()
}

func kvValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		s = fmt.Sprint(x)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
