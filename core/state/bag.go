package state

import (
	"encoding/json"
	"strings"
)

// Bag is a nested variable tree addressed by dot-separated paths such as "profile.name".
// The underlying maps are owned by the bag and only reachable through its methods.
type Bag struct {
	root map[string]any
}

// NewBag returns an empty bag.
func NewBag() Bag {
	return Bag{root: make(map[string]any)}
}

func splitPath(path string) ([]string, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
	}
	return parts, true
}

// Get returns a copy of the value stored at path.
func (b Bag) Get(path string) (any, bool) {
	parts, ok := splitPath(path)
	if !ok || b.root == nil {
		return nil, false
	}
	var cur any = b.root
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return deepCopy(cur), true
}

// GetString returns the value at path when it holds a string.
func (b Bag) GetString(path string) (string, bool) {
	v, ok := b.Get(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Has reports whether a value is stored at path.
func (b Bag) Has(path string) bool {
	_, ok := b.Get(path)
	return ok
}

// Set stores value at path, creating intermediate objects as needed.
// A non-object intermediate value is replaced by an object.
func (b *Bag) Set(path string, value any) bool {
	parts, ok := splitPath(path)
	if !ok {
		return false
	}
	if b.root == nil {
		b.root = make(map[string]any)
	}
	cur := b.root
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = deepCopy(value)
	return true
}

// Delete removes the value at path and reports whether anything was removed.
func (b *Bag) Delete(path string) bool {
	parts, ok := splitPath(path)
	if !ok || b.root == nil {
		return false
	}
	cur := b.root
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			return false
		}
		cur = next
	}
	last := parts[len(parts)-1]
	if _, ok := cur[last]; !ok {
		return false
	}
	delete(cur, last)
	return true
}

// Len returns the number of top-level keys.
func (b Bag) Len() int {
	return len(b.root)
}

// Snapshot returns a deep copy of the whole tree, safe to hand to evaluators.
func (b Bag) Snapshot() map[string]any {
	out, _ := deepCopy(b.root).(map[string]any)
	if out == nil {
		out = make(map[string]any)
	}
	return out
}

// MarshalJSON encodes the tree as a JSON object.
func (b Bag) MarshalJSON() ([]byte, error) {
	if b.root == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b.root)
}

// UnmarshalJSON replaces the tree with the decoded JSON object.
func (b *Bag) UnmarshalJSON(data []byte) error {
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return err
	}
	if root == nil {
		root = make(map[string]any)
	}
	b.root = root
	return nil
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}
