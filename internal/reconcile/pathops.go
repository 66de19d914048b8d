package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// segment is one step of a config path: a map key, or a list position
// when idx >= 0.
type segment struct {
	key string
	idx int
}

// ValidatePath checks a dotted/bracket path such as "channels.telegram.allowFrom[0]".
func ValidatePath(path string) error {
	_, err := splitPath(path)
	return err
}

// ParseValue decodes raw as JSON, falling back to the plain string.
func ParseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// GetPath returns the value at path within doc.
func GetPath(doc map[string]any, path string) (any, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	val, ok := lookupPath(doc, segs)
	if !ok {
		return nil, fmt.Errorf("path not found: %s", path)
	}
	return val, nil
}

// splitPath parses "a.b[2].c". Every dot-separated part needs a key;
// indexes may only follow a key.
func splitPath(path string) ([]segment, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("path is empty")
	}
	var segs []segment
	for _, part := range strings.Split(path, ".") {
		name, rest, indexed := strings.Cut(part, "[")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid path %q: empty key", path)
		}
		segs = append(segs, segment{key: name, idx: -1})
		for indexed {
			raw, after, closed := strings.Cut(rest, "]")
			if !closed {
				return nil, fmt.Errorf("invalid path %q: missing ]", path)
			}
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid path %q: bad index %q", path, raw)
			}
			segs = append(segs, segment{idx: n})
			switch {
			case after == "":
				indexed = false
			case after[0] == '[':
				rest = after[1:]
			default:
				return nil, fmt.Errorf("invalid path %q: unexpected %q after index", path, after)
			}
		}
	}
	return segs, nil
}

func lookupPath(doc map[string]any, segs []segment) (any, bool) {
	var cur any = doc
	for _, s := range segs {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[s.key]
			if s.idx >= 0 || !ok {
				return nil, false
			}
			cur = v
		case []any:
			if s.idx < 0 || s.idx >= len(node) {
				return nil, false
			}
			cur = node[s.idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// assignPath stores value at segs, creating maps and growing lists on the
// way. Non-container values in the way are replaced.
func assignPath(doc map[string]any, segs []segment, value any) {
	var cur any = doc
	replace := func(any) {}
	for i, s := range segs {
		last := i == len(segs)-1
		if s.idx < 0 {
			m, ok := cur.(map[string]any)
			if !ok {
				m = map[string]any{}
				replace(m)
			}
			key := s.key
			if last {
				m[key] = value
				return
			}
			cur, replace = m[key], func(v any) { m[key] = v }
			continue
		}
		list, _ := cur.([]any)
		if len(list) <= s.idx {
			list = append(list, make([]any, s.idx+1-len(list))...)
			replace(list)
		}
		idx := s.idx
		if last {
			list[idx] = value
			return
		}
		cur, replace = list[idx], func(v any) { list[idx] = v }
	}
}

// removePath deletes the key or list element at segs and reports whether
// anything was there.
func removePath(doc map[string]any, segs []segment) bool {
	var cur any = doc
	replace := func(any) {}
	for i, s := range segs {
		last := i == len(segs)-1
		if s.idx < 0 {
			m, ok := cur.(map[string]any)
			if !ok {
				return false
			}
			child, ok := m[s.key]
			if !ok {
				return false
			}
			if last {
				delete(m, s.key)
				return true
			}
			key := s.key
			cur, replace = child, func(v any) { m[key] = v }
			continue
		}
		list, ok := cur.([]any)
		if !ok || s.idx >= len(list) {
			return false
		}
		if last {
			replace(append(list[:s.idx:s.idx], list[s.idx+1:]...))
			return true
		}
		idx := s.idx
		cur, replace = list[idx], func(v any) { list[idx] = v }
	}
	return false
}

// validatePaths rejects a patch whose edits could not be applied.
func (p Patch) validatePaths() error {
	var errs []error
	for _, pv := range p.Sets {
		if err := ValidatePath(pv.Path); err != nil {
			errs = append(errs, err)
		}
	}
	for _, path := range p.Unsets {
		if err := ValidatePath(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
