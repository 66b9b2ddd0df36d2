package preset

import (
	"fmt"
	"strconv"
	"strings"
)

// AppendMarker as the last segment of an add targets the end of a list.
const AppendMarker = "append"

// Segment is one step of a path: a field name or a list index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

func (s Segment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

func (s Segment) isAppend() bool {
	return !s.IsIndex && s.Key == AppendMarker
}

// ParsePath splits "parameters.items[2].name" into segments. Dotted segments
// made only of digits ("rules.0") are read as indexes.
func ParsePath(path string) ([]Segment, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}

	var segs []Segment
	i, n := 0, len(path)
	needKey := false // set after a dot

	for i < n {
		switch path[i] {
		case '.':
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)

		case '[':
			if needKey {
				return nil, fmt.Errorf("%w: bracket after dot in %q", ErrInvalidPath, path)
			}
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed bracket in %q", ErrInvalidPath, path)
			}
			inner := strings.TrimSpace(path[i+1 : i+end])
			seg, ok := indexSegment(inner)
			if !ok {
				return nil, fmt.Errorf("%w: bad index %q", ErrInvalidPath, inner)
			}
			segs = append(segs, seg)
			i += end + 1

		default:
			end := i
			for end < n && path[end] != '.' && path[end] != '[' {
				end++
			}
			key := strings.TrimSpace(path[i:end])
			if key == "" || strings.ContainsAny(key, "]") {
				return nil, fmt.Errorf("%w: bad segment %q", ErrInvalidPath, path[i:end])
			}
			if isDigits(key) {
				idx, _ := strconv.Atoi(key)
				segs = append(segs, Segment{Index: idx, IsIndex: true})
			} else {
				segs = append(segs, Segment{Key: key})
			}
			i = end
		}

		needKey = false
		if i < n {
			switch path[i] {
			case '.':
				i++
				if i == n {
					return nil, fmt.Errorf("%w: trailing dot in %q", ErrInvalidPath, path)
				}
				needKey = true
			case '[':
			default:
				return nil, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidPath, path[i], path)
			}
		}
	}
	return segs, nil
}

func indexSegment(inner string) (Segment, bool) {
	if inner == AppendMarker {
		return Segment{Key: AppendMarker}, true
	}
	if !isDigits(inner) {
		return Segment{}, false
	}
	idx, err := strconv.Atoi(inner)
	if err != nil {
		return Segment{}, false
	}
	return Segment{Index: idx, IsIndex: true}, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatPath is the inverse of ParsePath for well formed segments.
func FormatPath(segs []Segment) string {
	var b strings.Builder
	for i, s := range segs {
		if s.IsIndex {
			b.WriteString(s.String())
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.Key)
	}
	return b.String()
}

// Location is the parent container of a path plus its last segment.
type Location struct {
	Last Segment

	object  map[string]interface{}
	list    []interface{}
	setList func([]interface{})
}

// Resolve walks every segment but the last. With create set, missing map
// children are created with the container kind the following segment needs.
// A list index past the end always fails.
func Resolve(root map[string]interface{}, segs []Segment, create bool) (*Location, error) {
	if root == nil || len(segs) == 0 {
		return nil, ErrInvalidPath
	}

	var cur interface{} = root
	setCur := func(interface{}) {}

	for i, seg := range segs[:len(segs)-1] {
		next := segs[i+1]

		if m, ok := asMap(cur); ok {
			if seg.IsIndex {
				return nil, fmt.Errorf("%w: index %d on object", ErrTypeMismatch, seg.Index)
			}
			child, exists := m[seg.Key]
			if !exists || child == nil {
				if !create {
					return nil, fmt.Errorf("%w: %s", ErrNotFound, FormatPath(segs[:i+1]))
				}
				child = newContainer(next)
				m[seg.Key] = child
			}
			key := seg.Key
			setCur = func(v interface{}) { m[key] = v }
			cur = child
			continue
		}

		if l, ok := cur.([]interface{}); ok {
			if !seg.IsIndex {
				return nil, fmt.Errorf("%w: field %q on list", ErrTypeMismatch, seg.Key)
			}
			if seg.Index >= len(l) {
				return nil, fmt.Errorf("%w: %s", ErrOutOfRange, FormatPath(segs[:i+1]))
			}
			child := l[seg.Index]
			if child == nil {
				if !create {
					return nil, fmt.Errorf("%w: %s", ErrNotFound, FormatPath(segs[:i+1]))
				}
				child = newContainer(next)
				l[seg.Index] = child
			}
			idx := seg.Index
			setCur = func(v interface{}) { l[idx] = v }
			cur = child
			continue
		}

		return nil, fmt.Errorf("%w: scalar at %s", ErrTypeMismatch, FormatPath(segs[:i+1]))
	}

	last := segs[len(segs)-1]
	if m, ok := asMap(cur); ok {
		if last.IsIndex {
			return nil, fmt.Errorf("%w: index %d on object", ErrTypeMismatch, last.Index)
		}
		return &Location{Last: last, object: m}, nil
	}
	if l, ok := cur.([]interface{}); ok {
		if !last.IsIndex && !last.isAppend() {
			return nil, fmt.Errorf("%w: field %q on list", ErrTypeMismatch, last.Key)
		}
		owner := setCur
		return &Location{Last: last, list: l, setList: func(v []interface{}) { owner(v) }}, nil
	}
	return nil, fmt.Errorf("%w: parent is scalar", ErrTypeMismatch)
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case Document:
		return map[string]interface{}(t), true
	}
	return nil, false
}

func newContainer(next Segment) interface{} {
	if next.IsIndex || next.isAppend() {
		return []interface{}{}
	}
	return map[string]interface{}{}
}

func (l *Location) IsList() bool {
	return l.object == nil
}

// Get returns the current value at the location.
func (l *Location) Get() (interface{}, bool) {
	if l.object != nil {
		v, ok := l.object[l.Last.Key]
		return v, ok
	}
	if !l.Last.IsIndex || l.Last.Index >= len(l.list) {
		return nil, false
	}
	return l.list[l.Last.Index], true
}

// Set writes v. On a list it overwrites an existing index, appends when the
// index equals the length or the segment is the append marker.
func (l *Location) Set(v interface{}) error {
	if l.object != nil {
		l.object[l.Last.Key] = v
		return nil
	}
	if l.Last.isAppend() || l.Last.Index == len(l.list) {
		return l.Append(v)
	}
	if l.Last.Index > len(l.list) {
		return fmt.Errorf("%w: %d of %d", ErrOutOfRange, l.Last.Index, len(l.list))
	}
	l.list[l.Last.Index] = v
	return nil
}

func (l *Location) Append(v interface{}) error {
	if l.object != nil {
		return fmt.Errorf("%w: append on object", ErrTypeMismatch)
	}
	l.list = append(l.list, v)
	l.setList(l.list)
	return nil
}

// Delete removes a field or splices a list element out.
func (l *Location) Delete() error {
	if l.object != nil {
		if _, ok := l.object[l.Last.Key]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, l.Last.Key)
		}
		delete(l.object, l.Last.Key)
		return nil
	}
	if !l.Last.IsIndex || l.Last.Index >= len(l.list) {
		return fmt.Errorf("%w: %s", ErrOutOfRange, l.Last)
	}
	out := make([]interface{}, 0, len(l.list)-1)
	out = append(out, l.list[:l.Last.Index]...)
	out = append(out, l.list[l.Last.Index+1:]...)
	l.list = out
	l.setList(out)
	return nil
}

// Lookup reads the value at path without modifying root.
func Lookup(root map[string]interface{}, path string) (interface{}, bool) {
	segs, err := ParsePath(path)
	if err != nil {
		return nil, false
	}
	loc, err := Resolve(root, segs, false)
	if err != nil {
		return nil, false
	}
	return loc.Get()
}
