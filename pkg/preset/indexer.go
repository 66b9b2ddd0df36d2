package preset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

type NodeKind string

const (
	KindMeta      NodeKind = "meta"
	KindParameter NodeKind = "parameter"
	KindRule      NodeKind = "rule"
)

// Node is an addressable scalar leaf. Position is 1-based and stable for a
// given document.
type Node struct {
	Position  int         `json:"position"`
	ID        string      `json:"id"`
	Kind      NodeKind    `json:"kind"`
	Path      string      `json:"path"`
	Title     string      `json:"title,omitempty"`
	Preview   string      `json:"preview,omitempty"`
	ValueType ValueType   `json:"value_type"`
	Value     interface{} `json:"value"`
}

type IndexOptions struct {
	MaxDepth     int
	MaxListItems int
	MaxRules     int
	PreviewLimit int
}

func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		MaxDepth:     5,
		MaxListItems: 4,
		MaxRules:     16,
		PreviewLimit: 120,
	}
}

// ruleTextFields are checked in order; the first string field becomes the
// rule's instruction node.
var ruleTextFields = []string{"instruction", "content", "text", "behavior", "prompt", "description"}

type Index struct {
	Nodes []Node
	byID  map[string]int
}

func (ix *Index) Len() int    { return len(ix.Nodes) }
func (ix *Index) Empty() bool { return len(ix.Nodes) == 0 }

// At returns the node at a 1-based position.
func (ix *Index) At(position int) (Node, bool) {
	if position < 1 || position > len(ix.Nodes) {
		return Node{}, false
	}
	return ix.Nodes[position-1], true
}

func (ix *Index) ByID(id string) (Node, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return Node{}, false
	}
	return ix.Nodes[i], true
}

// BuildIndex flattens doc into meta, parameter and rule nodes, in that order.
// Map keys are visited in sorted order.
func BuildIndex(doc Document, opts IndexOptions) *Index {
	opts = opts.withDefaults()
	b := &indexBuilder{opts: opts, ix: &Index{byID: map[string]int{}}}

	if meta, ok := asMap(doc[SectionMeta]); ok {
		for _, key := range sortedKeys(meta) {
			if !safeKey(key) {
				continue
			}
			vt, ok := scalarType(meta[key])
			if !ok {
				continue
			}
			b.emit(Node{
				ID:        "meta:" + key,
				Kind:      KindMeta,
				Path:      SectionMeta + "." + key,
				Title:     key,
				ValueType: vt,
				Value:     meta[key],
			})
		}
	}

	if params, ok := asMap(doc[SectionParameters]); ok {
		b.walkParams(params, []Segment{{Key: SectionParameters}}, 1)
	}

	if rules, ok := doc[SectionRules].([]interface{}); ok {
		b.indexRules(rules)
	}
	return b.ix
}

func (o IndexOptions) withDefaults() IndexOptions {
	def := DefaultIndexOptions()
	if o.MaxDepth <= 0 {
		o.MaxDepth = def.MaxDepth
	}
	if o.MaxListItems <= 0 {
		o.MaxListItems = def.MaxListItems
	}
	if o.MaxRules <= 0 {
		o.MaxRules = def.MaxRules
	}
	if o.PreviewLimit <= 0 {
		o.PreviewLimit = def.PreviewLimit
	}
	return o
}

type indexBuilder struct {
	opts IndexOptions
	ix   *Index
}

func (b *indexBuilder) emit(n Node) {
	base := n.ID
	for i := 2; ; i++ {
		if _, taken := b.ix.byID[n.ID]; !taken {
			break
		}
		n.ID = base + "~" + strconv.Itoa(i)
	}
	n.Preview = preview(n.Value, b.opts.PreviewLimit)
	n.Position = len(b.ix.Nodes) + 1
	b.ix.byID[n.ID] = len(b.ix.Nodes)
	b.ix.Nodes = append(b.ix.Nodes, n)
}

func (b *indexBuilder) walkParams(v interface{}, segs []Segment, depth int) {
	if depth > b.opts.MaxDepth {
		return
	}
	if m, ok := asMap(v); ok {
		for _, key := range sortedKeys(m) {
			if !safeKey(key) {
				continue
			}
			b.paramChild(m[key], appendSeg(segs, Segment{Key: key}), depth)
		}
		return
	}
	if l, ok := v.([]interface{}); ok {
		for i, child := range l {
			if i >= b.opts.MaxListItems {
				break
			}
			b.paramChild(child, appendSeg(segs, Segment{Index: i, IsIndex: true}), depth)
		}
	}
}

func (b *indexBuilder) paramChild(v interface{}, segs []Segment, depth int) {
	if vt, ok := scalarType(v); ok {
		path := FormatPath(segs)
		b.emit(Node{
			ID:        "param:" + strings.TrimPrefix(path, SectionParameters+"."),
			Kind:      KindParameter,
			Path:      path,
			Title:     titleOf(segs),
			ValueType: vt,
			Value:     v,
		})
		return
	}
	b.walkParams(v, segs, depth+1)
}

func (b *indexBuilder) indexRules(rules []interface{}) {
	for i, raw := range rules {
		if i >= b.opts.MaxRules {
			break
		}
		rule, ok := asMap(raw)
		if !ok {
			continue
		}
		ruleID := ruleIdentifier(rule, i)
		title := ruleID
		if name, ok := rule["name"].(string); ok && name != "" {
			title = name
		} else if name, ok := rule["title"].(string); ok && name != "" {
			title = name
		}
		base := fmt.Sprintf("%s[%d]", SectionRules, i)

		if enabled, ok := rule["enabled"].(bool); ok {
			b.emit(Node{
				ID:        "rule:" + ruleID + ".enabled",
				Kind:      KindRule,
				Path:      base + ".enabled",
				Title:     title,
				ValueType: ValueBoolean,
				Value:     enabled,
			})
		}
		for _, field := range ruleTextFields {
			text, ok := rule[field].(string)
			if !ok {
				continue
			}
			b.emit(Node{
				ID:        "rule:" + ruleID + "." + field,
				Kind:      KindRule,
				Path:      base + "." + field,
				Title:     title,
				ValueType: ValueString,
				Value:     text,
			})
			break
		}
	}
}

func ruleIdentifier(rule map[string]interface{}, i int) string {
	switch id := rule["id"].(type) {
	case string:
		if s := strings.TrimSpace(id); s != "" {
			return s
		}
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return "#" + strconv.Itoa(i+1)
}

func titleOf(segs []Segment) string {
	for i := len(segs) - 1; i >= 0; i-- {
		if !segs[i].IsIndex {
			if i == len(segs)-1 {
				return segs[i].Key
			}
			return FormatPath(segs[i:])
		}
	}
	return FormatPath(segs)
}

func appendSeg(segs []Segment, s Segment) []Segment {
	out := make([]Segment, len(segs), len(segs)+1)
	copy(out, segs)
	return append(out, s)
}

// safeKey rejects keys that would not survive a FormatPath/ParsePath round trip.
func safeKey(key string) bool {
	if key == "" || strings.TrimSpace(key) != key || isDigits(key) || key == AppendMarker {
		return false
	}
	return !strings.ContainsAny(key, ".[]")
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func preview(v interface{}, limit int) string {
	s := FormatScalar(v)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "..."
}

// FormatScalar renders a scalar the way it is shown to the generator.
func FormatScalar(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
