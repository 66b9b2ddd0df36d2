package teaching

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"preset-teaching-be/pkg/preset"
)

type Decision string

const (
	DecisionUpdate   Decision = "update"
	DecisionNoChange Decision = "no_change"
)

// PlannedEdit is one resolved entry of an edit plan.
type PlannedEdit struct {
	Node      preset.Node      `json:"node"`
	Operation preset.Operation `json:"operation"`
}

// UnknownRef is an entry that was dropped, kept for diagnostics.
type UnknownRef struct {
	Type   string `json:"type,omitempty"`
	Index  string `json:"index,omitempty"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

func (u UnknownRef) String() string {
	ref := u.ID
	if u.Index != "" {
		ref = "#" + u.Index
		if u.ID != "" {
			ref += "/" + u.ID
		}
	}
	if ref == "" {
		ref = "?"
	}
	return ref + ": " + u.Reason
}

// Plan is a parsed and resolved generator reply.
type Plan struct {
	Decision Decision      `json:"decision"`
	Edits    []PlannedEdit `json:"edits"`
	Unknown  []UnknownRef  `json:"unknown,omitempty"`
	Block    string        `json:"-"`
}

func (p *Plan) Operations() []preset.Operation {
	ops := make([]preset.Operation, 0, len(p.Edits))
	for _, e := range p.Edits {
		ops = append(ops, e.Operation)
	}
	return ops
}

func (p *Plan) Empty() bool {
	return len(p.Edits) == 0
}

var (
	fencePattern     = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\n?(.*?)```")
	planBlockPattern = regexp.MustCompile(`(?is)<preset_teaching_plan\b([^>]*)>(.*?)</preset_teaching_plan\s*>`)
	entryPattern     = regexp.MustCompile(`(?is)<(?:edit|operation)\b([^>]*?)(?:/>|>(.*?)</(?:edit|operation)\s*>)`)
	attrPattern      = regexp.MustCompile(`(?i)([a-z_]+)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	cdataPattern     = regexp.MustCompile(`(?s)^<!\[CDATA\[(.*)\]\]>$`)
)

// Tag and attribute names accepted for each entry field, in priority order.
var (
	typeFields     = []string{"type", "edit_type", "op", "action", "verb"}
	indexFields    = []string{"target_index", "index", "position", "node_index"}
	idFields       = []string{"target_id", "target", "node_id", "id", "path"}
	valueFields    = []string{"new_value", "value"}
	reasonFields   = []string{"reason", "rationale", "why"}
	decisionFields = []string{"decision"}
)

var fieldPatterns = func() map[string]*regexp.Regexp {
	out := map[string]*regexp.Regexp{}
	groups := [][]string{typeFields, indexFields, idFields, valueFields, reasonFields, decisionFields}
	for _, g := range groups {
		for _, name := range g {
			out[name] = regexp.MustCompile(`(?is)<` + name + `\b[^>]*>(.*?)</` + name + `\s*>`)
		}
	}
	return out
}()

// verbs maps accepted spellings to an operation. enable and disable become an
// update of a boolean node, so they are idempotent; toggle and flip invert.
var verbs = map[string]preset.OpType{
	"update":  preset.OpUpdate,
	"set":     preset.OpUpdate,
	"replace": preset.OpUpdate,
	"change":  preset.OpUpdate,
	"modify":  preset.OpUpdate,
	"add":     preset.OpAdd,
	"insert":  preset.OpAdd,
	"append":  preset.OpAdd,
	"create":  preset.OpAdd,
	"delete":  preset.OpDelete,
	"remove":  preset.OpDelete,
	"toggle":  preset.OpToggle,
	"flip":    preset.OpToggle,
	"enable":  preset.OpUpdate,
	"disable": preset.OpUpdate,
}

// ParsePlan extracts the first <preset_teaching_plan> block from reply and
// resolves its entries against ix. It returns a *ParseError when the block is
// missing or when no entry could be resolved.
func ParsePlan(reply string, ix *preset.Index, resolver *preset.Resolver) (*Plan, error) {
	if resolver == nil {
		resolver = preset.NewResolver()
	}
	text := fencePattern.ReplaceAllString(reply, "$1")

	block := planBlockPattern.FindStringSubmatch(text)
	if block == nil {
		return nil, &ParseError{Reason: "reply has no <preset_teaching_plan> block"}
	}
	attrs := parseAttrs(block[1])
	body := block[2]

	plan := &Plan{
		Decision: normalizeDecision(field(attrs, body, decisionFields)),
		Block:    block[0],
	}

	entries := entryPattern.FindAllStringSubmatch(body, -1)
	if len(entries) == 0 {
		if plan.Decision == DecisionNoChange {
			return plan, nil
		}
		return nil, &ParseError{Reason: "plan has no edit entries and decision is not no_change"}
	}

	for _, m := range entries {
		edit, unknown := buildEdit(parseAttrs(m[1]), m[2], ix, resolver)
		if unknown != nil {
			plan.Unknown = append(plan.Unknown, *unknown)
			continue
		}
		plan.Edits = append(plan.Edits, *edit)
	}

	if len(plan.Edits) == 0 {
		return nil, &ParseError{Reason: "no edit entry matched a listed node", Unknown: plan.Unknown}
	}
	plan.Decision = DecisionUpdate
	return plan, nil
}

func buildEdit(attrs map[string]string, body string, ix *preset.Index, resolver *preset.Resolver) (*PlannedEdit, *UnknownRef) {
	verb := strings.ToLower(strings.TrimSpace(field(attrs, body, typeFields)))
	index := field(attrs, body, indexFields)
	id := field(attrs, body, idFields)
	ref := UnknownRef{Type: verb, Index: index, ID: id}

	op, ok := verbs[verb]
	if !ok {
		ref.Reason = fmt.Sprintf("unknown edit type %q", verb)
		return nil, &ref
	}
	if index == "" && id == "" {
		ref.Reason = "missing target"
		return nil, &ref
	}

	node, ok := resolver.ResolveTarget(ix, index, id)
	if !ok {
		ref.Reason = "target does not match any node"
		return nil, &ref
	}

	rawValue, hasValue := fieldPresent(attrs, body, valueFields)
	operation := preset.Operation{
		Op:     op,
		Path:   node.Path,
		Reason: field(attrs, body, reasonFields),
	}

	switch {
	case verb == "enable" || verb == "disable":
		if node.ValueType != preset.ValueBoolean {
			ref.Reason = verb + " needs a boolean node"
			return nil, &ref
		}
		operation.Value = verb == "enable"

	case op == preset.OpAdd || op == preset.OpUpdate:
		if !hasValue {
			ref.Reason = "missing new value"
			return nil, &ref
		}
		value, err := CoerceValue(rawValue, node.ValueType)
		if err != nil {
			ref.Reason = err.Error()
			return nil, &ref
		}
		operation.Value = value
		if verb == "append" {
			operation.Path = appendPath(node.Path)
		}

	case op == preset.OpToggle:
		if hasValue && rawValue != "" {
			if b, err := parseBool(rawValue); err == nil {
				operation.Value = b
			}
		}
	}

	return &PlannedEdit{Node: node, Operation: operation}, nil
}

// appendPath retargets a list element path at the end of its list. Paths
// whose last segment is a field are left alone.
func appendPath(path string) string {
	segs, err := preset.ParsePath(path)
	if err != nil || len(segs) < 2 || !segs[len(segs)-1].IsIndex {
		return path
	}
	return preset.FormatPath(segs[:len(segs)-1]) + "[" + preset.AppendMarker + "]"
}

// CoerceValue converts the textual value of an entry to the node's type.
func CoerceValue(raw string, vt preset.ValueType) (interface{}, error) {
	switch vt {
	case preset.ValueNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not a number", raw)
		}
		return f, nil
	case preset.ValueBoolean:
		b, err := parseBool(raw)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return raw, nil
	}
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "on", "1", "enabled":
		return true, nil
	case "false", "no", "off", "0", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("value %q is not a boolean", raw)
}

func normalizeDecision(raw string) Decision {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.NewReplacer("-", "_", " ", "_").Replace(d)
	switch d {
	case "no_change", "nochange", "none", "no_update", "skip":
		return DecisionNoChange
	case "":
		return ""
	default:
		return DecisionUpdate
	}
}

func parseAttrs(raw string) map[string]string {
	attrs := map[string]string{}
	for _, m := range attrPattern.FindAllStringSubmatch(raw, -1) {
		v := m[2]
		if v == "" {
			v = m[3]
		}
		attrs[strings.ToLower(m[1])] = html.UnescapeString(v)
	}
	return attrs
}

func field(attrs map[string]string, body string, names []string) string {
	v, _ := fieldPresent(attrs, body, names)
	return v
}

// fieldPresent looks up the first name present as an attribute, then as a
// child tag. Values are unescaped and trimmed.
func fieldPresent(attrs map[string]string, body string, names []string) (string, bool) {
	for _, name := range names {
		if v, ok := attrs[name]; ok {
			return strings.TrimSpace(v), true
		}
	}
	if body == "" {
		return "", false
	}
	for _, name := range names {
		if m := fieldPatterns[name].FindStringSubmatch(body); m != nil {
			return tagText(m[1]), true
		}
	}
	return "", false
}

func tagText(raw string) string {
	s := strings.TrimSpace(raw)
	if m := cdataPattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(html.UnescapeString(s))
}
