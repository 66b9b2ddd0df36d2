package preset

import (
	"encoding/json"
	"fmt"
)

// Document is a decoded preset. Top level sections are meta, parameters and rules.
type Document map[string]interface{}

const (
	SectionMeta       = "meta"
	SectionParameters = "parameters"
	SectionRules      = "rules"
)

// ParseDocument decodes raw JSON into a Document. Numbers decode as float64.
func ParseDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode preset document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

func (d Document) Bytes() ([]byte, error) {
	return json.Marshal(d)
}

// Clone returns a deep copy. Slices and maps are never shared with the receiver.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]interface{}(d)).(map[string]interface{})
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, child := range t {
			out[k] = cloneValue(child)
		}
		return out
	case Document:
		return cloneValue(map[string]interface{}(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, child := range t {
			out[i] = cloneValue(child)
		}
		return out
	default:
		return t
	}
}

// ValueType names the scalar kinds a node can carry.
type ValueType string

const (
	ValueString  ValueType = "string"
	ValueNumber  ValueType = "number"
	ValueBoolean ValueType = "boolean"
)

// scalarType reports the ValueType of v, or false when v is a container or null.
func scalarType(v interface{}) (ValueType, bool) {
	switch v.(type) {
	case string:
		return ValueString, true
	case bool:
		return ValueBoolean, true
	case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return ValueNumber, true
	default:
		return "", false
	}
}

// Name returns meta.name, or "" when absent.
func (d Document) Name() string {
	meta, ok := d[SectionMeta].(map[string]interface{})
	if !ok {
		return ""
	}
	name, _ := meta["name"].(string)
	return name
}
