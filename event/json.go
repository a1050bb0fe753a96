package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// FromJSON decodes a JSON document into a generic event tree: every string
// becomes a PIIKind-text leaf (so pattern rules can scan it), numbers, bools
// and nulls become leaves with no PII kind, and every array or object
// becomes a PIIKind-container node the processor recurses into.
// Protocol-specific typed projections (event.Contexts and friends) build
// their own tagged nodes directly via ToNode; this is the ingest-side
// fallback for untyped JSON, per spec.md §9's "avoid per-field typed
// structs for the ingest-side of the pipeline."
func FromJSON(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("event: decode json: %w", err)
	}
	return fromValue(raw), nil
}

func fromValue(v interface{}) *Node {
	switch tv := v.(type) {
	case nil:
		return &Node{Type: TypeNull}
	case bool:
		return NewBool(tv)
	case json.Number:
		f, _ := tv.Float64()
		return NewNumber(f)
	case string:
		return NewString(tv)
	case []interface{}:
		children := make([]*Node, len(tv))
		for i, item := range tv {
			children[i] = fromValue(item)
		}
		return NewArray(children...)
	case map[string]interface{}:
		obj := NewObject()
		for _, key := range orderedKeys(tv) {
			obj.Set(key, fromValue(tv[key]))
		}
		return NewObjectNode(TypeObject, obj)
	default:
		return &Node{Type: TypeNull}
	}
}

// orderedKeys returns m's keys in lexical order. The decoder's original key
// order is not kept (Go's map has no stable order); acceptable here because
// output key order for a
// generic untyped object is not semantically significant to the wire format
// (the typed projections in contexts.go preserve real field order).
func orderedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	insertionSort(keys)
	return keys
}

// ToJSON serializes a node back to JSON, reflecting any redactions the PII
// processor applied in place.
func ToJSON(node *Node) ([]byte, error) {
	v, err := toValue(node)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func toValue(node *Node) (interface{}, error) {
	if node == nil {
		return nil, nil
	}
	switch node.Type {
	case TypeNull:
		return nil, nil
	case TypeBool:
		return node.Bool, nil
	case TypeNumber:
		if math.IsNaN(node.Num) || math.IsInf(node.Num, 0) {
			return 0, nil
		}
		return node.Num, nil
	case TypeString:
		return node.Str, nil
	case TypeArray:
		out := make([]interface{}, len(node.Array))
		for i, child := range node.Array {
			v, err := toValue(child)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		if node.Object == nil {
			return nil, nil
		}
		out := make(map[string]interface{}, len(node.Object.Keys))
		for _, key := range node.Object.Keys {
			v, err := toValue(node.Object.Get(key))
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil
	}
}
