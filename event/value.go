// Package event defines the structured event tree the PII processor and
// selector engine operate on: a tagged tree of strings, numbers, booleans,
// ordered sequences, and string-keyed maps, with a side metadata table for
// annotations and redaction remarks.
package event

import "fmt"

// ValueType is the static kind of a node in the event tree. It combines the
// base structural kinds (string, number, array, object, binary) with
// protocol-domain tags (exception, stacktrace, ...) so a selector's
// value-type predicate can address either.
type ValueType string

const (
	TypeNull        ValueType = "null"
	TypeString      ValueType = "string"
	TypeNumber      ValueType = "number"
	TypeBool        ValueType = "bool"
	TypeArray       ValueType = "array"
	TypeObject      ValueType = "object"
	TypeBinary      ValueType = "binary"
	TypeAttachments ValueType = "attachments"

	TypeException  ValueType = "exception"
	TypeStacktrace ValueType = "stacktrace"
	TypeFrame      ValueType = "frame"
	TypeRequest    ValueType = "request"
	TypeUser       ValueType = "user"
	TypeContexts   ValueType = "contexts"
	TypeBreadcrumb ValueType = "breadcrumb"
)

// PIIKind is a coarse semantic hint carried by a node: whether it holds
// free text worth scanning for PII patterns, or is a container whose
// children should be visited instead.
type PIIKind string

const (
	PIIKindNone      PIIKind = ""
	PIIKindText      PIIKind = "text"
	PIIKindContainer PIIKind = "container"
	// PIIKindMaybe tags the synthetic binary leaf the attachment scrubber
	// enters traversal at: it is neither known text nor a container.
	PIIKindMaybe PIIKind = "maybe"
)

// Remark is an audit entry appended to a node's metadata describing a
// redaction that was applied to it.
type Remark struct {
	Rule   string // the rule id that fired (not the alias it was reached through)
	Action Action
	Start  int // half-open span [Start,End) in the original value
	End    int
}

// Action tags what kind of mutation a remark records.
type Action string

const (
	ActionSubstituted  Action = "s"
	ActionMasked       Action = "m"
	ActionPseudonymized Action = "p"
	ActionRemoved      Action = "x"
)

// Meta is the side-table every node in the tree carries: redaction remarks,
// processing errors, and the original (pre-redaction) value for debugging.
type Meta struct {
	Remarks  []Remark
	Errors   []string
	Original interface{}
}

// AddRemark appends a redaction remark to the node's metadata.
func (m *Meta) AddRemark(rule string, action Action, start, end int) {
	m.Remarks = append(m.Remarks, Remark{Rule: rule, Action: action, Start: start, End: end})
}

// AddError appends a processing error to the node's metadata.
func (m *Meta) AddError(format string, args ...interface{}) {
	m.Errors = append(m.Errors, fmt.Sprintf(format, args...))
}

// Object is an ordered string-keyed map: Keys preserves insertion order for
// output, while traversal visits children in sorted key order per the
// traversal contract.
type Object struct {
	Keys  []string
	Items map[string]*Node
}

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return &Object{Items: make(map[string]*Node)}
}

// Set inserts or replaces a key, preserving first-insertion order.
func (o *Object) Set(key string, n *Node) {
	if _, exists := o.Items[key]; !exists {
		o.Keys = append(o.Keys, key)
	}
	o.Items[key] = n
}

// Get returns the child at key, or nil if absent.
func (o *Object) Get(key string) *Node {
	return o.Items[key]
}

// SortedKeys returns a copy of Keys sorted lexically, used for traversal
// order (output still uses Keys/insertion order).
func (o *Object) SortedKeys() []string {
	keys := make([]string, len(o.Keys))
	copy(keys, o.Keys)
	insertionSort(keys)
	return keys
}

func insertionSort(keys []string) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}

// Node is one tagged node of the event tree.
type Node struct {
	Type    ValueType
	PIIKind PIIKind
	Meta    Meta

	Str      string
	Num      float64
	Bool     bool
	Array    []*Node
	Object   *Object
	Binary   []byte
}

// NewString returns a text-kind string node.
func NewString(s string) *Node {
	return &Node{Type: TypeString, PIIKind: PIIKindText, Str: s}
}

// NewNumber returns a number node.
func NewNumber(n float64) *Node {
	return &Node{Type: TypeNumber, Str: "", Num: n}
}

// NewBool returns a boolean node.
func NewBool(b bool) *Node {
	return &Node{Type: TypeBool, Bool: b}
}

// NewArray returns an array node wrapping the given children.
func NewArray(children ...*Node) *Node {
	return &Node{Type: TypeArray, PIIKind: PIIKindContainer, Array: children}
}

// NewObjectNode returns an object node wrapping o, tagged with the given
// domain type (TypeObject for a plain map, or a domain tag like TypeUser).
func NewObjectNode(t ValueType, o *Object) *Node {
	if t == "" {
		t = TypeObject
	}
	return &Node{Type: t, PIIKind: PIIKindContainer, Object: o}
}

// PathItem is one segment of the path from the tree root to the node
// currently being visited, or a synthetic segment carrying a value-type /
// PII-kind predicate target (used for the binary scrubber's synthetic
// binary leaf).
type PathItem struct {
	Key     string
	Index   int
	IsIndex bool

	ValueType ValueType
	PIIKind   PIIKind
}

// KeyItem builds a path segment for a map key.
func KeyItem(key string, t ValueType, kind PIIKind) PathItem {
	return PathItem{Key: key, ValueType: t, PIIKind: kind}
}

// IndexItem builds a path segment for a sequence index.
func IndexItem(idx int, t ValueType, kind PIIKind) PathItem {
	return PathItem{Index: idx, IsIndex: true, ValueType: t, PIIKind: kind}
}

// Path is the ordered sequence of path items from root to the current node.
type Path []PathItem

// String renders the path in dotted form, for diagnostics.
func (p Path) String() string {
	out := ""
	for i, item := range p {
		if i > 0 {
			out += "."
		}
		if item.IsIndex {
			out += fmt.Sprintf("%d", item.Index)
		} else {
			out += item.Key
		}
	}
	return out
}
