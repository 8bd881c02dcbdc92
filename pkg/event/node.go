// Package event defines the inbound envelope, the typed tree that carries
// its nested payload, and the classified event variants the dispatcher
// routes on.
package event

import "encoding/json"

// NodeKind tags the shape of a payload tree node.
type NodeKind int

const (
	NodeNull NodeKind = iota
	NodeObject
	NodeList
	NodeString
	NodeNumber
	NodeBool
)

// Node is one node of the event payload tree. Accessors are nil-safe and
// total: asking an object for a missing field, or a scalar for a child,
// yields the null node, so lookup chains never panic.
type Node struct {
	kind NodeKind
	obj  map[string]*Node
	list []*Node
	str  string
	num  float64
	b    bool
}

var nullNode = &Node{kind: NodeNull}

// ParseNode converts a decoded-JSON value (map/slice/scalar) into a tree.
func ParseNode(v interface{}) *Node {
	switch t := v.(type) {
	case nil:
		return nullNode
	case map[string]interface{}:
		obj := make(map[string]*Node, len(t))
		for k, child := range t {
			obj[k] = ParseNode(child)
		}
		return &Node{kind: NodeObject, obj: obj}
	case []interface{}:
		list := make([]*Node, len(t))
		for i, child := range t {
			list[i] = ParseNode(child)
		}
		return &Node{kind: NodeList, list: list}
	case string:
		return &Node{kind: NodeString, str: t}
	case float64:
		return &Node{kind: NodeNumber, num: t}
	case bool:
		return &Node{kind: NodeBool, b: t}
	default:
		return nullNode
	}
}

// UnmarshalJSON lets a Node sit directly inside a decoded struct field.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = *ParseNode(raw)
	return nil
}

// Kind reports the node's shape. The nil node is null.
func (n *Node) Kind() NodeKind {
	if n == nil {
		return NodeNull
	}
	return n.kind
}

// IsNull reports whether the node is absent or JSON null.
func (n *Node) IsNull() bool { return n.Kind() == NodeNull }

// Field returns the named child of an object node, or the null node.
func (n *Node) Field(key string) *Node {
	if n == nil || n.kind != NodeObject {
		return nullNode
	}
	if child, ok := n.obj[key]; ok {
		return child
	}
	return nullNode
}

// Index returns the i-th element of a list node, or the null node.
func (n *Node) Index(i int) *Node {
	if n == nil || n.kind != NodeList || i < 0 || i >= len(n.list) {
		return nullNode
	}
	return n.list[i]
}

// Len returns the element count of a list node, zero otherwise.
func (n *Node) Len() int {
	if n == nil || n.kind != NodeList {
		return 0
	}
	return len(n.list)
}

// Str returns the string value, or "" for any other shape.
func (n *Node) Str() string {
	if n == nil || n.kind != NodeString {
		return ""
	}
	return n.str
}

// Num returns the numeric value, or 0 for any other shape.
func (n *Node) Num() float64 {
	if n == nil || n.kind != NodeNumber {
		return 0
	}
	return n.num
}

// Bool returns the boolean value, or false for any other shape.
func (n *Node) Bool() bool {
	if n == nil || n.kind != NodeBool {
		return false
	}
	return n.b
}

// Interface converts the tree back into plain Go values, for logging and
// re-serialization.
func (n *Node) Interface() interface{} {
	switch n.Kind() {
	case NodeObject:
		m := make(map[string]interface{}, len(n.obj))
		for k, child := range n.obj {
			m[k] = child.Interface()
		}
		return m
	case NodeList:
		l := make([]interface{}, len(n.list))
		for i, child := range n.list {
			l[i] = child.Interface()
		}
		return l
	case NodeString:
		return n.str
	case NodeNumber:
		return n.num
	case NodeBool:
		return n.b
	default:
		return nil
	}
}
