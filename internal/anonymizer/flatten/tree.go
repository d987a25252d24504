package flatten

import (
	"encoding/json"
	"fmt"
	"strconv"

	"stmtguard/internal/anonymizer/pathspec"
)

type nodeKind uint8

const (
	kindObject nodeKind = iota
	kindArray
	kindLeaf
)

// node lives in the tree arena; children are arena indices.
type node struct {
	kind     nodeKind
	path     string
	value    string
	count    int
	children []int
}

// tree is built once per root document and discarded after materialization.
type tree struct {
	pm         *PathMap
	nodes      []node
	unresolved func(path, reason string, mismatch bool)
}

func newTree(pm *PathMap, unresolved func(path, reason string, mismatch bool)) *tree {
	return &tree{pm: pm, unresolved: unresolved}
}

func (t *tree) add(n node) int {
	t.nodes = append(t.nodes, n)
	return len(t.nodes) - 1
}

// object builds the node for an interior path. Its record count is the product
// of its children's counts.
func (t *tree) object(path string, value any) int {
	idx := t.add(node{kind: kindObject, path: path, count: 1})
	for _, c := range t.pm.Children(path) {
		childPath := path + "." + c.String()
		raw := t.lookup(value, c, childPath)

		var child int
		switch {
		case c.Array:
			child = t.array(childPath, raw)
		case t.pm.IsInterior(childPath):
			child = t.object(childPath, raw)
		default:
			child = t.leaf(childPath, raw)
		}
		t.nodes[idx].children = append(t.nodes[idx].children, child)
		t.nodes[idx].count *= t.nodes[child].count
	}
	return idx
}

// array builds one element per item, or a single null element when the value
// is missing, empty or not an array. Its record count is the sum over elements.
func (t *tree) array(path string, raw any) int {
	idx := t.add(node{kind: kindArray, path: path})
	items, ok := raw.([]any)
	if !ok && raw != nil {
		t.unresolved(path, fmt.Sprintf("expected array, found %s", typeName(raw)), true)
	}
	if len(items) == 0 {
		items = []any{nil}
	}
	interior := t.pm.IsInterior(path)
	for _, item := range items {
		var el int
		if interior {
			el = t.object(path, item)
		} else {
			el = t.leaf(path, item)
		}
		t.nodes[idx].children = append(t.nodes[idx].children, el)
		t.nodes[idx].count += t.nodes[el].count
	}
	return idx
}

func (t *tree) leaf(path string, raw any) int {
	v, ok := scalar(raw)
	if !ok {
		t.unresolved(path, fmt.Sprintf("expected scalar, found %s", typeName(raw)), true)
		v = NullValue
	}
	return t.add(node{kind: kindLeaf, path: path, value: v, count: 1})
}

func (t *tree) lookup(parent any, c pathspec.Component, path string) any {
	if parent == nil {
		return nil
	}
	obj, ok := parent.(map[string]any)
	if !ok {
		t.unresolved(path, fmt.Sprintf("parent is %s, not an object", typeName(parent)), true)
		return nil
	}
	v, ok := obj[c.Name]
	if !ok {
		t.unresolved(path, "absent", false)
		return nil
	}
	if !c.HasIndex() {
		return v
	}
	items, ok := v.([]any)
	if !ok {
		t.unresolved(path, fmt.Sprintf("index on %s", typeName(v)), true)
		return nil
	}
	if c.Index >= len(items) {
		t.unresolved(path, fmt.Sprintf("index %d out of range (len %d)", c.Index, len(items)), false)
		return nil
	}
	return items[c.Index]
}

// records materializes the subtree rooted at idx bottom-up.
func (t *tree) records(idx int) []FlatRecord {
	n := t.nodes[idx]
	switch n.kind {
	case kindLeaf:
		return []FlatRecord{{cells: []Cell{{Path: n.path, Value: n.value}}}}
	case kindArray:
		out := make([]FlatRecord, 0, n.count)
		for _, el := range n.children {
			out = append(out, t.records(el)...)
		}
		return out
	default:
		acc := []FlatRecord{{}}
		for _, child := range n.children {
			sub := t.records(child)
			next := make([]FlatRecord, 0, len(acc)*len(sub))
			for _, a := range acc {
				for _, b := range sub {
					next = append(next, a.Merge(b))
				}
			}
			acc = next
		}
		return acc
	}
}

func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return NullValue, true
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	default:
		return "", false
	}
}

func typeName(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number, float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
