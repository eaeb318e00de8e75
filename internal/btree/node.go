// Package btree implements the in-memory ordered index: a classic Cormen
// B-tree with branching parameter t=2 mapping uint64 keys to uint64
// values (encoded RecordRefs). Unlike the teacher's on-disk B+tree
// (godb/pkg/btree), nodes here are plain heap-allocated Go structs linked
// by pointers, per spec.md's "GC languages, direct references suffice".
// The split/merge/borrow algorithms and the public surface (Search,
// Insert upsert semantics, Delete, Min/Max/Height, Range/ForEach,
// Cursor) are grounded on the teacher's BTree/BNode API shape
// (SetCallbacks-free here, since there's no page indirection to cross).
package btree

// t is the B-tree's branching parameter: every non-root node has between
// t-1 and 2t-1 keys, and between t and 2t children.
const t = 2

// MaxKeys is the most keys a single node may hold before it must split.
const MaxKeys = 2*t - 1

// MaxChildren is the most children a single internal node may hold.
const MaxChildren = 2 * t

// node is one B-tree node. keys/values are parallel arrays sorted
// ascending; children is populated only for internal nodes and always has
// len(keys)+1 live entries.
type node struct {
	leaf     bool
	keys     []uint64
	values   []uint64
	children []*node
}

func newLeaf() *node {
	return &node{leaf: true, keys: make([]uint64, 0, MaxKeys), values: make([]uint64, 0, MaxKeys)}
}

func newInternal() *node {
	return &node{
		leaf:     false,
		keys:     make([]uint64, 0, MaxKeys),
		values:   make([]uint64, 0, MaxKeys),
		children: make([]*node, 0, MaxChildren),
	}
}

func (n *node) full() bool { return len(n.keys) == MaxKeys }

// search returns the index i such that key <= keys[i], or len(keys) if
// key is greater than every key in the node: the standard "advance while
// key > keys[i]" scan from spec.md §4.3.
func (n *node) search(key uint64) int {
	i := 0
	for i < len(n.keys) && key > n.keys[i] {
		i++
	}
	return i
}

// insertAt shifts keys/values right to make room at idx and writes key/val
// there.
func (n *node) insertAt(idx int, key, val uint64) {
	n.keys = append(n.keys, 0)
	n.values = append(n.values, 0)
	copy(n.keys[idx+1:], n.keys[idx:])
	copy(n.values[idx+1:], n.values[idx:])
	n.keys[idx] = key
	n.values[idx] = val
}

// removeAt removes the key/value pair at idx, shifting the remainder left.
func (n *node) removeAt(idx int) (key, val uint64) {
	key, val = n.keys[idx], n.values[idx]
	n.keys = append(n.keys[:idx], n.keys[idx+1:]...)
	n.values = append(n.values[:idx], n.values[idx+1:]...)
	return key, val
}

// insertChildAt shifts children right to make room at idx and places c
// there.
func (n *node) insertChildAt(idx int, c *node) {
	n.children = append(n.children, nil)
	copy(n.children[idx+1:], n.children[idx:])
	n.children[idx] = c
}

// removeChildAt removes the child pointer at idx.
func (n *node) removeChildAt(idx int) *node {
	c := n.children[idx]
	n.children = append(n.children[:idx], n.children[idx+1:]...)
	return c
}
