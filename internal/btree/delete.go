package btree

// Delete removes key if present, rebalancing via borrow-from-sibling or
// merge on the way down (standard Cormen B-tree delete, spec.md §4.3).
// Returns true if the key was found and removed.
func (bt *BTree) Delete(key uint64) bool {
	if bt.root == nil {
		return false
	}

	found := bt.deleteFrom(bt.root, key)

	// The descent may merge the root's last two children even when key is
	// absent, so an emptied root is collapsed either way.
	if len(bt.root.keys) == 0 {
		if bt.root.leaf {
			bt.root = nil
		} else {
			bt.root = bt.root.children[0]
		}
	}

	if !found {
		return false
	}
	bt.size--
	return true
}

func (bt *BTree) deleteFrom(n *node, key uint64) bool {
	i := n.search(key)

	if i < len(n.keys) && n.keys[i] == key {
		if n.leaf {
			n.removeAt(i)
			return true
		}
		bt.deleteInternal(n, i)
		return true
	}

	if n.leaf {
		return false // not found
	}

	// Ensure the child we're about to descend into has at least t keys,
	// adjusting i if a merge shifted indices (spec.md §4.3 "Delete" case 3).
	i = bt.fill(n, i)
	return bt.deleteFrom(n.children[i], key)
}

// deleteInternal handles a key found at index i of an internal node n:
// replace with the predecessor (if the left child can spare a key),
// else the successor (if the right child can spare one), else merge the
// two children around the key and recurse into the merged node.
func (bt *BTree) deleteInternal(n *node, i int) {
	key := n.keys[i]
	left := n.children[i]
	right := n.children[i+1]

	switch {
	case len(left.keys) >= t:
		predKey, predVal := bt.maxOf(left)
		n.keys[i] = predKey
		n.values[i] = predVal
		bt.deleteFrom(left, predKey)

	case len(right.keys) >= t:
		succKey, succVal := bt.minOf(right)
		n.keys[i] = succKey
		n.values[i] = succVal
		bt.deleteFrom(right, succKey)

	default:
		bt.mergeChildren(n, i)
		bt.deleteFrom(left, key)
	}
}

func (bt *BTree) maxOf(n *node) (uint64, uint64) {
	for !n.leaf {
		n = n.children[len(n.children)-1]
	}
	last := len(n.keys) - 1
	return n.keys[last], n.values[last]
}

func (bt *BTree) minOf(n *node) (uint64, uint64) {
	for !n.leaf {
		n = n.children[0]
	}
	return n.keys[0], n.values[0]
}

// fill ensures n.children[i] holds at least t keys by borrowing from a
// sibling, or failing that merging with one, and returns the (possibly
// adjusted) index to descend into.
func (bt *BTree) fill(n *node, i int) int {
	if len(n.children[i].keys) >= t {
		return i
	}

	switch {
	case i > 0 && len(n.children[i-1].keys) >= t:
		bt.borrowFromLeft(n, i)
	case i < len(n.children)-1 && len(n.children[i+1].keys) >= t:
		bt.borrowFromRight(n, i)
	case i < len(n.children)-1:
		bt.mergeChildren(n, i)
	default:
		bt.mergeChildren(n, i-1)
		i--
	}
	return i
}

// borrowFromLeft rotates one key from n.children[i-1] through n into
// n.children[i].
func (bt *BTree) borrowFromLeft(n *node, i int) {
	child := n.children[i]
	sibling := n.children[i-1]

	child.insertAt(0, n.keys[i-1], n.values[i-1])
	if !child.leaf {
		lastChild := sibling.children[len(sibling.children)-1]
		sibling.children = sibling.children[:len(sibling.children)-1]
		child.insertChildAt(0, lastChild)
	}

	borrowedKey, borrowedVal := sibling.removeAt(len(sibling.keys) - 1)
	n.keys[i-1] = borrowedKey
	n.values[i-1] = borrowedVal
}

// borrowFromRight rotates one key from n.children[i+1] through n into
// n.children[i].
func (bt *BTree) borrowFromRight(n *node, i int) {
	child := n.children[i]
	sibling := n.children[i+1]

	child.keys = append(child.keys, n.keys[i])
	child.values = append(child.values, n.values[i])
	if !child.leaf {
		firstChild := sibling.children[0]
		sibling.children = sibling.children[1:]
		child.children = append(child.children, firstChild)
	}

	borrowedKey, borrowedVal := sibling.removeAt(0)
	n.keys[i] = borrowedKey
	n.values[i] = borrowedVal
}

// mergeChildren merges n.children[i+1] and the separator n.keys[i] into
// n.children[i], then removes both from n.
func (bt *BTree) mergeChildren(n *node, i int) {
	left := n.children[i]
	right := n.children[i+1]

	left.keys = append(left.keys, n.keys[i])
	left.values = append(left.values, n.values[i])
	left.keys = append(left.keys, right.keys...)
	left.values = append(left.values, right.values...)
	if !left.leaf {
		left.children = append(left.children, right.children...)
	}

	n.removeAt(i)
	n.removeChildAt(i + 1)
}
