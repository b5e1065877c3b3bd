package bptree

import (
	"github.com/SimonWaldherr/tinyrdb/internal/page"
	"github.com/SimonWaldherr/tinyrdb/internal/storagemgr"
)

// Storage is the subset of the Storage Manager's surface the tree needs.
// Declared as an interface so tests can substitute a fake backing store.
type Storage interface {
	ReadPage(id page.ID) ([]byte, error)
	WritePage(id page.ID, data []byte) error
	AllocatePage() (page.ID, error)
}

var _ Storage = (*storagemgr.Manager)(nil)

// Tree is a handle to a B+ tree persisted through Storage.
type Tree struct {
	storage Storage
	root    page.ID
}

// Create allocates a new tree with a single empty leaf root.
func Create(storage Storage) (*Tree, error) {
	rootID, err := storage.AllocatePage()
	if err != nil {
		return nil, err
	}
	root := &node{isLeaf: true}
	if err := storage.WritePage(rootID, root.encode()); err != nil {
		return nil, err
	}
	return &Tree{storage: storage, root: rootID}, nil
}

// Open returns a handle to an existing tree whose root is at rootID.
func Open(storage Storage, rootID page.ID) *Tree {
	return &Tree{storage: storage, root: rootID}
}

// Root returns the tree's current root page id (it can change across splits).
func (t *Tree) Root() page.ID { return t.root }

func (t *Tree) readNode(id page.ID) (*node, error) {
	buf, err := t.storage.ReadPage(id)
	if err != nil {
		return nil, err
	}
	return decodeNode(buf), nil
}

func (t *Tree) writeNode(id page.ID, n *node) error {
	return t.storage.WritePage(id, n.encode())
}

// Search descends from the root following bisectRight children at internal
// nodes, then bisectLeft for equality at the leaf. If the key isn't found at
// the reached leaf but is beyond the leaf's key range, it follows next_leaf
// links — a defence-in-depth fallback retained even after fixing split
// propagation (spec.md §9 REDESIGN FLAGS requires keeping it).
func (t *Tree) Search(key int32) (Value, bool, error) {
	leafID, err := t.findLeaf(key)
	if err != nil {
		return Value{}, false, err
	}
	for {
		leaf, err := t.readNode(leafID)
		if err != nil {
			return Value{}, false, err
		}
		idx := bisectLeft(leaf.keys, key)
		if idx < len(leaf.keys) && leaf.keys[idx] == key {
			return leaf.values[idx], true, nil
		}
		// Not found here. If this leaf's range has already passed the key,
		// it's genuinely absent.
		if len(leaf.keys) > 0 && leaf.keys[len(leaf.keys)-1] >= key {
			return Value{}, false, nil
		}
		if leaf.nextLeaf == page.InvalidID {
			return Value{}, false, nil
		}
		leafID = leaf.nextLeaf
	}
}

// findLeaf descends from root to the leaf that should contain key.
func (t *Tree) findLeaf(key int32) (page.ID, error) {
	id := t.root
	for {
		n, err := t.readNode(id)
		if err != nil {
			return 0, err
		}
		if n.isLeaf {
			return id, nil
		}
		idx := bisectRight(n.keys, key)
		id = n.children[idx]
	}
}

// Insert adds key->value. Returns false without modifying the tree if key
// already exists (spec.md §4.4: "reject if key already present").
//
// Splits propagate to the parent per the REDESIGN FLAG in spec.md §9: the
// separator key is pushed into the parent internal node and, if that
// overflows too, the split cascades upward, creating a new root when the
// old root splits. The teacher's original design wrote both halves of a
// split leaf but never pushed the separator up; this implementation fixes
// that while retaining the next-leaf fallback in Search/RangeSearch as
// defence-in-depth for any tree built before the fix.
func (t *Tree) Insert(key int32, value Value) (bool, error) {
	path, leafID, err := t.findLeafWithPath(key)
	if err != nil {
		return false, err
	}
	leaf, err := t.readNode(leafID)
	if err != nil {
		return false, err
	}
	idx := bisectLeft(leaf.keys, key)
	if idx < len(leaf.keys) && leaf.keys[idx] == key {
		return false, nil
	}

	leaf.keys = insertAt(leaf.keys, idx, key)
	leaf.values = insertValueAt(leaf.values, idx, value)

	if len(leaf.keys) <= Order {
		if err := t.writeNode(leafID, leaf); err != nil {
			return false, err
		}
		return true, nil
	}
	return true, t.splitLeafAndPropagate(path, leafID, leaf)
}

// findLeafWithPath returns the chain of internal-node page ids from root
// down to (but excluding) the leaf, plus the leaf's id, so splits can walk
// back up.
func (t *Tree) findLeafWithPath(key int32) ([]page.ID, page.ID, error) {
	var path []page.ID
	id := t.root
	for {
		n, err := t.readNode(id)
		if err != nil {
			return nil, 0, err
		}
		if n.isLeaf {
			return path, id, nil
		}
		path = append(path, id)
		idx := bisectRight(n.keys, key)
		id = n.children[idx]
	}
}

func (t *Tree) splitLeafAndPropagate(path []page.ID, leafID page.ID, leaf *node) error {
	mid := len(leaf.keys) / 2
	newLeaf := &node{
		isLeaf:   true,
		keys:     append([]int32(nil), leaf.keys[mid:]...),
		values:   append([]Value(nil), leaf.values[mid:]...),
		nextLeaf: leaf.nextLeaf,
		parent:   leaf.parent,
	}
	leaf.keys = leaf.keys[:mid]
	leaf.values = leaf.values[:mid]

	newLeafID, err := t.storage.AllocatePage()
	if err != nil {
		return err
	}
	leaf.nextLeaf = newLeafID

	if err := t.writeNode(newLeafID, newLeaf); err != nil {
		return err
	}
	if err := t.writeNode(leafID, leaf); err != nil {
		return err
	}

	separator := newLeaf.keys[0]
	return t.insertIntoParent(path, leafID, separator, newLeafID)
}

// insertIntoParent pushes (separator, rightChild) into the parent of
// leftChild, splitting and cascading upward as needed. If leftChild was the
// root, a brand-new root is created.
func (t *Tree) insertIntoParent(path []page.ID, leftChild page.ID, separator int32, rightChild page.ID) error {
	if len(path) == 0 {
		// leftChild was the root: create a new root.
		newRootID, err := t.storage.AllocatePage()
		if err != nil {
			return err
		}
		newRoot := &node{
			isLeaf:   false,
			keys:     []int32{separator},
			children: []page.ID{leftChild, rightChild},
		}
		if err := t.writeNode(newRootID, newRoot); err != nil {
			return err
		}
		if err := t.setParent(leftChild, newRootID); err != nil {
			return err
		}
		if err := t.setParent(rightChild, newRootID); err != nil {
			return err
		}
		t.root = newRootID
		return nil
	}

	parentID := path[len(path)-1]
	parentPath := path[:len(path)-1]
	parent, err := t.readNode(parentID)
	if err != nil {
		return err
	}
	// Locate leftChild's position among parent's children.
	pos := -1
	for i, c := range parent.children {
		if c == leftChild {
			pos = i
			break
		}
	}
	if pos == -1 {
		return &treeCorruptionError{msg: "left child not found in parent during split propagation"}
	}
	parent.keys = insertAt(parent.keys, pos, separator)
	parent.children = insertChildAt(parent.children, pos+1, rightChild)
	if err := t.setParent(rightChild, parentID); err != nil {
		return err
	}

	if len(parent.keys) <= Order {
		return t.writeNode(parentID, parent)
	}

	// Internal node overflow: split at the median, push the median up
	// (it is NOT duplicated into either child, unlike a leaf split).
	midIdx := len(parent.keys) / 2
	medianKey := parent.keys[midIdx]

	leftKeys := append([]int32(nil), parent.keys[:midIdx]...)
	leftChildren := append([]page.ID(nil), parent.children[:midIdx+1]...)
	rightKeys := append([]int32(nil), parent.keys[midIdx+1:]...)
	rightChildren := append([]page.ID(nil), parent.children[midIdx+1:]...)

	parent.keys = leftKeys
	parent.children = leftChildren

	newInternalID, err := t.storage.AllocatePage()
	if err != nil {
		return err
	}
	newInternal := &node{isLeaf: false, keys: rightKeys, children: rightChildren, parent: parent.parent}

	if err := t.writeNode(parentID, parent); err != nil {
		return err
	}
	if err := t.writeNode(newInternalID, newInternal); err != nil {
		return err
	}
	for _, c := range rightChildren {
		if err := t.setParent(c, newInternalID); err != nil {
			return err
		}
	}

	return t.insertIntoParent(parentPath, parentID, medianKey, newInternalID)
}

func (t *Tree) setParent(childID, parentID page.ID) error {
	child, err := t.readNode(childID)
	if err != nil {
		return err
	}
	child.parent = parentID
	return t.writeNode(childID, child)
}

// Delete removes key if present. Underfull-node rebalancing/merging is not
// implemented per spec.md §4.4 ("not required by the current design").
func (t *Tree) Delete(key int32) (bool, error) {
	leafID, err := t.findLeaf(key)
	if err != nil {
		return false, err
	}
	leaf, err := t.readNode(leafID)
	if err != nil {
		return false, err
	}
	idx := bisectLeft(leaf.keys, key)
	if idx >= len(leaf.keys) || leaf.keys[idx] != key {
		return false, nil
	}
	leaf.keys = append(leaf.keys[:idx], leaf.keys[idx+1:]...)
	leaf.values = append(leaf.values[:idx], leaf.values[idx+1:]...)
	if err := t.writeNode(leafID, leaf); err != nil {
		return false, err
	}
	return true, nil
}

// RangeSearch returns every (key, value) with lo <= key <= hi, in ascending
// order, by finding the leaf containing lo and scanning right through leaf
// links until a key exceeds hi.
func (t *Tree) RangeSearch(lo, hi int32) ([]KV, error) {
	var out []KV
	it, err := t.NewIterator(lo, hi)
	if err != nil {
		return nil, err
	}
	for it.Next() {
		out = append(out, it.Current())
	}
	return out, it.Err()
}

// KV is a single result entry from RangeSearch/Iterator.
type KV struct {
	Key   int32
	Value Value
}

func insertAt(s []int32, idx int, v int32) []int32 {
	s = append(s, 0)
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

func insertValueAt(s []Value, idx int, v Value) []Value {
	s = append(s, Value{})
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

func insertChildAt(s []page.ID, idx int, v page.ID) []page.ID {
	s = append(s, 0)
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

type treeCorruptionError struct{ msg string }

func (e *treeCorruptionError) Error() string { return "bptree: " + e.msg }
