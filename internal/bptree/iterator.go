package bptree

import "github.com/SimonWaldherr/tinyrdb/internal/page"

// Iterator is an explicit cursor over a range of the tree's leaf chain,
// modeled after spec.md §9's "coroutine-free streaming through leaf linked
// list" design note: it owns (current_leaf_page_id, index_within_leaf) and
// a hi bound, reading the current leaf on demand and following next_leaf on
// overflow, rather than materialising the whole range up front.
type Iterator struct {
	tree    *Tree
	hi      int32
	leafID  page.ID
	leaf    *node
	idx     int
	current KV
	done    bool
	err     error
}

// NewIterator returns an iterator positioned at the first key >= lo,
// bounded above (inclusive) by hi.
func (t *Tree) NewIterator(lo, hi int32) (*Iterator, error) {
	leafID, err := t.findLeaf(lo)
	if err != nil {
		return nil, err
	}
	leaf, err := t.readNode(leafID)
	if err != nil {
		return nil, err
	}
	it := &Iterator{
		tree:   t,
		hi:     hi,
		leafID: leafID,
		leaf:   leaf,
		idx:    bisectLeft(leaf.keys, lo),
	}
	return it, nil
}

// Next advances the cursor and reports whether Current is valid.
func (it *Iterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	for {
		if it.idx >= len(it.leaf.keys) {
			if it.leaf.nextLeaf == page.InvalidID {
				it.done = true
				return false
			}
			nextLeaf, err := it.tree.readNode(it.leaf.nextLeaf)
			if err != nil {
				it.err = err
				return false
			}
			it.leafID = it.leaf.nextLeaf
			it.leaf = nextLeaf
			it.idx = 0
			continue
		}
		key := it.leaf.keys[it.idx]
		if key > it.hi {
			it.done = true
			return false
		}
		it.current = KV{Key: key, Value: it.leaf.values[it.idx]}
		it.idx++
		return true
	}
}

// Current returns the entry produced by the most recent successful Next.
func (it *Iterator) Current() KV { return it.current }

// Err returns any error encountered while iterating.
func (it *Iterator) Err() error { return it.err }
