// Package bptree implements the B+ Tree Index: a self-balancing ordered map
// from 32-bit integer keys to (page_id, slot_id) tuples, persisted as a
// chain of pages through the Storage Manager.
//
// What: node encode/decode (this file), tree traversal/mutation (tree.go),
// and a cursor-based range iterator (iterator.go).
// How: each node occupies exactly one page.Size page, the layout spec.md
// §4.4 specifies: an 16-byte header then a flat key array and a parallel
// value/child array. Grounded on the teacher's BTree (internal/storage/
// pager/btree.go), which also stores one node per page behind the Storage
// Manager, but with the teacher's slotted-page/overflow machinery dropped
// since spec.md keys are fixed-width 32-bit integers with no overflow case.
// Why: fixed-width entries let Search/Insert/Delete use simple arithmetic
// offsets instead of a slot directory, matching the "node capacity (order)
// chosen so serialised form fits one page" requirement.
package bptree

import (
	"encoding/binary"
	"sort"

	"github.com/SimonWaldherr/tinyrdb/internal/page"
)

// Value is the (page_id, slot_id) tuple a leaf key maps to.
type Value struct {
	PageID page.ID
	SlotID uint16
}

const (
	headerSize = 16 // node_type(1) + key_count(2) + parent(4) + next_leaf(4) + reserved(5)
	keySize    = 4
	leafValSz  = 6 // page_id(4) + slot_id(2)
	childSz    = 4

	typeLeaf     uint8 = 0
	typeInternal uint8 = 1
)

// Order is the maximum number of keys a node may hold before it must split.
// Chosen so both a leaf node (keySize+leafValSz per entry) and an internal
// node (keySize per key + childSz per child) fit within one page.Size page.
const Order = 200

type nodeHeader struct {
	nodeType     uint8
	keyCount     uint16
	parentPageID page.ID
	nextLeafID   page.ID
}

func readHeader(buf []byte) nodeHeader {
	return nodeHeader{
		nodeType:     buf[0],
		keyCount:     binary.LittleEndian.Uint16(buf[1:3]),
		parentPageID: page.ID(binary.LittleEndian.Uint32(buf[3:7])),
		nextLeafID:   page.ID(binary.LittleEndian.Uint32(buf[7:11])),
	}
}

func writeHeader(buf []byte, h nodeHeader) {
	buf[0] = h.nodeType
	binary.LittleEndian.PutUint16(buf[1:3], h.keyCount)
	binary.LittleEndian.PutUint32(buf[3:7], uint32(h.parentPageID))
	binary.LittleEndian.PutUint32(buf[7:11], uint32(h.nextLeafID))
	for i := 11; i < headerSize; i++ {
		buf[i] = 0
	}
}

// node is the decoded in-memory representation of one page.
type node struct {
	isLeaf   bool
	parent   page.ID
	nextLeaf page.ID // leaves only
	keys     []int32
	values   []Value // leaves only, parallel to keys
	children []page.ID // internals only, len = len(keys)+1
}

func decodeNode(buf []byte) *node {
	h := readHeader(buf)
	n := &node{
		isLeaf:   h.nodeType == typeLeaf,
		parent:   h.parentPageID,
		nextLeaf: h.nextLeafID,
		keys:     make([]int32, h.keyCount),
	}
	off := headerSize
	for i := 0; i < int(h.keyCount); i++ {
		n.keys[i] = int32(binary.LittleEndian.Uint32(buf[off:]))
		off += keySize
	}
	if n.isLeaf {
		n.values = make([]Value, h.keyCount)
		for i := 0; i < int(h.keyCount); i++ {
			pid := page.ID(binary.LittleEndian.Uint32(buf[off:]))
			off += 4
			slot := binary.LittleEndian.Uint16(buf[off:])
			off += 2
			n.values[i] = Value{PageID: pid, SlotID: slot}
		}
	} else {
		n.children = make([]page.ID, int(h.keyCount)+1)
		for i := range n.children {
			n.children[i] = page.ID(binary.LittleEndian.Uint32(buf[off:]))
			off += childSz
		}
	}
	return n
}

func (n *node) encode() []byte {
	buf := make([]byte, page.Size)
	typ := typeInternal
	if n.isLeaf {
		typ = typeLeaf
	}
	writeHeader(buf, nodeHeader{
		nodeType:     typ,
		keyCount:     uint16(len(n.keys)),
		parentPageID: n.parent,
		nextLeafID:   n.nextLeaf,
	})
	off := headerSize
	for _, k := range n.keys {
		binary.LittleEndian.PutUint32(buf[off:], uint32(k))
		off += keySize
	}
	if n.isLeaf {
		for _, v := range n.values {
			binary.LittleEndian.PutUint32(buf[off:], uint32(v.PageID))
			off += 4
			binary.LittleEndian.PutUint16(buf[off:], v.SlotID)
			off += 2
		}
	} else {
		for _, c := range n.children {
			binary.LittleEndian.PutUint32(buf[off:], uint32(c))
			off += childSz
		}
	}
	return buf
}

// bisectLeft returns the index of the first key >= target.
func bisectLeft(keys []int32, target int32) int {
	return sort.Search(len(keys), func(i int) bool { return keys[i] >= target })
}

// bisectRight returns the index of the first key > target; used to choose
// the child pointer to descend into for an internal node.
func bisectRight(keys []int32, target int32) int {
	return sort.Search(len(keys), func(i int) bool { return keys[i] > target })
}
