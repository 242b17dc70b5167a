package cluster

import "sort"

// slotIndexEntry is one (big-endian u32 slot key, owning node) pair.
type slotIndexEntry struct {
	key  uint32
	node *Node
}

// SlotIndex is a sorted map keyed by the big-endian encoding of the slot
// number, ordered so a >= query returns the lowest-numbered owning node
// at-or-above a given slot (§3). A contiguous run owned by one node is
// represented sparsely by two entries, at its low and high endpoints,
// both pointing to that node (§9: <= 2x#nodes entries).
type SlotIndex struct {
	entries []slotIndexEntry
}

// NewSlotIndex returns an empty SlotIndex.
func NewSlotIndex() *SlotIndex { return &SlotIndex{} }

// MapSlot inserts (slot -> node), replacing any existing entry at slot.
func (s *SlotIndex) MapSlot(slot uint16, node *Node) {
	key := uint32(slot)
	idx := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].key >= key })
	if idx < len(s.entries) && s.entries[idx].key == key {
		s.entries[idx].node = node
		return
	}
	s.entries = append(s.entries, slotIndexEntry{})
	copy(s.entries[idx+1:], s.entries[idx:])
	s.entries[idx] = slotIndexEntry{key: key, node: node}
}

// NodeForSlot seeks >= slot and returns the value of the first entry at or
// after it. Because ranges are stored at their (lo, hi) endpoints, any slot
// inside a range is answered by its upper endpoint; any single-slot entry
// answers itself.
func (s *SlotIndex) NodeForSlot(slot uint16) (*Node, bool) {
	key := uint32(slot)
	idx := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].key >= key })
	if idx >= len(s.entries) {
		return nil, false
	}
	return s.entries[idx].node, true
}

// FirstNode seeks to the smallest key, for use by the reconfiguration
// controller as a surviving contact when no seed is remembered (§4.4).
func (s *SlotIndex) FirstNode() (*Node, bool) {
	if len(s.entries) == 0 {
		return nil, false
	}
	return s.entries[0].node, true
}

// Len returns the number of entries currently stored.
func (s *SlotIndex) Len() int { return len(s.entries) }

// insertRaw appends an entry without reordering, for use only by Duplicate
// which walks a source SlotIndex's entries in already-sorted order.
func (s *SlotIndex) insertRaw(key uint32, node *Node) {
	s.entries = append(s.entries, slotIndexEntry{key: key, node: node})
}
