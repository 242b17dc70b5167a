package cluster

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Cluster is the aggregate described in §3: a node list, a slot index, a
// reprocess queue, update flags, and duplication links. It is owned by
// exactly one worker (§5); no locking is done inside it.
type Cluster struct {
	WorkerID string

	Nodes     []*Node
	SlotIndex *SlotIndex

	reprocess *reprocessQueue

	Updating       bool
	UpdateRequired bool
	Broken         bool

	// Seed is the last-known-good contact point, used by Update when the
	// node list yields no primary and the slot index is empty (§4.4,
	// §4.6 step 5).
	Seed Address

	// DuplicatedFrom is the non-owning back-link to the Cluster this
	// Cluster was duplicated from, absent for a non-duplicate Cluster.
	DuplicatedFrom *Cluster
	// Duplicates lists every Cluster duplicated from this one.
	Duplicates []*Cluster

	AuthSecret     string
	DialTimeout    time.Duration
	ReconnectRate  float64
	ReconnectBurst int

	Logger *logrus.Logger

	// OnNodeDisconnect fires before a Node's transport is released (§6).
	OnNodeDisconnect func(*Node)
	// ProcessRequest re-dispatches a parked request with no pre-bound
	// target node (§4.6 step 6, §6).
	ProcessRequest func(req *Request, node *Node)
}

// NewCluster allocates an empty Cluster owned by workerID (§4.5 create).
func NewCluster(workerID string, logger *logrus.Logger) *Cluster {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Cluster{
		WorkerID:  workerID,
		SlotIndex: NewSlotIndex(),
		reprocess: newReprocessQueue(),
		Logger:    logger,
	}
}

// SlotOfKey is the external slot_of_key entry point (§6).
func (c *Cluster) SlotOfKey(key string) uint16 { return SlotOf(key) }

// NodeForKey is the external node_for_key entry point (§6). When outSlot is
// non-nil, the computed slot is written into it regardless of whether a
// node is found.
func (c *Cluster) NodeForKey(key string, outSlot *uint16) (*Node, bool) {
	slot := SlotOf(key)
	if outSlot != nil {
		*outSlot = slot
	}
	return c.NodeForSlot(slot)
}

// NodeForSlot is the external node_for_slot entry point (§6).
func (c *Cluster) NodeForSlot(slot uint16) (*Node, bool) {
	return c.SlotIndex.NodeForSlot(slot)
}

// FirstMappedNode is the external first_mapped_node entry point (§6, §4.4).
func (c *Cluster) FirstMappedNode() (*Node, bool) {
	return c.SlotIndex.FirstNode()
}

// ReprocessLen returns the number of requests currently parked for replay.
func (c *Cluster) ReprocessLen() int { return c.reprocess.len() }

// AddToReprocess parks req for replay after the next successful
// reconfiguration (§4.6 "add_to_reprocess").
func (c *Cluster) AddToReprocess(req *Request) {
	req.NeedReprocessing = true
	req.Node = nil
	req.Slot = unassignedSlot
	req.Written = 0

	c.reprocess.put(req.reprocessKey(), req)
	if req.Client != nil {
		req.Client.ReprocessList = append(req.Client.ReprocessList, req)
	}
}

// RemoveFromReprocess reverses AddToReprocess's indexing only, per §4.6
// "remove_from_reprocess" ("reverses the indexing only").
func (c *Cluster) RemoveFromReprocess(req *Request) {
	c.reprocess.delete(req.reprocessKey())
	if req.Client != nil {
		req.Client.ReprocessList = removeRequestFromList(req.Client.ReprocessList, req)
	}
}

// Reset drops the SlotIndex and all Nodes (releasing each Node's
// Connection and queues), then reinstalls an empty SlotIndex and node
// list. requests_to_reprocess and duplication links are preserved (§4.5).
func (c *Cluster) Reset() error {
	for _, n := range c.Nodes {
		n.close()
	}
	c.Nodes = nil
	c.SlotIndex = NewSlotIndex()
	return nil
}

// Free releases the reprocess index, severs every duplicate (clearing each
// duplicate's DuplicatedFrom and each of its Nodes' DuplicatedFrom), and
// removes self from its parent's Duplicates list if any (§4.5).
func (c *Cluster) Free() {
	_ = c.Reset()
	c.reprocess = newReprocessQueue()

	for _, dup := range c.Duplicates {
		dup.DuplicatedFrom = nil
		for _, n := range dup.Nodes {
			n.DuplicatedFrom = nil
		}
	}
	c.Duplicates = nil

	if c.DuplicatedFrom != nil {
		c.DuplicatedFrom.removeDuplicate(c)
		c.DuplicatedFrom = nil
	}
}

func (c *Cluster) removeDuplicate(dup *Cluster) {
	for i, d := range c.Duplicates {
		if d == dup {
			c.Duplicates = append(c.Duplicates[:i], c.Duplicates[i+1:]...)
			return
		}
	}
}

// reprocessQueue is the §4.6/§9 reprocess index: keyed by the
// lexicographic string "<client_id>:<request_id>" rather than a numeric
// pair, per §9's "an implementation may preserve this to match observable
// behavior" — kept here to match the source's replay order exactly.
type reprocessQueue struct {
	keys  []string
	byKey map[string]*Request
}

func newReprocessQueue() *reprocessQueue {
	return &reprocessQueue{byKey: make(map[string]*Request)}
}

func (q *reprocessQueue) put(key string, r *Request) {
	if _, exists := q.byKey[key]; !exists {
		idx := sort.SearchStrings(q.keys, key)
		q.keys = append(q.keys, "")
		copy(q.keys[idx+1:], q.keys[idx:])
		q.keys[idx] = key
	}
	q.byKey[key] = r
}

func (q *reprocessQueue) delete(key string) {
	if _, exists := q.byKey[key]; !exists {
		return
	}
	delete(q.byKey, key)
	idx := sort.SearchStrings(q.keys, key)
	if idx < len(q.keys) && q.keys[idx] == key {
		q.keys = append(q.keys[:idx], q.keys[idx+1:]...)
	}
}

func (q *reprocessQueue) len() int { return len(q.keys) }

// drainInOrder iterates in ascending key order, erasing each entry as it is
// visited before invoking fn — safe under mutation because erasing the
// current (always-first) key before continuing means the next key read is
// always the next-greater surviving one (§4.6 step 6).
func (q *reprocessQueue) drainInOrder(fn func(*Request)) {
	for len(q.keys) > 0 {
		key := q.keys[0]
		r := q.byKey[key]
		q.delete(key)
		fn(r)
	}
}
