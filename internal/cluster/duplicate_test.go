package cluster

import "testing"

func buildSourceCluster(t *testing.T) *Cluster {
	t.Helper()
	cl := newTestCluster()
	a, err := NewNode("10.0.0.1", 6379, cl)
	if err != nil {
		t.Fatalf("NewNode a: %v", err)
	}
	a.Name = "a"
	a.Slots = []uint16{0, 1, 2}
	b, err := NewNode("10.0.0.2", 6379, cl)
	if err != nil {
		t.Fatalf("NewNode b: %v", err)
	}
	b.Name = "b"
	b.IsReplica = true
	b.Replicate = "a"

	cl.Nodes = []*Node{a, b}
	cl.SlotIndex.MapSlot(0, a)
	cl.SlotIndex.MapSlot(2, a)
	return cl
}

func TestDuplicateProducesIsomorphicRouting(t *testing.T) {
	source := buildSourceCluster(t)
	dup, err := Duplicate(source)
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}

	for _, slot := range []uint16{0, 1, 2} {
		srcNode, srcOK := source.NodeForSlot(slot)
		dupNode, dupOK := dup.NodeForSlot(slot)
		if srcOK != dupOK {
			t.Fatalf("slot %d: ok mismatch src=%v dup=%v", slot, srcOK, dupOK)
		}
		if srcOK && (srcNode.IP != dupNode.IP || srcNode.Port != dupNode.Port) {
			t.Errorf("slot %d: src=%s:%d dup=%s:%d", slot, srcNode.IP, srcNode.Port, dupNode.IP, dupNode.Port)
		}
	}
}

func TestDuplicateIsolatesConnectionState(t *testing.T) {
	source := buildSourceCluster(t)
	dup, err := Duplicate(source)
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}

	dupNode, ok := dup.NodeForSlot(0)
	if !ok {
		t.Fatal("dup: slot 0 should be mapped")
	}
	dupNode.Connection.EnqueueToSend(NewRequest(&Client{ID: 1}, 1, "k"))

	srcNode, ok := source.NodeForSlot(0)
	if !ok {
		t.Fatal("source: slot 0 should be mapped")
	}
	if srcNode.Connection.ToSendLen() != 0 {
		t.Errorf("mutating the duplicate's queue must not affect the source's queue")
	}
}

func TestDuplicateCopiesNodeFieldsNotSharedSlices(t *testing.T) {
	source := buildSourceCluster(t)
	dup, err := Duplicate(source)
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}

	srcNode, _ := source.NodeForSlot(0)
	dupNode, _ := dup.NodeForSlot(0)
	if len(dupNode.Slots) != len(srcNode.Slots) {
		t.Fatalf("dup slots length = %d, want %d", len(dupNode.Slots), len(srcNode.Slots))
	}
	dupNode.Slots[0] = 999
	if srcNode.Slots[0] == 999 {
		t.Errorf("duplicate's Slots slice must not alias the source's")
	}
	if dupNode.DuplicatedFrom != srcNode {
		t.Errorf("duplicate node should back-link to its source node")
	}
}

func TestDuplicateRejectsUnnamedNode(t *testing.T) {
	source := newTestCluster()
	n, err := NewNode("10.0.0.1", 6379, source)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	source.Nodes = []*Node{n} // Name left empty

	if _, err := Duplicate(source); err == nil {
		t.Errorf("Duplicate should fail when a node has no name")
	}
}

func TestDuplicateNilSource(t *testing.T) {
	if _, err := Duplicate(nil); err != ErrNilSource {
		t.Errorf("Duplicate(nil) error = %v, want ErrNilSource", err)
	}
}
