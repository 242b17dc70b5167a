package cluster

import (
	"strings"
	"testing"
)

func newTestCluster() *Cluster {
	return NewCluster("worker-1", nil)
}

func TestParseTopologyRangeAssignsSlots(t *testing.T) {
	cl := newTestCluster()
	self := &Node{}
	reply := "07c37dfeb235213a872192d90877d0cd55635b91 127.0.0.1:30001@31001 myself,master - 0 0 0 connected 0-5460"

	if err := ParseTopology(reply, self, cl, nil); err != nil {
		t.Fatalf("ParseTopology: %v", err)
	}

	for _, slot := range []uint16{0, 2730, 5460} {
		n, ok := cl.SlotIndex.NodeForSlot(slot)
		if !ok || n != self {
			t.Errorf("NodeForSlot(%d) = (%v, %v), want (self, true)", slot, n, ok)
		}
	}
	if self.Name != "07c37dfeb235213a872192d90877d0cd55635b91" {
		t.Errorf("self.Name = %q, want node id", self.Name)
	}
	if self.IsReplica {
		t.Errorf("self should not be a replica")
	}
}

func TestParseTopologyFriendsCollector(t *testing.T) {
	cl := newTestCluster()
	self := &Node{}
	reply := strings.Join([]string{
		"07c37dfeb235213a872192d90877d0cd55635b91 127.0.0.1:30001@31001 myself,master - 0 0 0 connected 0-5460",
		"67ed2db8d677e59ec4a4cefb06858cf2a1a89fa1 127.0.0.1:30002@31002 master - 0 0 1 connected 5461-10922",
		"292f8b365bb7edb5e285caf0b7e6ddc7265d2f4f 127.0.0.1:30003@31003 slave 67ed2db8d677e59ec4a4cefb06858cf2a1a89fa1 0 0 2 connected",
	}, "\n")

	var friends []*Node
	if err := ParseTopology(reply, self, cl, &friends); err != nil {
		t.Fatalf("ParseTopology: %v", err)
	}
	if len(friends) != 2 {
		t.Fatalf("len(friends) = %d, want 2", len(friends))
	}
	if friends[0].IP != "127.0.0.1" || friends[0].Port != 30002 {
		t.Errorf("friends[0] addr = %s:%d, want 127.0.0.1:30002", friends[0].IP, friends[0].Port)
	}
	if !friends[1].IsReplica || friends[1].Replicate != "67ed2db8d677e59ec4a4cefb06858cf2a1a89fa1" {
		t.Errorf("friends[1] replica state = %+v", friends[1])
	}
}

func TestParseTopologyDiscardsFriendsWithNoCollector(t *testing.T) {
	cl := newTestCluster()
	self := &Node{}
	reply := "07c37dfeb235213a872192d90877d0cd55635b91 127.0.0.1:30001@31001 myself,master - 0 0 0 connected 0-5460\n" +
		"67ed2db8d677e59ec4a4cefb06858cf2a1a89fa1 127.0.0.1:30002@31002 master - 0 0 1 connected 5461-10922"

	if err := ParseTopology(reply, self, cl, nil); err != nil {
		t.Fatalf("ParseTopology: %v", err)
	}
	if len(cl.Nodes) != 0 {
		t.Errorf("ParseTopology should not itself append to cl.Nodes: got %d", len(cl.Nodes))
	}
	if _, ok := cl.SlotIndex.NodeForSlot(6000); ok {
		t.Errorf("discarded friend's slots should not be indexed")
	}
}

func TestParseTopologyMigrationAndImport(t *testing.T) {
	cl := newTestCluster()
	self := &Node{}
	reply := "07c37dfeb235213a872192d90877d0cd55635b91 127.0.0.1:30001@31001 myself,master - 0 0 0 connected 0-5460 " +
		"[5461->-67ed2db8d677e59ec4a4cefb06858cf2a1a89fa1] [10923-<-292f8b365bb7edb5e285caf0b7e6ddc7265d2f4f]"

	if err := ParseTopology(reply, self, cl, nil); err != nil {
		t.Fatalf("ParseTopology: %v", err)
	}
	if len(self.Migrating) != 1 || self.Migrating[0].Slot != "5461" {
		t.Errorf("migrating = %+v", self.Migrating)
	}
	if len(self.Importing) != 1 || self.Importing[0].Slot != "10923" {
		t.Errorf("importing = %+v", self.Importing)
	}
	for _, s := range self.Slots {
		if s == 5461 || s == 10923 {
			t.Errorf("migration/import slots must not be added to slots[]: found %d", s)
		}
	}
}

func TestParseTopologyMissingFlagsIsFatal(t *testing.T) {
	cl := newTestCluster()
	self := &Node{}
	if err := ParseTopology("07c37dfeb235213a872192d90877d0cd55635b91 127.0.0.1:30001", self, cl, nil); err == nil {
		t.Errorf("expected parse error for record with missing flags field")
	}
}

func TestParseTopologyBlankLinesIgnored(t *testing.T) {
	cl := newTestCluster()
	self := &Node{}
	reply := "\n\n07c37dfeb235213a872192d90877d0cd55635b91 127.0.0.1:30001@31001 myself,master - 0 0 0 connected 0-5460\n\n"
	if err := ParseTopology(reply, self, cl, nil); err != nil {
		t.Fatalf("ParseTopology: %v", err)
	}
}
