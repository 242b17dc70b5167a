package cluster

import (
	"context"
	"fmt"
	"testing"
)

func TestFetchClusterConfigurationAuthenticatesFriends(t *testing.T) {
	// The friend's own reply is built once its listener (and therefore its
	// port) exists, so stand it up first with a placeholder and patch the
	// reply in afterward.
	friend := newFakeRedisNode(t, "")
	friendIP, friendPort := friend.addr()
	friend.nodesReply = fmt.Sprintf(
		"nodeB %s:%d@%d myself,master - 0 0 1 connected 8192-16383",
		friendIP, friendPort, friendPort+10000,
	)

	seed := newFakeRedisNode(t, "")
	seedIP, seedPort := seed.addr()
	seed.nodesReply = fmt.Sprintf(
		"nodeA %s:%d@%d myself,master - 0 0 1 connected 0-8191\n"+
			"nodeB %s:%d@%d master - 0 0 1 connected 8192-16383",
		seedIP, seedPort, seedPort+10000,
		friendIP, friendPort, friendPort+10000,
	)

	cl := newTestCluster()
	cl.AuthSecret = "s3cr3t"

	err := FetchClusterConfiguration(context.Background(), cl, Address{IP: seedIP, Port: seedPort})
	if err != nil {
		t.Fatalf("FetchClusterConfiguration: %v", err)
	}

	if len(cl.Nodes) != 2 {
		t.Fatalf("len(cl.Nodes) = %d, want 2", len(cl.Nodes))
	}
	if cl.SlotIndex.Len() == 0 {
		t.Fatalf("expected slots to be mapped from both nodes")
	}

	wantOrder := []string{"PING", "AUTH", "CLUSTER"}
	if got := seed.commandLog(); !equalStrings(got, wantOrder) {
		t.Errorf("seed command log = %v, want %v", got, wantOrder)
	}
	if got := friend.commandLog(); !equalStrings(got, wantOrder) {
		t.Errorf("friend command log = %v, want %v (friend must be authenticated before CLUSTER NODES)", got, wantOrder)
	}
}

func TestUpdateReplaysParkedRequestsThroughEndedViaRealFetch(t *testing.T) {
	node := newFakeRedisNode(t, "")
	ip, port := node.addr()
	node.nodesReply = fmt.Sprintf(
		"nodeA %s:%d@%d myself,master - 0 0 1 connected 0-16383",
		ip, port, port+10000,
	)

	cl := newTestCluster()
	cl.Seed = Address{IP: ip, Port: port}

	var processed []*Request
	cl.ProcessRequest = func(req *Request, n *Node) {
		processed = append(processed, req)
		if n != nil {
			t.Errorf("ProcessRequest called with non-nil node %v, want nil", n)
		}
	}

	parked := NewRequest(&Client{ID: 1}, 1, "somekey")
	cl.AddToReprocess(parked)

	status := cl.Update(context.Background())
	if status != UpdateEnded {
		t.Fatalf("Update() = %v, want ENDED", status)
	}
	if cl.Broken {
		t.Error("cluster should not be broken after a successful reconfiguration")
	}
	if len(cl.Nodes) != 1 {
		t.Fatalf("len(cl.Nodes) = %d, want 1", len(cl.Nodes))
	}
	if cl.ReprocessLen() != 0 {
		t.Errorf("ReprocessLen() = %d, want 0 after replay", cl.ReprocessLen())
	}
	if len(processed) != 1 || processed[0] != parked {
		t.Fatalf("ProcessRequest calls = %+v, want exactly one call with the parked request", processed)
	}
	if parked.NeedReprocessing {
		t.Error("replayed request should have NeedReprocessing cleared")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
