package cluster

import "fmt"

// Duplicate creates an empty Cluster for source's worker, deep-copies
// every Node (fresh string allocations, no Connection state), rebuilds the
// copy's SlotIndex from source's in order, and registers the back-links
// (§4.7). A duplicate shares no mutable runtime state with its parent.
func Duplicate(source *Cluster) (*Cluster, error) {
	if source == nil {
		return nil, ErrNilSource
	}

	dup := NewCluster(source.WorkerID, source.Logger)
	dup.AuthSecret = source.AuthSecret
	dup.DialTimeout = source.DialTimeout
	dup.ReconnectRate = source.ReconnectRate
	dup.ReconnectBurst = source.ReconnectBurst
	dup.Seed = source.Seed

	byName := make(map[string]*Node, len(source.Nodes))
	for _, n := range source.Nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("cluster: duplicate: node at %s has no name", n.Addr())
		}
		cp := copyNode(n, dup)
		dup.Nodes = append(dup.Nodes, cp)
		byName[n.Name] = cp
	}

	for _, entry := range source.SlotIndex.entries {
		if entry.node == nil {
			continue
		}
		cp, ok := byName[entry.node.Name]
		if !ok {
			return nil, fmt.Errorf("cluster: duplicate: source node %q not found while copying slot index", entry.node.Name)
		}
		dup.SlotIndex.insertRaw(entry.key, cp)
	}

	source.Duplicates = append(source.Duplicates, dup)
	dup.DuplicatedFrom = source
	return dup, nil
}

func copyNode(n *Node, owner *Cluster) *Node {
	cp := newNode(n.IP, n.Port, n.UnixSocket, owner)
	cp.Name = n.Name
	cp.IsReplica = n.IsReplica
	cp.Replicate = n.Replicate
	cp.Slots = append(make([]uint16, 0, len(n.Slots)), n.Slots...)
	cp.Migrating = append(make([]SlotPeer, 0, len(n.Migrating)), n.Migrating...)
	cp.Importing = append(make([]SlotPeer, 0, len(n.Importing)), n.Importing...)
	cp.DuplicatedFrom = n
	return cp
}
