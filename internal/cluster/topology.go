package cluster

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ParseTopology parses the textual reply body of CLUSTER NODES into node
// records and slot assignments (§4.3). self is updated in place when its
// record is encountered (the line carrying the "myself" flag); friends, if
// non-nil, receives a newly created Node for every other record.
func ParseTopology(reply string, self *Node, cl *Cluster, friends *[]*Node) error {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parseTopologyLine(line, self, cl, friends); err != nil {
			return err
		}
	}
	return nil
}

func parseTopologyLine(line string, self *Node, cl *Cluster, friends *[]*Node) error {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return fmt.Errorf("cluster: topology record %q: missing flags or address", line)
	}

	name := fields[0]
	addrField := fields[1]
	flagsField := fields[2]
	primaryID := "-"
	if len(fields) > 3 {
		primaryID = fields[3]
	}
	if addrField == "" || flagsField == "" {
		return fmt.Errorf("cluster: topology record %q: missing flags or address", line)
	}

	ip, port, err := parseNodeAddr(addrField)
	if err != nil {
		return fmt.Errorf("cluster: topology record %q: %w", line, err)
	}

	isMyself := strings.Contains(flagsField, "myself")
	isReplica := strings.Contains(flagsField, "slave") || primaryID != "-"

	var target *Node
	if isMyself {
		if self == nil {
			return fmt.Errorf("cluster: topology record %q carries myself but no self node was supplied", line)
		}
		if self.Name == "" {
			self.Name = name
		}
		self.IsReplica = isReplica
		if isReplica {
			self.Replicate = primaryID
		} else {
			self.Replicate = ""
		}
		self.Myself = true
		target = self
	} else {
		if friends == nil {
			return nil
		}
		node, err := NewNode(ip, port, cl)
		if err != nil {
			return fmt.Errorf("cluster: topology record %q: %w", line, err)
		}
		node.Name = name
		node.IsReplica = isReplica
		if isReplica {
			node.Replicate = primaryID
		}
		*friends = append(*friends, node)
		target = node
	}

	if len(fields) > 8 {
		for _, spec := range fields[8:] {
			if err := applySlotSpec(spec, target, cl); err != nil {
				return fmt.Errorf("cluster: topology record %q: %w", line, err)
			}
		}
	}
	return nil
}

func applySlotSpec(spec string, node *Node, cl *Cluster) error {
	switch {
	case strings.HasPrefix(spec, "[") && strings.HasSuffix(spec, "]"):
		inner := spec[1 : len(spec)-1]
		switch {
		case strings.Contains(inner, "->-"):
			parts := strings.SplitN(inner, "->-", 2)
			node.Migrating = append(node.Migrating, SlotPeer{Slot: parts[0], Peer: parts[1]})
		case strings.Contains(inner, "-<-"):
			parts := strings.SplitN(inner, "-<-", 2)
			node.Importing = append(node.Importing, SlotPeer{Slot: parts[0], Peer: parts[1]})
		default:
			return fmt.Errorf("malformed slot migration specifier %q", spec)
		}
		return nil
	case strings.Contains(spec, "-"):
		parts := strings.SplitN(spec, "-", 2)
		lo, err := parseSlotNum(parts[0])
		if err != nil {
			return err
		}
		hi, err := parseSlotNum(parts[1])
		if err != nil {
			return err
		}
		for s := lo; s <= hi; s++ {
			node.Slots = append(node.Slots, s)
		}
		if cl != nil {
			cl.SlotIndex.MapSlot(lo, node)
			cl.SlotIndex.MapSlot(hi, node)
		}
		return nil
	default:
		n, err := parseSlotNum(spec)
		if err != nil {
			return err
		}
		node.Slots = append(node.Slots, n)
		if cl != nil {
			cl.SlotIndex.MapSlot(n, node)
		}
		return nil
	}
}

func parseSlotNum(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || n >= SlotCount {
		return 0, fmt.Errorf("invalid slot number %q", s)
	}
	return uint16(n), nil
}

// FetchClusterConfiguration synchronously connects to the seed, creates a
// first Node for it, appends it to cl's node list, parses its topology
// with a fresh friends collector, then for each friend opens a synchronous
// connection and re-parses against that friend with no collector so only
// its own slot ownership is learned. Failure at any friend is fatal to the
// fetch (§4.3); per §9's open question, this strict behavior is preserved.
func FetchClusterConfiguration(ctx context.Context, cl *Cluster, seed Address) error {
	if !seed.IsSet() {
		return ErrNoSeedAddress
	}

	self, err := dialSeed(ctx, cl, seed)
	if err != nil {
		return newTopologyError(seed.String(), err)
	}
	cl.Nodes = append(cl.Nodes, self)
	cl.Seed = seed

	reply, err := fetchNodesReply(ctx, self)
	if err != nil {
		self.close()
		return newTopologyError(seed.String(), err)
	}

	var friends []*Node
	if err := ParseTopology(reply, self, cl, &friends); err != nil {
		return err
	}

	for _, friend := range friends {
		if err := friend.Connect(ctx); err != nil {
			return newTopologyError(friend.Addr(), err)
		}
		if cl.AuthSecret != "" {
			if err := friend.Authenticate(ctx, cl.AuthSecret); err != nil {
				return newTopologyError(friend.Addr(), err)
			}
		}
		friendReply, err := fetchNodesReply(ctx, friend)
		if err != nil {
			return newTopologyError(friend.Addr(), err)
		}
		if err := ParseTopology(friendReply, friend, cl, nil); err != nil {
			return err
		}
		cl.Nodes = append(cl.Nodes, friend)
	}

	logFields := logrus.Fields{"nodes": len(cl.Nodes), "slots_mapped": cl.SlotIndex.Len()}
	cl.Logger.WithFields(logFields).Debug("cluster: topology fetch complete")
	return nil
}

func dialSeed(ctx context.Context, cl *Cluster, seed Address) (*Node, error) {
	var (
		self *Node
		err  error
	)
	if seed.UnixSocket != "" {
		self, err = NewUnixNode(seed.UnixSocket, cl)
	} else {
		self, err = NewNode(seed.IP, seed.Port, cl)
	}
	if err != nil {
		return nil, err
	}
	if err := self.Connect(ctx); err != nil {
		return nil, err
	}
	if cl.AuthSecret != "" {
		if err := self.Authenticate(ctx, cl.AuthSecret); err != nil {
			self.close()
			return nil, err
		}
	}
	return self, nil
}

func fetchNodesReply(ctx context.Context, n *Node) (string, error) {
	if n.Connection == nil || n.Connection.transport == nil {
		return "", ErrNotConnected
	}
	return n.Connection.transport.ClusterNodes(ctx).Result()
}
