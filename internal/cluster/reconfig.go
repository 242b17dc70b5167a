package cluster

import (
	"context"

	"github.com/sirupsen/logrus"
)

// UpdateStatus is the return code set of Update (§4.6).
type UpdateStatus int

const (
	// UpdateWait means quiescence has not yet been reached; the worker
	// should retry Update later.
	UpdateWait UpdateStatus = iota
	// UpdateStarted is reserved for callers that want to observe the
	// moment is_updating becomes true separately from ENDED; Update
	// itself runs the full cycle synchronously and returns ENDED or ERR.
	UpdateStarted
	// UpdateEnded means reconfiguration completed and every parked
	// request has been replayed.
	UpdateEnded
	// UpdateErr means reconfiguration failed; the cluster is now broken.
	UpdateErr
)

func (s UpdateStatus) String() string {
	switch s {
	case UpdateWait:
		return "WAIT"
	case UpdateStarted:
		return "STARTED"
	case UpdateEnded:
		return "ENDED"
	case UpdateErr:
		return "ERR"
	default:
		return "UNKNOWN"
	}
}

// Update runs the quiescence-based reconfiguration state machine (§4.6).
func (c *Cluster) Update(ctx context.Context) UpdateStatus {
	if c.Broken {
		return UpdateErr
	}

	var (
		primaryAddr Address
		haveAddr    bool
		mustWait    int
	)

	for _, n := range c.Nodes {
		if n.IsReplica {
			continue
		}
		if !haveAddr {
			primaryAddr = n.Address()
			haveAddr = true
		}
		conn := n.Connection
		if conn == nil {
			continue
		}
		mustWait += conn.PendingLen()
		conn.drainToSend(
			func(req *Request) { mustWait++ },
			func(req *Request) { c.AddToReprocess(req) },
		)
	}

	c.Updating = true
	if mustWait > 0 {
		return UpdateWait
	}

	if !haveAddr {
		if n, ok := c.SlotIndex.FirstNode(); ok {
			primaryAddr = n.Address()
			haveAddr = true
		}
	}
	if !haveAddr {
		primaryAddr = c.Seed
		haveAddr = c.Seed.IsSet()
	}
	if !haveAddr {
		c.Broken = true
		c.Logger.Error("cluster: reconfiguration has no contact point available")
		return UpdateErr
	}

	if err := c.Reset(); err != nil {
		c.Broken = true
		c.Logger.WithError(err).Error("cluster: reset failed during reconfiguration")
		return UpdateErr
	}

	if err := FetchClusterConfiguration(ctx, c, primaryAddr); err != nil {
		c.Broken = true
		c.Logger.WithError(err).Error("cluster: topology fetch failed during reconfiguration")
		return UpdateErr
	}

	c.reprocess.drainInOrder(func(req *Request) {
		req.NeedReprocessing = false
		if req.Client != nil {
			req.Client.ReprocessList = removeRequestFromList(req.Client.ReprocessList, req)
		}
		severBackPointers(req)
		if c.ProcessRequest != nil {
			c.ProcessRequest(req, nil)
		}
	})

	c.Updating = false
	c.UpdateRequired = false
	c.Logger.WithFields(logrus.Fields{"nodes": len(c.Nodes)}).Debug("cluster: reconfiguration ended")
	return UpdateEnded
}

// severBackPointers nulls a replayed request's own, its parent's, and its
// parent's other children's Node back-pointers, since every prior Node was
// invalidated by Reset (§4.6 step 6, §9 "Request <-> Node back-pointer
// invalidation").
func severBackPointers(req *Request) {
	req.Node = nil
	if req.Parent != nil {
		req.Parent.Node = nil
		for _, sibling := range req.Parent.Children {
			sibling.Node = nil
		}
	}
	for _, child := range req.Children {
		child.Node = nil
	}
}
