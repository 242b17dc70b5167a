package cluster

import (
	"errors"
	"fmt"
)

// Sentinel errors for the error kinds named in §7.
var (
	// ErrBroken describes the broken state. Update reports a broken cluster
	// as UpdateErr; no function in this package returns ErrBroken.
	ErrBroken = errors.New("cluster: broken, no further reconfiguration will be attempted")

	// ErrNotConnected is returned by Authenticate when the node has no
	// active transport.
	ErrNotConnected = errors.New("cluster: node has no active connection")

	// ErrInvalidAddress is returned by NewNode for a malformed ip/port.
	ErrInvalidAddress = errors.New("cluster: invalid node address")

	// ErrNilSource is returned by Duplicate when given a nil cluster.
	ErrNilSource = errors.New("cluster: nil source cluster")

	// ErrNoSeedAddress is returned by FetchClusterConfiguration when the
	// seed Address is not set. Update, when no primary, slot index entry, or
	// remembered seed can supply a contact point, returns UpdateErr instead.
	ErrNoSeedAddress = errors.New("cluster: no seed address available for reconfiguration")
)

func errMalformedAddress(raw string) error {
	return fmt.Errorf("cluster: malformed address %q", raw)
}

// topologyError wraps a parse or fetch failure against a specific contact
// point, matching §7's "topology-fetch failure"/"malformed topology
// record" error kinds.
type topologyError struct {
	addr string
	err  error
}

func (e *topologyError) Error() string {
	return fmt.Sprintf("cluster: topology fetch against %s: %v", e.addr, e.err)
}

func (e *topologyError) Unwrap() error { return e.err }

func newTopologyError(addr string, err error) error {
	return &topologyError{addr: addr, err: err}
}
