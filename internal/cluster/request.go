package cluster

import "fmt"

// unassignedSlot is the sentinel value for Request.Slot before routing, or
// after a request has been parked for reprocessing (§3, §4.6).
const unassignedSlot = -1

// Client is the external owner of a set of Requests. ReprocessList tracks,
// in park order, the requests this client currently has parked in a
// Cluster's reprocess queue (§4.6 "add_to_reprocess"/"remove_from_reprocess").
type Client struct {
	ID            uint64
	ReprocessList []*Request
}

// Request is the external request handle described in §3 and §6: opaque to
// the core beyond the fields it reads and writes while routing and
// reconfiguring.
type Request struct {
	Client *Client
	ID     uint64

	Key  string
	Slot int32
	Node *Node

	Written          int
	NeedReprocessing bool
	HasWriteHandler  bool

	Parent   *Request
	Children []*Request
}

// NewRequest builds a Request with Slot left unassigned, as a freshly
// arrived request would be before slot hashing runs.
func NewRequest(client *Client, id uint64, key string) *Request {
	return &Request{
		Client: client,
		ID:     id,
		Key:    key,
		Slot:   unassignedSlot,
	}
}

// reprocessKey returns the lexicographic "<client_id>:<request_id>" string
// the reprocess queue is keyed by (§4.6, §9 "Reprocess key ordering").
func (r *Request) reprocessKey() string {
	var clientID uint64
	if r.Client != nil {
		clientID = r.Client.ID
	}
	return fmt.Sprintf("%d:%d", clientID, r.ID)
}

// removeRequestFromList removes req from a client's reprocess list,
// preserving the order of the remaining entries.
func removeRequestFromList(list []*Request, req *Request) []*Request {
	for i, r := range list {
		if r == req {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
